// Package normalize absorbs the backend's payload drift. List envelopes
// arrive as a bare array, {"items": [...]} or a resource-named key, and
// object fields go by several historical names (table.number vs
// table_number). Each function here accepts the loose shape and returns the
// one canonical record, every field populated with its documented default.
package normalize

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dinehall/boardlink/internal/domain"
)

// Items unwraps a list payload: a bare array, {"items": [...]}, or
// {"<key>": [...]}. Anything else yields an empty slice.
func Items(raw []byte, key string) []gjson.Result {
	parsed := gjson.ParseBytes(raw)
	if parsed.IsArray() {
		return parsed.Array()
	}
	if items := parsed.Get("items"); items.IsArray() {
		return items.Array()
	}
	if items := parsed.Get(key); items.IsArray() {
		return items.Array()
	}
	return nil
}

// str returns the first present alternative as a string. Numeric values are
// rendered rather than dropped, so "table_number": 4 still yields "4".
func str(r gjson.Result, keys ...string) string {
	for _, key := range keys {
		v := r.Get(key)
		if !v.Exists() || v.IsObject() || v.IsArray() {
			continue
		}
		if v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// num returns the first present alternative as a float, accepting JSON
// numbers and numeric strings.
func num(r gjson.Result, keys ...string) float64 {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() {
			return v.Float()
		}
	}
	return 0
}

func boolean(r gjson.Result, keys ...string) bool {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() {
			return v.Bool()
		}
	}
	return false
}

// when parses the first present timestamp, accepting RFC 3339 and unix
// seconds. Zero time when absent or unparseable.
func when(r gjson.Result, keys ...string) time.Time {
	for _, key := range keys {
		v := r.Get(key)
		if !v.Exists() {
			continue
		}
		if v.Type == gjson.Number {
			return time.Unix(v.Int(), 0).UTC()
		}
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Order decodes one order object. Every field of the result is populated;
// decoding {} yields the documented defaults.
func Order(r gjson.Result) domain.Order {
	order := domain.Order{
		ID:           str(r, "id", "order_id", "_id"),
		Number:       str(r, "number", "order_number", "orderNumber"),
		TableNumber:  str(r, "table.number", "table_number", "tableNumber", "table"),
		CustomerName: str(r, "customer_name", "customer.name", "customerName"),
		Type:         orderType(str(r, "type", "order_type", "orderType")),
		Status:       orderStatus(str(r, "status", "order_status")),
		Priority:     int(num(r, "priority", "priority_tier")),
		Items:        []domain.OrderItem{},
		Subtotal:     num(r, "subtotal", "sub_total"),
		Tax:          num(r, "tax", "tax_amount"),
		Discount:     num(r, "discount", "discount_amount"),
		Total:        num(r, "total", "total_amount", "grand_total"),
		ServerName:   str(r, "server_name", "server.name", "waiter_name", "staff_name"),
		GuestCount:   int(num(r, "guest_count", "guests", "covers")),
		Note:         str(r, "note", "notes", "special_instructions"),
		CreatedAt:    when(r, "created_at", "createdAt", "placed_at"),
		Voided:       boolean(r, "voided", "is_voided"),
		Refunded:     boolean(r, "refunded", "is_refunded"),
		ReprintCount: int(num(r, "reprint_count", "reprints")),
	}
	if order.Priority < 0 {
		order.Priority = 0
	}

	items := r.Get("items")
	if !items.IsArray() {
		items = r.Get("order_items")
	}
	if items.IsArray() {
		for _, item := range items.Array() {
			order.Items = append(order.Items, OrderItem(item))
		}
	}
	return order
}

// OrderItem decodes one line item with defaults: quantity 1, kitchen
// station, queued status, non-nil modifiers.
func OrderItem(r gjson.Result) domain.OrderItem {
	item := domain.OrderItem{
		ID:         str(r, "id", "item_id", "_id"),
		Name:       str(r, "name", "item_name", "menu_item.name"),
		Quantity:   int(num(r, "quantity", "qty")),
		Price:      num(r, "price", "unit_price", "unitPrice"),
		Station:    station(r),
		Status:     itemStatus(str(r, "status", "prep_status", "preparation_status")),
		Modifiers:  []string{},
		Note:       str(r, "note", "notes", "special_instructions"),
		PreparedBy: str(r, "prepared_by", "preparedBy", "chef_name"),
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	for _, mod := range r.Get("modifiers").Array() {
		if mod.Type == gjson.String {
			item.Modifiers = append(item.Modifiers, mod.String())
		} else if name := str(mod, "name"); name != "" {
			item.Modifiers = append(item.Modifiers, name)
		}
	}
	return item
}

// Table decodes one table object.
func Table(r gjson.Result) domain.Table {
	return domain.Table{
		ID:             str(r, "id", "table_id", "_id"),
		Number:         str(r, "number", "table_number", "tableNumber"),
		Name:           str(r, "name", "table_name"),
		Seats:          int(num(r, "seats", "capacity", "seat_count")),
		Status:         tableStatus(str(r, "status", "occupancy_status")),
		CurrentOrderID: str(r, "current_order_id", "current_order.id", "currentOrderId", "order_id"),
	}
}

// Staff decodes one staff member.
func Staff(r gjson.Result) domain.Staff {
	return domain.Staff{
		ID:           str(r, "id", "staff_id", "_id"),
		Name:         str(r, "name", "full_name", "display_name"),
		Role:         staffRole(str(r, "role", "position")),
		Active:       boolean(r, "active", "is_active", "on_shift"),
		Shift:        str(r, "shift", "shift_name"),
		ActiveOrders: int(num(r, "active_orders", "open_orders", "order_count")),
		TotalSales:   num(r, "total_sales", "sales_total", "revenue"),
	}
}

// Stats decodes the board aggregate row.
func Stats(r gjson.Result) domain.BoardStats {
	return domain.BoardStats{
		OpenOrders:     int(num(r, "open_orders", "openOrders", "active_orders")),
		ReadyOrders:    int(num(r, "ready_orders", "readyOrders")),
		OccupiedTables: int(num(r, "occupied_tables", "occupiedTables")),
		ActiveStaff:    int(num(r, "active_staff", "activeStaff", "staff_on_shift")),
		Revenue:        num(r, "revenue", "total_revenue", "sales"),
		AvgPrepMinutes: num(r, "avg_prep_minutes", "avgPrepMinutes", "average_prep_time"),
	}
}

// Device decodes a KDS terminal record.
func Device(r gjson.Result) domain.Device {
	return domain.Device{
		ID:         str(r, "id", "device_id", "_id"),
		Name:       str(r, "name", "device_name"),
		Kind:       str(r, "kind", "type", "device_type"),
		LastSeen:   when(r, "last_seen", "lastSeen", "last_heartbeat"),
		CPUPercent: num(r, "cpu_percent", "cpu"),
		MemPercent: num(r, "mem_percent", "memory", "mem"),
		AppVersion: str(r, "app_version", "version"),
	}
}

// Webhook decodes an automation webhook subscription.
func Webhook(r gjson.Result) domain.WebhookSubscription {
	sub := domain.WebhookSubscription{
		ID:        str(r, "id", "subscription_id", "_id"),
		TargetURL: str(r, "target_url", "url", "endpoint"),
		Events:    []string{},
		Secret:    str(r, "secret", "signing_secret"),
		Active:    boolean(r, "active", "is_active", "enabled"),
		CreatedAt: when(r, "created_at", "createdAt"),
	}
	for _, ev := range r.Get("events").Array() {
		if ev.Type == gjson.String {
			sub.Events = append(sub.Events, ev.String())
		}
	}
	return sub
}

// PlatformReport decodes one delivery platform profitability row.
func PlatformReport(r gjson.Result) domain.PlatformReport {
	report := domain.PlatformReport{
		Platform:      str(r, "platform", "platform_name", "name"),
		Orders:        int(num(r, "orders", "order_count")),
		GrossRevenue:  num(r, "gross_revenue", "gross", "revenue"),
		Commission:    num(r, "commission", "fees", "commission_amount"),
		NetRevenue:    num(r, "net_revenue", "net"),
		MarginPercent: num(r, "margin_percent", "margin"),
	}
	if report.NetRevenue == 0 && report.GrossRevenue != 0 {
		report.NetRevenue = report.GrossRevenue - report.Commission
	}
	return report
}

// Sentiment decodes the feedback sentiment summary.
func Sentiment(r gjson.Result) domain.SentimentSummary {
	return domain.SentimentSummary{
		Positive: int(num(r, "positive", "positive_count")),
		Neutral:  int(num(r, "neutral", "neutral_count")),
		Negative: int(num(r, "negative", "negative_count")),
		Score:    num(r, "score", "sentiment_score"),
	}
}

// WaitEstimate decodes one wait-time telemetry row.
func WaitEstimate(r gjson.Result) domain.WaitEstimate {
	return domain.WaitEstimate{
		PartySize:      int(num(r, "party_size", "partySize", "covers")),
		EstimatedMins:  num(r, "estimated_mins", "estimated_minutes", "wait_minutes"),
		PartiesWaiting: int(num(r, "parties_waiting", "queue_length")),
	}
}

func orderStatus(s string) domain.OrderStatus {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if domain.ValidOrderStatus(status) {
		return status
	}
	return domain.OrderPending
}

func orderType(s string) domain.OrderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "takeout", "take_out", "pickup":
		return domain.TypeTakeout
	case "delivery":
		return domain.TypeDelivery
	default:
		return domain.TypeDineIn
	}
}

func itemStatus(s string) domain.ItemStatus {
	status := domain.ItemStatus(strings.ToLower(strings.TrimSpace(s)))
	if domain.ValidItemStatus(status) {
		return status
	}
	return domain.ItemQueued
}

// station honors both the station field and the older boolean kitchen
// routing flag.
func station(r gjson.Result) domain.Station {
	switch strings.ToLower(str(r, "station", "prep_station")) {
	case "bar":
		return domain.StationBar
	case "none", "counter":
		return domain.StationNone
	case "kitchen":
		return domain.StationKitchen
	}
	if v := r.Get("kitchen_routed"); v.Exists() && !v.Bool() {
		return domain.StationNone
	}
	if v := r.Get("requires_kitchen"); v.Exists() && !v.Bool() {
		return domain.StationNone
	}
	return domain.StationKitchen
}

func tableStatus(s string) domain.TableStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "occupied", "seated":
		return domain.TableOccupied
	case "reserved":
		return domain.TableReserved
	case "cleaning", "dirty":
		return domain.TableCleaning
	default:
		return domain.TableAvailable
	}
}

func staffRole(s string) domain.StaffRole {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manager", "admin":
		return domain.RoleManager
	case "chef", "cook", "kitchen":
		return domain.RoleChef
	case "cashier":
		return domain.RoleCashier
	default:
		return domain.RoleWaiter
	}
}
