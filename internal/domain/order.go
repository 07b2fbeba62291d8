// Package domain holds the canonical in-memory records of the board
// daemon. Every record leaving the normalization layer is fully populated;
// the zero values documented here are what missing upstream fields default
// to.
package domain

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderType distinguishes how an order is fulfilled.
type OrderType string

const (
	TypeDineIn   OrderType = "dine_in"
	TypeTakeout  OrderType = "takeout"
	TypeDelivery OrderType = "delivery"
)

// ItemStatus is the preparation state of a single line item.
type ItemStatus string

const (
	ItemQueued    ItemStatus = "queued"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

// Station routes an item to the crew that prepares it.
type Station string

const (
	StationKitchen Station = "kitchen"
	StationBar     Station = "bar"
	StationNone    Station = "none"
)

// Order is a normalized restaurant order as shown on the board.
type Order struct {
	ID           string      `json:"id"`
	Number       string      `json:"number"`
	TableNumber  string      `json:"table_number"`
	CustomerName string      `json:"customer_name"`
	Type         OrderType   `json:"type"`
	Status       OrderStatus `json:"status"`
	Priority     int         `json:"priority"`
	Items        []OrderItem `json:"items"`
	Subtotal     float64     `json:"subtotal"`
	Tax          float64     `json:"tax"`
	Discount     float64     `json:"discount"`
	Total        float64     `json:"total"`
	ServerName   string      `json:"server_name"`
	GuestCount   int         `json:"guest_count"`
	Note         string      `json:"note"`
	CreatedAt    time.Time   `json:"created_at"`
	Voided       bool        `json:"voided"`
	Refunded     bool        `json:"refunded"`
	ReprintCount int         `json:"reprint_count"`
}

// OrderItem is a single line on an order. Items belong to exactly one order.
type OrderItem struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Quantity   int        `json:"quantity"`
	Price      float64    `json:"price"`
	Station    Station    `json:"station"`
	Status     ItemStatus `json:"status"`
	Modifiers  []string   `json:"modifiers"`
	Note       string     `json:"note"`
	PreparedBy string     `json:"prepared_by"`
}

// WaitMinutes reports how long the order has been open, rounded down.
func (o Order) WaitMinutes(now time.Time) int {
	if o.CreatedAt.IsZero() || now.Before(o.CreatedAt) {
		return 0
	}
	return int(now.Sub(o.CreatedAt) / time.Minute)
}

// KitchenRouted reports whether the item is prepared by the kitchen.
func (i OrderItem) KitchenRouted() bool {
	return i.Station == StationKitchen
}

// Done reports whether the item needs no further preparation.
func (i OrderItem) Done() bool {
	return i.Status == ItemReady || i.Status == ItemServed
}

// NextOrderStatus derives an order's status from its items: when every item
// is served the order is served; when every kitchen-routed item is ready or
// served and the order was preparing, it is ready; otherwise the current
// status stands. Orders without items never transition.
func NextOrderStatus(o Order) OrderStatus {
	if len(o.Items) == 0 {
		return o.Status
	}

	allServed := true
	kitchenDone := true
	for _, item := range o.Items {
		if item.Status != ItemServed {
			allServed = false
		}
		if item.KitchenRouted() && !item.Done() {
			kitchenDone = false
		}
	}

	if allServed {
		return OrderServed
	}
	if kitchenDone && o.Status == OrderPreparing {
		return OrderReady
	}
	return o.Status
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderPreparing, OrderReady, OrderServed, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// ValidItemStatus reports whether s is a known item status.
func ValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemQueued, ItemPreparing, ItemReady, ItemServed:
		return true
	}
	return false
}
