package domain

import "time"

// TableStatus is the occupancy state of a dining table.
type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
	TableCleaning  TableStatus = "cleaning"
)

// Table is a dining table on the floor plan. CurrentOrderID is a lookup
// reference only; the order itself lives in the orders collection.
type Table struct {
	ID             string      `json:"id"`
	Number         string      `json:"number"`
	Name           string      `json:"name"`
	Seats          int         `json:"seats"`
	Status         TableStatus `json:"status"`
	CurrentOrderID string      `json:"current_order_id"`
}

// StaffRole is a staff member's job on the floor.
type StaffRole string

const (
	RoleManager StaffRole = "manager"
	RoleWaiter  StaffRole = "waiter"
	RoleChef    StaffRole = "chef"
	RoleCashier StaffRole = "cashier"
)

// Staff is a read-mostly staff aggregate; the counters are recomputed
// server-side and never mutated locally.
type Staff struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         StaffRole `json:"role"`
	Active       bool      `json:"active"`
	Shift        string    `json:"shift"`
	ActiveOrders int       `json:"active_orders"`
	TotalSales   float64   `json:"total_sales"`
}

// BoardStats is the aggregate header row of the board.
type BoardStats struct {
	OpenOrders     int     `json:"open_orders"`
	ReadyOrders    int     `json:"ready_orders"`
	OccupiedTables int     `json:"occupied_tables"`
	ActiveStaff    int     `json:"active_staff"`
	Revenue        float64 `json:"revenue"`
	AvgPrepMinutes float64 `json:"avg_prep_minutes"`
}

// Device is a kitchen-display or tablet terminal known to the backend.
type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	LastSeen   time.Time `json:"last_seen"`
	CPUPercent float64   `json:"cpu_percent"`
	MemPercent float64   `json:"mem_percent"`
	AppVersion string    `json:"app_version"`
}

// WebhookSubscription is an outbound automation hook registered with the
// backend.
type WebhookSubscription struct {
	ID        string    `json:"id"`
	TargetURL string    `json:"target_url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// PlatformReport is one delivery platform's profitability row.
type PlatformReport struct {
	Platform      string  `json:"platform"`
	Orders        int     `json:"orders"`
	GrossRevenue  float64 `json:"gross_revenue"`
	Commission    float64 `json:"commission"`
	NetRevenue    float64 `json:"net_revenue"`
	MarginPercent float64 `json:"margin_percent"`
}

// SentimentSummary aggregates customer feedback scores.
type SentimentSummary struct {
	Positive int     `json:"positive"`
	Neutral  int     `json:"neutral"`
	Negative int     `json:"negative"`
	Score    float64 `json:"score"`
}

// WaitEstimate is the backend's current wait-time telemetry.
type WaitEstimate struct {
	PartySize      int     `json:"party_size"`
	EstimatedMins  float64 `json:"estimated_mins"`
	PartiesWaiting int     `json:"parties_waiting"`
}
