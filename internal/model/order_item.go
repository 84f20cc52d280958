package model

import "time"

// OrderStatus is the closed set of states an order item moves through.
// Legal moves between them live in package orderflow.
type OrderStatus string

const (
	StatusDraft     OrderStatus = "draft"
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusCancelled OrderStatus = "cancelled"
)

// PayableStatuses lists every status that counts toward a bill.
var PayableStatuses = []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady, StatusServed}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusServed, StatusCancelled:
		return true
	}
	return false
}

// Payable is the single source of truth for whether an item is billed.
func (s OrderStatus) Payable() bool {
	switch s {
	case StatusConfirmed, StatusPreparing, StatusReady, StatusServed:
		return true
	}
	return false
}

// Uncommitted statuses may be edited freely and hard-deleted.
func (s OrderStatus) Uncommitted() bool { return s == StatusDraft || s == StatusPending }

// OrderItem is one line of a session's order. UnitPrice and ProductName are
// snapshots taken when the item was created.
type OrderItem struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	UnitPrice   Money       `json:"unit_price_at_order"`
	Status      OrderStatus `json:"status"`
	Notes       *string     `json:"notes,omitempty"`
	CreatedBy   string      `json:"created_by"`
	CreatedRole Role        `json:"created_role"`
	CreatedAt   time.Time   `json:"created_at"`
}

// MaxQuantity is the largest quantity one order line may carry. Larger
// orders are split across lines.
const MaxQuantity = 999

// LineTotal is quantity × price at order.
func (i OrderItem) LineTotal() Money { return i.UnitPrice.Times(i.Quantity) }

// Payable reports whether the item counts toward the bill.
func (i OrderItem) Payable() bool { return i.Status.Payable() }
