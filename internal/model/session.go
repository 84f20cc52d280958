package model

import "time"

// SessionStatus is the lifecycle state of a table visit.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// Session records one table visit from opening until it is paid or closed.
// Closed sessions are never deleted; they are the audit record of the visit.
type Session struct {
	ID           string        `json:"id"`
	TableID      string        `json:"table_id"`
	RestaurantID string        `json:"restaurant_id"`
	Status       SessionStatus `json:"status"`
	Note         *string       `json:"note,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	ClosedAt     *time.Time    `json:"closed_at,omitempty"`
}

// Active is true while items and payments may still be applied.
func (s *Session) Active() bool { return s != nil && s.Status == SessionActive }

// Table is a physical table of a restaurant. Sessions are opened against it.
type Table struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Label        string `json:"label"`
}

// Product is the catalog row an order item is created from. Name and price
// are copied into the order item at creation and never read back.
type Product struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	Price        Money  `json:"price"`
	Available    bool   `json:"available"`
}

// ServiceRequestKind enumerates the guest calls a table can raise.
type ServiceRequestKind string

const (
	RequestCallWaiter ServiceRequestKind = "call_waiter"
	RequestBringBill  ServiceRequestKind = "bring_bill"
)

// ServiceRequestStatus is pending until staff (or the table close) resolves it.
type ServiceRequestStatus string

const (
	RequestPending  ServiceRequestStatus = "pending"
	RequestResolved ServiceRequestStatus = "resolved"
)

// ServiceRequest is a guest call tied to a session.
type ServiceRequest struct {
	ID         string               `json:"id"`
	SessionID  string               `json:"session_id"`
	TableID    string               `json:"table_id"`
	Kind       ServiceRequestKind   `json:"kind"`
	Status     ServiceRequestStatus `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
}
