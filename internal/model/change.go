package model

import (
	"encoding/json"
	"time"
)

// ChangeType is the kind of row change carried on the feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Ledger table names used on the change feed.
const (
	TableSessions        = "sessions"
	TableOrderItems      = "order_items"
	TableBills           = "bills"
	TableTransactions    = "transactions"
	TableServiceRequests = "service_requests"
)

// RowRef carries the columns the realtime layer filters on. Data holds the
// full row as JSON for consumers that want it.
type RowRef struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id,omitempty"`
	TableID   string          `json:"table_id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ChangeEvent is one row-level change notification scoped to a restaurant.
type ChangeEvent struct {
	Type         ChangeType `json:"eventType"`
	Table        string     `json:"table"`
	RestaurantID string     `json:"restaurant_id"`
	Old          *RowRef    `json:"old,omitempty"`
	New          *RowRef    `json:"new,omitempty"`
	At           time.Time  `json:"at"`
}

// Row returns the new row when present, otherwise the old one.
func (e ChangeEvent) Row() *RowRef {
	if e.New != nil {
		return e.New
	}
	return e.Old
}
