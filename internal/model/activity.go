package model

import (
	"encoding/json"
	"time"
)

// ActivityAction names a sensitive mutation recorded in the audit log.
type ActivityAction string

const (
	ActionVoidItem        ActivityAction = "void_item"
	ActionVoidPartial     ActivityAction = "void_partial_quantity"
	ActionItemCancelled   ActivityAction = "item_cancelled"
	ActionPaymentRecorded ActivityAction = "payment_recorded"
	ActionSessionClosed   ActivityAction = "session_closed"
	ActionAdjustmentAdded ActivityAction = "adjustment_added"
)

// ActivityLog is an append-only audit entry. Details holds a JSON snapshot
// of the affected entity and the reason given.
type ActivityLog struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	SessionID    string          `json:"session_id"`
	Action       ActivityAction  `json:"action"`
	ActorID      string          `json:"actor_id"`
	Details      json.RawMessage `json:"details"`
	CreatedAt    time.Time       `json:"created_at"`
}

// VoidDetails is the structured payload of void and partial-void entries.
// VoidedQuantity × Price is the amount removed from the bill.
type VoidDetails struct {
	ItemID           string      `json:"item_id"`
	ProductID        string      `json:"product_id"`
	ProductName      string      `json:"product_name"`
	Price            Money       `json:"price"`
	PreviousQuantity int         `json:"previous_quantity"`
	NewQuantity      int         `json:"new_quantity"`
	VoidedQuantity   int         `json:"voided_quantity"`
	PreviousStatus   OrderStatus `json:"previous_status"`
	Reason           string      `json:"reason"`
}

// Amount is the financial delta the void removed.
func (d VoidDetails) Amount() Money { return d.Price.Times(d.VoidedQuantity) }
