// Package queue defines message payloads exchanged over the message broker
// and the publisher and consumer that move them.
package queue

import "time"

// LedgerEventType names a financial or lifecycle fact worth an audit trail
// outside the primary database.
type LedgerEventType string

const (
	EventPaymentRecorded LedgerEventType = "payment.recorded"
	EventBillPaid        LedgerEventType = "bill.paid"
	EventSessionClosed   LedgerEventType = "session.closed"
	EventItemVoided      LedgerEventType = "item.voided"
)

// LedgerEvent is published after the transaction that produced it commits.
// It carries enough for downstream consumers to log, notify, or feed
// analytics without querying the ledger.
type LedgerEvent struct {
	Type         LedgerEventType `json:"type"`
	RestaurantID string          `json:"restaurant_id"`
	SessionID    string          `json:"session_id"`
	TableID      string          `json:"table_id,omitempty"`
	BillID       string          `json:"bill_id,omitempty"`
	ItemID       string          `json:"item_id,omitempty"`
	ActorID      string          `json:"actor_id"`
	AmountCents  int64           `json:"amount_cents"`
	Remaining    int64           `json:"remaining_cents"`
	Quantity     int             `json:"quantity,omitempty"`
	Methods      []string        `json:"methods,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// Queue is the durable queue ledger events are routed to.
const Queue = "ledger.events"
