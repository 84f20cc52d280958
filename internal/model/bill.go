package model

import "time"

// BillStatus is UNPAID until the remaining amount falls within tolerance.
type BillStatus string

const (
	BillUnpaid BillStatus = "UNPAID"
	BillPaid   BillStatus = "PAID"
)

// AdjustmentType distinguishes charges (added) from discounts (subtracted).
type AdjustmentType string

const (
	AdjustmentCharge   AdjustmentType = "charge"
	AdjustmentDiscount AdjustmentType = "discount"
)

// Adjustment is a named charge or discount on a bill. The list on a bill is
// append-only.
type Adjustment struct {
	Title     string         `json:"title"`
	Amount    Money          `json:"amount"`
	Type      AdjustmentType `json:"type"`
	CreatedBy string         `json:"created_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Signed returns the amount as it contributes to the total.
func (a Adjustment) Signed() Money {
	if a.Type == AdjustmentDiscount {
		return -a.Amount
	}
	return a.Amount
}

// Bill is the financial summary of a session. TotalAmount is only written by
// the billing engine's recompute; PaidAmount only by payments.
type Bill struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	TotalAmount Money        `json:"total_amount"`
	PaidAmount  Money        `json:"paid_amount"`
	Status      BillStatus   `json:"status"`
	Adjustments []Adjustment `json:"adjustments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Remaining is total minus paid; it is derived, never stored.
func (b *Bill) Remaining() Money { return b.TotalAmount - b.PaidAmount }

// PaymentMethod is how money was received.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "CASH"
	MethodPOS  PaymentMethod = "POS"
	MethodCard PaymentMethod = "CARD"
)

// Valid reports whether m is an accepted method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodPOS, MethodCard:
		return true
	}
	return false
}

// PaidItem is the copy of an order line taken when a payment was attributed
// to it. Products may be edited or removed later; this copy is not.
type PaidItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    Money  `json:"price"`
}

// Transaction is one immutable payment event against a bill.
type Transaction struct {
	ID         string        `json:"id"`
	BillID     string        `json:"bill_id"`
	Amount     Money         `json:"amount"`
	Method     PaymentMethod `json:"method"`
	RecordedBy string        `json:"recorded_by"`
	PaidItems  []PaidItem    `json:"paid_items"`
	CreatedAt  time.Time     `json:"created_at"`
}
