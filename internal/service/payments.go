package service

import (
	"context"
	"fmt"

	"github.com/erfan-mirasadi/menu-3d/internal/billing"
	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/queue"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

// PaymentLeg is one amount received by one method. ItemIDs optionally
// names the lines the guest is paying for; they are recorded verbatim.
type PaymentLeg struct {
	Method  model.PaymentMethod `json:"method"`
	Amount  model.Money         `json:"amount"`
	ItemIDs []string            `json:"item_ids,omitempty"`
}

// Payment is either a SinglePayment or a SplitPayment.
type Payment interface {
	legs() []PaymentLeg
	validate() error
}

// SinglePayment is one leg paid by one method.
type SinglePayment struct {
	PaymentLeg
}

func (p SinglePayment) legs() []PaymentLeg { return []PaymentLeg{p.PaymentLeg} }

func (p SinglePayment) validate() error { return p.PaymentLeg.validate("") }

// SplitPayment records several legs in one transaction. When Declared is
// set the legs must add up to it exactly.
type SplitPayment struct {
	Parts    []PaymentLeg `json:"parts"`
	Declared model.Money  `json:"declared"`
}

func (p SplitPayment) legs() []PaymentLeg { return p.Parts }

func (p SplitPayment) validate() error {
	if len(p.Parts) == 0 {
		return invalid("parts", "at least one leg is required")
	}
	var sum model.Money
	for i, leg := range p.Parts {
		if err := leg.validate(fmt.Sprintf("parts[%d].", i)); err != nil {
			return err
		}
		sum += leg.Amount
	}
	if p.Declared != 0 && sum != p.Declared {
		return &MixedPaymentMismatchError{Declared: p.Declared, Sum: sum}
	}
	return nil
}

func (l PaymentLeg) validate(prefix string) error {
	if !l.Method.Valid() {
		return invalid(prefix+"method", "must be CASH, POS or CARD")
	}
	if l.Amount <= 0 {
		return invalid(prefix+"amount", "must be greater than zero")
	}
	return nil
}

// PaymentResult reports the bill after the payment landed.
type PaymentResult struct {
	Success       bool                `json:"success"`
	BillID        string              `json:"bill_id"`
	Paid          model.Money         `json:"paid"`
	Remaining     model.Money         `json:"remaining"`
	FullyPaid     bool                `json:"fully_paid"`
	SessionClosed bool                `json:"session_closed"`
	Transactions  []model.Transaction `json:"transactions"`
}

type paymentDetails struct {
	BillID    string                `json:"bill_id"`
	Amount    model.Money           `json:"amount"`
	Legs      []PaymentLeg          `json:"legs"`
	PaidAfter model.Money           `json:"paid_after"`
	Total     model.Money           `json:"total"`
	TxnIDs    []string              `json:"transaction_ids"`
	Methods   []model.PaymentMethod `json:"methods"`
}

// ProcessPayment records a payment against the session's bill. The bill is
// re-read and its total recomputed inside the transaction, and the write is
// guarded on the paid amount read, so a concurrent payment yields an
// ErrConcurrencyConflict instead of a double charge. A payment that settles
// the bill closes the session in the same transaction.
func (s *Service) ProcessPayment(ctx context.Context, actor model.Actor, sessionID string, p Payment) (*PaymentResult, error) {
	if !actor.Role.Orders() {
		return nil, ErrForbidden
	}
	if p == nil {
		return nil, invalid("payment", "is required")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	legs := p.legs()
	var amount model.Money
	for _, l := range legs {
		amount += l.Amount
	}

	var (
		sess *model.Session
		bill *model.Bill
		res  = &PaymentResult{}
	)
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		sess, err = s.activeSession(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		bill, err = s.billFor(ctx, tx, sess)
		if err != nil {
			return err
		}
		remaining := bill.Remaining()
		if billing.Overpays(amount, remaining) {
			return &OverpaymentError{Requested: amount, Remaining: remaining}
		}
		items, err := tx.ListOrderItems(ctx, sess.ID, model.PayableStatuses...)
		if err != nil {
			return err
		}
		byID := make(map[string]model.OrderItem, len(items))
		for _, it := range items {
			byID[it.ID] = it
		}

		now := s.now()
		txns := make([]model.Transaction, 0, len(legs))
		for i, leg := range legs {
			paid := make([]model.PaidItem, 0, len(leg.ItemIDs))
			for _, id := range leg.ItemIDs {
				it, ok := byID[id]
				if !ok {
					return invalid(fmt.Sprintf("legs[%d].item_ids", i), "item "+id+" is not payable in this session")
				}
				paid = append(paid, model.PaidItem{ID: it.ID, Title: it.ProductName, Quantity: it.Quantity, Price: it.UnitPrice})
			}
			txns = append(txns, model.Transaction{
				ID:         s.newID(),
				BillID:     bill.ID,
				Amount:     leg.Amount,
				Method:     leg.Method,
				RecordedBy: actor.ID,
				PaidItems:  paid,
				CreatedAt:  now,
			})
		}
		if err := tx.InsertTransactions(ctx, txns); err != nil {
			return err
		}

		expected := bill.PaidAmount
		bill.PaidAmount += amount
		bill.UpdatedAt = now
		bill.Status = billing.StatusFor(bill.TotalAmount, bill.PaidAmount)
		if err := tx.UpdateBill(ctx, bill, expected); err != nil {
			return err
		}

		details := paymentDetails{BillID: bill.ID, Amount: amount, Legs: legs, PaidAfter: bill.PaidAmount, Total: bill.TotalAmount}
		for _, t := range txns {
			details.TxnIDs = append(details.TxnIDs, t.ID)
			details.Methods = append(details.Methods, t.Method)
		}
		if err := s.audit(ctx, tx, sess, model.ActionPaymentRecorded, actor, details); err != nil {
			return err
		}

		res.Transactions = txns
		if bill.Status == model.BillPaid {
			if err := s.closeSession(ctx, tx, actor, sess, bill); err != nil {
				return err
			}
			res.SessionClosed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Success = true
	res.BillID = bill.ID
	res.Paid = bill.PaidAmount
	res.Remaining = bill.Remaining()
	res.FullyPaid = bill.Status == model.BillPaid

	methods := make([]string, 0, len(legs))
	for _, l := range legs {
		methods = append(methods, string(l.Method))
	}
	evs := []queue.LedgerEvent{{
		Type:         queue.EventPaymentRecorded,
		RestaurantID: sess.RestaurantID,
		SessionID:    sess.ID,
		TableID:      sess.TableID,
		BillID:       bill.ID,
		ActorID:      actor.ID,
		AmountCents:  int64(amount),
		Remaining:    int64(res.Remaining),
		Methods:      methods,
	}}
	if res.FullyPaid {
		paid := evs[0]
		paid.Type = queue.EventBillPaid
		paid.AmountCents = int64(bill.TotalAmount)
		paid.Methods = nil
		evs = append(evs, paid)
	}
	if res.SessionClosed {
		evs = append(evs, closedEvent(actor, sess, bill))
	}
	s.emit(ctx, evs...)
	return res, nil
}
