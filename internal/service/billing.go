package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/erfan-mirasadi/menu-3d/internal/billing"
	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

// recompute derives the bill total from persisted items and adjustments
// and stores it when it moved. It is the only writer of TotalAmount and is
// idempotent: a second call with nothing changed writes nothing. The status
// follows the total, so a void or discount that settles a part-paid bill
// marks it PAID; the session stays open until staff close the table.
func (s *Service) recompute(ctx context.Context, tx repository.LedgerTx, bill *model.Bill) (bool, error) {
	items, err := tx.ListOrderItems(ctx, bill.SessionID, model.PayableStatuses...)
	if err != nil {
		return false, err
	}
	total := billing.Total(items, bill.Adjustments)
	if total < bill.PaidAmount {
		return false, fmt.Errorf("%w: total %s, paid %s", ErrBelowPaid, total, bill.PaidAmount)
	}
	status := billing.StatusFor(total, bill.PaidAmount)
	if total == bill.TotalAmount && status == bill.Status {
		return false, nil
	}
	bill.TotalAmount = total
	bill.Status = status
	bill.UpdatedAt = s.now()
	return true, tx.UpdateBill(ctx, bill, bill.PaidAmount)
}

// refreshBill recomputes the session's bill if one exists. Bills are
// created lazily, so a session without one has nothing to refresh.
func (s *Service) refreshBill(ctx context.Context, tx repository.LedgerTx, sess *model.Session) error {
	bill, err := tx.GetBillBySession(ctx, sess.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.recompute(ctx, tx, bill)
	return err
}

// billFor returns the session's bill with a fresh total, creating it on
// first use. A stored total that disagrees with the items is logged and
// overwritten; it is never shown.
func (s *Service) billFor(ctx context.Context, tx repository.LedgerTx, sess *model.Session) (*model.Bill, error) {
	bill, err := tx.GetBillBySession(ctx, sess.ID)
	if err == nil {
		stored := bill.TotalAmount
		changed, err := s.recompute(ctx, tx, bill)
		if err != nil {
			return nil, err
		}
		if changed {
			log.Printf("billing: bill %s stored total %s was stale, now %s", bill.ID, stored, bill.TotalAmount)
		}
		return bill, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	items, err := tx.ListOrderItems(ctx, sess.ID, model.PayableStatuses...)
	if err != nil {
		return nil, err
	}
	now := s.now()
	bill = &model.Bill{
		ID:          s.newID(),
		SessionID:   sess.ID,
		TotalAmount: billing.ItemsTotal(items),
		Status:      model.BillUnpaid,
		Adjustments: []model.Adjustment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.InsertBill(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// GetOrCreateBill returns the bill of an active session, creating it if
// needed. A closed session's bill is returned as stored.
func (s *Service) GetOrCreateBill(ctx context.Context, actor model.Actor, sessionID string) (*model.Bill, error) {
	var bill *model.Bill
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		sess, err := s.session(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		if !sess.Active() {
			bill, err = tx.GetBillBySession(ctx, sess.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionClosed
			}
			return err
		}
		bill, err = s.billFor(ctx, tx, sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// CalculateBillTotal recomputes and stores the total of a bill.
func (s *Service) CalculateBillTotal(ctx context.Context, actor model.Actor, billID string) (model.Money, error) {
	var total model.Money
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		bill, err := tx.GetBill(ctx, billID)
		if err != nil {
			return fmt.Errorf("bill %s: %w", billID, err)
		}
		sess, err := s.session(ctx, tx, actor, bill.SessionID)
		if err != nil {
			return err
		}
		if sess.Active() {
			if _, err := s.recompute(ctx, tx, bill); err != nil {
				return err
			}
		}
		total = bill.TotalAmount
		return nil
	})
	return total, err
}

// AdjustmentInput is a charge or discount to append to a bill.
type AdjustmentInput struct {
	Title  string               `json:"title"`
	Amount model.Money          `json:"amount"`
	Type   model.AdjustmentType `json:"type"`
}

type adjustmentDetails struct {
	BillID     string           `json:"bill_id"`
	Adjustment model.Adjustment `json:"adjustment"`
	Total      model.Money      `json:"total"`
}

// AddAdjustment appends a charge or discount and recomputes the total.
func (s *Service) AddAdjustment(ctx context.Context, actor model.Actor, sessionID string, in AdjustmentInput) (*model.Bill, error) {
	if err := requireRole(actor, model.RoleCashier, model.RoleAdmin); err != nil {
		return nil, err
	}
	adj := model.Adjustment{
		Title:     strings.TrimSpace(in.Title),
		Amount:    in.Amount,
		Type:      in.Type,
		CreatedBy: actor.ID,
		CreatedAt: s.now(),
	}
	if err := billing.ValidateAdjustment(adj); err != nil {
		return nil, err
	}
	var bill *model.Bill
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		sess, err := s.activeSession(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		bill, err = s.billFor(ctx, tx, sess)
		if err != nil {
			return err
		}
		bill.Adjustments = append(bill.Adjustments, adj)
		changed, err := s.recompute(ctx, tx, bill)
		if err != nil {
			return err
		}
		if !changed {
			bill.UpdatedAt = s.now()
			if err := tx.UpdateBill(ctx, bill, bill.PaidAmount); err != nil {
				return err
			}
		}
		return s.audit(ctx, tx, sess, model.ActionAdjustmentAdded, actor, adjustmentDetails{
			BillID: bill.ID, Adjustment: adj, Total: bill.TotalAmount,
		})
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// BillView is what the cashier screen and the guest bill render.
type BillView struct {
	Bill         model.Bill             `json:"bill"`
	Remaining    model.Money            `json:"remaining"`
	FullyPaid    bool                   `json:"fully_paid"`
	Items        []billing.ItemCoverage `json:"items"`
	Transactions []model.Transaction    `json:"transactions"`
}

// GetBillView returns the bill with its per-item paid attribution and the
// payment history.
func (s *Service) GetBillView(ctx context.Context, actor model.Actor, sessionID string) (*BillView, error) {
	var view *BillView
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		bill, items, err := s.billAndItems(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		txns, err := tx.ListTransactions(ctx, bill.ID)
		if err != nil {
			return err
		}
		view = &BillView{
			Bill:         *bill,
			Remaining:    bill.Remaining(),
			FullyPaid:    billing.FullyPaid(bill.TotalAmount, bill.PaidAmount),
			Items:        billing.Attribute(items, bill.PaidAmount),
			Transactions: txns,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) billAndItems(ctx context.Context, tx repository.LedgerTx, actor model.Actor, sessionID string) (*model.Bill, []model.OrderItem, error) {
	sess, err := s.session(ctx, tx, actor, sessionID)
	if err != nil {
		return nil, nil, err
	}
	var bill *model.Bill
	if sess.Active() {
		bill, err = s.billFor(ctx, tx, sess)
	} else {
		bill, err = tx.GetBillBySession(ctx, sess.ID)
	}
	if err != nil {
		return nil, nil, err
	}
	items, err := tx.ListOrderItems(ctx, sess.ID, model.PayableStatuses...)
	if err != nil {
		return nil, nil, err
	}
	return bill, items, nil
}

// QuoteMode selects how an amount-to-pay is suggested.
type QuoteMode string

const (
	QuoteFull      QuoteMode = "full"
	QuoteHeadcount QuoteMode = "headcount"
	QuoteItems     QuoteMode = "items"
	QuoteCustom    QuoteMode = "custom"
)

// QuoteRequest asks for a suggested amount. Only the fields of the chosen
// mode are read.
type QuoteRequest struct {
	Mode      QuoteMode   `json:"mode"`
	Headcount int         `json:"headcount"`
	ItemIDs   []string    `json:"item_ids"`
	Amount    model.Money `json:"amount"`
}

// Quote is a suggestion only; nothing is persisted.
type Quote struct {
	Mode      QuoteMode     `json:"mode"`
	Amount    model.Money   `json:"amount"`
	Shares    []model.Money `json:"shares,omitempty"`
	Remaining model.Money   `json:"remaining"`
}

// QuotePayment suggests an amount-to-pay against the current remaining.
func (s *Service) QuotePayment(ctx context.Context, actor model.Actor, sessionID string, req QuoteRequest) (*Quote, error) {
	var q *Quote
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		bill, items, err := s.billAndItems(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		remaining := bill.Remaining()
		q = &Quote{Mode: req.Mode, Remaining: remaining}
		switch req.Mode {
		case QuoteFull, "":
			q.Mode = QuoteFull
			q.Amount = max(remaining, 0)
		case QuoteHeadcount:
			q.Shares, err = billing.ByHeadcount(remaining, req.Headcount)
			if err == nil && len(q.Shares) > 0 {
				q.Amount = q.Shares[0]
			}
		case QuoteItems:
			q.Amount, err = billing.ByItems(items, bill.Adjustments, bill.PaidAmount, remaining, req.ItemIDs)
		case QuoteCustom:
			q.Amount, err = billing.Custom(req.Amount, remaining)
		default:
			err = invalid("mode", "must be full, headcount, items or custom")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}
