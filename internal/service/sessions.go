package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erfan-mirasadi/menu-3d/internal/billing"
	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/queue"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

// OpenTable starts a session at a table that has none.
func (s *Service) OpenTable(ctx context.Context, actor model.Actor, tableID string) (*model.Session, error) {
	if !actor.Role.Orders() {
		return nil, ErrForbidden
	}
	if tableID == "" {
		return nil, invalid("table_id", "is required")
	}
	var sess *model.Session
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		sess, err = s.openSession(ctx, tx, actor, tableID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// openSession locks the table row first, so two concurrent opens cannot
// both see it free.
func (s *Service) openSession(ctx context.Context, tx repository.LedgerTx, actor model.Actor, tableID string) (*model.Session, error) {
	table, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableID, err)
	}
	if actor.RestaurantID != "" && actor.RestaurantID != table.RestaurantID {
		return nil, ErrForbidden
	}
	if _, err := tx.ActiveSessionForTable(ctx, table.ID); err == nil {
		return nil, ErrTableOccupied
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	sess := &model.Session{
		ID:           s.newID(),
		TableID:      table.ID,
		RestaurantID: table.RestaurantID,
		Status:       model.SessionActive,
		CreatedAt:    s.now(),
	}
	if err := tx.InsertSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Table looks up a table without an actor. Guest tokens are minted from it
// before the guest has an identity.
func (s *Service) Table(ctx context.Context, id string) (*model.Table, error) {
	var table *model.Table
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		table, err = tx.GetTable(ctx, id)
		if err != nil {
			return fmt.Errorf("table %s: %w", id, err)
		}
		return nil
	})
	return table, err
}

// GetSession returns a session in any state.
func (s *Service) GetSession(ctx context.Context, actor model.Actor, id string) (*model.Session, error) {
	var sess *model.Session
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		sess, err = s.session(ctx, tx, actor, id)
		return err
	})
	return sess, err
}

// CloseTable ends a session whose bill is settled. Uncommitted items are
// dropped and pending service requests resolved in the same transaction.
func (s *Service) CloseTable(ctx context.Context, actor model.Actor, sessionID string) (*model.Session, error) {
	if !actor.Role.Orders() {
		return nil, ErrForbidden
	}
	var (
		sess *model.Session
		bill *model.Bill
	)
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		sess, err = s.activeSession(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		bill, err = tx.GetBillBySession(ctx, sess.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			bill = nil
			items, err := tx.ListOrderItems(ctx, sess.ID, model.PayableStatuses...)
			if err != nil {
				return err
			}
			if due := billing.ItemsTotal(items); due > billing.Tolerance {
				return fmt.Errorf("%w: %s unbilled", ErrOutstandingBalance, due)
			}
		case err != nil:
			return err
		default:
			if _, err := s.recompute(ctx, tx, bill); err != nil {
				return err
			}
			if !billing.FullyPaid(bill.TotalAmount, bill.PaidAmount) {
				return fmt.Errorf("%w: %s remaining", ErrOutstandingBalance, bill.Remaining())
			}
			if bill.Status != model.BillPaid {
				bill.Status = model.BillPaid
				bill.UpdatedAt = s.now()
				if err := tx.UpdateBill(ctx, bill, bill.PaidAmount); err != nil {
					return err
				}
			}
		}
		return s.closeSession(ctx, tx, actor, sess, bill)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, closedEvent(actor, sess, bill))
	return sess, nil
}

type closeDetails struct {
	BillID           string      `json:"bill_id,omitempty"`
	Total            model.Money `json:"total"`
	Paid             model.Money `json:"paid"`
	DroppedItems     int         `json:"dropped_items"`
	ResolvedRequests int         `json:"resolved_requests"`
}

// closeSession marks sess closed. bill may be nil when none was created.
func (s *Service) closeSession(ctx context.Context, tx repository.LedgerTx, actor model.Actor, sess *model.Session, bill *model.Bill) error {
	stale, err := tx.ListOrderItems(ctx, sess.ID, model.StatusDraft, model.StatusPending)
	if err != nil {
		return err
	}
	for _, item := range stale {
		if err := tx.DeleteOrderItem(ctx, item.ID, repository.VersionOf(item)); err != nil {
			return err
		}
	}
	now := s.now()
	resolved, err := tx.ResolveServiceRequests(ctx, sess.ID, now)
	if err != nil {
		return err
	}
	sess.Status = model.SessionClosed
	sess.ClosedAt = &now
	if err := tx.UpdateSession(ctx, sess); err != nil {
		return err
	}
	details := closeDetails{DroppedItems: len(stale), ResolvedRequests: resolved}
	if bill != nil {
		details.BillID, details.Total, details.Paid = bill.ID, bill.TotalAmount, bill.PaidAmount
	}
	return s.audit(ctx, tx, sess, model.ActionSessionClosed, actor, details)
}

func closedEvent(actor model.Actor, sess *model.Session, bill *model.Bill) queue.LedgerEvent {
	ev := queue.LedgerEvent{
		Type:         queue.EventSessionClosed,
		RestaurantID: sess.RestaurantID,
		SessionID:    sess.ID,
		TableID:      sess.TableID,
		ActorID:      actor.ID,
	}
	if bill != nil {
		ev.BillID = bill.ID
		ev.AmountCents = int64(bill.TotalAmount)
		ev.Remaining = int64(bill.Remaining())
	}
	if sess.ClosedAt != nil {
		ev.OccurredAt = *sess.ClosedAt
	}
	return ev
}

// SetNote replaces the staff note of a session. An empty note clears it.
func (s *Service) SetNote(ctx context.Context, actor model.Actor, sessionID, note string) (*model.Session, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	var sess *model.Session
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		sess, err = s.session(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		sess.Note = nil
		if n := strings.TrimSpace(note); n != "" {
			sess.Note = &n
		}
		return tx.UpdateSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RequestService raises a guest call on an active session.
func (s *Service) RequestService(ctx context.Context, actor model.Actor, sessionID string, kind model.ServiceRequestKind) (*model.ServiceRequest, error) {
	if kind != model.RequestCallWaiter && kind != model.RequestBringBill {
		return nil, invalid("kind", "must be call_waiter or bring_bill")
	}
	var req *model.ServiceRequest
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		sess, err := s.activeSession(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		req = &model.ServiceRequest{
			ID:        s.newID(),
			SessionID: sess.ID,
			TableID:   sess.TableID,
			Kind:      kind,
			Status:    model.RequestPending,
			CreatedAt: s.now(),
		}
		return tx.InsertServiceRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ResolveRequest marks one service request handled.
func (s *Service) ResolveRequest(ctx context.Context, actor model.Actor, requestID string) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	return s.withTx(ctx, func(tx repository.LedgerTx) error {
		req, err := tx.GetServiceRequest(ctx, requestID)
		if err != nil {
			return fmt.Errorf("service request %s: %w", requestID, err)
		}
		if _, err := s.session(ctx, tx, actor, req.SessionID); err != nil {
			return err
		}
		if req.Status == model.RequestResolved {
			return nil
		}
		return tx.ResolveServiceRequest(ctx, req.ID, s.now())
	})
}

// Activity returns the audit trail of a session.
func (s *Service) Activity(ctx context.Context, actor model.Actor, sessionID string) ([]model.ActivityLog, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	var out []model.ActivityLog
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		sess, err := s.session(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		out, err = tx.ListActivity(ctx, sess.ID)
		return err
	})
	return out, err
}
