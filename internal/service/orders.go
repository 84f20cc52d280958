package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/orderflow"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

// AddItemInput describes a new order line. Either SessionID or TableID
// selects where it goes; a guest ordering at a table with no active
// session opens one.
type AddItemInput struct {
	SessionID string            `json:"session_id"`
	TableID   string            `json:"table_id"`
	ProductID string            `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Notes     *string           `json:"notes"`
	Status    model.OrderStatus `json:"status"`
}

// AddItem creates an order item priced from the catalog at this moment.
func (s *Service) AddItem(ctx context.Context, actor model.Actor, in AddItemInput) (*model.OrderItem, error) {
	if in.ProductID == "" {
		return nil, invalid("product_id", "is required")
	}
	if in.Quantity < 1 || in.Quantity > model.MaxQuantity {
		return nil, invalid("quantity", fmt.Sprintf("must be between 1 and %d", model.MaxQuantity))
	}
	status, err := orderflow.InitialStatus(actor, in.Status)
	if err != nil {
		return nil, err
	}

	var item *model.OrderItem
	err = s.withTx(ctx, func(tx repository.LedgerTx) error {
		sess, err := s.sessionForOrder(ctx, tx, actor, in)
		if err != nil {
			return err
		}
		p, err := s.orderableProduct(ctx, tx, sess, in.ProductID)
		if err != nil {
			return err
		}
		item = &model.OrderItem{
			ID:          s.newID(),
			SessionID:   sess.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    in.Quantity,
			UnitPrice:   p.Price,
			Status:      status,
			Notes:       in.Notes,
			CreatedBy:   actor.ID,
			CreatedRole: actor.Role,
			CreatedAt:   s.now(),
		}
		if err := tx.InsertOrderItem(ctx, item); err != nil {
			return err
		}
		if status.Payable() {
			return s.refreshBill(ctx, tx, sess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) sessionForOrder(ctx context.Context, tx repository.LedgerTx, actor model.Actor, in AddItemInput) (*model.Session, error) {
	if in.SessionID != "" {
		return s.activeSession(ctx, tx, actor, in.SessionID)
	}
	tableID := in.TableID
	if actor.Role == model.RoleGuest {
		if tableID == "" {
			tableID = actor.TableID
		}
		if tableID != actor.TableID {
			return nil, ErrForbidden
		}
	}
	if tableID == "" {
		return nil, invalid("table_id", "session_id or table_id is required")
	}
	sess, err := tx.ActiveSessionForTable(ctx, tableID)
	switch {
	case err == nil:
		return sess, authorize(actor, sess)
	case errors.Is(err, repository.ErrNotFound):
		return s.openSession(ctx, tx, actor, tableID)
	default:
		return nil, err
	}
}

func (s *Service) orderableProduct(ctx context.Context, tx repository.LedgerTx, sess *model.Session, id string) (*model.Product, error) {
	p, err := tx.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid("product_id", "unknown product")
	}
	if err != nil {
		return nil, err
	}
	if p.RestaurantID != sess.RestaurantID || !p.Available {
		return nil, invalid("product_id", "product is not available")
	}
	return p, nil
}

// item loads an order item together with its active session.
func (s *Service) item(ctx context.Context, tx repository.LedgerTx, actor model.Actor, id string) (*model.OrderItem, *model.Session, error) {
	item, err := tx.GetOrderItem(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("order item %s: %w", id, err)
	}
	sess, err := s.activeSession(ctx, tx, actor, item.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return item, sess, nil
}

// UpdateItemQuantity edits an uncommitted item. Confirmed items are
// reduced through a void and increased through an order edit.
func (s *Service) UpdateItemQuantity(ctx context.Context, actor model.Actor, itemID string, qty int) (*model.OrderItem, error) {
	if qty < 1 {
		return nil, invalid("quantity", "must be at least 1; delete the item instead")
	}
	if qty > model.MaxQuantity {
		return nil, invalid("quantity", fmt.Sprintf("must be at most %d", model.MaxQuantity))
	}
	var out *model.OrderItem
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		item, _, err := s.item(ctx, tx, actor, itemID)
		if err != nil {
			return err
		}
		if err := orderflow.CheckEdit(*item, actor); err != nil {
			return err
		}
		updated := *item
		updated.Quantity = qty
		if err := tx.UpdateOrderItem(ctx, &updated, repository.VersionOf(*item)); err != nil {
			return err
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteItem hard-deletes an uncommitted item.
func (s *Service) DeleteItem(ctx context.Context, actor model.Actor, itemID string) error {
	return s.withTx(ctx, func(tx repository.LedgerTx) error {
		item, _, err := s.item(ctx, tx, actor, itemID)
		if err != nil {
			return err
		}
		if err := orderflow.CheckEdit(*item, actor); err != nil {
			return err
		}
		return tx.DeleteOrderItem(ctx, item.ID, repository.VersionOf(*item))
	})
}

// SubmitDraft moves a guest's draft line to pending.
func (s *Service) SubmitDraft(ctx context.Context, actor model.Actor, itemID string) (*model.OrderItem, error) {
	return s.transition(ctx, actor, itemID, model.StatusPending, model.StatusDraft)
}

// cancelDetails is the audit payload of a cancelled item.
type cancelDetails struct {
	ItemID         string            `json:"item_id"`
	ProductID      string            `json:"product_id"`
	ProductName    string            `json:"product_name"`
	Quantity       int               `json:"quantity"`
	Price          model.Money       `json:"price"`
	PreviousStatus model.OrderStatus `json:"previous_status"`
}

// CancelItem rejects an uncommitted item while keeping its row. No reason
// is asked for, but the cancellation is audited.
func (s *Service) CancelItem(ctx context.Context, actor model.Actor, itemID string) (*model.OrderItem, error) {
	return s.transition(ctx, actor, itemID, model.StatusCancelled, model.StatusDraft, model.StatusPending)
}

// StartPreparing hands a confirmed item to the kitchen.
func (s *Service) StartPreparing(ctx context.Context, actor model.Actor, itemID string) (*model.OrderItem, error) {
	return s.transition(ctx, actor, itemID, model.StatusPreparing, model.StatusConfirmed)
}

// MarkReady is the kitchen finishing an item.
func (s *Service) MarkReady(ctx context.Context, actor model.Actor, itemID string) (*model.OrderItem, error) {
	return s.transition(ctx, actor, itemID, model.StatusReady, model.StatusPreparing)
}

// UndoReady sends a ready item back to preparing.
func (s *Service) UndoReady(ctx context.Context, actor model.Actor, itemID string) (*model.OrderItem, error) {
	return s.transition(ctx, actor, itemID, model.StatusPreparing, model.StatusReady)
}

// Serve marks an item delivered to the table.
func (s *Service) Serve(ctx context.Context, actor model.Actor, itemID string) (*model.OrderItem, error) {
	return s.transition(ctx, actor, itemID, model.StatusServed)
}

// transition applies one lifecycle move. from, when given, narrows the
// states the named operation starts from.
func (s *Service) transition(ctx context.Context, actor model.Actor, itemID string, to model.OrderStatus, from ...model.OrderStatus) (*model.OrderItem, error) {
	var out *model.OrderItem
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		item, sess, err := s.item(ctx, tx, actor, itemID)
		if err != nil {
			return err
		}
		if len(from) > 0 && !slices.Contains(from, item.Status) {
			return &InvalidTransitionError{ItemID: item.ID, From: item.Status, To: to, Reason: fmt.Sprintf("operation starts from %v", from)}
		}
		if err := orderflow.Check(*item, to, actor, s.flow()); err != nil {
			return err
		}
		updated := *item
		updated.Status = to
		if err := tx.UpdateOrderItem(ctx, &updated, repository.VersionOf(*item)); err != nil {
			return err
		}
		out = &updated
		if to == model.StatusCancelled {
			details := cancelDetails{
				ItemID:         item.ID,
				ProductID:      item.ProductID,
				ProductName:    item.ProductName,
				Quantity:       item.Quantity,
				Price:          item.UnitPrice,
				PreviousStatus: item.Status,
			}
			if err := s.audit(ctx, tx, sess, model.ActionItemCancelled, actor, details); err != nil {
				return err
			}
		}
		if item.Payable() != updated.Payable() {
			return s.refreshBill(ctx, tx, sess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmOrder confirms every pending item of a session. The batch is all
// or nothing: one illegal item rejects the whole confirmation.
func (s *Service) ConfirmOrder(ctx context.Context, actor model.Actor, sessionID string) ([]model.OrderItem, error) {
	var out []model.OrderItem
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		sess, err := s.activeSession(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		pending, err := tx.ListOrderItems(ctx, sess.ID, model.StatusPending)
		if err != nil {
			return err
		}
		out = make([]model.OrderItem, 0, len(pending))
		for _, item := range pending {
			if err := orderflow.Check(item, model.StatusConfirmed, actor, s.flow()); err != nil {
				return err
			}
			updated := item
			updated.Status = model.StatusConfirmed
			if err := tx.UpdateOrderItem(ctx, &updated, repository.VersionOf(item)); err != nil {
				return err
			}
			out = append(out, updated)
		}
		if len(out) == 0 {
			return nil
		}
		return s.refreshBill(ctx, tx, sess)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListItems returns every item of a session, cancelled ones included.
func (s *Service) ListItems(ctx context.Context, actor model.Actor, sessionID string) ([]model.OrderItem, error) {
	var out []model.OrderItem
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		sess, err := s.session(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		out, err = tx.ListOrderItems(ctx, sess.ID)
		return err
	})
	return out, err
}
