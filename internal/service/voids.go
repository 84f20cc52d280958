package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/orderflow"
	"github.com/erfan-mirasadi/menu-3d/internal/queue"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

// VoidItem cancels a confirmed item in full. The reason is mandatory and
// lands in the activity log with a copy of the item.
func (s *Service) VoidItem(ctx context.Context, actor model.Actor, itemID, reason string) (*model.VoidDetails, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrMissingReason
	}
	var (
		sess *model.Session
		vd   model.VoidDetails
	)
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		item, ss, err := s.item(ctx, tx, actor, itemID)
		if err != nil {
			return err
		}
		sess = ss
		if vd, err = s.void(ctx, tx, actor, sess, item, 0, reason); err != nil {
			return err
		}
		return s.refreshBill(ctx, tx, sess)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, voidedEvent(actor, sess, vd))
	return &vd, nil
}

// VoidPartialQuantity reduces a confirmed item to newQty. prevQty is the
// quantity the caller saw; a mismatch means someone else changed the line
// first. A newQty of zero voids the whole line.
func (s *Service) VoidPartialQuantity(ctx context.Context, actor model.Actor, itemID string, newQty, prevQty int, reason string) (*model.VoidDetails, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrMissingReason
	}
	if newQty < 0 || newQty >= prevQty {
		return nil, invalid("quantity", "must be lower than the previous quantity")
	}
	var (
		sess *model.Session
		vd   model.VoidDetails
	)
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		item, ss, err := s.item(ctx, tx, actor, itemID)
		if err != nil {
			return err
		}
		sess = ss
		if item.Quantity != prevQty {
			return fmt.Errorf("%w: item %s has quantity %d, not %d", ErrConcurrencyConflict, item.ID, item.Quantity, prevQty)
		}
		if vd, err = s.void(ctx, tx, actor, sess, item, newQty, reason); err != nil {
			return err
		}
		return s.refreshBill(ctx, tx, sess)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, voidedEvent(actor, sess, vd))
	return &vd, nil
}

// void reduces item to newQty, cancelling it when newQty is zero, and
// logs the change. The caller refreshes the bill.
func (s *Service) void(ctx context.Context, tx repository.LedgerTx, actor model.Actor, sess *model.Session, item *model.OrderItem, newQty int, reason string) (model.VoidDetails, error) {
	if !item.Payable() {
		return model.VoidDetails{}, &InvalidTransitionError{
			ItemID: item.ID, From: item.Status, To: model.StatusCancelled,
			Reason: "only confirmed items are voided; delete uncommitted items instead",
		}
	}
	updated := *item
	action := model.ActionVoidItem
	if newQty == 0 {
		opts := s.flow()
		opts.ViaVoid = true
		if err := orderflow.Check(*item, model.StatusCancelled, actor, opts); err != nil {
			return model.VoidDetails{}, err
		}
		updated.Status = model.StatusCancelled
	} else {
		if !actor.Role.Orders() {
			return model.VoidDetails{}, ErrForbidden
		}
		updated.Quantity = newQty
		action = model.ActionVoidPartial
	}
	if err := tx.UpdateOrderItem(ctx, &updated, repository.VersionOf(*item)); err != nil {
		return model.VoidDetails{}, err
	}
	vd := model.VoidDetails{
		ItemID:           item.ID,
		ProductID:        item.ProductID,
		ProductName:      item.ProductName,
		Price:            item.UnitPrice,
		PreviousQuantity: item.Quantity,
		NewQuantity:      newQty,
		VoidedQuantity:   item.Quantity - newQty,
		PreviousStatus:   item.Status,
		Reason:           reason,
	}
	return vd, s.audit(ctx, tx, sess, action, actor, vd)
}

func voidedEvent(actor model.Actor, sess *model.Session, vd model.VoidDetails) queue.LedgerEvent {
	return queue.LedgerEvent{
		Type:         queue.EventItemVoided,
		RestaurantID: sess.RestaurantID,
		SessionID:    sess.ID,
		TableID:      sess.TableID,
		ItemID:       vd.ItemID,
		ActorID:      actor.ID,
		AmountCents:  int64(vd.Amount()),
		Quantity:     vd.VoidedQuantity,
		Reason:       vd.Reason,
	}
}

// LineEdit is the desired quantity of one confirmed line.
type LineEdit struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// EditResult lists what a batch edit did.
type EditResult struct {
	Added  []model.OrderItem   `json:"added"`
	Voided []model.VoidDetails `json:"voided"`
}

// ApplyOrderEdit diffs desired quantities against the committed lines.
// Reductions become voids and need a reason; increases become new
// confirmed items priced from the catalog now, since the original line's
// price is a snapshot of an earlier sale. Everything applies in one
// transaction or not at all.
func (s *Service) ApplyOrderEdit(ctx context.Context, actor model.Actor, sessionID string, lines []LineEdit, reason string) (*EditResult, error) {
	if !actor.Role.Orders() {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	for i, l := range lines {
		if l.ItemID == "" || l.Quantity < 0 || l.Quantity > model.MaxQuantity {
			return nil, invalid(fmt.Sprintf("lines[%d]", i), fmt.Sprintf("needs an item id and a quantity between 0 and %d", model.MaxQuantity))
		}
	}
	var (
		sess *model.Session
		res  = &EditResult{}
	)
	err := s.withTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		sess, err = s.activeSession(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		committed, err := tx.ListOrderItems(ctx, sess.ID, model.PayableStatuses...)
		if err != nil {
			return err
		}
		byID := make(map[string]model.OrderItem, len(committed))
		for _, it := range committed {
			byID[it.ID] = it
		}

		type change struct {
			item  model.OrderItem
			delta int
		}
		var changes []change
		seen := make(map[string]bool, len(lines))
		reduces := false
		for i, l := range lines {
			it, ok := byID[l.ItemID]
			if !ok {
				return invalid(fmt.Sprintf("lines[%d].item_id", i), "not a confirmed item of this session")
			}
			if seen[l.ItemID] {
				return invalid(fmt.Sprintf("lines[%d].item_id", i), "listed twice")
			}
			seen[l.ItemID] = true
			if d := l.Quantity - it.Quantity; d != 0 {
				changes = append(changes, change{item: it, delta: d})
				reduces = reduces || d < 0
			}
		}
		if reduces && reason == "" {
			return ErrMissingReason
		}

		for _, c := range changes {
			if c.delta < 0 {
				it := c.item
				vd, err := s.void(ctx, tx, actor, sess, &it, it.Quantity+c.delta, reason)
				if err != nil {
					return err
				}
				res.Voided = append(res.Voided, vd)
				continue
			}
			p, err := s.orderableProduct(ctx, tx, sess, c.item.ProductID)
			if err != nil {
				return err
			}
			added := model.OrderItem{
				ID:          s.newID(),
				SessionID:   sess.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    c.delta,
				UnitPrice:   p.Price,
				Status:      model.StatusConfirmed,
				Notes:       c.item.Notes,
				CreatedBy:   actor.ID,
				CreatedRole: actor.Role,
				CreatedAt:   s.now(),
			}
			if err := tx.InsertOrderItem(ctx, &added); err != nil {
				return err
			}
			res.Added = append(res.Added, added)
		}
		if len(changes) == 0 {
			return nil
		}
		return s.refreshBill(ctx, tx, sess)
	})
	if err != nil {
		return nil, err
	}
	for _, vd := range res.Voided {
		s.emit(ctx, voidedEvent(actor, sess, vd))
	}
	return res, nil
}
