// Package service is the ordering and billing core. Every operation runs in
// one ledger transaction: it either applies all of its writes or none, and
// the realtime feed only sees changes that committed.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/orderflow"
	"github.com/erfan-mirasadi/menu-3d/internal/queue"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

// EventPublisher receives ledger events after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.LedgerEvent) error
}

// Options configures a Service. Zero values fall back to sensible defaults.
type Options struct {
	// KitchenEnabled routes confirmed items through the kitchen before they
	// can be served.
	KitchenEnabled bool
	Events         EventPublisher
	Now            func() time.Time
	NewID          func() string
}

// Service implements the core operations on top of a Ledger.
type Service struct {
	store   repository.Ledger
	events  EventPublisher
	now     func() time.Time
	newID   func() string
	kitchen bool
}

// New wires a Service.
func New(store repository.Ledger, opts Options) *Service {
	s := &Service{
		store:   store,
		events:  opts.Events,
		now:     opts.Now,
		newID:   opts.NewID,
		kitchen: opts.KitchenEnabled,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// KitchenEnabled reports how the lifecycle is configured.
func (s *Service) KitchenEnabled() bool { return s.kitchen }

func (s *Service) flow() orderflow.Options {
	return orderflow.Options{KitchenEnabled: s.kitchen}
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *Service) withTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// authorize scopes an actor to its restaurant, and a guest to its table.
func authorize(actor model.Actor, sess *model.Session) error {
	if !actor.Role.Valid() {
		return ErrForbidden
	}
	if actor.RestaurantID != "" && actor.RestaurantID != sess.RestaurantID {
		return ErrForbidden
	}
	if actor.Role == model.RoleGuest && actor.TableID != sess.TableID {
		return ErrForbidden
	}
	return nil
}

// session loads and authorizes a session in any state.
func (s *Service) session(ctx context.Context, tx repository.LedgerTx, actor model.Actor, id string) (*model.Session, error) {
	sess, err := tx.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if err := authorize(actor, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// activeSession is session plus the closed check every mutation needs.
func (s *Service) activeSession(ctx context.Context, tx repository.LedgerTx, actor model.Actor, id string) (*model.Session, error) {
	sess, err := s.session(ctx, tx, actor, id)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, ErrSessionClosed
	}
	return sess, nil
}

// audit appends an activity entry inside tx.
func (s *Service) audit(ctx context.Context, tx repository.LedgerTx, sess *model.Session, action model.ActivityAction, actor model.Actor, details any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode %s details: %w", action, err)
	}
	return tx.AppendActivity(ctx, &model.ActivityLog{
		ID:           s.newID(),
		RestaurantID: sess.RestaurantID,
		SessionID:    sess.ID,
		Action:       action,
		ActorID:      actor.ID,
		Details:      raw,
		CreatedAt:    s.now(),
	})
}

// emit publishes ledger events once their transaction has committed. The
// ledger is already durable, so a broker failure is only logged.
func (s *Service) emit(ctx context.Context, evs ...queue.LedgerEvent) {
	if s.events == nil {
		return
	}
	for _, ev := range evs {
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = s.now()
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			log.Printf("service: publish %s for session %s: %v", ev.Type, ev.SessionID, err)
		}
	}
}

func requireRole(actor model.Actor, roles ...model.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return ErrForbidden
}
