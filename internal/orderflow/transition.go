// Package orderflow holds the order-item state machine. Every status change
// in the system is checked by Check against one transition table, so an
// illegal move is rejected in exactly one place.
package orderflow

import (
	"errors"
	"fmt"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// Options carries the caller-supplied capabilities a transition depends on.
type Options struct {
	// KitchenEnabled selects the confirmed → preparing path. When false the
	// only way forward from confirmed is a direct serve.
	KitchenEnabled bool
	// ViaVoid is set only by the void processor. Cancelling a payable item
	// without it is refused.
	ViaVoid bool
}

// InvalidTransitionError is returned for any move the table does not allow.
type InvalidTransitionError struct {
	ItemID string
	From   model.OrderStatus
	To     model.OrderStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for item %s: %s -> %s: %s", e.ItemID, e.From, e.To, e.Reason)
}

var (
	// ErrCommitted is returned when an uncommitted-only edit targets an item
	// that has already been confirmed.
	ErrCommitted = errors.New("item already confirmed; reductions must go through a void")
	// ErrNotPermitted is returned when the actor neither created the item nor
	// holds ordering rights.
	ErrNotPermitted = errors.New("actor may not modify this item")
)

type edge struct{ from, to model.OrderStatus }

type kitchenRule int

const (
	kitchenAny kitchenRule = iota
	kitchenOn
	kitchenOff
)

type rule struct {
	roles    []model.Role
	creator  bool // the item's creator may perform it regardless of role
	voidOnly bool
	kitchen  kitchenRule
}

var (
	ordering = []model.Role{model.RoleWaiter, model.RoleCashier, model.RoleAdmin}
	kitchen  = []model.Role{model.RoleKitchen}
)

var transitions = map[edge]rule{
	{model.StatusDraft, model.StatusPending}:       {roles: ordering, creator: true},
	{model.StatusDraft, model.StatusCancelled}:     {roles: ordering, creator: true},
	{model.StatusPending, model.StatusCancelled}:   {roles: ordering, creator: true},
	{model.StatusPending, model.StatusConfirmed}:   {roles: ordering},
	{model.StatusConfirmed, model.StatusPreparing}: {roles: ordering, kitchen: kitchenOn},
	{model.StatusConfirmed, model.StatusServed}:    {roles: ordering, kitchen: kitchenOff},
	{model.StatusPreparing, model.StatusReady}:     {roles: kitchen},
	{model.StatusReady, model.StatusServed}:        {roles: kitchen},
	{model.StatusReady, model.StatusPreparing}:     {roles: kitchen},

	{model.StatusConfirmed, model.StatusCancelled}: {roles: ordering, voidOnly: true},
	{model.StatusPreparing, model.StatusCancelled}: {roles: ordering, voidOnly: true},
	{model.StatusReady, model.StatusCancelled}:     {roles: ordering, voidOnly: true},
	{model.StatusServed, model.StatusCancelled}:    {roles: ordering, voidOnly: true},
}

// Check validates moving item to status to on behalf of actor.
func Check(item model.OrderItem, to model.OrderStatus, actor model.Actor, opts Options) error {
	fail := func(reason string) error {
		return &InvalidTransitionError{ItemID: item.ID, From: item.Status, To: to, Reason: reason}
	}
	if !to.Valid() {
		return fail("unknown status")
	}
	if item.Status == model.StatusCancelled {
		return fail("cancelled items are terminal")
	}
	r, ok := transitions[edge{item.Status, to}]
	if !ok {
		return fail("not permitted by the order lifecycle")
	}
	if r.voidOnly && !opts.ViaVoid {
		return fail("cancelling a confirmed item requires a void with a reason")
	}
	switch r.kitchen {
	case kitchenOn:
		if !opts.KitchenEnabled {
			return fail("kitchen module is disabled")
		}
	case kitchenOff:
		if opts.KitchenEnabled {
			return fail("kitchen module is enabled; item must be prepared first")
		}
	}
	if r.creator && item.CreatedBy != "" && item.CreatedBy == actor.ID {
		return nil
	}
	if !hasRole(r.roles, actor.Role) {
		return fail(fmt.Sprintf("role %q may not perform this transition", actor.Role))
	}
	return nil
}

// CheckEdit validates a quantity edit or hard delete. Only uncommitted items
// may be edited, by their creator or by staff with ordering rights.
func CheckEdit(item model.OrderItem, actor model.Actor) error {
	if item.Status.Payable() {
		return ErrCommitted
	}
	if !item.Status.Uncommitted() {
		return &InvalidTransitionError{ItemID: item.ID, From: item.Status, To: item.Status, Reason: "item can no longer be edited"}
	}
	if item.CreatedBy != "" && item.CreatedBy == actor.ID {
		return nil
	}
	if actor.Role.Orders() {
		return nil
	}
	return ErrNotPermitted
}

// InitialStatus resolves the status a new item starts in. Guests may build
// a draft cart or submit pending items; ordering staff may also add items
// already confirmed.
func InitialStatus(actor model.Actor, requested model.OrderStatus) (model.OrderStatus, error) {
	if requested == "" {
		requested = model.StatusPending
	}
	switch {
	case actor.Role == model.RoleGuest:
		if requested == model.StatusDraft || requested == model.StatusPending {
			return requested, nil
		}
	case actor.Role.Orders():
		if requested == model.StatusPending || requested == model.StatusConfirmed {
			return requested, nil
		}
	default:
		return "", ErrNotPermitted
	}
	return "", &InvalidTransitionError{From: model.StatusDraft, To: requested, Reason: fmt.Sprintf("role %q may not create items as %s", actor.Role, requested)}
}

func hasRole(roles []model.Role, r model.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
