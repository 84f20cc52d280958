package service

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

func TestGuestOrderOpensSession(t *testing.T) {
	f := newFixture(t, false)

	item, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "burger", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, item.Status)
	assert.Equal(t, model.Money(1000), item.UnitPrice)
	assert.Equal(t, "Burger", item.ProductName)

	second, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "soda", Quantity: 1, Status: model.StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, item.SessionID, second.SessionID)

	_, err = f.svc.OpenTable(ctx, waiter, "t1")
	assert.ErrorIs(t, err, ErrTableOccupied)
}

func TestGuestScopedToOwnTable(t *testing.T) {
	f := newFixture(t, false)
	other, err := f.svc.OpenTable(ctx, waiter, "t2")
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, guest, AddItemInput{SessionID: other.ID, ProductID: "burger", Quantity: 1})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.AddItem(ctx, guest, AddItemInput{TableID: "t2", ProductID: "burger", Quantity: 1})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "burger", Quantity: 1, Status: model.StatusConfirmed})
	assert.Equal(t, CodeInvalidTransition, CodeOf(err))
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t, false)
	sess, err := f.svc.OpenTable(ctx, waiter, "t1")
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "burger"})
	assert.Equal(t, CodeValidation, CodeOf(err))
	_, err = f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "soup", Quantity: 1})
	assert.Equal(t, CodeValidation, CodeOf(err))
	_, err = f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "ghost", Quantity: 1})
	assert.Equal(t, CodeValidation, CodeOf(err))
	_, err = f.svc.AddItem(ctx, cook, AddItemInput{SessionID: sess.ID, ProductID: "burger", Quantity: 1})
	assert.Equal(t, CodeForbidden, CodeOf(err))
}

func TestQuantityIsBounded(t *testing.T) {
	f := newFixture(t, false)
	sess, burger, _ := f.seatedTable(t)

	for _, qty := range []int{model.MaxQuantity + 1, math.MaxInt64/1000 + 1} {
		_, err := f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "burger", Quantity: qty, Status: model.StatusConfirmed})
		assert.Equal(t, CodeValidation, CodeOf(err), "quantity %d", qty)

		_, err = f.svc.ApplyOrderEdit(ctx, waiter, sess.ID, []LineEdit{{ItemID: burger.ID, Quantity: qty}}, "")
		assert.Equal(t, CodeValidation, CodeOf(err), "edit to %d", qty)
	}

	bill, err := f.svc.GetOrCreateBill(ctx, cashier, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Money(2500), bill.TotalAmount)

	pending, err := f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "soda", Quantity: model.MaxQuantity})
	require.NoError(t, err)
	_, err = f.svc.UpdateItemQuantity(ctx, waiter, pending.ID, model.MaxQuantity+1)
	assert.Equal(t, CodeValidation, CodeOf(err))
}

func TestPendingEditThenLockedAfterConfirm(t *testing.T) {
	f := newFixture(t, false)
	item, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "burger", Quantity: 2})
	require.NoError(t, err)

	edited, err := f.svc.UpdateItemQuantity(ctx, guest, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, edited.Quantity)

	bill, err := f.svc.GetOrCreateBill(ctx, waiter, item.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.Money(0), bill.TotalAmount, "pending items are not billed")

	confirmed, err := f.svc.ConfirmOrder(ctx, waiter, item.SessionID)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)

	_, err = f.svc.UpdateItemQuantity(ctx, waiter, item.ID, 4)
	assert.ErrorIs(t, err, ErrQuantityLocked)
	assert.Equal(t, CodeQuantityLocked, CodeOf(err))
	assert.ErrorIs(t, f.svc.DeleteItem(ctx, waiter, item.ID), ErrQuantityLocked)

	res, err := f.svc.ApplyOrderEdit(ctx, waiter, item.SessionID, []LineEdit{{ItemID: item.ID, Quantity: 4}}, "")
	require.NoError(t, err)
	require.Len(t, res.Added, 1)

	bill, err = f.svc.GetOrCreateBill(ctx, waiter, item.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.Money(4000), bill.TotalAmount)
}

func TestOnlyCreatorOrStaffEditsPending(t *testing.T) {
	f := newFixture(t, false)
	item, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "burger", Quantity: 1})
	require.NoError(t, err)

	other := guest
	other.ID = "guest-2"
	_, err = f.svc.UpdateItemQuantity(ctx, other, item.ID, 2)
	assert.Equal(t, CodeForbidden, CodeOf(err))

	require.NoError(t, f.svc.DeleteItem(ctx, waiter, item.ID))
	items, err := f.svc.ListItems(ctx, waiter, item.SessionID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDraftSubmitAndCancel(t *testing.T) {
	f := newFixture(t, false)
	draft, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "soda", Quantity: 1, Status: model.StatusDraft})
	require.NoError(t, err)

	submitted, err := f.svc.SubmitDraft(ctx, guest, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, submitted.Status)

	_, err = f.svc.SubmitDraft(ctx, guest, draft.ID)
	assert.Equal(t, CodeInvalidTransition, CodeOf(err))

	cancelled, err := f.svc.CancelItem(ctx, waiter, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	logs, err := f.svc.Activity(ctx, waiter, draft.SessionID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionItemCancelled, logs[0].Action)
	assert.Equal(t, waiter.ID, logs[0].ActorID)
	var details struct {
		ItemID         string            `json:"item_id"`
		Quantity       int               `json:"quantity"`
		PreviousStatus model.OrderStatus `json:"previous_status"`
	}
	require.NoError(t, json.Unmarshal(logs[0].Details, &details))
	assert.Equal(t, draft.ID, details.ItemID)
	assert.Equal(t, 1, details.Quantity)
	assert.Equal(t, model.StatusPending, details.PreviousStatus)
}

func TestConfirmIsAllOrNothing(t *testing.T) {
	f := newFixture(t, false)
	a, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "burger", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "soda", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.ConfirmOrder(ctx, guest, a.SessionID)
	assert.Equal(t, CodeInvalidTransition, CodeOf(err))

	items, err := f.svc.ListItems(ctx, waiter, a.SessionID)
	require.NoError(t, err)
	for _, it := range items {
		assert.Equal(t, model.StatusPending, it.Status)
	}

	confirmed, err := f.svc.ConfirmOrder(ctx, waiter, a.SessionID)
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)
}

func TestKitchenLifecycle(t *testing.T) {
	f := newFixture(t, true)
	_, burger, _ := f.seatedTable(t)

	_, err := f.svc.Serve(ctx, waiter, burger.ID)
	assert.Equal(t, CodeInvalidTransition, CodeOf(err), "kitchen on: confirmed items are prepared first")

	steps := []struct {
		name string
		run  func() (*model.OrderItem, error)
		want model.OrderStatus
	}{
		{"start", func() (*model.OrderItem, error) { return f.svc.StartPreparing(ctx, waiter, burger.ID) }, model.StatusPreparing},
		{"ready", func() (*model.OrderItem, error) { return f.svc.MarkReady(ctx, cook, burger.ID) }, model.StatusReady},
		{"undo", func() (*model.OrderItem, error) { return f.svc.UndoReady(ctx, cook, burger.ID) }, model.StatusPreparing},
		{"ready again", func() (*model.OrderItem, error) { return f.svc.MarkReady(ctx, cook, burger.ID) }, model.StatusReady},
		{"serve", func() (*model.OrderItem, error) { return f.svc.Serve(ctx, cook, burger.ID) }, model.StatusServed},
	}
	for _, st := range steps {
		got, err := st.run()
		require.NoError(t, err, st.name)
		assert.Equal(t, st.want, got.Status, st.name)
	}

	_, err = f.svc.UndoReady(ctx, cook, burger.ID)
	assert.Equal(t, CodeInvalidTransition, CodeOf(err), "served is not undoable")
}

func TestKitchenOffServesDirectly(t *testing.T) {
	f := newFixture(t, false)
	_, burger, soda := f.seatedTable(t)

	got, err := f.svc.Serve(ctx, waiter, burger.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusServed, got.Status)

	_, err = f.svc.StartPreparing(ctx, waiter, soda.ID)
	assert.Equal(t, CodeInvalidTransition, CodeOf(err))
}

func TestTransitionsKeepBillInStep(t *testing.T) {
	f := newFixture(t, false)
	item, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "burger", Quantity: 2})
	require.NoError(t, err)
	bill, err := f.svc.GetOrCreateBill(ctx, waiter, item.SessionID)
	require.NoError(t, err)
	require.Equal(t, model.Money(0), bill.TotalAmount)

	_, err = f.svc.ConfirmOrder(ctx, waiter, item.SessionID)
	require.NoError(t, err)

	total, err := f.svc.CalculateBillTotal(ctx, waiter, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Money(2000), total)
}
