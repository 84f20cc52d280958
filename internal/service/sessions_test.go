package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/queue"
)

func TestOpenTableRules(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.OpenTable(ctx, guest, "t1")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.OpenTable(ctx, waiter, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	elsewhere := waiter
	elsewhere.RestaurantID = "r2"
	_, err = f.svc.OpenTable(ctx, elsewhere, "t1")
	assert.ErrorIs(t, err, ErrForbidden)

	sess, err := f.svc.OpenTable(ctx, waiter, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, sess.Status)
	assert.Equal(t, "r1", sess.RestaurantID)
}

func TestCloseTableNeedsSettledBill(t *testing.T) {
	f := newFixture(t, false)
	sess, _, _ := f.seatedTable(t)

	_, err := f.svc.CloseTable(ctx, waiter, sess.ID)
	assert.ErrorIs(t, err, ErrOutstandingBalance)

	_, err = f.svc.GetOrCreateBill(ctx, waiter, sess.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseTable(ctx, waiter, sess.ID)
	assert.ErrorIs(t, err, ErrOutstandingBalance)
	assert.Equal(t, CodeOutstandingBalance, CodeOf(err))
}

func TestCloseTableDropsUncommittedWork(t *testing.T) {
	f := newFixture(t, false)
	draft, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "soda", Quantity: 1, Status: model.StatusDraft})
	require.NoError(t, err)
	_, err = f.svc.RequestService(ctx, guest, draft.SessionID, model.RequestCallWaiter)
	require.NoError(t, err)

	snap, err := f.store.Snapshot(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, snap.Requests, 1)

	closed, err := f.svc.CloseTable(ctx, waiter, draft.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, closed.Status)

	items, err := f.svc.ListItems(ctx, waiter, draft.SessionID)
	require.NoError(t, err)
	assert.Empty(t, items)

	snap, err = f.store.Snapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, snap.Requests)
	assert.Empty(t, snap.Sessions)

	_, err = f.svc.CloseTable(ctx, waiter, draft.SessionID)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, []queue.LedgerEventType{queue.EventSessionClosed}, f.events.types())

	reopened, err := f.svc.AddItem(ctx, guest, AddItemInput{ProductID: "soda", Quantity: 1})
	require.NoError(t, err)
	assert.NotEqual(t, draft.SessionID, reopened.SessionID)
}

func TestCloseAfterDiscountSettles(t *testing.T) {
	f := newFixture(t, false)
	sess, _, _ := f.seatedTable(t)
	_, err := f.svc.ProcessPayment(ctx, cashier, sess.ID, cash(2000))
	require.NoError(t, err)

	_, err = f.svc.AddAdjustment(ctx, cashier, sess.ID, AdjustmentInput{Title: "regular", Amount: 600, Type: model.AdjustmentDiscount})
	assert.ErrorIs(t, err, ErrBelowPaid)

	bill, err := f.svc.AddAdjustment(ctx, cashier, sess.ID, AdjustmentInput{Title: "regular", Amount: 500, Type: model.AdjustmentDiscount})
	require.NoError(t, err)
	assert.Equal(t, model.Money(2000), bill.TotalAmount)

	closed, err := f.svc.CloseTable(ctx, cashier, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, closed.Status)
}

func TestSetNote(t *testing.T) {
	f := newFixture(t, false)
	sess, err := f.svc.OpenTable(ctx, waiter, "t1")
	require.NoError(t, err)

	got, err := f.svc.SetNote(ctx, waiter, sess.ID, "  birthday  ")
	require.NoError(t, err)
	require.NotNil(t, got.Note)
	assert.Equal(t, "birthday", *got.Note)

	got, err = f.svc.SetNote(ctx, waiter, sess.ID, "")
	require.NoError(t, err)
	assert.Nil(t, got.Note)

	_, err = f.svc.SetNote(ctx, guest, sess.ID, "hi")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestServiceRequests(t *testing.T) {
	f := newFixture(t, false)
	sess, err := f.svc.OpenTable(ctx, waiter, "t1")
	require.NoError(t, err)

	_, err = f.svc.RequestService(ctx, guest, sess.ID, "dance")
	assert.Equal(t, CodeValidation, CodeOf(err))

	req, err := f.svc.RequestService(ctx, guest, sess.ID, model.RequestBringBill)
	require.NoError(t, err)
	assert.Equal(t, "t1", req.TableID)

	assert.ErrorIs(t, f.svc.ResolveRequest(ctx, guest, req.ID), ErrForbidden)
	require.NoError(t, f.svc.ResolveRequest(ctx, waiter, req.ID))
	require.NoError(t, f.svc.ResolveRequest(ctx, waiter, req.ID))

	snap, err := f.store.Snapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, snap.Requests)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeNotFound, CodeOf(ErrNotFound))
	assert.Equal(t, CodeInternal, CodeOf(assert.AnError))
	assert.Equal(t, CodeValidation, CodeOf(invalid("x", "bad")))
	assert.Equal(t, CodeOverpayment, CodeOf(&OverpaymentError{}))
}
