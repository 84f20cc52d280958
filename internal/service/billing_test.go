package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfan-mirasadi/menu-3d/internal/billing"
	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	sess, _, _ := f.seatedTable(t)
	bill, err := f.svc.GetOrCreateBill(ctx, cashier, sess.ID)
	require.NoError(t, err)

	first, err := f.svc.CalculateBillTotal(ctx, cashier, bill.ID)
	require.NoError(t, err)
	writes := f.changes.count()
	second, err := f.svc.CalculateBillTotal(ctx, cashier, bill.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, writes, f.changes.count(), "an unchanged total is not rewritten")
}

func TestTotalFollowsEveryMutation(t *testing.T) {
	f := newFixture(t, false)
	sess, burger, _ := f.seatedTable(t)
	_, err := f.svc.GetOrCreateBill(ctx, cashier, sess.ID)
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "soda", Quantity: 2, Status: model.StatusConfirmed})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "burger", Quantity: 5})
	require.NoError(t, err)
	_, err = f.svc.AddAdjustment(ctx, cashier, sess.ID, AdjustmentInput{Title: "fee", Amount: 250, Type: model.AdjustmentCharge})
	require.NoError(t, err)
	_, err = f.svc.AddAdjustment(ctx, cashier, sess.ID, AdjustmentInput{Title: "promo", Amount: 100, Type: model.AdjustmentDiscount})
	require.NoError(t, err)
	_, err = f.svc.VoidPartialQuantity(ctx, cashier, burger.ID, 1, 2, "one less")
	require.NoError(t, err)

	bill, err := f.svc.GetOrCreateBill(ctx, cashier, sess.ID)
	require.NoError(t, err)
	// 1×1000 + 1×500 + 2×500 + 250 − 100; the pending burgers do not count.
	assert.Equal(t, model.Money(2650), bill.TotalAmount)
}

func TestAdjustmentRules(t *testing.T) {
	f := newFixture(t, false)
	sess, _, _ := f.seatedTable(t)

	_, err := f.svc.AddAdjustment(ctx, waiter, sess.ID, AdjustmentInput{Title: "fee", Amount: 100, Type: model.AdjustmentCharge})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.AddAdjustment(ctx, cashier, sess.ID, AdjustmentInput{Title: "", Amount: 100, Type: model.AdjustmentCharge})
	assert.Equal(t, CodeValidation, CodeOf(err))
	_, err = f.svc.AddAdjustment(ctx, cashier, sess.ID, AdjustmentInput{Title: "fee", Amount: -1, Type: model.AdjustmentCharge})
	assert.Equal(t, CodeValidation, CodeOf(err))
	_, err = f.svc.AddAdjustment(ctx, cashier, sess.ID, AdjustmentInput{Title: "fee", Amount: 100, Type: "tip"})
	assert.Equal(t, CodeValidation, CodeOf(err))

	bill, err := f.svc.AddAdjustment(ctx, cashier, sess.ID, AdjustmentInput{Title: "fee", Amount: 100, Type: model.AdjustmentCharge})
	require.NoError(t, err)
	require.Len(t, bill.Adjustments, 1)
	assert.Equal(t, cashier.ID, bill.Adjustments[0].CreatedBy)
}

func TestBillViewAttribution(t *testing.T) {
	f := newFixture(t, false)
	sess, burger, soda := f.seatedTable(t)
	_, err := f.svc.ProcessPayment(ctx, cashier, sess.ID, cash(2000))
	require.NoError(t, err)

	view, err := f.svc.GetBillView(ctx, guest, sess.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, burger.ID, view.Items[0].Item.ID)
	assert.True(t, view.Items[0].Paid)
	assert.Equal(t, soda.ID, view.Items[1].Item.ID)
	assert.False(t, view.Items[1].Paid)
	assert.Equal(t, model.Money(500), view.Remaining)
}

func TestQuotePayment(t *testing.T) {
	f := newFixture(t, false)
	sess, burger, soda := f.seatedTable(t)

	q, err := f.svc.QuotePayment(ctx, guest, sess.ID, QuoteRequest{})
	require.NoError(t, err)
	assert.Equal(t, QuoteFull, q.Mode)
	assert.Equal(t, model.Money(2500), q.Amount)

	q, err = f.svc.QuotePayment(ctx, guest, sess.ID, QuoteRequest{Mode: QuoteHeadcount, Headcount: 3})
	require.NoError(t, err)
	assert.Equal(t, []model.Money{834, 833, 833}, q.Shares)

	q, err = f.svc.QuotePayment(ctx, guest, sess.ID, QuoteRequest{Mode: QuoteItems, ItemIDs: []string{soda.ID}})
	require.NoError(t, err)
	assert.Equal(t, model.Money(500), q.Amount)

	q, err = f.svc.QuotePayment(ctx, guest, sess.ID, QuoteRequest{Mode: QuoteCustom, Amount: 9999})
	require.NoError(t, err)
	assert.Equal(t, model.Money(2500), q.Amount)

	_, err = f.svc.ProcessPayment(ctx, cashier, sess.ID, cash(2000))
	require.NoError(t, err)
	_, err = f.svc.QuotePayment(ctx, guest, sess.ID, QuoteRequest{Mode: QuoteItems, ItemIDs: []string{burger.ID}})
	assert.Equal(t, CodeValidation, CodeOf(err))

	_, err = f.svc.QuotePayment(ctx, guest, sess.ID, QuoteRequest{Mode: "bogus"})
	assert.Equal(t, CodeValidation, CodeOf(err))
}

func TestQuoteHeadcountIsBounded(t *testing.T) {
	f := newFixture(t, false)
	sess, _, _ := f.seatedTable(t)

	for _, n := range []int{billing.MaxHeadcount + 1, 1 << 62} {
		var err error
		require.NotPanics(t, func() {
			_, err = f.svc.QuotePayment(ctx, guest, sess.ID, QuoteRequest{Mode: QuoteHeadcount, Headcount: n})
		})
		assert.ErrorIs(t, err, billing.ErrInvalidHeadcount)
		assert.Equal(t, CodeValidation, CodeOf(err))
	}
}

func TestGetOrCreateBillOnClosedSession(t *testing.T) {
	f := newFixture(t, false)
	sess, err := f.svc.OpenTable(ctx, waiter, "t1")
	require.NoError(t, err)
	_, err = f.svc.CloseTable(ctx, waiter, sess.ID)
	require.NoError(t, err)

	_, err = f.svc.GetOrCreateBill(ctx, waiter, sess.ID)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
