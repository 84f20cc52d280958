package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

var t0 = time.Date(2026, 1, 2, 19, 0, 0, 0, time.UTC)

func line(id string, qty int, price model.Money, status model.OrderStatus, offset int) model.OrderItem {
	return model.OrderItem{ID: id, Quantity: qty, UnitPrice: price, Status: status, CreatedAt: t0.Add(time.Duration(offset) * time.Minute)}
}

func TestTotal_OnlyPayableItemsCount(t *testing.T) {
	items := []model.OrderItem{
		line("a", 2, 1000, model.StatusConfirmed, 0),
		line("b", 1, 500, model.StatusServed, 1),
		line("c", 4, 900, model.StatusPending, 2),
		line("d", 1, 700, model.StatusDraft, 3),
		line("e", 3, 100, model.StatusCancelled, 4),
	}
	assert.Equal(t, model.Money(2500), ItemsTotal(items))

	adjs := []model.Adjustment{
		{Title: "service fee", Amount: 500, Type: model.AdjustmentCharge},
		{Title: "birthday", Amount: 200, Type: model.AdjustmentDiscount},
	}
	assert.Equal(t, model.Money(300), AdjustmentsTotal(adjs))
	assert.Equal(t, model.Money(2800), Total(items, adjs))
}

func TestFullyPaidAndOverpays(t *testing.T) {
	assert.True(t, FullyPaid(2500, 2500))
	assert.False(t, FullyPaid(2500, 2499))
	assert.True(t, Overpays(3001, 3000))
	assert.False(t, Overpays(3000, 3000))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, model.BillPaid, StatusFor(2000, 2000))
	assert.Equal(t, model.BillUnpaid, StatusFor(2500, 2000))
	assert.Equal(t, model.BillUnpaid, StatusFor(0, 0))
}

func TestValidateAdjustment(t *testing.T) {
	assert.NoError(t, ValidateAdjustment(model.Adjustment{Title: "fee", Amount: 1, Type: model.AdjustmentCharge}))
	assert.ErrorIs(t, ValidateAdjustment(model.Adjustment{Amount: 1, Type: model.AdjustmentCharge}), ErrInvalidTitle)
	assert.ErrorIs(t, ValidateAdjustment(model.Adjustment{Title: "fee", Type: model.AdjustmentCharge}), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAdjustment(model.Adjustment{Title: "fee", Amount: 1, Type: "tip"}), ErrInvalidType)
}

func TestAttribute_CumulativeCoverage(t *testing.T) {
	items := []model.OrderItem{
		line("late", 1, 500, model.StatusConfirmed, 5),
		line("early", 2, 1000, model.StatusConfirmed, 0),
		line("skip", 1, 9999, model.StatusPending, 1),
	}
	cov := Attribute(items, 2200)
	require.Len(t, cov, 2)
	assert.Equal(t, "early", cov[0].Item.ID)
	assert.True(t, cov[0].Paid)
	assert.Equal(t, "late", cov[1].Item.ID)
	assert.False(t, cov[1].Paid)
	assert.Equal(t, model.Money(200), cov[1].Covered)

	// Same inputs give the same answer.
	assert.Equal(t, cov, Attribute(items, 2200))
}

func TestAttribute_TieBreaksOnID(t *testing.T) {
	items := []model.OrderItem{line("b", 1, 100, model.StatusServed, 0), line("a", 1, 100, model.StatusServed, 0)}
	cov := Attribute(items, 100)
	assert.Equal(t, "a", cov[0].Item.ID)
	assert.True(t, cov[0].Paid)
	assert.False(t, cov[1].Paid)
}

func TestByHeadcount(t *testing.T) {
	shares, err := ByHeadcount(1000, 3)
	require.NoError(t, err)
	assert.Equal(t, []model.Money{334, 333, 333}, shares)

	_, err = ByHeadcount(1000, 0)
	assert.ErrorIs(t, err, ErrInvalidHeadcount)

	shares, err = ByHeadcount(1000, MaxHeadcount)
	require.NoError(t, err)
	assert.Len(t, shares, MaxHeadcount)

	for _, n := range []int{MaxHeadcount + 1, 1 << 62} {
		require.NotPanics(t, func() { _, err = ByHeadcount(1000, n) })
		assert.ErrorIs(t, err, ErrInvalidHeadcount)
	}
}

func TestByItems(t *testing.T) {
	items := []model.OrderItem{
		line("a", 2, 1000, model.StatusConfirmed, 0),
		line("b", 1, 500, model.StatusConfirmed, 1),
	}
	adjs := []model.Adjustment{{Title: "fee", Amount: 500, Type: model.AdjustmentCharge}}

	// b is 500 of 2500 items; its share of a 500 charge is 100.
	amt, err := ByItems(items, adjs, 0, 3000, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, model.Money(600), amt)

	_, err = ByItems(items, adjs, 2000, 1000, []string{"a"})
	assert.ErrorIs(t, err, ErrItemAlreadyPaid)

	_, err = ByItems(items, adjs, 0, 3000, []string{"zzz"})
	assert.ErrorIs(t, err, ErrUnknownItem)

	_, err = ByItems(items, adjs, 0, 3000, nil)
	assert.ErrorIs(t, err, ErrNothingSelected)
}

func TestCustom(t *testing.T) {
	amt, err := Custom(5000, 3000)
	require.NoError(t, err)
	assert.Equal(t, model.Money(3000), amt)
	_, err = Custom(0, 3000)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "25.00", model.Money(2500).String())
	assert.Equal(t, "-0.05", model.Money(-5).String())
}
