// Package billing is the pure arithmetic behind bills: what counts toward a
// total, when a bill is settled, which items a partial payment covers and how
// an amount-to-pay is quoted. Nothing here touches the store.
package billing

import (
	"errors"
	"sort"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// Tolerance absorbs rounding when comparing paid against total. Amounts are
// integer minor units, so half a minor unit of slack is exactly zero.
const Tolerance model.Money = 0

// MaxHeadcount bounds a per-person split. Quotes allocate one share per
// person.
const MaxHeadcount = 100

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidTitle     = errors.New("adjustment title is required")
	ErrInvalidType      = errors.New("adjustment type must be charge or discount")
	ErrInvalidHeadcount = errors.New("headcount must be between 1 and 100")
	ErrUnknownItem      = errors.New("selected item is not payable in this session")
	ErrItemAlreadyPaid  = errors.New("selected item is already paid")
	ErrNothingSelected  = errors.New("no items selected")
)

// ItemsTotal sums line totals of payable items only.
func ItemsTotal(items []model.OrderItem) model.Money {
	var sum model.Money
	for _, it := range items {
		if it.Payable() {
			sum += it.LineTotal()
		}
	}
	return sum
}

// AdjustmentsTotal folds charges minus discounts.
func AdjustmentsTotal(adjs []model.Adjustment) model.Money {
	var sum model.Money
	for _, a := range adjs {
		sum += a.Signed()
	}
	return sum
}

// Total is payable items plus the adjustment fold.
func Total(items []model.OrderItem, adjs []model.Adjustment) model.Money {
	return ItemsTotal(items) + AdjustmentsTotal(adjs)
}

// FullyPaid reports whether paid covers total within tolerance.
func FullyPaid(total, paid model.Money) bool { return total-paid <= Tolerance }

// StatusFor is the status a bill with these amounts should carry. A bill
// nobody has paid towards stays UNPAID even when its total is zero.
func StatusFor(total, paid model.Money) model.BillStatus {
	if paid > 0 && FullyPaid(total, paid) {
		return model.BillPaid
	}
	return model.BillUnpaid
}

// Overpays reports whether amount exceeds what is still due.
func Overpays(amount, remaining model.Money) bool { return amount > remaining+Tolerance }

// ValidateAdjustment checks a new charge or discount.
func ValidateAdjustment(a model.Adjustment) error {
	if a.Title == "" {
		return ErrInvalidTitle
	}
	if a.Amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Type != model.AdjustmentCharge && a.Type != model.AdjustmentDiscount {
		return ErrInvalidType
	}
	return nil
}

// OrderedPayable returns the payable items sorted by creation time, with the
// id as tie-breaker so every render walks them in the same order.
func OrderedPayable(items []model.OrderItem) []model.OrderItem {
	out := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		if it.Payable() {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
