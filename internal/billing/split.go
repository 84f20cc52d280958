package billing

import "github.com/erfan-mirasadi/menu-3d/internal/model"

// ByHeadcount splits remaining into n shares that sum exactly to remaining.
// Leftover minor units go to the first shares.
func ByHeadcount(remaining model.Money, n int) ([]model.Money, error) {
	if n < 1 || n > MaxHeadcount {
		return nil, ErrInvalidHeadcount
	}
	if remaining <= 0 {
		return make([]model.Money, n), nil
	}
	base := remaining / model.Money(n)
	extra := remaining % model.Money(n)
	shares := make([]model.Money, n)
	for i := range shares {
		shares[i] = base
		if model.Money(i) < extra {
			shares[i]++
		}
	}
	return shares, nil
}

// ByItems quotes the selected unpaid items plus their proportional share of
// the bill's adjustments, capped at remaining.
func ByItems(items []model.OrderItem, adjs []model.Adjustment, paid, remaining model.Money, selected []string) (model.Money, error) {
	if len(selected) == 0 {
		return 0, ErrNothingSelected
	}
	payable := make(map[string]model.OrderItem)
	for _, it := range items {
		if it.Payable() {
			payable[it.ID] = it
		}
	}
	unpaid := Unpaid(items, paid)
	var sum model.Money
	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if seen[id] {
			continue
		}
		seen[id] = true
		it, ok := payable[id]
		if !ok {
			return 0, ErrUnknownItem
		}
		if !unpaid[id] {
			return 0, ErrItemAlreadyPaid
		}
		sum += it.LineTotal()
	}
	if itemsTotal := ItemsTotal(items); itemsTotal > 0 {
		sum += divRound(AdjustmentsTotal(adjs)*sum, itemsTotal)
	}
	if sum > remaining {
		sum = remaining
	}
	if sum < 0 {
		sum = 0
	}
	return sum, nil
}

// Custom caps a free amount at remaining.
func Custom(amount, remaining model.Money) (model.Money, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if amount > remaining {
		return remaining, nil
	}
	return amount, nil
}

// divRound divides rounding half away from zero.
func divRound(a, b model.Money) model.Money {
	if b == 0 {
		return 0
	}
	neg := (a < 0) != (b < 0)
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	q := (a + b/2) / b
	if neg {
		return -q
	}
	return q
}
