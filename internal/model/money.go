package model

import "fmt"

// Money is an amount in currency minor units (cents). All bill arithmetic is
// done on integers so totals never drift.
type Money int64

// Times multiplies a unit amount by a quantity.
func (m Money) Times(qty int) Money { return m * Money(qty) }

// String renders the amount with two decimals, e.g. 2500 -> "25.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
