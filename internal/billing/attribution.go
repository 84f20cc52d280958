package billing

import "github.com/erfan-mirasadi/menu-3d/internal/model"

// ItemCoverage is the derived paid state of one payable line.
type ItemCoverage struct {
	Item    model.OrderItem `json:"item"`
	Covered model.Money     `json:"covered"`
	Paid    bool            `json:"paid"`
}

// Attribute walks payable items in creation order and marks each one paid
// once the cumulative paid amount covers its whole line. The first line that
// is only partly covered is the boundary; everything after it is unpaid.
// The result depends only on persisted items and the bill's paid amount.
func Attribute(items []model.OrderItem, paid model.Money) []ItemCoverage {
	ordered := OrderedPayable(items)
	out := make([]ItemCoverage, 0, len(ordered))
	left := paid
	for _, it := range ordered {
		line := it.LineTotal()
		c := ItemCoverage{Item: it}
		switch {
		case left >= line:
			c.Covered = line
			c.Paid = true
			left -= line
		case left > 0:
			c.Covered = left
			left = 0
		}
		out = append(out, c)
	}
	return out
}

// Unpaid returns the ids of items the heuristic does not consider paid.
func Unpaid(items []model.OrderItem, paid model.Money) map[string]bool {
	out := make(map[string]bool)
	for _, c := range Attribute(items, paid) {
		if !c.Paid {
			out[c.Item.ID] = true
		}
	}
	return out
}
