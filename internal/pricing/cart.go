package pricing

import (
	"sort"
	"strings"
)

// Line is one cart entry: a product, its selected options, and a quantity.
type Line struct {
	Product    Product
	Selections map[string]Selection
	Qty        int
}

// Cart is an ordered list of lines. Order is preserved across normalization so
// the storefront renders items in the sequence they were added.
type Cart []Line

// SlotKey identifies the cart slot a line occupies: same product plus an
// identical selection map (order-independent for multi-select) means the same
// slot and must merge rather than duplicate.
func (l Line) SlotKey() string {
	groups := make([]string, 0, len(l.Selections))
	for groupID, sel := range l.Selections {
		canon := sel.canonical()
		if canon == "" {
			continue
		}
		groups = append(groups, groupID+"="+canon)
	}
	sort.Strings(groups)
	return l.Product.ID + "|" + strings.Join(groups, ";")
}

// UnitPrice prices one unit of the line.
func (l Line) UnitPrice() Money {
	return UnitPrice(l.Product, l.Selections)
}

// Subtotal sums price x quantity across all lines.
func (c Cart) Subtotal() Money {
	var total Money
	for _, line := range c {
		if line.Qty <= 0 {
			continue
		}
		total += line.UnitPrice() * Money(line.Qty)
	}
	return total
}

// Normalize merges lines occupying the same slot by summing quantities and
// drops lines whose quantity is not positive. The first occurrence of a slot
// keeps its position.
func (c Cart) Normalize() Cart {
	out := make(Cart, 0, len(c))
	index := make(map[string]int, len(c))
	for _, line := range c {
		if line.Qty <= 0 {
			continue
		}
		key := line.SlotKey()
		if at, ok := index[key]; ok {
			out[at].Qty += line.Qty
			continue
		}
		index[key] = len(out)
		out = append(out, line)
	}
	return out
}
