package cart

import (
	"sort"
	"strings"

	"github.com/noah-isme/backend-cafe/internal/pricing"
)

// ItemPayload is the wire representation of one cart line. Selections map a
// variant group id to the chosen option ids; single-select groups carry one
// entry.
type ItemPayload struct {
	ProductID  string              `json:"productId"`
	Quantity   int                 `json:"quantity"`
	Selections map[string][]string `json:"selections,omitempty"`
}

// Key returns the slot identity of the payload: same product, same
// selections, regardless of option order.
func (p ItemPayload) Key() string {
	parts := make([]string, 0, len(p.Selections))
	for group, options := range p.Selections {
		if len(options) == 0 {
			continue
		}
		sorted := append([]string(nil), options...)
		sort.Strings(sorted)
		parts = append(parts, group+"="+strings.Join(sorted, ","))
	}
	sort.Strings(parts)
	return p.ProductID + "|" + strings.Join(parts, ";")
}

// MergeItems combines payloads sharing a slot identity and drops lines whose
// quantity is not positive. Input order is preserved for surviving slots.
func MergeItems(items []ItemPayload) []ItemPayload {
	index := make(map[string]int, len(items))
	out := make([]ItemPayload, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if at, ok := index[key]; ok {
			out[at].Quantity += item.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	filtered := out[:0]
	for _, item := range out {
		if item.Quantity > 0 {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// BuildCart resolves payloads against the given product models. Items whose
// product id is unknown are skipped; selection modes come from the product's
// variant groups so the pricing engine sees properly tagged selections.
func BuildCart(products map[string]pricing.Product, items []ItemPayload) pricing.Cart {
	out := make(pricing.Cart, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		line := pricing.Line{Product: product, Qty: item.Quantity}
		if len(item.Selections) > 0 {
			line.Selections = make(map[string]pricing.Selection, len(item.Selections))
			for group, options := range item.Selections {
				line.Selections[group] = buildSelection(product, group, options)
			}
		}
		out = append(out, line)
	}
	return out.Normalize()
}

func buildSelection(product pricing.Product, group string, options []string) pricing.Selection {
	for _, vg := range product.Variants {
		if vg.ID != group {
			continue
		}
		if vg.Mode == pricing.SelectSingle {
			if len(options) == 0 {
				return pricing.SingleChoice("")
			}
			return pricing.SingleChoice(options[0])
		}
		return pricing.MultiChoice(options...)
	}
	// Unknown group: priced as a no-op either way.
	return pricing.MultiChoice(options...)
}

// ProductIDs lists the distinct product ids referenced by the payloads.
func ProductIDs(items []ItemPayload) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		out = append(out, item.ProductID)
	}
	return out
}
