package pricing

import (
	"sort"
	"strings"
)

// AdjustmentKind discriminates fixed-amount and percentage adjustments.
type AdjustmentKind string

const (
	// AdjustFixed adds or subtracts a flat amount in minor units.
	AdjustFixed AdjustmentKind = "fixed"
	// AdjustPercent applies a basis-point rate against the product base price.
	AdjustPercent AdjustmentKind = "percent"
)

// Adjustment describes a price modification attached to a sale or an option.
type Adjustment struct {
	Kind       AdjustmentKind
	Amount     Money
	PercentBps int32
}

// SelectionMode controls how many options may be chosen from a variant group.
type SelectionMode string

const (
	// SelectSingle requires exactly one option.
	SelectSingle SelectionMode = "single"
	// SelectMultiple allows zero or more options.
	SelectMultiple SelectionMode = "multiple"
)

// Option is one choice within a variant group, optionally carrying a price delta.
type Option struct {
	ID          string
	Label       string
	PriceChange *Adjustment
}

// VariantGroup is an ordered set of options with a selection mode and default.
type VariantGroup struct {
	ID      string
	Label   string
	Mode    SelectionMode
	Options []Option
	Default Selection
}

// Product is an immutable catalog record used for pricing.
type Product struct {
	ID          string
	Name        string
	BasePrice   Money
	Sale        *Adjustment
	CategoryIDs []string
	Variants    []VariantGroup
}

// InCategory reports whether the product belongs to any of the given categories.
func (p Product) InCategory(categoryIDs []string) bool {
	for _, want := range categoryIDs {
		for _, have := range p.CategoryIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Selection is a tagged choice for one variant group: either a single option
// id or a set of option ids, never both.
type Selection struct {
	mode     SelectionMode
	single   string
	multiple []string
}

// SingleChoice builds a single-mode selection.
func SingleChoice(optionID string) Selection {
	return Selection{mode: SelectSingle, single: optionID}
}

// MultiChoice builds a multiple-mode selection.
func MultiChoice(optionIDs ...string) Selection {
	ids := append([]string(nil), optionIDs...)
	return Selection{mode: SelectMultiple, multiple: ids}
}

// Mode returns the selection mode.
func (s Selection) Mode() SelectionMode { return s.mode }

// OptionIDs returns the chosen option ids regardless of mode.
func (s Selection) OptionIDs() []string {
	if s.mode == SelectSingle {
		if s.single == "" {
			return nil
		}
		return []string{s.single}
	}
	return append([]string(nil), s.multiple...)
}

// canonical renders the selection in a deterministic order-independent form.
func (s Selection) canonical() string {
	ids := s.OptionIDs()
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// UnitPrice resolves the final price of one unit of the product with the given
// selections. The sale adjustment applies first, then each selected option's
// delta. Percentage deltas are always computed against the original base
// price, not the sale price. Unknown group or option ids are skipped.
func UnitPrice(p Product, selections map[string]Selection) Money {
	price := p.BasePrice
	if p.Sale != nil {
		switch p.Sale.Kind {
		case AdjustFixed:
			price = p.BasePrice - p.Sale.Amount
		case AdjustPercent:
			price = p.BasePrice - percentOf(p.BasePrice, p.Sale.PercentBps)
		}
	}
	if len(selections) == 0 || len(p.Variants) == 0 {
		return price
	}
	for _, group := range p.Variants {
		sel, ok := selections[group.ID]
		if !ok {
			continue
		}
		for _, chosen := range sel.OptionIDs() {
			opt, ok := findOption(group.Options, chosen)
			if !ok || opt.PriceChange == nil {
				continue
			}
			switch opt.PriceChange.Kind {
			case AdjustFixed:
				price += opt.PriceChange.Amount
			case AdjustPercent:
				price += percentOf(p.BasePrice, opt.PriceChange.PercentBps)
			}
		}
	}
	return price
}

func findOption(options []Option, id string) (Option, bool) {
	for _, opt := range options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}
