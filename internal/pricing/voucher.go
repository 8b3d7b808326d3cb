package pricing

import (
	"fmt"
	"time"
)

// DiscountKind discriminates percentage and fixed-amount vouchers.
type DiscountKind string

const (
	// DiscountPercent discounts a basis-point share of the eligible subtotal.
	DiscountPercent DiscountKind = "PERCENT"
	// DiscountFixed discounts a flat amount.
	DiscountFixed DiscountKind = "FIXED"
)

// VoucherStatus is the lifecycle state assigned by the voucher source.
type VoucherStatus string

const (
	StatusActive   VoucherStatus = "ACTIVE"
	StatusUpcoming VoucherStatus = "UPCOMING"
	StatusExpired  VoucherStatus = "EXPIRED"
	StatusDepleted VoucherStatus = "DEPLETED"
)

// ScopeKind defines which part of a cart a voucher may discount.
type ScopeKind string

const (
	ScopeUniversal        ScopeKind = "UNIVERSAL"
	ScopeProductSpecific  ScopeKind = "PRODUCT_SPECIFIC"
	ScopeCategorySpecific ScopeKind = "CATEGORY_SPECIFIC"
)

// Voucher is a read-only discount definition supplied by the voucher source.
// The engine never mutates usage counters; settlement owns that at
// order-commit time.
type Voucher struct {
	ID            string        `json:"id"`
	Code          string        `json:"code"`
	Description   string        `json:"description,omitempty"`
	Kind          DiscountKind  `json:"kind"`
	Amount        Money         `json:"amount"`
	PercentBps    int32         `json:"percentBps,omitempty"`
	MaxDiscount   *Money        `json:"maxDiscount,omitempty"`
	MinOrderValue Money         `json:"minOrderValue"`
	StartAt       time.Time     `json:"startAt"`
	EndAt         time.Time     `json:"endAt"`
	UsageLimit    *int32        `json:"usageLimit,omitempty"`
	UsageCount    int32         `json:"usageCount"`
	Status        VoucherStatus `json:"status"`
	Scope         ScopeKind     `json:"scope"`
	ProductIDs    []string      `json:"productIds,omitempty"`
	CategoryIDs   []string      `json:"categoryIds,omitempty"`
}

// Validation is the verdict for a voucher against a cart snapshot. A nil
// voucher yields an invalid verdict with no reason, distinguishing "no
// voucher" from "invalid voucher".
type Validation struct {
	Valid   bool
	Voucher *Voucher
	Reason  string
}

// Validate runs the eligibility checks in a fixed order and short-circuits at
// the first failure so reason strings are deterministic.
func Validate(v *Voucher, cart Cart, subtotal Money, now time.Time) Validation {
	if v == nil {
		return Validation{}
	}
	if v.Status != StatusActive {
		return invalid(v, fmt.Sprintf("voucher %q is no longer active", v.Code))
	}
	if now.Before(v.StartAt) {
		return invalid(v, fmt.Sprintf("voucher %q has not started yet", v.Code))
	}
	if now.After(v.EndAt) {
		return invalid(v, fmt.Sprintf("voucher %q has expired", v.Code))
	}
	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return invalid(v, fmt.Sprintf("voucher %q has no uses left", v.Code))
	}
	if subtotal < v.MinOrderValue {
		return invalid(v, fmt.Sprintf("order minimum not met: requires %s", FormatVND(v.MinOrderValue)))
	}
	if v.Scope == ScopeProductSpecific && len(v.ProductIDs) > 0 {
		if !cartHasProduct(cart, v.ProductIDs) {
			return invalid(v, "voucher only applies to selected products")
		}
	}
	if v.Scope == ScopeCategorySpecific && len(v.CategoryIDs) > 0 {
		if !cartHasCategory(cart, v.CategoryIDs) {
			return invalid(v, "voucher only applies to selected categories")
		}
	}
	return Validation{Valid: true, Voucher: v}
}

func invalid(v *Voucher, reason string) Validation {
	return Validation{Voucher: v, Reason: reason}
}

func cartHasProduct(cart Cart, productIDs []string) bool {
	for _, line := range cart {
		for _, id := range productIDs {
			if line.Product.ID == id {
				return true
			}
		}
	}
	return false
}

func cartHasCategory(cart Cart, categoryIDs []string) bool {
	for _, line := range cart {
		if line.Product.InCategory(categoryIDs) {
			return true
		}
	}
	return false
}

// EligibleSubtotal computes the portion of the cart a voucher's scope covers.
// A nil voucher or universal scope covers the whole cart. A scoped voucher
// with an empty id set contributes zero; it must read as ineligible rather
// than silently widening to the whole cart.
func EligibleSubtotal(v *Voucher, cart Cart) Money {
	if v == nil || v.Scope == ScopeUniversal {
		return cart.Subtotal()
	}
	var total Money
	switch v.Scope {
	case ScopeProductSpecific:
		if len(v.ProductIDs) == 0 {
			return 0
		}
		for _, line := range cart {
			if line.Qty <= 0 {
				continue
			}
			for _, id := range v.ProductIDs {
				if line.Product.ID == id {
					total += line.UnitPrice() * Money(line.Qty)
					break
				}
			}
		}
	case ScopeCategorySpecific:
		if len(v.CategoryIDs) == 0 {
			return 0
		}
		for _, line := range cart {
			if line.Qty <= 0 {
				continue
			}
			if line.Product.InCategory(v.CategoryIDs) {
				total += line.UnitPrice() * Money(line.Qty)
			}
		}
	}
	return total
}

// Discount converts an already-valid voucher and its eligible subtotal into a
// currency amount. Percent vouchers honor the optional cap; the result never
// exceeds the eligible subtotal, fixed vouchers on small orders included.
func Discount(v *Voucher, eligible Money) Money {
	if v == nil || eligible <= 0 {
		return 0
	}
	var discount Money
	switch v.Kind {
	case DiscountPercent:
		discount = percentOf(eligible, v.PercentBps)
		if v.MaxDiscount != nil && discount > *v.MaxDiscount {
			discount = *v.MaxDiscount
		}
	default:
		discount = v.Amount
	}
	if discount > eligible {
		discount = eligible
	}
	if discount < 0 {
		return 0
	}
	return discount
}
