package pricing

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func activeVoucher(code string) Voucher {
	return Voucher{
		ID:      "v-" + strings.ToLower(code),
		Code:    code,
		Kind:    DiscountFixed,
		Amount:  10_000,
		StartAt: testNow.Add(-24 * time.Hour),
		EndAt:   testNow.Add(24 * time.Hour),
		Status:  StatusActive,
		Scope:   ScopeUniversal,
	}
}

func cartOf(products ...Product) Cart {
	cart := make(Cart, 0, len(products))
	for _, p := range products {
		cart = append(cart, Line{Product: p, Qty: 1})
	}
	return cart
}

func TestValidateNilVoucher(t *testing.T) {
	verdict := Validate(nil, nil, 0, testNow)
	if verdict.Valid || verdict.Reason != "" {
		t.Fatalf("nil voucher must be invalid without a reason, got %+v", verdict)
	}
}

func TestValidateCheckOrder(t *testing.T) {
	limit := int32(5)
	cases := []struct {
		name   string
		mutate func(*Voucher)
		want   string
	}{
		{"inactive", func(v *Voucher) { v.Status = StatusExpired }, "no longer active"},
		{"not started", func(v *Voucher) { v.StartAt = testNow.Add(time.Hour) }, "has not started yet"},
		{"expired", func(v *Voucher) { v.EndAt = testNow.Add(-time.Hour) }, "has expired"},
		{"depleted", func(v *Voucher) { v.UsageLimit = &limit; v.UsageCount = 5 }, "no uses left"},
		{"below minimum", func(v *Voucher) { v.MinOrderValue = 200_000 }, "order minimum not met: requires 200.000đ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := activeVoucher("TEST")
			tc.mutate(&v)
			verdict := Validate(&v, cartOf(latte()), 100_000, testNow)
			if verdict.Valid {
				t.Fatalf("expected invalid verdict")
			}
			if !strings.Contains(verdict.Reason, tc.want) {
				t.Fatalf("reason %q does not contain %q", verdict.Reason, tc.want)
			}
		})
	}
}

func TestValidateProductScopeMismatch(t *testing.T) {
	v := activeVoucher("PRODONLY")
	v.Scope = ScopeProductSpecific
	v.ProductIDs = []string{"p-espresso"}
	verdict := Validate(&v, cartOf(latte()), 40_000, testNow)
	if verdict.Valid {
		t.Fatalf("expected scope mismatch to invalidate")
	}
	if verdict.Reason != "voucher only applies to selected products" {
		t.Fatalf("unexpected reason %q", verdict.Reason)
	}
}

func TestValidateCategoryScopeMatch(t *testing.T) {
	v := activeVoucher("CATCOFFEE")
	v.Scope = ScopeCategorySpecific
	v.CategoryIDs = []string{"c-coffee"}
	verdict := Validate(&v, cartOf(latte()), 40_000, testNow)
	if !verdict.Valid {
		t.Fatalf("expected valid verdict, got reason %q", verdict.Reason)
	}
}

func TestValidateScopedEmptyIDSetPassesValidation(t *testing.T) {
	// An empty scoped id set skips the scope presence check; the voucher is
	// absorbed into a zero eligible subtotal downstream instead.
	v := activeVoucher("EMPTYSCOPE")
	v.Scope = ScopeProductSpecific
	verdict := Validate(&v, cartOf(latte()), 40_000, testNow)
	if !verdict.Valid {
		t.Fatalf("expected valid verdict, got reason %q", verdict.Reason)
	}
	if got := EligibleSubtotal(&v, cartOf(latte())); got != 0 {
		t.Fatalf("empty scoped id set must contribute zero, got %d", got)
	}
}

func TestEligibleSubtotalUniversal(t *testing.T) {
	v := activeVoucher("ALL")
	cart := Cart{{Product: latte(), Qty: 2}}
	if got := EligibleSubtotal(&v, cart); got != 80_000 {
		t.Fatalf("expected 80000, got %d", got)
	}
}

func TestEligibleSubtotalProductScoped(t *testing.T) {
	espresso := Product{ID: "p-espresso", BasePrice: 30_000, CategoryIDs: []string{"c-coffee"}}
	tea := Product{ID: "p-tea", BasePrice: 25_000, CategoryIDs: []string{"c-tea"}}
	v := activeVoucher("ESPRESSO")
	v.Scope = ScopeProductSpecific
	v.ProductIDs = []string{"p-espresso"}
	cart := Cart{{Product: espresso, Qty: 2}, {Product: tea, Qty: 1}}
	if got := EligibleSubtotal(&v, cart); got != 60_000 {
		t.Fatalf("expected 60000, got %d", got)
	}
}

func TestEligibleSubtotalCategoryScoped(t *testing.T) {
	espresso := Product{ID: "p-espresso", BasePrice: 30_000, CategoryIDs: []string{"c-coffee"}}
	tea := Product{ID: "p-tea", BasePrice: 25_000, CategoryIDs: []string{"c-tea"}}
	v := activeVoucher("TEATIME")
	v.Scope = ScopeCategorySpecific
	v.CategoryIDs = []string{"c-tea"}
	cart := Cart{{Product: espresso, Qty: 1}, {Product: tea, Qty: 3}}
	if got := EligibleSubtotal(&v, cart); got != 75_000 {
		t.Fatalf("expected 75000, got %d", got)
	}
}

func TestDiscountPercentWithCap(t *testing.T) {
	cap := Money(20_000)
	v := Voucher{Kind: DiscountPercent, PercentBps: 5000, MaxDiscount: &cap}
	if got := Discount(&v, 100_000); got != 20_000 {
		t.Fatalf("expected capped discount 20000, got %d", got)
	}
	if got := Discount(&v, 30_000); got != 15_000 {
		t.Fatalf("expected 15000 below cap, got %d", got)
	}
}

func TestDiscountFixedClampedToEligible(t *testing.T) {
	v := Voucher{Kind: DiscountFixed, Amount: 50_000}
	if got := Discount(&v, 30_000); got != 30_000 {
		t.Fatalf("fixed discount must clamp to eligible subtotal, got %d", got)
	}
}

func TestDiscountZeroEligible(t *testing.T) {
	v := Voucher{Kind: DiscountFixed, Amount: 50_000}
	if got := Discount(&v, 0); got != 0 {
		t.Fatalf("expected zero discount, got %d", got)
	}
}
