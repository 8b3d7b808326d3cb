package pricing

import (
	"reflect"
	"testing"
)

func TestComposeEmptyCart(t *testing.T) {
	v := activeVoucher("WELCOME")
	got := Compose(nil, &v, 15_000, "", 100)
	if got != (Breakdown{}) {
		t.Fatalf("empty cart must yield an all-zero breakdown, got %+v", got)
	}
}

func TestComposePercentVoucher(t *testing.T) {
	// Subtotal 100000, 50% off universal voucher, shipping 15000.
	cart := Cart{{Product: Product{ID: "p-box", BasePrice: 50_000}, Qty: 2}}
	v := activeVoucher("WELCOME")
	v.Kind = DiscountPercent
	v.PercentBps = 5000

	got := Compose(cart, &v, 15_000, "", 0)
	if got.Subtotal != 100_000 || got.Discount != 50_000 || got.FinalPrice != 65_000 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	if got.Error != "" {
		t.Fatalf("unexpected error %q", got.Error)
	}
}

func TestComposeVoucherErrorDegradesGracefully(t *testing.T) {
	// Subtotal 150000 against a 200000 minimum: the order still goes through
	// at full price with the reason carried on the breakdown.
	cart := Cart{{Product: Product{ID: "p-box", BasePrice: 150_000}, Qty: 1}}
	v := activeVoucher("BIGSPEND")
	v.MinOrderValue = 200_000

	verdict := Validate(&v, cart, cart.Subtotal(), testNow)
	if verdict.Valid {
		t.Fatalf("expected minimum check to fail")
	}
	got := Compose(cart, nil, 15_000, verdict.Reason, 0)
	if got.Discount != 0 || got.FinalPrice != 165_000 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	if got.Error != "order minimum not met: requires 200.000đ" {
		t.Fatalf("unexpected error %q", got.Error)
	}
}

func TestComposeScopedFixedVoucher(t *testing.T) {
	// Two 15000 coffees and a 20000 snack; a 10000-off coffee-only voucher
	// discounts against the 30000 eligible slice, leaving 30000 + shipping.
	coffee := Product{ID: "p-coffee", BasePrice: 15_000, CategoryIDs: []string{"c-coffee"}}
	snack := Product{ID: "p-snack", BasePrice: 20_000, CategoryIDs: []string{"c-snack"}}
	cart := Cart{{Product: coffee, Qty: 2}, {Product: snack, Qty: 1}}

	v := activeVoucher("COFFEE10")
	v.Scope = ScopeCategorySpecific
	v.CategoryIDs = []string{"c-coffee"}

	got := Compose(cart, &v, 12_000, "", 0)
	if got.Subtotal != 50_000 || got.EligibleSubtotal != 30_000 || got.Discount != 10_000 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	if got.FinalPrice != 52_000 {
		t.Fatalf("expected final 52000, got %d", got.FinalPrice)
	}
}

func TestComposeIdempotent(t *testing.T) {
	cart := Cart{{Product: latte(), Selections: map[string]Selection{"size": SingleChoice("m")}, Qty: 2}}
	v := activeVoucher("STABLE")
	first := Compose(cart, &v, 15_000, "", 100)
	for i := 0; i < 5; i++ {
		if again := Compose(cart, &v, 15_000, "", 100); !reflect.DeepEqual(first, again) {
			t.Fatalf("breakdown changed across identical inputs: %+v vs %+v", first, again)
		}
	}
}

func TestComposeEarnedPointsFloor(t *testing.T) {
	cart := Cart{{Product: Product{ID: "p-x", BasePrice: 99_990}, Qty: 1}}
	// 1% earn rate over 99990 is 999.9 points, floored to 999.
	got := Compose(cart, nil, 0, "", 100)
	if got.EarnedPoints != 999 {
		t.Fatalf("expected 999 points, got %d", got.EarnedPoints)
	}
}

func TestComposeFinalNeverNegative(t *testing.T) {
	cart := Cart{{Product: Product{ID: "p-x", BasePrice: 10_000}, Qty: 1}}
	v := activeVoucher("HUGE")
	v.Amount = 100_000
	got := Compose(cart, &v, 0, "", 0)
	if got.FinalPrice != 0 {
		t.Fatalf("final price must floor at zero, got %d", got.FinalPrice)
	}
	if got.Discount != 10_000 {
		t.Fatalf("discount must clamp to eligible subtotal, got %d", got.Discount)
	}
}

func TestComposeNoVoucherPassThrough(t *testing.T) {
	cart := Cart{{Product: Product{ID: "p-x", BasePrice: 30_000}, Qty: 1}}
	got := Compose(cart, nil, 15_000, "", 0)
	want := Breakdown{
		Subtotal:         30_000,
		EligibleSubtotal: 30_000,
		ShippingFee:      15_000,
		FinalPrice:       45_000,
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
