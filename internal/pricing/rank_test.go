package pricing

import "testing"

func TestRankOrdersByPotentialSavings(t *testing.T) {
	cart := Cart{{Product: Product{ID: "p-box", BasePrice: 50_000, CategoryIDs: []string{"c-food"}}, Qty: 2}}

	small := activeVoucher("SAVE5")
	small.Amount = 5_000

	big := activeVoucher("SAVE8")
	big.Amount = 8_000

	expired := activeVoucher("OLD")
	expired.Status = StatusExpired

	ranked := Rank([]Voucher{small, expired, big}, cart, cart.Subtotal(), testNow)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(ranked))
	}
	if ranked[0].Voucher.Code != "SAVE8" || ranked[0].PotentialSavings != 8_000 {
		t.Fatalf("expected SAVE8 first, got %+v", ranked[0])
	}
	if ranked[1].Voucher.Code != "SAVE5" || ranked[1].PotentialSavings != 5_000 {
		t.Fatalf("expected SAVE5 second, got %+v", ranked[1])
	}
	if ranked[2].Voucher.Code != "OLD" || ranked[2].Eligible {
		t.Fatalf("expected OLD last and ineligible, got %+v", ranked[2])
	}
	if ranked[2].Reason == "" {
		t.Fatalf("ineligible candidate needs a reason")
	}
}

func TestRankScopedVoucherWithoutMatchingItems(t *testing.T) {
	cart := Cart{{Product: Product{ID: "p-tea", BasePrice: 25_000, CategoryIDs: []string{"c-tea"}}, Qty: 1}}

	v := activeVoucher("COFFEEONLY")
	v.Scope = ScopeCategorySpecific
	v.CategoryIDs = []string{"c-coffee"}

	ranked := Rank([]Voucher{v}, cart, cart.Subtotal(), testNow)
	if ranked[0].Eligible {
		t.Fatalf("voucher with no matching items must rank ineligible")
	}
	if ranked[0].Reason != "voucher only applies to selected categories" {
		t.Fatalf("unexpected reason %q", ranked[0].Reason)
	}
}

func TestRankScopedEmptyIDSetReason(t *testing.T) {
	cart := Cart{{Product: Product{ID: "p-tea", BasePrice: 25_000}, Qty: 1}}

	v := activeVoucher("GHOSTSCOPE")
	v.Scope = ScopeProductSpecific

	ranked := Rank([]Voucher{v}, cart, cart.Subtotal(), testNow)
	if ranked[0].Eligible {
		t.Fatalf("empty scoped id set must rank ineligible")
	}
	if ranked[0].Reason != "no matching items in cart" {
		t.Fatalf("unexpected reason %q", ranked[0].Reason)
	}
}

func TestRankIneligibleKeepOriginalOrder(t *testing.T) {
	cart := Cart{{Product: Product{ID: "p-x", BasePrice: 10_000}, Qty: 1}}

	first := activeVoucher("FIRST")
	first.Status = StatusUpcoming
	second := activeVoucher("SECOND")
	second.Status = StatusExpired

	ranked := Rank([]Voucher{first, second}, cart, cart.Subtotal(), testNow)
	if ranked[0].Voucher.Code != "FIRST" || ranked[1].Voucher.Code != "SECOND" {
		t.Fatalf("ineligible candidates must keep input order, got %s then %s",
			ranked[0].Voucher.Code, ranked[1].Voucher.Code)
	}
}

func TestRankEmptyInput(t *testing.T) {
	if got := Rank(nil, nil, 0, testNow); len(got) != 0 {
		t.Fatalf("expected empty ranking, got %d", len(got))
	}
}
