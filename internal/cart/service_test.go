package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-cafe/internal/pricing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{R: client, TTL: time.Hour}
}

func TestAddItemMergesSlots(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	item := ItemPayload{
		ProductID:  "p-latte",
		Quantity:   1,
		Selections: map[string][]string{"size": {"m"}, "topping": {"pearl", "cream"}},
	}
	if _, err := svc.AddItem(ctx, session.ID, item); err != nil {
		t.Fatalf("add first: %v", err)
	}
	// Same slot with reversed topping order must merge, not duplicate.
	item.Selections = map[string][]string{"topping": {"cream", "pearl"}, "size": {"m"}}
	item.Quantity = 2
	got, err := svc.AddItem(ctx, session.ID, item)
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 3 {
		t.Fatalf("expected one merged slot qty 3, got %+v", got.Items)
	}
}

func TestSetQuantityZeroRemovesSlot(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _ := svc.Create(ctx)
	item := ItemPayload{ProductID: "p-latte", Quantity: 2}
	if _, err := svc.AddItem(ctx, session.ID, item); err != nil {
		t.Fatalf("add: %v", err)
	}
	item.Quantity = 0
	got, err := svc.SetQuantity(ctx, session.ID, item)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", got.Items)
	}
}

func TestApplyAndClearVoucher(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _ := svc.Create(ctx)
	got, err := svc.ApplyVoucher(ctx, session.ID, "  welcome10 ")
	if err != nil {
		t.Fatalf("apply voucher: %v", err)
	}
	if got.VoucherCode != "WELCOME10" {
		t.Fatalf("expected normalized code WELCOME10, got %q", got.VoucherCode)
	}

	got, err = svc.ClearVoucher(ctx, session.ID)
	if err != nil {
		t.Fatalf("clear voucher: %v", err)
	}
	if got.VoucherCode != "" {
		t.Fatalf("voucher code not cleared: %q", got.VoucherCode)
	}

	if _, err := svc.ApplyVoucher(ctx, session.ID, "   "); err == nil {
		t.Fatalf("blank code must be rejected")
	}
}

func TestGetMissingCart(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildCartSkipsUnknownProducts(t *testing.T) {
	products := map[string]pricing.Product{
		"p-latte": {
			ID:        "p-latte",
			BasePrice: 40_000,
			Variants: []pricing.VariantGroup{{
				ID:   "size",
				Mode: pricing.SelectSingle,
				Options: []pricing.Option{
					{ID: "s"},
					{ID: "m", PriceChange: &pricing.Adjustment{Kind: pricing.AdjustFixed, Amount: 5_000}},
				},
			}},
		},
	}
	items := []ItemPayload{
		{ProductID: "p-latte", Quantity: 2, Selections: map[string][]string{"size": {"m"}}},
		{ProductID: "p-ghost", Quantity: 1},
	}
	cart := BuildCart(products, items)
	if len(cart) != 1 {
		t.Fatalf("unknown product must be skipped, got %d lines", len(cart))
	}
	if got := cart.Subtotal(); got != 90_000 {
		t.Fatalf("expected subtotal 90000, got %d", got)
	}
}
