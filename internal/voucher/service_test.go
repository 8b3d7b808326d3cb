package voucher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cafe/internal/pricing"
)

type fakeVoucherStore struct {
	rows []Row
}

func (f *fakeVoucherStore) GetByCode(_ context.Context, code string) (Row, error) {
	for _, row := range f.rows {
		if strings.EqualFold(row.Code, code) {
			return row, nil
		}
	}
	return Row{}, pgx.ErrNoRows
}

func (f *fakeVoucherStore) List(context.Context) ([]Row, error) {
	return f.rows, nil
}

var voucherTestNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func activeRow(code string, amount int64) Row {
	return Row{
		ID:      pgtype.UUID{Bytes: [16]byte{1}, Valid: true},
		Code:    code,
		Kind:    "fixed",
		Amount:  amount,
		StartAt: voucherTestNow.Add(-time.Hour),
		EndAt:   voucherTestNow.Add(time.Hour),
		Status:  "ACTIVE",
		Scope:   "universal",
	}
}

func testCart() pricing.Cart {
	return pricing.Cart{{Product: pricing.Product{ID: "p-1", BasePrice: 50_000}, Qty: 2}}
}

func TestResolveCaseInsensitive(t *testing.T) {
	svc := &Service{
		Store: &fakeVoucherStore{rows: []Row{activeRow("WELCOME", 10_000)}},
		Now:   func() time.Time { return voucherTestNow },
	}
	v, err := svc.Resolve(context.Background(), "  welcome ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.Code != "WELCOME" || v.Kind != pricing.DiscountFixed {
		t.Fatalf("unexpected voucher %+v", v)
	}
}

func TestCheckUnknownCodeReturnsVerdict(t *testing.T) {
	svc := &Service{
		Store: &fakeVoucherStore{},
		Now:   func() time.Time { return voucherTestNow },
	}
	verdict, err := svc.Check(context.Background(), "GHOST", testCart())
	if err != nil {
		t.Fatalf("check must not error on unknown codes: %v", err)
	}
	if verdict.Valid || verdict.Reason != "voucher code not found" {
		t.Fatalf("unexpected verdict %+v", verdict)
	}
}

func TestBrowseRanksBySavings(t *testing.T) {
	svc := &Service{
		Store: &fakeVoucherStore{rows: []Row{
			activeRow("SMALL", 5_000),
			activeRow("BIG", 8_000),
		}},
		Now: func() time.Time { return voucherTestNow },
	}
	candidates, err := svc.Browse(context.Background(), testCart())
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Voucher.Code != "BIG" || candidates[0].PotentialSavings != 8_000 {
		t.Fatalf("expected BIG first, got %+v", candidates[0])
	}
}

func TestFromRowMapsScopesAndLimits(t *testing.T) {
	row := activeRow("SCOPED", 0)
	row.Kind = "percent"
	row.PercentBps = pgtype.Int4{Int32: 2500, Valid: true}
	row.MaxDiscount = pgtype.Int8{Int64: 20_000, Valid: true}
	row.UsageLimit = pgtype.Int4{Int32: 100, Valid: true}
	row.Scope = "category"
	row.CategoryIDs = []pgtype.UUID{{Bytes: [16]byte{9}, Valid: true}}

	v := FromRow(row)
	if v.Kind != pricing.DiscountPercent || v.PercentBps != 2500 {
		t.Fatalf("percent mapping broken: %+v", v)
	}
	if v.MaxDiscount == nil || *v.MaxDiscount != 20_000 {
		t.Fatalf("max discount not mapped")
	}
	if v.UsageLimit == nil || *v.UsageLimit != 100 {
		t.Fatalf("usage limit not mapped")
	}
	if v.Scope != pricing.ScopeCategorySpecific || len(v.CategoryIDs) != 1 {
		t.Fatalf("scope not mapped: %+v", v)
	}
}
