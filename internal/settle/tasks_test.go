package settle

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cafe/internal/loyalty"
)

type fakeVouchers struct {
	incremented []pgtype.UUID
}

func (f *fakeVouchers) IncrementUsage(_ context.Context, id pgtype.UUID) (bool, error) {
	f.incremented = append(f.incremented, id)
	return false, nil
}

type fakeLedger struct {
	entries []int64
}

func (f *fakeLedger) Append(_ context.Context, _ string, _ pgtype.UUID, _ loyalty.EntryKind, points int64) error {
	f.entries = append(f.entries, points)
	return nil
}

type fakeOrders struct {
	settled bool
	result  bool
}

func (f *fakeOrders) MarkSettled(context.Context, pgtype.UUID) (bool, error) {
	f.settled = true
	return f.result, nil
}

func settleTask(t *testing.T, payload string) *asynq.Task {
	t.Helper()
	return asynq.NewTask(TypeOrderSettle, []byte(payload))
}

func TestProcessTaskSettlesOnce(t *testing.T) {
	vouchers := &fakeVouchers{}
	ledger := &fakeLedger{}
	orders := &fakeOrders{result: true}
	h := &Handler{Vouchers: vouchers, Ledger: ledger, Orders: orders}

	payload := `{"orderId":"11111111-1111-1111-1111-111111111111",` +
		`"userId":"u-1","voucherId":"22222222-2222-2222-2222-222222222222",` +
		`"earnedPoints":650,"finalPrice":65000}`
	if err := h.ProcessTask(context.Background(), settleTask(t, payload)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(vouchers.incremented) != 1 {
		t.Fatalf("voucher usage not incremented")
	}
	if len(ledger.entries) != 1 || ledger.entries[0] != 650 {
		t.Fatalf("loyalty points not credited: %+v", ledger.entries)
	}
}

func TestProcessTaskIdempotentWhenAlreadySettled(t *testing.T) {
	vouchers := &fakeVouchers{}
	ledger := &fakeLedger{}
	orders := &fakeOrders{result: false}
	h := &Handler{Vouchers: vouchers, Ledger: ledger, Orders: orders}

	payload := `{"orderId":"11111111-1111-1111-1111-111111111111","userId":"u-1","earnedPoints":100}`
	if err := h.ProcessTask(context.Background(), settleTask(t, payload)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(vouchers.incremented) != 0 || len(ledger.entries) != 0 {
		t.Fatalf("replayed settlement must be a no-op")
	}
}

func TestProcessTaskDropsMalformedOrderID(t *testing.T) {
	orders := &fakeOrders{result: true}
	h := &Handler{Orders: orders}
	if err := h.ProcessTask(context.Background(), settleTask(t, `{"orderId":"garbage"}`)); err != nil {
		t.Fatalf("malformed ids must not retry: %v", err)
	}
	if orders.settled {
		t.Fatalf("must not touch order with malformed id")
	}
}
