package loyalty

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-cafe/internal/pricing"
)

// EntryKind discriminates ledger entries.
type EntryKind string

const (
	KindEarn   EntryKind = "EARN"
	KindRedeem EntryKind = "REDEEM"
)

// Points computes the points earned for a paid amount at the configured earn
// rate in basis points. The result is floored; partial points are never
// granted.
func Points(finalPrice pricing.Money, earnRateBps int32) int64 {
	if finalPrice <= 0 || earnRateBps <= 0 {
		return 0
	}
	return finalPrice * int64(earnRateBps) / 10000
}

// RateSource resolves the effective earn rate. A store_config row overrides
// the env default so operators can tune the rate without a redeploy.
type RateSource struct {
	Pool    *pgxpool.Pool
	Default int32
}

// EarnRateBps returns the configured earn rate in basis points.
func (r *RateSource) EarnRateBps(ctx context.Context) int32 {
	if r == nil {
		return 0
	}
	if r.Pool == nil {
		return r.Default
	}
	var bps int32
	err := r.Pool.QueryRow(ctx, `
		SELECT value::int FROM store_config WHERE key = 'loyalty_earn_rate_bps'`).
		Scan(&bps)
	if err != nil || bps < 0 {
		return r.Default
	}
	return bps
}

// Store appends to and sums the loyalty ledger.
type Store struct {
	Pool *pgxpool.Pool
}

// Append records a ledger entry for the given user. Settlement calls this
// once per order; the unique order constraint makes replays harmless.
func (s *Store) Append(ctx context.Context, userID string, orderID pgtype.UUID, kind EntryKind, points int64) error {
	if points == 0 {
		return nil
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO loyalty_ledger (user_id, order_id, kind, points)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, kind) DO NOTHING`,
		userID, orderID, string(kind), points)
	if err != nil {
		return fmt.Errorf("append loyalty entry: %w", err)
	}
	return nil
}

// Balance sums a user's ledger. Redeems are stored as negative points so a
// plain SUM is the balance.
func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM loyalty_ledger WHERE user_id = $1`, userID).
		Scan(&balance)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("loyalty balance: %w", err)
	}
	return balance, nil
}
