package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row mirrors a voucher record with its aggregated scope ids.
type Row struct {
	ID            pgtype.UUID
	Code          string
	Description   pgtype.Text
	Kind          string
	Amount        int64
	PercentBps    pgtype.Int4
	MaxDiscount   pgtype.Int8
	MinOrderValue int64
	StartAt       time.Time
	EndAt         time.Time
	UsageLimit    pgtype.Int4
	UsageCount    int32
	Status        string
	Scope         string
	ProductIDs    []pgtype.UUID
	CategoryIDs   []pgtype.UUID
}

// WriteParams carries the mutable voucher fields for create and update.
type WriteParams struct {
	Code          string
	Description   pgtype.Text
	Kind          string
	Amount        int64
	PercentBps    pgtype.Int4
	MaxDiscount   pgtype.Int8
	MinOrderValue int64
	StartAt       time.Time
	EndAt         time.Time
	UsageLimit    pgtype.Int4
	Status        string
	Scope         string
	ProductIDs    []pgtype.UUID
	CategoryIDs   []pgtype.UUID
}

// Store issues voucher reads and writes against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const voucherSelect = `
	SELECT v.id, v.code, v.description, v.kind, v.amount, v.percent_bps,
	       v.max_discount, v.min_order_value, v.start_at, v.end_at,
	       v.usage_limit, v.usage_count, v.status, v.scope,
	       COALESCE(array_agg(DISTINCT vp.product_id) FILTER (WHERE vp.product_id IS NOT NULL), '{}'),
	       COALESCE(array_agg(DISTINCT vc.category_id) FILTER (WHERE vc.category_id IS NOT NULL), '{}')
	FROM vouchers v
	LEFT JOIN voucher_products vp ON vp.voucher_id = v.id
	LEFT JOIN voucher_categories vc ON vc.voucher_id = v.id`

func scanVoucher(row pgx.Row) (Row, error) {
	var v Row
	err := row.Scan(&v.ID, &v.Code, &v.Description, &v.Kind, &v.Amount, &v.PercentBps,
		&v.MaxDiscount, &v.MinOrderValue, &v.StartAt, &v.EndAt,
		&v.UsageLimit, &v.UsageCount, &v.Status, &v.Scope,
		&v.ProductIDs, &v.CategoryIDs)
	return v, err
}

// GetByCode looks up a voucher by its code. Lookup is case-insensitive.
func (s *Store) GetByCode(ctx context.Context, code string) (Row, error) {
	v, err := scanVoucher(s.Pool.QueryRow(ctx,
		voucherSelect+`
	WHERE UPPER(v.code) = UPPER($1)
	GROUP BY v.id`, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Row{}, pgx.ErrNoRows
		}
		return Row{}, fmt.Errorf("get voucher by code: %w", err)
	}
	return v, nil
}

// List returns all vouchers ordered by creation for the browse endpoint.
func (s *Store) List(ctx context.Context) ([]Row, error) {
	rows, err := s.Pool.Query(ctx, voucherSelect+`
	GROUP BY v.id
	ORDER BY v.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Create inserts a voucher and its scope rows in a single transaction.
func (s *Store) Create(ctx context.Context, params WriteParams) (Row, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Row{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id pgtype.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO vouchers (code, description, kind, amount, percent_bps, max_discount,
		                      min_order_value, start_at, end_at, usage_limit, status, scope)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		params.Code, params.Description, params.Kind, params.Amount, params.PercentBps,
		params.MaxDiscount, params.MinOrderValue, params.StartAt, params.EndAt,
		params.UsageLimit, params.Status, params.Scope).Scan(&id)
	if err != nil {
		return Row{}, err
	}
	if err := replaceScopes(ctx, tx, id, params); err != nil {
		return Row{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Row{}, err
	}
	return s.GetByCode(ctx, params.Code)
}

// Update replaces a voucher identified by code along with its scope rows.
func (s *Store) Update(ctx context.Context, code string, params WriteParams) (Row, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Row{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id pgtype.UUID
	err = tx.QueryRow(ctx, `
		UPDATE vouchers
		SET description = $2, kind = $3, amount = $4, percent_bps = $5, max_discount = $6,
		    min_order_value = $7, start_at = $8, end_at = $9, usage_limit = $10,
		    status = $11, scope = $12, updated_at = now()
		WHERE UPPER(code) = UPPER($1)
		RETURNING id`,
		code, params.Description, params.Kind, params.Amount, params.PercentBps,
		params.MaxDiscount, params.MinOrderValue, params.StartAt, params.EndAt,
		params.UsageLimit, params.Status, params.Scope).Scan(&id)
	if err != nil {
		return Row{}, err
	}
	if err := replaceScopes(ctx, tx, id, params); err != nil {
		return Row{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Row{}, err
	}
	return s.GetByCode(ctx, code)
}

// IncrementUsage bumps the usage counter. Used at settlement, never during
// quoting or validation.
func (s *Store) IncrementUsage(ctx context.Context, id pgtype.UUID) (bool, error) {
	var depleted bool
	err := s.Pool.QueryRow(ctx, `
		UPDATE vouchers
		SET usage_count = usage_count + 1,
		    status = CASE
		        WHEN usage_limit IS NOT NULL AND usage_count + 1 >= usage_limit THEN 'DEPLETED'
		        ELSE status
		    END,
		    updated_at = now()
		WHERE id = $1
		RETURNING status = 'DEPLETED'`, id).Scan(&depleted)
	if err != nil {
		return false, fmt.Errorf("increment voucher usage: %w", err)
	}
	return depleted, nil
}

func replaceScopes(ctx context.Context, tx pgx.Tx, id pgtype.UUID, params WriteParams) error {
	if _, err := tx.Exec(ctx, `DELETE FROM voucher_products WHERE voucher_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM voucher_categories WHERE voucher_id = $1`, id); err != nil {
		return err
	}
	for _, pid := range params.ProductIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO voucher_products (voucher_id, product_id) VALUES ($1, $2)`, id, pid); err != nil {
			return err
		}
	}
	for _, cid := range params.CategoryIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO voucher_categories (voucher_id, category_id) VALUES ($1, $2)`, id, cid); err != nil {
			return err
		}
	}
	return nil
}
