package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-cafe/internal/pricing"
)

// Status values for the order lifecycle. Orders are settled asynchronously
// by the worker after creation.
const (
	StatusPending  = "PENDING"
	StatusSettled  = "SETTLED"
	StatusCanceled = "CANCELED"
)

// Row mirrors an order record.
type Row struct {
	ID               pgtype.UUID
	UserID           string
	Status           string
	Subtotal         int64
	EligibleSubtotal int64
	Discount         int64
	ShippingFee      int64
	FinalPrice       int64
	EarnedPoints     int64
	VoucherID        pgtype.UUID
	VoucherCode      pgtype.Text
	VoucherError     pgtype.Text
	Address          []byte
	Note             pgtype.Text
	CreatedAt        time.Time
}

// ItemRow mirrors an order_items record.
type ItemRow struct {
	ID          pgtype.UUID
	OrderID     pgtype.UUID
	ProductID   string
	ProductName string
	UnitPrice   int64
	Qty         int32
	LineTotal   int64
	Selections  []byte
}

// CreateParams carries everything needed to persist an order with its items.
type CreateParams struct {
	UserID       string
	Breakdown    pricing.Breakdown
	VoucherID    pgtype.UUID
	VoucherCode  pgtype.Text
	VoucherError pgtype.Text
	Address      []byte
	Note         pgtype.Text
	Items        []CreateItem
}

// CreateItem is one priced line to persist.
type CreateItem struct {
	ProductID   string
	ProductName string
	UnitPrice   pricing.Money
	Qty         int
	Selections  map[string][]string
}

// Store issues order reads and writes against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// CreateTx inserts the order and its items inside the caller's transaction.
func (s *Store) CreateTx(ctx context.Context, tx pgx.Tx, params CreateParams) (Row, error) {
	b := params.Breakdown
	var row Row
	err := tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, status, subtotal, eligible_subtotal, discount,
		                    shipping_fee, final_price, earned_points,
		                    voucher_id, voucher_code, voucher_error, address, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, user_id, status, subtotal, eligible_subtotal, discount,
		          shipping_fee, final_price, earned_points, voucher_id,
		          voucher_code, voucher_error, address, note, created_at`,
		params.UserID, StatusPending, b.Subtotal, b.EligibleSubtotal, b.Discount,
		b.ShippingFee, b.FinalPrice, b.EarnedPoints,
		params.VoucherID, params.VoucherCode, params.VoucherError, params.Address, params.Note).
		Scan(&row.ID, &row.UserID, &row.Status, &row.Subtotal, &row.EligibleSubtotal,
			&row.Discount, &row.ShippingFee, &row.FinalPrice, &row.EarnedPoints,
			&row.VoucherID, &row.VoucherCode, &row.VoucherError, &row.Address, &row.Note, &row.CreatedAt)
	if err != nil {
		return Row{}, fmt.Errorf("create order: %w", err)
	}
	for _, item := range params.Items {
		selections, err := json.Marshal(item.Selections)
		if err != nil {
			return Row{}, fmt.Errorf("encode selections: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, unit_price, qty, line_total, selections)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			row.ID, item.ProductID, item.ProductName, int64(item.UnitPrice), item.Qty,
			int64(item.UnitPrice)*int64(item.Qty), selections)
		if err != nil {
			return Row{}, fmt.Errorf("create order item: %w", err)
		}
	}
	return row, nil
}

// GetForUser loads an order owned by the given user.
func (s *Store) GetForUser(ctx context.Context, id pgtype.UUID, userID string) (Row, []ItemRow, error) {
	var row Row
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, status, subtotal, eligible_subtotal, discount,
		       shipping_fee, final_price, earned_points, voucher_id,
		       voucher_code, voucher_error, address, note, created_at
		FROM orders WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(&row.ID, &row.UserID, &row.Status, &row.Subtotal, &row.EligibleSubtotal,
			&row.Discount, &row.ShippingFee, &row.FinalPrice, &row.EarnedPoints,
			&row.VoucherID, &row.VoucherCode, &row.VoucherError, &row.Address, &row.Note, &row.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Row{}, nil, pgx.ErrNoRows
		}
		return Row{}, nil, fmt.Errorf("get order: %w", err)
	}
	items, err := s.listItems(ctx, id)
	if err != nil {
		return Row{}, nil, err
	}
	return row, items, nil
}

// ListForUser pages through a user's orders, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string, limit, offset int32) ([]Row, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, status, subtotal, eligible_subtotal, discount,
		       shipping_fee, final_price, earned_points, voucher_id,
		       voucher_code, voucher_error, address, note, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.UserID, &row.Status, &row.Subtotal, &row.EligibleSubtotal,
			&row.Discount, &row.ShippingFee, &row.FinalPrice, &row.EarnedPoints,
			&row.VoucherID, &row.VoucherCode, &row.VoucherError, &row.Address, &row.Note, &row.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// MarkSettled transitions a pending order to SETTLED. It reports whether the
// transition happened so the settlement task stays idempotent.
func (s *Store) MarkSettled(ctx context.Context, id pgtype.UUID) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`, id, StatusSettled, StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark order settled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel transitions a pending order to CANCELED. Settled orders are final
// and cannot be canceled here.
func (s *Store) Cancel(ctx context.Context, id pgtype.UUID) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`, id, StatusCanceled, StatusPending)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListRecent pages through all orders for the back office, newest first.
// An empty status lists every state.
func (s *Store) ListRecent(ctx context.Context, status string, limit, offset int32) ([]Row, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, status, subtotal, eligible_subtotal, discount,
		       shipping_fee, final_price, earned_points, voucher_id,
		       voucher_code, voucher_error, address, note, created_at
		FROM orders WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.UserID, &row.Status, &row.Subtotal, &row.EligibleSubtotal,
			&row.Discount, &row.ShippingFee, &row.FinalPrice, &row.EarnedPoints,
			&row.VoucherID, &row.VoucherCode, &row.VoucherError, &row.Address, &row.Note, &row.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

func (s *Store) listItems(ctx context.Context, orderID pgtype.UUID) ([]ItemRow, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, qty, line_total, selections
		FROM order_items WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var out []ItemRow
	for rows.Next() {
		var item ItemRow
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.UnitPrice, &item.Qty, &item.LineTotal, &item.Selections); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
