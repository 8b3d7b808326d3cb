package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CategoryRow mirrors a row in the categories table.
type CategoryRow struct {
	ID   pgtype.UUID
	Name string
	Icon pgtype.Text
	Sort int32
}

// ProductRow mirrors a row in the products table.
type ProductRow struct {
	ID             pgtype.UUID
	Name           string
	Description    pgtype.Text
	Image          pgtype.Text
	BasePrice      int64
	SaleKind       pgtype.Text
	SaleAmount     pgtype.Int8
	SalePercentBps pgtype.Int4
	CategoryIDs    []pgtype.UUID
}

// OptionGroupRow mirrors a row in the option_groups table.
type OptionGroupRow struct {
	ID             string
	ProductID      pgtype.UUID
	Label          string
	Mode           string
	DefaultOptions []string
	Sort           int32
}

// OptionRow mirrors a row in the options table.
type OptionRow struct {
	ID              string
	GroupID         string
	ProductID       pgtype.UUID
	Label           string
	PriceKind       pgtype.Text
	PriceAmount     pgtype.Int8
	PricePercentBps pgtype.Int4
	Sort            int32
}

// Store issues catalog reads against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// ListCategories returns all categories ordered for menu display.
func (s *Store) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, icon, sort
		FROM categories
		ORDER BY sort, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []CategoryRow
	for rows.Next() {
		var c CategoryRow
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Sort); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListProducts returns every product with its aggregated category ids.
func (s *Store) ListProducts(ctx context.Context) ([]ProductRow, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT p.id, p.name, p.description, p.image, p.base_price,
		       p.sale_kind, p.sale_amount, p.sale_percent_bps,
		       COALESCE(array_agg(pc.category_id) FILTER (WHERE pc.category_id IS NOT NULL), '{}')
		FROM products p
		LEFT JOIN product_categories pc ON pc.product_id = p.id
		GROUP BY p.id
		ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []ProductRow
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.BasePrice,
			&p.SaleKind, &p.SaleAmount, &p.SalePercentBps, &p.CategoryIDs); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct returns a single product row by id.
func (s *Store) GetProduct(ctx context.Context, id pgtype.UUID) (ProductRow, error) {
	var p ProductRow
	err := s.Pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.description, p.image, p.base_price,
		       p.sale_kind, p.sale_amount, p.sale_percent_bps,
		       COALESCE(array_agg(pc.category_id) FILTER (WHERE pc.category_id IS NOT NULL), '{}')
		FROM products p
		LEFT JOIN product_categories pc ON pc.product_id = p.id
		WHERE p.id = $1
		GROUP BY p.id`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.BasePrice,
			&p.SaleKind, &p.SaleAmount, &p.SalePercentBps, &p.CategoryIDs)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ProductRow{}, pgx.ErrNoRows
		}
		return ProductRow{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListOptionGroups returns variant groups for the given products.
func (s *Store) ListOptionGroups(ctx context.Context, productIDs []pgtype.UUID) ([]OptionGroupRow, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_id, label, mode, default_options, sort
		FROM option_groups
		WHERE product_id = ANY($1)
		ORDER BY product_id, sort`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list option groups: %w", err)
	}
	defer rows.Close()

	var out []OptionGroupRow
	for rows.Next() {
		var g OptionGroupRow
		if err := rows.Scan(&g.ID, &g.ProductID, &g.Label, &g.Mode, &g.DefaultOptions, &g.Sort); err != nil {
			return nil, fmt.Errorf("scan option group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListOptions returns the options belonging to the given products.
func (s *Store) ListOptions(ctx context.Context, productIDs []pgtype.UUID) ([]OptionRow, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, group_id, product_id, label, price_kind, price_amount, price_percent_bps, sort
		FROM options
		WHERE product_id = ANY($1)
		ORDER BY product_id, group_id, sort`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	var out []OptionRow
	for rows.Next() {
		var o OptionRow
		if err := rows.Scan(&o.ID, &o.GroupID, &o.ProductID, &o.Label, &o.PriceKind,
			&o.PriceAmount, &o.PricePercentBps, &o.Sort); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
