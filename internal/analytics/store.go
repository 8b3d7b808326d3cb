package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store answers analytics queries straight from the orders tables. Volumes
// here are a single storefront's, so no materialized views yet.
type Store struct {
	Pool *pgxpool.Pool
}

// SalesDaily implements Querier. Revenue counts settled orders only.
func (s *Store) SalesDaily(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT date_trunc('day', created_at) AS day,
		        COUNT(*) AS all_orders,
		        COUNT(*) FILTER (WHERE status = 'SETTLED') AS settled_orders,
		        COALESCE(SUM(final_price) FILTER (WHERE status = 'SETTLED'), 0) AS revenue
		 FROM orders
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY 1
		 ORDER BY 1`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailySales
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Day, &d.AllOrders, &d.SettledOrders, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopProducts implements Querier, ranking items of settled orders by quantity.
func (s *Store) TopProducts(ctx context.Context, limit, offset int32) ([]TopProduct, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT oi.product_id, oi.product_name,
		        SUM(oi.qty)::bigint AS quantity,
		        SUM(oi.line_total) AS revenue
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.status = 'SETTLED'
		 GROUP BY oi.product_id, oi.name
		 ORDER BY quantity DESC, revenue DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopProduct
	for rows.Next() {
		var t TopProduct
		if err := rows.Scan(&t.ProductID, &t.Name, &t.Quantity, &t.Revenue); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
