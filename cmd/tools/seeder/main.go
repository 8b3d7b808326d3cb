// Seeder populates the database with demo catalog, voucher, and config
// data for local development. Safe to re-run: every statement upserts.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

type seededProduct struct {
	id   string
	name string
}

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	fmt.Println("== seeding categories ==")
	categories, err := seedCategories(ctx, conn)
	if err != nil {
		log.Fatalf("seed categories: %v", err)
	}

	fmt.Println("== seeding products ==")
	products, err := seedProducts(ctx, conn, categories)
	if err != nil {
		log.Fatalf("seed products: %v", err)
	}

	fmt.Println("== seeding vouchers ==")
	if err := seedVouchers(ctx, conn, categories, products); err != nil {
		log.Fatalf("seed vouchers: %v", err)
	}

	fmt.Println("== seeding store config ==")
	if err := seedStoreConfig(ctx, conn); err != nil {
		log.Fatalf("seed store config: %v", err)
	}

	fmt.Println("== done ==")
}

func seedCategories(ctx context.Context, conn *pgx.Conn) (map[string]string, error) {
	rows := []struct {
		name string
		icon string
		sort int
	}{
		{"Coffee", "coffee", 1},
		{"Tea", "tea", 2},
		{"Snacks", "snack", 3},
	}

	out := make(map[string]string, len(rows))
	for _, c := range rows {
		id, err := upsertCategory(ctx, conn, c.name, c.icon, c.sort)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", c.name, err)
		}
		out[c.name] = id
		log.Printf("category %-8s %s", c.name, id)
	}
	return out, nil
}

func upsertCategory(ctx context.Context, conn *pgx.Conn, name, icon string, sort int) (string, error) {
	var id string
	err := conn.QueryRow(ctx, `SELECT id FROM categories WHERE name = $1`, name).Scan(&id)
	if err == nil {
		_, err = conn.Exec(ctx, `UPDATE categories SET icon = $2, sort = $3 WHERE id = $1`, id, icon, sort)
		return id, err
	}
	if err != pgx.ErrNoRows {
		return "", err
	}
	err = conn.QueryRow(ctx,
		`INSERT INTO categories (name, icon, sort) VALUES ($1, $2, $3) RETURNING id`,
		name, icon, sort,
	).Scan(&id)
	return id, err
}

func seedProducts(ctx context.Context, conn *pgx.Conn, categories map[string]string) (map[string]seededProduct, error) {
	type productSeed struct {
		name           string
		description    string
		basePrice      int64
		saleKind       string
		saleAmount     int64
		salePercentBps int32
		categories     []string
	}

	seeds := []productSeed{
		{
			name:        "Cà Phê Sữa Đá",
			description: "Vietnamese iced coffee with condensed milk",
			basePrice:   35_000,
			categories:  []string{"Coffee"},
		},
		{
			name:           "Bạc Xỉu",
			description:    "Milk coffee, extra milk",
			basePrice:      39_000,
			saleKind:       "percent",
			salePercentBps: 1_000,
			categories:     []string{"Coffee"},
		},
		{
			name:        "Trà Đào Cam Sả",
			description: "Peach tea with orange and lemongrass",
			basePrice:   45_000,
			saleKind:    "fixed",
			saleAmount:  5_000,
			categories:  []string{"Tea"},
		},
		{
			name:        "Trà Sữa Trân Châu",
			description: "Milk tea with tapioca pearls",
			basePrice:   42_000,
			categories:  []string{"Tea"},
		},
		{
			name:        "Bánh Mì Que",
			description: "Crispy baguette stick with pâté",
			basePrice:   15_000,
			categories:  []string{"Snacks"},
		},
	}

	out := make(map[string]seededProduct, len(seeds))
	for _, p := range seeds {
		var saleKind, saleAmount, salePercentBps any
		if p.saleKind != "" {
			saleKind = p.saleKind
		}
		if p.saleKind == "fixed" {
			saleAmount = p.saleAmount
		}
		if p.saleKind == "percent" {
			salePercentBps = p.salePercentBps
		}

		var id string
		err := conn.QueryRow(ctx, `SELECT id FROM products WHERE name = $1`, p.name).Scan(&id)
		switch err {
		case nil:
			_, err = conn.Exec(ctx,
				`UPDATE products
				 SET description = $2, base_price = $3, sale_kind = $4,
				     sale_amount = $5, sale_percent_bps = $6, updated_at = now()
				 WHERE id = $1`,
				id, p.description, p.basePrice, saleKind, saleAmount, salePercentBps,
			)
		case pgx.ErrNoRows:
			err = conn.QueryRow(ctx,
				`INSERT INTO products (name, description, base_price, sale_kind, sale_amount, sale_percent_bps)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 RETURNING id`,
				p.name, p.description, p.basePrice, saleKind, saleAmount, salePercentBps,
			).Scan(&id)
		}
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.name, err)
		}

		for _, cat := range p.categories {
			catID, ok := categories[cat]
			if !ok {
				return nil, fmt.Errorf("product %s references unknown category %s", p.name, cat)
			}
			if _, err := conn.Exec(ctx,
				`INSERT INTO product_categories (product_id, category_id)
				 VALUES ($1, $2)
				 ON CONFLICT (product_id, category_id) DO NOTHING`,
				id, catID,
			); err != nil {
				return nil, fmt.Errorf("product %s category link: %w", p.name, err)
			}
		}

		if err := seedOptions(ctx, conn, id, p.name); err != nil {
			return nil, err
		}

		out[p.name] = seededProduct{id: id, name: p.name}
		log.Printf("product %-22s %s", p.name, id)
	}
	return out, nil
}

func seedOptions(ctx context.Context, conn *pgx.Conn, productID, productName string) error {
	// Drinks get size and topping groups; snacks stay plain.
	if productName == "Bánh Mì Que" {
		return nil
	}

	if _, err := conn.Exec(ctx,
		`INSERT INTO option_groups (id, product_id, label, mode, default_options, sort)
		 VALUES ('size', $1, 'Size', 'single', '{m}', 1)
		 ON CONFLICT (product_id, id) DO UPDATE
		 SET label = EXCLUDED.label, mode = EXCLUDED.mode,
		     default_options = EXCLUDED.default_options, sort = EXCLUDED.sort`,
		productID,
	); err != nil {
		return fmt.Errorf("option group size for %s: %w", productName, err)
	}
	if _, err := conn.Exec(ctx,
		`INSERT INTO option_groups (id, product_id, label, mode, default_options, sort)
		 VALUES ('topping', $1, 'Topping', 'multiple', '{}', 2)
		 ON CONFLICT (product_id, id) DO UPDATE
		 SET label = EXCLUDED.label, mode = EXCLUDED.mode,
		     default_options = EXCLUDED.default_options, sort = EXCLUDED.sort`,
		productID,
	); err != nil {
		return fmt.Errorf("option group topping for %s: %w", productName, err)
	}

	options := []struct {
		id              string
		groupID         string
		label           string
		priceKind       any
		priceAmount     any
		pricePercentBps any
		sort            int
	}{
		{id: "s", groupID: "size", label: "Nhỏ", sort: 1},
		{id: "m", groupID: "size", label: "Vừa", priceKind: "fixed", priceAmount: int64(5_000), sort: 2},
		{id: "l", groupID: "size", label: "Lớn", priceKind: "percent", pricePercentBps: int32(2_000), sort: 3},
		{id: "pearl", groupID: "topping", label: "Trân châu", priceKind: "fixed", priceAmount: int64(7_000), sort: 1},
		{id: "pudding", groupID: "topping", label: "Pudding", priceKind: "fixed", priceAmount: int64(8_000), sort: 2},
	}
	for _, o := range options {
		if _, err := conn.Exec(ctx,
			`INSERT INTO options (id, group_id, product_id, label, price_kind, price_amount, price_percent_bps, sort)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (product_id, group_id, id) DO UPDATE
			 SET label = EXCLUDED.label, price_kind = EXCLUDED.price_kind,
			     price_amount = EXCLUDED.price_amount,
			     price_percent_bps = EXCLUDED.price_percent_bps, sort = EXCLUDED.sort`,
			o.id, o.groupID, productID, o.label, o.priceKind, o.priceAmount, o.pricePercentBps, o.sort,
		); err != nil {
			return fmt.Errorf("option %s/%s for %s: %w", o.groupID, o.id, productName, err)
		}
	}
	return nil
}

func seedVouchers(ctx context.Context, conn *pgx.Conn, categories map[string]string, products map[string]seededProduct) error {
	now := time.Now()
	start := now.AddDate(0, 0, -7)
	end := now.AddDate(0, 1, 0)

	type voucherSeed struct {
		code          string
		description   string
		kind          string
		amount        int64
		percentBps    any
		maxDiscount   any
		minOrderValue int64
		scope         string
		categoryNames []string
		productNames  []string
	}

	seeds := []voucherSeed{
		{
			code:        "WELCOME10",
			description: "10% off your first order, up to 20.000đ",
			kind:        "percent",
			percentBps:  int32(1_000),
			maxDiscount: int64(20_000),
			scope:       "universal",
		},
		{
			code:          "FREESHIP30",
			description:   "30.000đ off orders from 150.000đ",
			kind:          "fixed",
			amount:        30_000,
			minOrderValue: 150_000,
			scope:         "universal",
		},
		{
			code:          "TEATIME",
			description:   "15% off tea drinks",
			kind:          "percent",
			percentBps:    int32(1_500),
			scope:         "category",
			categoryNames: []string{"Tea"},
		},
		{
			code:         "BACXIU5K",
			description:  "5.000đ off Bạc Xỉu",
			kind:         "fixed",
			amount:       5_000,
			scope:        "product",
			productNames: []string{"Bạc Xỉu"},
		},
	}

	for _, v := range seeds {
		var id string
		if err := conn.QueryRow(ctx,
			`INSERT INTO vouchers (code, description, kind, amount, percent_bps, max_discount,
			                       min_order_value, start_at, end_at, status, scope)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'ACTIVE', $10)
			 ON CONFLICT (UPPER(code)) DO UPDATE
			 SET description = EXCLUDED.description, kind = EXCLUDED.kind,
			     amount = EXCLUDED.amount, percent_bps = EXCLUDED.percent_bps,
			     max_discount = EXCLUDED.max_discount,
			     min_order_value = EXCLUDED.min_order_value,
			     start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at,
			     scope = EXCLUDED.scope, updated_at = now()
			 RETURNING id`,
			v.code, v.description, v.kind, v.amount, v.percentBps, v.maxDiscount,
			v.minOrderValue, start, end, v.scope,
		).Scan(&id); err != nil {
			return fmt.Errorf("voucher %s: %w", v.code, err)
		}

		for _, name := range v.categoryNames {
			catID, ok := categories[name]
			if !ok {
				return fmt.Errorf("voucher %s references unknown category %s", v.code, name)
			}
			if _, err := conn.Exec(ctx,
				`INSERT INTO voucher_categories (voucher_id, category_id)
				 VALUES ($1, $2)
				 ON CONFLICT (voucher_id, category_id) DO NOTHING`,
				id, catID,
			); err != nil {
				return fmt.Errorf("voucher %s category link: %w", v.code, err)
			}
		}
		for _, name := range v.productNames {
			prod, ok := products[name]
			if !ok {
				return fmt.Errorf("voucher %s references unknown product %s", v.code, name)
			}
			if _, err := conn.Exec(ctx,
				`INSERT INTO voucher_products (voucher_id, product_id)
				 VALUES ($1, $2)
				 ON CONFLICT (voucher_id, product_id) DO NOTHING`,
				id, prod.id,
			); err != nil {
				return fmt.Errorf("voucher %s product link: %w", v.code, err)
			}
		}
		log.Printf("voucher %-11s %s", v.code, id)
	}
	return nil
}

func seedStoreConfig(ctx context.Context, conn *pgx.Conn) error {
	entries := map[string]string{
		"loyalty_earn_rate_bps": "100",
	}
	for key, value := range entries {
		if _, err := conn.Exec(ctx,
			`INSERT INTO store_config (key, value)
			 VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			key, value,
		); err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
		log.Printf("config %s = %s", key, value)
	}
	return nil
}
