package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/pricing"
)

type storeProvider interface {
	ListCategories(ctx context.Context) ([]CategoryRow, error)
	ListProducts(ctx context.Context) ([]ProductRow, error)
	GetProduct(ctx context.Context, id pgtype.UUID) (ProductRow, error)
	ListOptionGroups(ctx context.Context, productIDs []pgtype.UUID) ([]OptionGroupRow, error)
	ListOptions(ctx context.Context, productIDs []pgtype.UUID) ([]OptionRow, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	store storeProvider
	cache *Cache
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store storeProvider
	Cache *Cache
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: cfg.Store, cache: cfg.Cache}, nil
}

// Category represents the public category payload.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// ProductView is the public product payload with display prices attached.
type ProductView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Image        string        `json:"image,omitempty"`
	BasePrice    pricing.Money `json:"basePrice"`
	ListedPrice  pricing.Money `json:"listedPrice"`
	DisplayPrice string        `json:"displayPrice"`
	OnSale       bool          `json:"onSale"`
	CategoryIDs  []string      `json:"categoryIds"`
	Variants     []VariantView `json:"variants,omitempty"`
}

// VariantView describes a selectable variant group on a product.
type VariantView struct {
	ID      string       `json:"id"`
	Label   string       `json:"label"`
	Mode    string       `json:"mode"`
	Default []string     `json:"default,omitempty"`
	Options []OptionView `json:"options"`
}

// OptionView describes one choice within a variant group.
type OptionView struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	PriceDisplay string `json:"priceDisplay,omitempty"`
}

// Menu is the full storefront payload: categories plus products.
type Menu struct {
	Categories []Category    `json:"categories"`
	Products   []ProductView `json:"products"`
}

// GetMenu assembles the full menu, served from cache when warm.
func (s *Service) GetMenu(ctx context.Context) (Menu, error) {
	if s.cache != nil {
		var cached Menu
		ok, err := s.cache.GetJSON(ctx, menuCacheKey, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return Menu{}, err
	}
	prods, err := s.store.ListProducts(ctx)
	if err != nil {
		return Menu{}, err
	}
	ids := make([]pgtype.UUID, 0, len(prods))
	for _, p := range prods {
		ids = append(ids, p.ID)
	}
	groups, opts, err := s.loadVariants(ctx, ids)
	if err != nil {
		return Menu{}, err
	}

	menu := Menu{
		Categories: make([]Category, 0, len(cats)),
		Products:   make([]ProductView, 0, len(prods)),
	}
	for _, c := range cats {
		menu.Categories = append(menu.Categories, Category{
			ID:   uuidString(c.ID),
			Name: c.Name,
			Icon: c.Icon.String,
		})
	}
	for _, p := range prods {
		menu.Products = append(menu.Products, buildProductView(p, groups[uuidString(p.ID)], opts))
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, menuCacheKey, menu)
	}
	return menu, nil
}

// GetProductView returns a single product for display.
func (s *Service) GetProductView(ctx context.Context, id string) (ProductView, error) {
	id = strings.TrimSpace(id)
	pgID, err := toUUID(id)
	if err != nil {
		return ProductView{}, badRequest("id", "invalid product id", err)
	}
	if s.cache != nil {
		var cached ProductView
		ok, err := s.cache.GetJSON(ctx, productCacheKey(id), &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	row, err := s.store.GetProduct(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductView{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return ProductView{}, err
	}
	groups, opts, err := s.loadVariants(ctx, []pgtype.UUID{row.ID})
	if err != nil {
		return ProductView{}, err
	}
	view := buildProductView(row, groups[uuidString(row.ID)], opts)
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, productCacheKey(id), view)
	}
	return view, nil
}

// PricingProducts resolves the given product ids into pricing models keyed by
// id. Missing ids are simply absent from the result; callers decide whether
// that is an error.
func (s *Service) PricingProducts(ctx context.Context, ids []string) (map[string]pricing.Product, error) {
	pgIDs := make([]pgtype.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := toUUID(raw)
		if err != nil {
			continue
		}
		pgIDs = append(pgIDs, id)
	}
	if len(pgIDs) == 0 {
		return map[string]pricing.Product{}, nil
	}
	prods, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(pgIDs))
	for _, id := range pgIDs {
		wanted[uuidString(id)] = struct{}{}
	}
	groups, opts, err := s.loadVariants(ctx, pgIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]pricing.Product, len(wanted))
	for _, p := range prods {
		id := uuidString(p.ID)
		if _, ok := wanted[id]; !ok {
			continue
		}
		out[id] = buildPricingProduct(p, groups[id], opts)
	}
	return out, nil
}

func (s *Service) loadVariants(ctx context.Context, ids []pgtype.UUID) (map[string][]OptionGroupRow, map[string][]OptionRow, error) {
	groupRows, err := s.store.ListOptionGroups(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	optRows, err := s.store.ListOptions(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	groups := make(map[string][]OptionGroupRow)
	for _, g := range groupRows {
		key := uuidString(g.ProductID)
		groups[key] = append(groups[key], g)
	}
	opts := make(map[string][]OptionRow)
	for _, o := range optRows {
		key := uuidString(o.ProductID) + "/" + o.GroupID
		opts[key] = append(opts[key], o)
	}
	return groups, opts, nil
}

func buildProductView(p ProductRow, groups []OptionGroupRow, opts map[string][]OptionRow) ProductView {
	model := buildPricingProduct(p, groups, opts)
	listed := pricing.UnitPrice(model, nil)
	view := ProductView{
		ID:           model.ID,
		Name:         model.Name,
		Description:  p.Description.String,
		Image:        p.Image.String,
		BasePrice:    model.BasePrice,
		ListedPrice:  listed,
		DisplayPrice: pricing.FormatVND(listed),
		OnSale:       model.Sale != nil,
		CategoryIDs:  model.CategoryIDs,
	}
	for _, g := range groups {
		vv := VariantView{
			ID:      g.ID,
			Label:   g.Label,
			Mode:    g.Mode,
			Default: g.DefaultOptions,
		}
		for _, o := range opts[uuidString(p.ID)+"/"+g.ID] {
			ov := OptionView{ID: o.ID, Label: o.Label}
			if adj := rowAdjustment(o.PriceKind, o.PriceAmount, o.PricePercentBps); adj != nil {
				switch adj.Kind {
				case pricing.AdjustFixed:
					ov.PriceDisplay = "+" + pricing.FormatVND(adj.Amount)
				case pricing.AdjustPercent:
					ov.PriceDisplay = fmt.Sprintf("+%d%%", adj.PercentBps/100)
				}
			}
			vv.Options = append(vv.Options, ov)
		}
		view.Variants = append(view.Variants, vv)
	}
	return view
}

func buildPricingProduct(p ProductRow, groups []OptionGroupRow, opts map[string][]OptionRow) pricing.Product {
	id := uuidString(p.ID)
	model := pricing.Product{
		ID:        id,
		Name:      p.Name,
		BasePrice: p.BasePrice,
		Sale:      rowAdjustment(p.SaleKind, p.SaleAmount, p.SalePercentBps),
	}
	for _, cid := range p.CategoryIDs {
		model.CategoryIDs = append(model.CategoryIDs, uuidString(cid))
	}
	for _, g := range groups {
		vg := pricing.VariantGroup{
			ID:    g.ID,
			Label: g.Label,
			Mode:  variantMode(g.Mode),
		}
		if vg.Mode == pricing.SelectSingle && len(g.DefaultOptions) > 0 {
			vg.Default = pricing.SingleChoice(g.DefaultOptions[0])
		} else if vg.Mode == pricing.SelectMultiple {
			vg.Default = pricing.MultiChoice(g.DefaultOptions...)
		}
		for _, o := range opts[id+"/"+g.ID] {
			vg.Options = append(vg.Options, pricing.Option{
				ID:          o.ID,
				Label:       o.Label,
				PriceChange: rowAdjustment(o.PriceKind, o.PriceAmount, o.PricePercentBps),
			})
		}
		model.Variants = append(model.Variants, vg)
	}
	return model
}

func rowAdjustment(kind pgtype.Text, amount pgtype.Int8, bps pgtype.Int4) *pricing.Adjustment {
	if !kind.Valid {
		return nil
	}
	switch kind.String {
	case "fixed":
		return &pricing.Adjustment{Kind: pricing.AdjustFixed, Amount: amount.Int64}
	case "percent":
		return &pricing.Adjustment{Kind: pricing.AdjustPercent, PercentBps: bps.Int32}
	default:
		return nil
	}
}

func variantMode(mode string) pricing.SelectionMode {
	if mode == "multiple" {
		return pricing.SelectMultiple
	}
	return pricing.SelectSingle
}

func toUUID(value string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return ""
	}
	return u.String()
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
