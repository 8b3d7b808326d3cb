package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type fakeStore struct {
	categories []CategoryRow
	products   []ProductRow
	groups     []OptionGroupRow
	options    []OptionRow
}

func (f *fakeStore) ListCategories(context.Context) ([]CategoryRow, error) {
	return f.categories, nil
}

func (f *fakeStore) ListProducts(context.Context) ([]ProductRow, error) {
	return f.products, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id pgtype.UUID) (ProductRow, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return ProductRow{}, pgx.ErrNoRows
}

func (f *fakeStore) ListOptionGroups(context.Context, []pgtype.UUID) ([]OptionGroupRow, error) {
	return f.groups, nil
}

func (f *fakeStore) ListOptions(context.Context, []pgtype.UUID) ([]OptionRow, error) {
	return f.options, nil
}

func pgUUID(t *testing.T, s string) pgtype.UUID {
	t.Helper()
	parsed, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("parse uuid: %v", err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func newTestService(t *testing.T) (*Service, pgtype.UUID) {
	t.Helper()
	productID := pgUUID(t, "11111111-1111-1111-1111-111111111111")
	categoryID := pgUUID(t, "22222222-2222-2222-2222-222222222222")
	store := &fakeStore{
		categories: []CategoryRow{{ID: categoryID, Name: "Coffee", Sort: 1}},
		products: []ProductRow{{
			ID:             productID,
			Name:           "Latte",
			BasePrice:      40_000,
			SaleKind:       pgtype.Text{String: "percent", Valid: true},
			SalePercentBps: pgtype.Int4{Int32: 1000, Valid: true},
			CategoryIDs:    []pgtype.UUID{categoryID},
		}},
		groups: []OptionGroupRow{{
			ID: "size", ProductID: productID, Label: "Size", Mode: "single",
			DefaultOptions: []string{"s"}, Sort: 1,
		}},
		options: []OptionRow{
			{ID: "s", GroupID: "size", ProductID: productID, Label: "Small", Sort: 1},
			{ID: "m", GroupID: "size", ProductID: productID, Label: "Medium",
				PriceKind: pgtype.Text{String: "fixed", Valid: true}, PriceAmount: pgtype.Int8{Int64: 5_000, Valid: true}, Sort: 2},
		},
	}
	svc, err := NewService(ServiceConfig{Store: store})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, productID
}

func TestMenuHandler(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(HandlerConfig{Service: svc})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/menu", nil)
	rec := httptest.NewRecorder()
	h.Menu(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data Menu `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Data.Categories) != 1 || len(body.Data.Products) != 1 {
		t.Fatalf("unexpected menu %+v", body.Data)
	}
	p := body.Data.Products[0]
	if p.BasePrice != 40_000 || p.ListedPrice != 36_000 || !p.OnSale {
		t.Fatalf("sale price not applied: %+v", p)
	}
	if p.DisplayPrice != "36.000đ" {
		t.Fatalf("unexpected display price %q", p.DisplayPrice)
	}
}

func TestProductHandlerNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(HandlerConfig{Service: svc})

	router := chi.NewRouter()
	router.Get("/api/v1/products/{id}", h.Product)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/33333333-3333-3333-3333-333333333333", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestProductHandlerBuildsView(t *testing.T) {
	svc, productID := newTestService(t)
	h := NewHandler(HandlerConfig{Service: svc})

	router := chi.NewRouter()
	router.Get("/api/v1/products/{id}", h.Product)

	id := uuid.UUID(productID.Bytes).String()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data ProductView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	view := body.Data
	if view.ID != id || view.Name != "Latte" {
		t.Fatalf("unexpected product %+v", view)
	}
	if !view.OnSale || view.ListedPrice != 36_000 {
		t.Fatalf("sale not reflected: %+v", view)
	}
	if len(view.Variants) != 1 {
		t.Fatalf("expected one variant group, got %+v", view.Variants)
	}
	vg := view.Variants[0]
	if vg.ID != "size" || len(vg.Options) != 2 {
		t.Fatalf("variant group not assembled: %+v", vg)
	}
	if vg.Options[1].PriceDisplay != "+5.000đ" {
		t.Fatalf("unexpected option price display %q", vg.Options[1].PriceDisplay)
	}
}

func TestPricingProducts(t *testing.T) {
	svc, productID := newTestService(t)

	id := uuid.UUID(productID.Bytes).String()
	models, err := svc.PricingProducts(context.Background(), []string{id, "not-a-uuid"})
	if err != nil {
		t.Fatalf("pricing products: %v", err)
	}
	model, ok := models[id]
	if !ok {
		t.Fatalf("expected model for %s", id)
	}
	if len(model.Variants) != 1 || len(model.Variants[0].Options) != 2 {
		t.Fatalf("variants not assembled: %+v", model.Variants)
	}
	if model.Sale == nil {
		t.Fatalf("sale adjustment missing")
	}
}
