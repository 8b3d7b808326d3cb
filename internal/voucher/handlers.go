package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/obs"
	"github.com/noah-isme/backend-cafe/internal/pricing"
)

type productResolver interface {
	PricingProducts(ctx context.Context, ids []string) (map[string]pricing.Product, error)
}

// Handler exposes voucher browse, validation, and admin management endpoints.
type Handler struct {
	Svc     *Service
	Store   *Store
	Catalog productResolver
}

type voucherPayload struct {
	Code          string     `json:"code"`
	Description   string     `json:"description"`
	Kind          string     `json:"kind"`
	Amount        int64      `json:"amount"`
	PercentBps    *int32     `json:"percentBps"`
	MaxDiscount   *int64     `json:"maxDiscount"`
	MinOrderValue int64      `json:"minOrderValue"`
	StartAt       *time.Time `json:"startAt"`
	EndAt         *time.Time `json:"endAt"`
	UsageLimit    *int32     `json:"usageLimit"`
	Status        string     `json:"status"`
	Scope         string     `json:"scope"`
	ProductIDs    []string   `json:"productIds"`
	CategoryIDs   []string   `json:"categoryIds"`
}

type cartRequest struct {
	Items []cart.ItemPayload `json:"items"`
}

// Browse handles POST /api/v1/vouchers/browse: every voucher annotated with
// eligibility for the submitted cart, best savings first.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	model, err := h.buildCart(r.Context(), req.Items)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to resolve products", nil)
		return
	}
	candidates, err := h.Svc.Browse(r.Context(), model)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list vouchers", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": candidates})
}

// Check handles POST /api/v1/vouchers/{code}/check: a dry-run eligibility
// verdict for the submitted cart. Invalid codes return a verdict, not an
// error status.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	model, err := h.buildCart(r.Context(), req.Items)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to resolve products", nil)
		return
	}
	verdict, err := h.Svc.Check(r.Context(), code, model)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to check voucher", nil)
		return
	}
	if obs.VoucherCheckTotal != nil {
		label := "invalid"
		if verdict.Valid {
			label = "valid"
		}
		obs.VoucherCheckTotal.WithLabelValues(label).Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"valid":  verdict.Valid,
		"reason": verdict.Reason,
	}})
}

// Create handles POST /api/v1/admin/vouchers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher store not configured", nil)
		return
	}
	var payload voucherPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	params, err := buildWriteParams(payload, true)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	row, err := h.Store.Create(r.Context(), params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "voucher code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create voucher", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": FromRow(row)})
}

// Update handles PUT /api/v1/admin/vouchers/{code}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher store not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	var payload voucherPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	params, err := buildWriteParams(payload, false)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	row, err := h.Store.Update(r.Context(), code, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update voucher", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": FromRow(row)})
}

func (h *Handler) buildCart(ctx context.Context, items []cart.ItemPayload) (pricing.Cart, error) {
	if len(items) == 0 {
		return pricing.Cart{}, nil
	}
	products, err := h.Catalog.PricingProducts(ctx, cart.ProductIDs(items))
	if err != nil {
		return nil, err
	}
	return cart.BuildCart(products, items), nil
}

func buildWriteParams(payload voucherPayload, requireCode bool) (WriteParams, error) {
	code := strings.TrimSpace(payload.Code)
	if requireCode && code == "" {
		return WriteParams{}, errors.New("code is required")
	}
	kind := strings.ToLower(strings.TrimSpace(payload.Kind))
	switch kind {
	case "fixed", "percent":
	case "":
		kind = "fixed"
	default:
		return WriteParams{}, errors.New("kind must be fixed or percent")
	}
	if kind == "percent" && (payload.PercentBps == nil || *payload.PercentBps <= 0) {
		return WriteParams{}, errors.New("percentBps is required for percent vouchers")
	}
	if kind == "fixed" && payload.Amount <= 0 {
		return WriteParams{}, errors.New("amount must be positive for fixed vouchers")
	}
	scope := strings.ToLower(strings.TrimSpace(payload.Scope))
	switch scope {
	case "universal", "product", "category":
	case "":
		scope = "universal"
	default:
		return WriteParams{}, errors.New("scope must be universal, product, or category")
	}
	status := strings.ToUpper(strings.TrimSpace(payload.Status))
	switch status {
	case "ACTIVE", "UPCOMING", "EXPIRED", "DEPLETED":
	case "":
		status = "ACTIVE"
	default:
		return WriteParams{}, errors.New("invalid status")
	}
	if payload.StartAt == nil || payload.EndAt == nil {
		return WriteParams{}, errors.New("startAt and endAt are required")
	}
	if payload.EndAt.Before(*payload.StartAt) {
		return WriteParams{}, errors.New("endAt must be after startAt")
	}

	params := WriteParams{
		Code:          code,
		Kind:          kind,
		Amount:        payload.Amount,
		MinOrderValue: payload.MinOrderValue,
		StartAt:       *payload.StartAt,
		EndAt:         *payload.EndAt,
		Status:        status,
		Scope:         scope,
	}
	if desc := strings.TrimSpace(payload.Description); desc != "" {
		params.Description = pgtype.Text{String: desc, Valid: true}
	}
	if payload.PercentBps != nil {
		params.PercentBps = pgtype.Int4{Int32: *payload.PercentBps, Valid: true}
	}
	if payload.MaxDiscount != nil {
		params.MaxDiscount = pgtype.Int8{Int64: *payload.MaxDiscount, Valid: true}
	}
	if payload.UsageLimit != nil {
		params.UsageLimit = pgtype.Int4{Int32: *payload.UsageLimit, Valid: true}
	}
	var err error
	if params.ProductIDs, err = toUUIDArray(payload.ProductIDs); err != nil {
		return WriteParams{}, err
	}
	if params.CategoryIDs, err = toUUIDArray(payload.CategoryIDs); err != nil {
		return WriteParams{}, err
	}
	return params, nil
}

func toUUIDArray(values []string) ([]pgtype.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]pgtype.UUID, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		parsed, err := parseUUID(trimmed)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
