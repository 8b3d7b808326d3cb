package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/pricing"
)

// Handler exposes the customer order history endpoints.
type Handler struct {
	Store *Store
}

type orderView struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Subtotal     int64           `json:"subtotal"`
	Discount     int64           `json:"discount"`
	ShippingFee  int64           `json:"shippingFee"`
	FinalPrice   int64           `json:"finalPrice"`
	DisplayTotal string          `json:"displayTotal"`
	EarnedPoints int64           `json:"earnedPoints"`
	VoucherCode  string          `json:"voucherCode,omitempty"`
	VoucherError string          `json:"voucherError,omitempty"`
	Note         string          `json:"note,omitempty"`
	Address      json.RawMessage `json:"address,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Items        []itemView      `json:"items,omitempty"`
}

type itemView struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   int64           `json:"unitPrice"`
	Qty         int32           `json:"quantity"`
	LineTotal   int64           `json:"lineTotal"`
	Selections  json.RawMessage `json:"selections,omitempty"`
}

// List handles GET /api/v1/orders for the authenticated user.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	offset := int32((page - 1) * perPage)
	rows, total, err := h.Store.ListForUser(r.Context(), userID, int32(perPage), offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	views := make([]orderView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toView(row, nil))
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

// Get handles GET /api/v1/orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := parseOrderID(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	row, items, err := h.Store.GetForUser(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(row, items)})
}

func toView(row Row, items []ItemRow) orderView {
	view := orderView{
		ID:           uuidString(row.ID),
		Status:       row.Status,
		Subtotal:     row.Subtotal,
		Discount:     row.Discount,
		ShippingFee:  row.ShippingFee,
		FinalPrice:   row.FinalPrice,
		DisplayTotal: pricing.FormatVND(row.FinalPrice),
		EarnedPoints: row.EarnedPoints,
		VoucherCode:  row.VoucherCode.String,
		VoucherError: row.VoucherError.String,
		Note:         row.Note.String,
		CreatedAt:    row.CreatedAt,
	}
	if len(row.Address) > 0 {
		view.Address = json.RawMessage(row.Address)
	}
	for _, item := range items {
		iv := itemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Qty:         item.Qty,
			LineTotal:   item.LineTotal,
		}
		if len(item.Selections) > 0 {
			iv.Selections = json.RawMessage(item.Selections)
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

func parseOrderID(value string) (pgtype.UUID, error) {
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
