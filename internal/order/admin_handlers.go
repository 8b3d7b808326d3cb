package order

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/events"
)

// AdminHandler provides back-office order endpoints.
type AdminHandler struct {
	Store  *Store
	Events *events.Bus
}

// List handles GET /api/v1/admin/orders with an optional ?status= filter.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	switch status {
	case "", StatusPending, StatusSettled, StatusCanceled:
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status filter", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	offset := int32((page - 1) * perPage)
	rows, total, err := h.Store.ListRecent(r.Context(), status, int32(perPage), offset)
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

// Cancel handles POST /api/v1/admin/orders/{orderId}/cancel. Only pending
// orders can be canceled; settled orders are final.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := parseOrderID(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	canceled, err := h.Store.Cancel(r.Context(), id)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to cancel order", nil)
		return
	}
	if !canceled {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "only pending orders can be canceled", nil)
		return
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.TopicOrderCanceled, id, map[string]any{
			"orderId": chi.URLParam(r, "orderId"),
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
