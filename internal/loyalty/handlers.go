package loyalty

import (
	"net/http"

	"github.com/noah-isme/backend-cafe/internal/common"
)

// Handler exposes the customer's point balance.
type Handler struct {
	Store *Store
}

// Balance handles GET /api/v1/loyalty/balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "loyalty store not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	balance, err := h.Store.Balance(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load balance", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"points": balance}})
}
