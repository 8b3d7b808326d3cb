package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/obs"
)

// Handler wires checkout quoting and submission to HTTP.
type Handler struct {
	Svc *Service
}

// Quote handles POST /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var in QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	out, err := h.Svc.Quote(r.Context(), in)
	if err != nil {
		countQuote("error")
		if errors.Is(err, ErrShippingQuote) {
			common.JSONError(w, http.StatusBadGateway, "SHIPPING_UNAVAILABLE", "could not quote a shipping fee", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to compute quote", nil)
		return
	}
	if out.Breakdown.Error != "" {
		countQuote("degraded_voucher")
	} else {
		countQuote("ok")
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Submit handles POST /api/v1/checkout.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	out, err := h.Svc.Submit(r.Context(), userID, in)
	if err != nil {
		countCheckout("error")
		h.writeError(w, err)
		return
	}
	countCheckout("ok")
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrEmptyCart) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cart is empty", nil)
		return
	}
	if errors.Is(err, ErrShippingQuote) {
		common.JSONError(w, http.StatusBadGateway, "SHIPPING_UNAVAILABLE", "could not quote a shipping fee", nil)
		return
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, fe.Field())
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid submission", map[string]any{
			"fields": strings.Join(fields, ", "),
		})
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to submit order", nil)
}

func countQuote(result string) {
	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues(result).Inc()
	}
}

func countCheckout(result string) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
}
