package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/backend-cafe/internal/common"
)

// Handler exposes the session exchange endpoint.
type Handler struct {
	Service *Service
}

type sessionRequest struct {
	PlatformUserID string `json:"platformUserId"`
}

// CreateSession handles POST /api/v1/auth/session. The chat platform has
// already authenticated the user; this trades the platform identity for a
// storefront session token.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	session, err := h.Service.IssueSession(req.PlatformUserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": session})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create session", nil)
}
