package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/cfaccess/middleware"
	"github.com/upb/cfaccess/utils"
	"go.uber.org/zap"
)

// SessionResponse describes the caller's edge identity
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	AccountID     string `json:"account_id,omitempty"`
	Username      string `json:"username,omitempty"`
}

// SessionHandler reports the identity attached by the access middleware
type SessionHandler struct {
	logger *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(logger *zap.Logger) *SessionHandler {
	return &SessionHandler{logger: logger}
}

// HandleSession handles GET /api/v1/session for authenticated callers
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := SessionResponse{
		Authenticated: true,
		Email:         middleware.GetEmailFromContext(ctx),
	}
	if id := middleware.GetAccountIDFromContext(ctx); id != uuid.Nil {
		response.AccountID = id.String()
	}
	if account := middleware.GetAccountFromContext(ctx); account != nil {
		response.Username = account.Username
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write session response",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err),
		)
	}
}

// HandleUnauthenticated is served in place of a denial when no identity is present
func (h *SessionHandler) HandleUnauthenticated(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, SessionResponse{Authenticated: false})
}
