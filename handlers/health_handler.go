package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/cfaccess/middleware"
	"github.com/upb/cfaccess/utils"
	"go.uber.org/zap"
)

const readinessTimeout = 5 * time.Second

// DatabaseChecker is the account database as seen by readiness checks
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
	PoolStats() map[string]int
}

// KeySetStats reports key-set cache statistics
type KeySetStats interface {
	Stats() map[string]interface{}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]string      `json:"checks,omitempty"`
	Pool      map[string]int         `json:"pool,omitempty"`
	KeySet    map[string]interface{} `json:"keyset,omitempty"`
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db     DatabaseChecker
	keys   KeySetStats
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and keys may be nil.
func NewHealthHandler(db DatabaseChecker, keys KeySetStats, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		keys:   keys,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: now(),
	})
}

// HandleReadiness handles GET /readyz.
// Only the account database gates readiness; key-set failures are per request.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: now(),
		Checks:    map[string]string{"database": "disabled"},
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		response.Checks["database"] = "healthy"
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed",
				zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
				zap.Error(err))
			response.Checks["database"] = "unhealthy"
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		response.Pool = h.db.PoolStats()
	}
	if h.keys != nil {
		response.KeySet = h.keys.Stats()
	}

	if err := utils.WriteJSON(w, status, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
