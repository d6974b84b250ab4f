package api

import (
	"context"
	"net/http"

	"github.com/okian/soprofile/internal/domain/model"
)

// AnalyticsDependencies reads usage analytics.
type AnalyticsDependencies interface {
	Analytics(ctx context.Context) (model.Analytics, error)
}

// AnalyticsHandler handles analytics requests.
type AnalyticsHandler struct {
	deps AnalyticsDependencies
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps}
}

// HandleAnalytics handles GET /_analytics requests.
func (h *AnalyticsHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analytics"
	a, err := h.deps.Analytics(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
