package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/typeshield/typeshield/internal/auth"
)

// DashboardHandler serves per-user attempt statistics.
type DashboardHandler struct {
	deps Dependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps Dependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

type attemptView struct {
	Timestamp string   `json:"timestamp"`
	Status    string   `json:"status"`
	Score     *float64 `json:"score"`
	Reasons   []string `json:"reasons"`
}

type dashboardResponse struct {
	Username  string        `json:"username"`
	LastScore float64       `json:"last_score"`
	Totals    totalsView    `json:"totals"`
	Recent    []attemptView `json:"recent"`
}

type totalsView struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// HandleDashboard handles GET /api/dashboard requests for the session's user.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	data, err := h.deps.Dashboard(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", ErrInternal)
		return
	}

	recent := make([]attemptView, len(data.RecentAttempts))
	for i, rec := range data.RecentAttempts {
		recent[i] = attemptView{
			Timestamp: rec.CreatedAt.UTC().Format(time.RFC3339),
			Status:    rec.Status,
			Score:     rec.Score,
			Reasons:   rec.Reasons,
		}
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Username:  data.Username,
		LastScore: data.LastScore,
		Totals:    totalsView{Success: data.SuccessCount, Failure: data.FailureCount},
		Recent:    recent,
	})
}
