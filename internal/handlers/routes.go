package handlers

import (
	"net/http"
	"time"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/middleware"
	"fieldtrack-backend/internal/stats"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/pkg/utils"
)

// maxHistoryWindow bounds history queries. The haversine work is per-row,
// an unbounded scan over every sample an agent ever produced is rejected
// rather than silently attempted.
const maxHistoryWindow = 31 * 24 * time.Hour

// parseDay parses YYYY-MM-DD in the service timezone, defaulting to today
func parseDay(value string, loc *time.Location, now time.Time) (time.Time, error) {
	if value == "" {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date", "must be YYYY-MM-DD")
	}
	return day, nil
}

// GetRouteForDate reconstructs the agent's traveled route for one day
func GetRouteForDate(s store.Store, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		day, err := parseDay(r.URL.Query().Get("date"), loc, now())
		if err != nil {
			respondAppError(w, err)
			return
		}

		samples, err := s.ListSamples(r.Context(), claims.AgentID, day, day.Add(24*time.Hour))
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", stats.Reconstruct(samples))
	}
}

// GetLocationHistory returns the reconstructed route over a bounded
// date range
func GetLocationHistory(s store.Store, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		agentID := claims.AgentID
		historyForAgent(s, loc, now)(w, r, agentID)
	}
}

// historyForAgent is shared between the vendor's own history endpoint and
// the manager's per-agent view
func historyForAgent(s store.Store, loc *time.Location, now func() time.Time) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, agentID string) {
		q := r.URL.Query()
		fromStr, toStr := q.Get("from"), q.Get("to")
		if fromStr == "" || toStr == "" {
			respondAppError(w, apperrors.NewValidationError("from/to", "both dates are required"))
			return
		}

		from, err := parseDay(fromStr, loc, now())
		if err != nil {
			respondAppError(w, err)
			return
		}
		to, err := parseDay(toStr, loc, now())
		if err != nil {
			respondAppError(w, err)
			return
		}
		to = to.Add(24 * time.Hour) // inclusive end date

		if !to.After(from) {
			respondAppError(w, apperrors.NewValidationError("to", "must not be before from"))
			return
		}
		if to.Sub(from) > maxHistoryWindow {
			respondAppError(w, apperrors.NewValidationError("from/to", "window exceeds 31 days"))
			return
		}

		samples, err := s.ListSamples(r.Context(), agentID, from, to)
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", stats.Reconstruct(samples))
	}
}
