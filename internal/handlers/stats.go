package handlers

import (
	"net/http"
	"time"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/middleware"
	"fieldtrack-backend/internal/stats"
	"fieldtrack-backend/pkg/utils"
)

// GetDailyStats returns the agent's activity stats for one day,
// working time in minutes
func GetDailyStats(agg *stats.Aggregator, loc *time.Location, now func() time.Time) http.HandlerFunc {
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

		result, err := agg.Daily(r.Context(), claims.AgentID, day)
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", result)
	}
}

// GetPeriodStats returns a summary over a bounded date range, working
// time in hours
func GetPeriodStats(agg *stats.Aggregator, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		periodForAgent(agg, loc, now)(w, r, claims.AgentID)
	}
}

func periodForAgent(agg *stats.Aggregator, loc *time.Location, now func() time.Time) func(http.ResponseWriter, *http.Request, string) {
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
		to = to.Add(24 * time.Hour)

		if !to.After(from) {
			respondAppError(w, apperrors.NewValidationError("to", "must not be before from"))
			return
		}
		if to.Sub(from) > maxHistoryWindow {
			respondAppError(w, apperrors.NewValidationError("from/to", "window exceeds 31 days"))
			return
		}

		result, err := agg.Period(r.Context(), agentID, from, to)
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", result)
	}
}
