package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/metrics"
	"fieldtrack-backend/internal/middleware"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/scope"
	"fieldtrack-backend/internal/stats"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/internal/sweep"
	"fieldtrack-backend/internal/websocket"
	"fieldtrack-backend/pkg/utils"
)

// GetActiveAgents lists agents with an open session visible to the
// caller, with their latest known position
func GetActiveAgents(s store.Store, resolver *scope.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sc, err := resolveScope(r.Context(), resolver, claims)
		if err != nil {
			respondAppError(w, err)
			return
		}

		agents, err := s.ListActiveAgents(r.Context(), sc)
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", map[string]interface{}{
			"agents": agents,
			"count":  len(agents),
		})
	}
}

// requireAgentInScope resolves the caller's scope and checks the target
// agent is visible. Out-of-scope resolves to 404, same as nonexistent.
func requireAgentInScope(s store.Store, resolver *scope.Resolver, w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.GetAgentFromContext(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}

	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		respondAppError(w, apperrors.NewValidationError("agentID", "is required"))
		return "", false
	}

	sc, err := resolveScope(r.Context(), resolver, claims)
	if err != nil {
		respondAppError(w, err)
		return "", false
	}

	visible, err := s.AgentInScope(r.Context(), sc, agentID)
	if err != nil {
		respondAppError(w, err)
		return "", false
	}
	if !visible {
		respondAppError(w, apperrors.ErrNotFound)
		return "", false
	}
	return agentID, true
}

// GetAgentRoute reconstructs a visible agent's route for one day
func GetAgentRoute(s store.Store, resolver *scope.Resolver, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, ok := requireAgentInScope(s, resolver, w, r)
		if !ok {
			return
		}

		day, err := parseDay(r.URL.Query().Get("date"), loc, now())
		if err != nil {
			respondAppError(w, err)
			return
		}

		samples, err := s.ListSamples(r.Context(), agentID, day, day.Add(24*time.Hour))
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", stats.Reconstruct(samples))
	}
}

// GetAgentHistory returns a visible agent's route over a bounded range
func GetAgentHistory(s store.Store, resolver *scope.Resolver, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, ok := requireAgentInScope(s, resolver, w, r)
		if !ok {
			return
		}
		historyForAgent(s, loc, now)(w, r, agentID)
	}
}

// GetAgentDailyStats returns a visible agent's stats for one day
func GetAgentDailyStats(s store.Store, resolver *scope.Resolver, agg *stats.Aggregator, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, ok := requireAgentInScope(s, resolver, w, r)
		if !ok {
			return
		}

		day, err := parseDay(r.URL.Query().Get("date"), loc, now())
		if err != nil {
			respondAppError(w, err)
			return
		}

		result, err := agg.Daily(r.Context(), agentID, day)
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", result)
	}
}

// GetAgentPeriodStats returns a visible agent's period summary
func GetAgentPeriodStats(s store.Store, resolver *scope.Resolver, agg *stats.Aggregator, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, ok := requireAgentInScope(s, resolver, w, r)
		if !ok {
			return
		}
		periodForAgent(agg, loc, now)(w, r, agentID)
	}
}

// ForceEndAgentSession lets a manager close a visible agent's open
// session, e.g. when the agent went home without ending it
func ForceEndAgentSession(s store.Store, resolver *scope.Resolver, hub *websocket.Hub, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, ok := requireAgentInScope(s, resolver, w, r)
		if !ok {
			return
		}

		ts := now()
		session, err := s.EndSession(r.Context(), agentID, nil, ts, models.EndReasonManual)
		if err != nil {
			metrics.SessionTransitions.WithLabelValues("manager_end", "rejected").Inc()
			respondAppError(w, err)
			return
		}

		metrics.SessionTransitions.WithLabelValues("manager_end", "ok").Inc()
		log.Printf("🛑 Session %s force-ended by manager (agent %s)", session.ID, agentID)

		hub.BroadcastToAgent(agentID, map[string]interface{}{
			"type":    "session_ended_by_manager",
			"session": session,
		})
		hub.BroadcastToRole("supervisor", map[string]interface{}{
			"type":     "session_ended",
			"agent_id": agentID,
			"session":  session,
		})

		utils.RespondSuccess(w, http.StatusOK, "Session ended", session)
	}
}

// ForceEndAllSessions runs the daily sweep on demand, closing every open
// session right now instead of waiting for the cutoff. Admin only.
func ForceEndAllSessions(sweeper *sweep.Sweeper, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/manager/sessions/force-end")

		ended, err := sweeper.RunOnce(r.Context(), now())
		if err != nil {
			respondAppError(w, err)
			return
		}

		log.Printf("🛑 Manual sweep closed %d session(s)", ended)
		utils.RespondSuccess(w, http.StatusOK, "Open sessions ended", map[string]interface{}{
			"sessions_ended": ended,
		})
	}
}
