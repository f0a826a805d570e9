package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/metrics"
	"fieldtrack-backend/internal/middleware"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/internal/websocket"
	"fieldtrack-backend/pkg/utils"
)

type SessionRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Notes     *string  `json:"notes"`
}

func (req *SessionRequest) coordinate() (*models.Coordinate, error) {
	if req.Latitude == nil && req.Longitude == nil {
		return nil, nil
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, apperrors.NewValidationError("latitude/longitude", "both coordinates are required when one is present")
	}
	if *req.Latitude < -90 || *req.Latitude > 90 {
		return nil, apperrors.NewValidationError("latitude", "must be between -90 and 90")
	}
	if *req.Longitude < -180 || *req.Longitude > 180 {
		return nil, apperrors.NewValidationError("longitude", "must be between -180 and 180")
	}
	return &models.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}, nil
}

// GetCurrentSession returns the agent's open working session, or null data
// when none exists
func GetCurrentSession(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		session, err := s.GetOpenSession(r.Context(), claims.AgentID)
		if errors.Is(err, apperrors.ErrNotFound) {
			utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    nil,
			})
			return
		}
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", session)
	}
}

// StartSession opens a new working session for the agent
func StartSession(s store.Store, hub *websocket.Hub, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/agent/session/start")

		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req SessionRequest
		if r.Body != nil {
			// Body is optional; a bare start with no coordinates is valid
			json.NewDecoder(r.Body).Decode(&req)
		}

		coord, err := req.coordinate()
		if err != nil {
			metrics.SessionTransitions.WithLabelValues("start", "rejected").Inc()
			respondAppError(w, err)
			return
		}

		session, err := s.StartSession(r.Context(), claims.AgentID, coord, req.Notes, now())
		if err != nil {
			metrics.SessionTransitions.WithLabelValues("start", "rejected").Inc()
			respondAppError(w, err)
			return
		}

		metrics.SessionTransitions.WithLabelValues("start", "ok").Inc()
		log.Printf("✅ Session started: %s (agent %s)", session.ID, claims.AgentID)

		hub.BroadcastToRole("supervisor", map[string]interface{}{
			"type":     "session_started",
			"agent_id": claims.AgentID,
			"session":  session,
		})

		utils.RespondSuccess(w, http.StatusCreated, "Session started", session)
	}
}

// PauseSession pauses the agent's active session
func PauseSession(s store.Store, hub *websocket.Hub, now func() time.Time) http.HandlerFunc {
	return sessionTransition(s, hub, now, "pause",
		func(r *http.Request, agentID string) (models.WorkingSession, error) {
			return s.PauseSession(r.Context(), agentID, now())
		})
}

// ResumeSession resumes the agent's paused session
func ResumeSession(s store.Store, hub *websocket.Hub, now func() time.Time) http.HandlerFunc {
	return sessionTransition(s, hub, now, "resume",
		func(r *http.Request, agentID string) (models.WorkingSession, error) {
			return s.ResumeSession(r.Context(), agentID, now())
		})
}

func sessionTransition(s store.Store, hub *websocket.Hub, now func() time.Time, action string,
	apply func(r *http.Request, agentID string) (models.WorkingSession, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/agent/session/%s", action)

		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		session, err := apply(r, claims.AgentID)
		if err != nil {
			metrics.SessionTransitions.WithLabelValues(action, "rejected").Inc()
			respondAppError(w, err)
			return
		}

		metrics.SessionTransitions.WithLabelValues(action, "ok").Inc()
		log.Printf("✅ Session %s: %s (agent %s)", action, session.ID, claims.AgentID)

		hub.BroadcastToRole("supervisor", map[string]interface{}{
			"type":     "session_" + action + "d",
			"agent_id": claims.AgentID,
			"session":  session,
		})

		utils.RespondSuccess(w, http.StatusOK, "Session "+action+"d", session)
	}
}

// EndSession ends the agent's open session
func EndSession(s store.Store, hub *websocket.Hub, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/agent/session/end")

		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req SessionRequest
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&req)
		}

		coord, err := req.coordinate()
		if err != nil {
			metrics.SessionTransitions.WithLabelValues("end", "rejected").Inc()
			respondAppError(w, err)
			return
		}

		ts := now()
		session, err := s.EndSession(r.Context(), claims.AgentID, coord, ts, models.EndReasonManual)
		if err != nil {
			metrics.SessionTransitions.WithLabelValues("end", "rejected").Inc()
			respondAppError(w, err)
			return
		}

		metrics.SessionTransitions.WithLabelValues("end", "ok").Inc()
		log.Printf("✅ Session ended: %s (agent %s, worked %s)", session.ID, claims.AgentID, session.WorkedDuration(ts))

		hub.BroadcastToRole("supervisor", map[string]interface{}{
			"type":     "session_ended",
			"agent_id": claims.AgentID,
			"session":  session,
		})

		utils.RespondSuccess(w, http.StatusOK, "Session ended", models.SessionEndResponse{
			ID:                    session.ID,
			Status:                session.Status,
			EndTime:               *session.EndTime,
			TotalDurationSeconds:  int64(session.WorkedDuration(ts).Seconds()),
			ActiveDurationSeconds: int64(session.ActiveDuration(ts).Seconds()),
			TotalPauseSeconds:     session.TotalPauseSeconds,
		})
	}
}
