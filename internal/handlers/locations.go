package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/metrics"
	"fieldtrack-backend/internal/middleware"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/internal/websocket"
	"fieldtrack-backend/pkg/utils"
)

// maxSampleAge bounds how stale a buffered sample may be. Anything older
// is treated as clock-skew garbage or a replay of an old cache.
const maxSampleAge = 7 * 24 * time.Hour

var validate = validator.New()

type LocationRequest struct {
	Latitude       *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Accuracy       *float64 `json:"accuracy" validate:"omitempty,gte=0,lte=1000"`
	Speed          *float64 `json:"speed" validate:"omitempty,gte=0,lte=300"`
	Heading        *float64 `json:"heading" validate:"omitempty,gte=0,lte=360"`
	BatteryLevel   *int     `json:"battery_level" validate:"omitempty,gte=0,lte=100"`
	IsMockLocation bool     `json:"is_mock_location"`
	RecordedAt     *int64   `json:"recorded_at"`
}

// validateSample checks struct bounds plus the temporal window. RecordedAt
// defaults to now for the single path; the batch path requires it because
// a flushed buffer is never "now".
func validateSample(req *LocationRequest, now time.Time, requireTimestamp bool) []apperrors.FieldError {
	var fields []apperrors.FieldError

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, apperrors.FieldError{
					Field:   fe.Field(),
					Message: fmt.Sprintf("failed %s validation", fe.Tag()),
				})
			}
		} else {
			fields = append(fields, apperrors.FieldError{Field: "body", Message: err.Error()})
		}
	}

	if req.RecordedAt == nil {
		if requireTimestamp {
			fields = append(fields, apperrors.FieldError{Field: "recorded_at", Message: "required for batch items"})
		}
		return fields
	}

	ts := time.Unix(*req.RecordedAt, 0)
	if ts.After(now) {
		fields = append(fields, apperrors.FieldError{Field: "recorded_at", Message: "must not be in the future"})
	}
	if ts.Before(now.Add(-maxSampleAge)) {
		fields = append(fields, apperrors.FieldError{Field: "recorded_at", Message: "older than 7 days"})
	}
	return fields
}

func (req *LocationRequest) toSample(agentID string, session models.WorkingSession, now time.Time) models.GpsSample {
	capturedAt := now.Unix()
	if req.RecordedAt != nil {
		capturedAt = *req.RecordedAt
	}
	// A flushed buffer can carry samples captured before this session
	// started; those belong to whichever session covered them, not this
	// one, so they are stored without a session id.
	var sid *string
	if capturedAt >= session.StartTime {
		id := session.ID
		sid = &id
	}
	return models.GpsSample{
		AgentID:        agentID,
		SessionID:      sid,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		Accuracy:       req.Accuracy,
		Speed:          req.Speed,
		Heading:        req.Heading,
		BatteryLevel:   req.BatteryLevel,
		IsMockLocation: req.IsMockLocation,
		CapturedAt:     capturedAt,
		CreatedAt:      now.Unix(),
	}
}

// RecordLocation ingests a single GPS sample. The agent must have an open
// session; paused counts as open, field agents pause for lunch without
// turning off tracking.
func RecordLocation(s store.Store, hub *websocket.Hub, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req LocationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		ts := now()
		if fields := validateSample(&req, ts, false); len(fields) > 0 {
			metrics.SamplesRejected.WithLabelValues("validation").Inc()
			respondAppError(w, &apperrors.ValidationError{Fields: fields})
			return
		}

		session, err := s.GetOpenSession(r.Context(), claims.AgentID)
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.SamplesRejected.WithLabelValues("no_session").Inc()
			respondAppError(w, &apperrors.NoActiveSessionError{AgentID: claims.AgentID})
			return
		}
		if err != nil {
			respondAppError(w, err)
			return
		}

		sample := req.toSample(claims.AgentID, session, ts)
		inserted, err := s.InsertSamples(r.Context(), []models.GpsSample{sample})
		if err != nil {
			respondAppError(w, err)
			return
		}

		metrics.SamplesIngested.WithLabelValues("single").Add(float64(inserted))

		// Live position for supervisor dashboards
		hub.BroadcastToRole("supervisor", map[string]interface{}{
			"type":     "agent_location",
			"agent_id": claims.AgentID,
			"location": sample,
		})

		utils.RespondSuccess(w, http.StatusCreated, "Location recorded", map[string]interface{}{
			"inserted":   inserted,
			"session_id": session.ID,
		})
	}
}

type BatchLocationRequest struct {
	Locations []LocationRequest `json:"locations"`
}

// maxBatchSize bounds one flush of a mobile client's offline buffer
const maxBatchSize = 500

// RecordLocationBatch ingests a buffered batch atomically: either every
// item validates or nothing is persisted and the failures come back
// indexed by position.
func RecordLocationBatch(s store.Store, hub *websocket.Hub, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req BatchLocationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(req.Locations) == 0 {
			respondAppError(w, apperrors.NewValidationError("locations", "must not be empty"))
			return
		}
		if len(req.Locations) > maxBatchSize {
			respondAppError(w, apperrors.NewValidationError("locations", fmt.Sprintf("exceeds maximum batch size of %d", maxBatchSize)))
			return
		}

		ts := now()
		var batchErr apperrors.BatchValidationError
		for i := range req.Locations {
			if fields := validateSample(&req.Locations[i], ts, true); len(fields) > 0 {
				batchErr.Items = append(batchErr.Items, apperrors.BatchItemError{Index: i, Fields: fields})
			}
		}
		if len(batchErr.Items) > 0 {
			metrics.SamplesRejected.WithLabelValues("validation").Add(float64(len(batchErr.Items)))
			log.Printf("❌ Batch rejected for agent %s: %d invalid of %d", claims.AgentID, len(batchErr.Items), len(req.Locations))
			respondAppError(w, &batchErr)
			return
		}

		session, err := s.GetOpenSession(r.Context(), claims.AgentID)
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.SamplesRejected.WithLabelValues("no_session").Add(float64(len(req.Locations)))
			respondAppError(w, &apperrors.NoActiveSessionError{AgentID: claims.AgentID})
			return
		}
		if err != nil {
			respondAppError(w, err)
			return
		}

		samples := make([]models.GpsSample, 0, len(req.Locations))
		for i := range req.Locations {
			samples = append(samples, req.Locations[i].toSample(claims.AgentID, session, ts))
		}

		inserted, err := s.InsertSamples(r.Context(), samples)
		if err != nil {
			respondAppError(w, err)
			return
		}

		metrics.SamplesIngested.WithLabelValues("batch").Add(float64(inserted))
		log.Printf("📍 Batch ingested for agent %s: %d received, %d inserted (%d duplicates)",
			claims.AgentID, len(samples), inserted, len(samples)-inserted)

		// Broadcast only the newest position; the dashboard doesn't replay
		// the whole buffer
		latest := samples[0]
		for _, sm := range samples[1:] {
			if sm.CapturedAt > latest.CapturedAt {
				latest = sm
			}
		}
		hub.BroadcastToRole("supervisor", map[string]interface{}{
			"type":     "agent_location",
			"agent_id": claims.AgentID,
			"location": latest,
		})

		utils.RespondSuccess(w, http.StatusCreated, "Batch recorded", map[string]interface{}{
			"received":   len(samples),
			"inserted":   inserted,
			"duplicates": len(samples) - inserted,
			"session_id": session.ID,
		})
	}
}
