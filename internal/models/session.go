package models

import "time"

// SessionStatus represents the current status of a working session
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active" // on duty, accepting samples
	SessionStatusPaused SessionStatus = "paused" // on break
	SessionStatusEnded  SessionStatus = "ended"  // terminal; a new start is required
)

// IsOpen reports whether the session still counts against the
// one-open-session-per-agent invariant.
func (s SessionStatus) IsOpen() bool {
	return s == SessionStatusActive || s == SessionStatusPaused
}

// Session end reasons written to session history
const (
	EndReasonManual     = "manual_end"
	EndReasonAutoClosed = "auto_closed" // daily sweep
)

// WorkingSession is one continuous work period for one agent.
// At most one session per agent may have a nil EndTime at any instant.
type WorkingSession struct {
	ID                string        `json:"id" db:"id"`
	AgentID           string        `json:"agent_id" db:"agent_id"`
	Status            SessionStatus `json:"status" db:"status"`
	StartTime         int64         `json:"start_time" db:"start_time"`
	EndTime           *int64        `json:"end_time" db:"end_time"`
	StartLatitude     *float64      `json:"start_latitude" db:"start_latitude"`
	StartLongitude    *float64      `json:"start_longitude" db:"start_longitude"`
	EndLatitude       *float64      `json:"end_latitude" db:"end_latitude"`
	EndLongitude      *float64      `json:"end_longitude" db:"end_longitude"`
	TotalPauseSeconds int           `json:"total_pause_seconds" db:"total_pause_seconds"`
	PauseStartTime    *int64        `json:"pause_start_time" db:"pause_start_time"`
	Notes             *string       `json:"notes,omitempty" db:"notes"`
	EndReason         *string       `json:"end_reason,omitempty" db:"end_reason"`
	CreatedAt         int64         `json:"created_at" db:"created_at"`
	UpdatedAt         int64         `json:"updated_at" db:"updated_at"`
}

// WorkedDuration is (end ?? now) − start, the figure the statistics
// aggregator reports as working time.
func (s *WorkingSession) WorkedDuration(now time.Time) time.Duration {
	end := now.Unix()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	secs := end - s.StartTime
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs) * time.Second
}

// ActiveDuration excludes accumulated pause time
func (s *WorkingSession) ActiveDuration(now time.Time) time.Duration {
	total := s.WorkedDuration(now)
	pause := int64(s.TotalPauseSeconds)
	if s.PauseStartTime != nil && s.EndTime == nil {
		pause += now.Unix() - *s.PauseStartTime
	}
	active := total - time.Duration(pause)*time.Second
	if active < 0 {
		active = 0
	}
	return active
}

// SessionEndResponse contains details when a session ends
type SessionEndResponse struct {
	ID                    string        `json:"id"`
	Status                SessionStatus `json:"status"`
	EndTime               int64         `json:"end_time"`
	TotalDurationSeconds  int64         `json:"total_duration_seconds"`
	ActiveDurationSeconds int64         `json:"active_duration_seconds"`
	TotalPauseSeconds     int           `json:"total_pause_seconds"`
}
