package models

// Coordinate is a bare lat/lon pair
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GpsSample is one timestamped GPS reading from an agent's device.
// Immutable once persisted; the stream is append-only. Duplicate
// submissions are absorbed by the (agent, captured_at, lat, lon) key.
type GpsSample struct {
	ID             int      `json:"id" db:"id"`
	AgentID        string   `json:"agent_id" db:"agent_id"`
	SessionID      *string  `json:"session_id,omitempty" db:"session_id"`
	Latitude       float64  `json:"latitude" db:"latitude"`
	Longitude      float64  `json:"longitude" db:"longitude"`
	Accuracy       *float64 `json:"accuracy,omitempty" db:"accuracy"`           // meters
	Speed          *float64 `json:"speed,omitempty" db:"speed"`                 // km/h
	Heading        *float64 `json:"heading,omitempty" db:"heading"`             // degrees 0-360
	BatteryLevel   *int     `json:"battery_level,omitempty" db:"battery_level"` // percent
	IsMockLocation bool     `json:"is_mock_location" db:"is_mock_location"`
	CapturedAt     int64    `json:"captured_at" db:"captured_at"` // client-side timestamp
	CreatedAt      int64    `json:"created_at" db:"created_at"`   // server-side timestamp
}

// RouteResult is a reconstructed traveled route over a time window
type RouteResult struct {
	Points          []RoutePoint `json:"points"`
	TotalDistanceKm float64      `json:"total_distance_km"` // rounded to 2 decimals
	SampleCount     int          `json:"sample_count"`
	LastActivityAt  *int64       `json:"last_activity_at,omitempty"`
}

// RoutePoint is one vertex of the reconstructed polyline
type RoutePoint struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	CapturedAt int64   `json:"captured_at"`
}

// AgentStatus is an agent's current state for the supervisor dashboard
type AgentStatus struct {
	AgentID        string          `json:"agent_id"`
	Name           string          `json:"name"`
	Status         SessionStatus   `json:"status"`
	SessionID      *string         `json:"session_id,omitempty"`
	SessionStart   *int64          `json:"session_start,omitempty"`
	LastLocation   *GpsSample      `json:"last_location,omitempty"`
	CurrentSession *WorkingSession `json:"-"`
}
