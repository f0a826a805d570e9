package models

// PdvVisit is a check-in/check-out record at a point of sale. Owned by the
// visit collaborator; read here only to compute compliance statistics.
type PdvVisit struct {
	ID              string  `json:"id" db:"id"`
	AgentID         string  `json:"agent_id" db:"agent_id"`
	PdvID           string  `json:"pdv_id" db:"pdv_id"`
	CheckIn         int64   `json:"check_in" db:"check_in"`
	CheckOut        *int64  `json:"check_out" db:"check_out"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" db:"duration_minutes"` // stored estimate when check_out is missing
	PdvName         *string `json:"pdv_name,omitempty" db:"pdv_name"`                 // joined; nil when the PDV row is gone
}
