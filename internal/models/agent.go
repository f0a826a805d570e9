package models

// AgentRole enumerates the roles an authenticated agent can hold
type AgentRole string

const (
	RoleAdmin      AgentRole = "admin"
	RoleSupervisor AgentRole = "supervisor"
	RoleVendor     AgentRole = "vendor"
)

// Agent represents an authenticated field user or administrator.
// Created and deactivated by the admin collaborator; read-only here.
type Agent struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"` // Never return password in JSON
	Name      string    `json:"name" db:"name"`
	Role      AgentRole `json:"role" db:"role"` // "admin", "supervisor" or "vendor"
	Active    bool      `json:"active" db:"active"`
	CreatedAt int64     `json:"created_at" db:"created_at"`
	UpdatedAt int64     `json:"updated_at" db:"updated_at"`
}

type AgentResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      AgentRole `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt int64     `json:"created_at"`
}

func (a *Agent) ToAgentResponse() AgentResponse {
	return AgentResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
	}
}

// ZonalAssignment links a supervisor to a zonal they oversee
type ZonalAssignment struct {
	ID      int    `json:"id" db:"id"`
	AgentID string `json:"agent_id" db:"agent_id"`
	ZonalID string `json:"zonal_id" db:"zonal_id"`
	Active  bool   `json:"active" db:"active"`
}

// FCMToken represents a Firebase Cloud Messaging token for an agent
type FCMToken struct {
	ID         int    `json:"id" db:"id"`
	AgentID    string `json:"agent_id" db:"agent_id"`
	Token      string `json:"token" db:"token"`
	DeviceType string `json:"device_type" db:"device_type"` // "ios" or "android"
	CreatedAt  int64  `json:"created_at" db:"created_at"`
	UpdatedAt  int64  `json:"updated_at" db:"updated_at"`
}
