// Package store is the persistence layer. Handlers, the scope resolver,
// the statistics aggregator and the sweep job all talk to the Store
// interface; Postgres backs production and Memory backs tests.
package store

import (
	"context"
	"time"

	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/scope"
)

// Store is the persistence interface used by the HTTP layer and jobs.
type Store interface {
	// Agents (reference data owned by the admin collaborator)
	GetAgentByEmail(ctx context.Context, email string) (models.Agent, error)
	GetAgentByID(ctx context.Context, id string) (models.Agent, error)
	CreateAgent(ctx context.Context, agent models.Agent) error
	ListSupervisorZonalIDs(ctx context.Context, agentID string) ([]string, error)
	ListAgentBusinessIDs(ctx context.Context, agentID string) ([]string, error)

	// Working sessions. Transition methods enforce the state machine and
	// return ConflictError / InvalidStateError from apperrors.
	StartSession(ctx context.Context, agentID string, coord *models.Coordinate, notes *string, now time.Time) (models.WorkingSession, error)
	GetOpenSession(ctx context.Context, agentID string) (models.WorkingSession, error)
	PauseSession(ctx context.Context, agentID string, now time.Time) (models.WorkingSession, error)
	ResumeSession(ctx context.Context, agentID string, now time.Time) (models.WorkingSession, error)
	EndSession(ctx context.Context, agentID string, coord *models.Coordinate, now time.Time, reason string) (models.WorkingSession, error)
	ForceEndOpenSessions(ctx context.Context, cutoff time.Time) ([]models.WorkingSession, error)
	ListSessionsStartedBetween(ctx context.Context, agentID string, from, to time.Time) ([]models.WorkingSession, error)

	// GPS samples: append-only, idempotent on (agent, captured_at, lat, lon)
	InsertSamples(ctx context.Context, samples []models.GpsSample) (inserted int, err error)
	ListSamples(ctx context.Context, agentID string, from, to time.Time) ([]models.GpsSample, error)

	// PDV visits, read-only for compliance statistics
	ListVisits(ctx context.Context, agentID string, from, to time.Time) ([]models.PdvVisit, error)

	// Org reference data, always scope-filtered
	ListBusinesses(ctx context.Context, sc scope.Scope) ([]models.Business, error)
	ListZonals(ctx context.Context, sc scope.Scope) ([]models.Zonal, error)
	ListCircuits(ctx context.Context, sc scope.Scope) ([]models.Circuit, error)
	ListRoutes(ctx context.Context, sc scope.Scope) ([]models.Route, error)
	ListPDVs(ctx context.Context, sc scope.Scope) ([]models.PDV, error)

	// Proximity search. NearbyPDVs is the globally discoverable variant;
	// NearbyPDVsScoped composes the caller's visibility scope.
	NearbyPDVs(ctx context.Context, lat, lon, radiusKm float64) ([]models.PDVWithDistance, error)
	NearbyPDVsScoped(ctx context.Context, sc scope.Scope, lat, lon, radiusKm float64) ([]models.PDVWithDistance, error)

	// Supervisor dashboard
	ListActiveAgents(ctx context.Context, sc scope.Scope) ([]models.AgentStatus, error)
	// AgentInScope reports whether the target agent is reachable under the
	// caller's visibility scope, via circuit assignment for zonal scopes.
	AgentInScope(ctx context.Context, sc scope.Scope, agentID string) (bool, error)

	// Push token registry
	SaveFCMToken(ctx context.Context, agentID, token, deviceType string, now time.Time) error
	ListFCMTokens(ctx context.Context, agentID string) ([]string, error)
}
