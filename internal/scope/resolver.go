package scope

import (
	"context"
	"fmt"

	"fieldtrack-backend/internal/models"
)

// AssignmentSource supplies the assignment rows the resolver reads.
// Implemented by the store; narrowed here so the resolver stays testable
// without a database.
type AssignmentSource interface {
	ListSupervisorZonalIDs(ctx context.Context, agentID string) ([]string, error)
	ListAgentBusinessIDs(ctx context.Context, agentID string) ([]string, error)
}

// Resolver computes visibility scopes and memoizes them in the cache
type Resolver struct {
	src      AssignmentSource
	cache    *Cache
	onLookup func(result string) // "hit" or "miss", nil to disable
}

func NewResolver(src AssignmentSource, cache *Cache) *Resolver {
	return &Resolver{src: src, cache: cache}
}

// OnLookup installs a counter callback invoked with "hit" or "miss" on
// every Resolve
func (r *Resolver) OnLookup(fn func(result string)) {
	r.onLookup = fn
}

// Resolve returns the visibility scope for the agent, cached per agent id
// for the cache TTL.
func (r *Resolver) Resolve(ctx context.Context, agent models.Agent) (Scope, error) {
	if sc, ok := r.cache.Get(agent.ID); ok {
		if r.onLookup != nil {
			r.onLookup("hit")
		}
		return sc, nil
	}
	if r.onLookup != nil {
		r.onLookup("miss")
	}

	sc, err := r.compute(ctx, agent)
	if err != nil {
		return Scope{}, err
	}
	r.cache.Put(agent.ID, sc)
	return sc, nil
}

// Invalidate drops the agent's cached scope so the next Resolve recomputes
func (r *Resolver) Invalidate(agentID string) {
	r.cache.Invalidate(agentID)
}

func (r *Resolver) compute(ctx context.Context, agent models.Agent) (Scope, error) {
	switch agent.Role {
	case models.RoleAdmin:
		return Scope{Kind: Unrestricted, AgentID: agent.ID}, nil

	case models.RoleVendor:
		return Scope{Kind: SelfOnly, AgentID: agent.ID}, nil

	case models.RoleSupervisor:
		zonals, err := r.src.ListSupervisorZonalIDs(ctx, agent.ID)
		if err != nil {
			return Scope{}, fmt.Errorf("resolve supervisor zonals: %w", err)
		}
		businesses, err := r.src.ListAgentBusinessIDs(ctx, agent.ID)
		if err != nil {
			return Scope{}, fmt.Errorf("resolve supervisor businesses: %w", err)
		}
		// zonals may be empty: the scope then denies every row rather
		// than widening to unrestricted
		return Scope{
			Kind:        ZonalRestricted,
			AgentID:     agent.ID,
			ZonalIDs:    zonals,
			BusinessIDs: businesses,
		}, nil
	}
	return Scope{}, fmt.Errorf("unknown agent role %q", agent.Role)
}
