// Package scope computes and applies the visibility scope that restricts
// every territory query: admins see everything, supervisors see only their
// assigned zonals, vendors see their own data through the agent-scoped
// endpoints and bypass territory filtering entirely.
package scope

// Kind is the closed set of scope variants. Query code dispatches on this,
// never on role strings.
type Kind int

const (
	// Unrestricted sees every row; all filters are no-ops.
	Unrestricted Kind = iota
	// ZonalRestricted sees only rows reachable from an explicit zonal set.
	// An empty set denies every row; it never widens to unrestricted.
	ZonalRestricted
	// SelfOnly bypasses territory filters. The agent endpoints already
	// constrain every query by the caller's own agent id, so applying a
	// zonal filter on top would double-filter.
	SelfOnly
)

func (k Kind) String() string {
	switch k {
	case Unrestricted:
		return "unrestricted"
	case ZonalRestricted:
		return "zonal_restricted"
	case SelfOnly:
		return "self_only"
	}
	return "unknown"
}

// Scope is the visibility derived from an agent's role and assignments.
// It is a pure cache value: safe to recompute redundantly, stale up to the
// cache TTL, never a source of truth.
type Scope struct {
	Kind        Kind
	AgentID     string
	BusinessIDs []string
	ZonalIDs    []string
}

// unrestricted and SelfOnly short-circuit every filter
func (s Scope) bypassesFilters() bool {
	return s.Kind == Unrestricted || s.Kind == SelfOnly
}

// AllowsZonal reports whether rows belonging to the zonal are visible
func (s Scope) AllowsZonal(zonalID string) bool {
	if s.bypassesFilters() {
		return true
	}
	for _, id := range s.ZonalIDs {
		if id == zonalID {
			return true
		}
	}
	return false
}

// AllowsBusiness reports whether rows belonging to the business are visible
func (s Scope) AllowsBusiness(businessID string) bool {
	if s.bypassesFilters() {
		return true
	}
	for _, id := range s.BusinessIDs {
		if id == businessID {
			return true
		}
	}
	return false
}

// DeniesEverything reports the closed-world case: a restricted actor with
// no assignments sees zero rows from every scoped query.
func (s Scope) DeniesEverything() bool {
	return s.Kind == ZonalRestricted && len(s.ZonalIDs) == 0
}

// ZonalCondition returns a SQL fragment restricting column to the visible
// zonals, for expansion with sqlx.In. An empty fragment means no filtering;
// "1=0" means deny all. The column may be a bare column or a relation path
// expression (e.g. a subquery column joining circuit→route→pdv).
func (s Scope) ZonalCondition(column string) (string, []interface{}) {
	if s.bypassesFilters() {
		return "", nil
	}
	if len(s.ZonalIDs) == 0 {
		return "1=0", nil
	}
	return column + " IN (?)", []interface{}{s.ZonalIDs}
}

// BusinessCondition is ZonalCondition for the business axis
func (s Scope) BusinessCondition(column string) (string, []interface{}) {
	if s.bypassesFilters() {
		return "", nil
	}
	if len(s.BusinessIDs) == 0 {
		return "1=0", nil
	}
	return column + " IN (?)", []interface{}{s.BusinessIDs}
}

// CombinedCondition ANDs the business and zonal restrictions
func (s Scope) CombinedCondition(businessColumn, zonalColumn string) (string, []interface{}) {
	bq, bargs := s.BusinessCondition(businessColumn)
	zq, zargs := s.ZonalCondition(zonalColumn)
	switch {
	case bq == "" && zq == "":
		return "", nil
	case bq == "":
		return zq, zargs
	case zq == "":
		return bq, bargs
	}
	return "(" + bq + " AND " + zq + ")", append(bargs, zargs...)
}
