package scope

import (
	"context"
	"sync"
	"testing"
	"time"

	"fieldtrack-backend/internal/models"
)

// fakeClock provides a controllable time source for cache tests
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{current: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

type fakeAssignments struct {
	zonals     map[string][]string
	businesses map[string][]string
	calls      int
}

func (f *fakeAssignments) ListSupervisorZonalIDs(_ context.Context, agentID string) ([]string, error) {
	f.calls++
	return f.zonals[agentID], nil
}

func (f *fakeAssignments) ListAgentBusinessIDs(_ context.Context, agentID string) ([]string, error) {
	return f.businesses[agentID], nil
}

func TestResolveAdminUnrestricted(t *testing.T) {
	r := NewResolver(&fakeAssignments{}, NewCache(DefaultTTL, nil))
	sc, err := r.Resolve(context.Background(), models.Agent{ID: "a1", Role: models.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if sc.Kind != Unrestricted {
		t.Fatalf("admin scope kind: got %v", sc.Kind)
	}
	if q, _ := sc.ZonalCondition("zonal_id"); q != "" {
		t.Fatalf("admin zonal filter should be a no-op, got %q", q)
	}
	if !sc.AllowsZonal("anything") {
		t.Fatal("admin must see every zonal")
	}
}

func TestResolveVendorSelfOnly(t *testing.T) {
	r := NewResolver(&fakeAssignments{}, NewCache(DefaultTTL, nil))
	sc, err := r.Resolve(context.Background(), models.Agent{ID: "v1", Role: models.RoleVendor})
	if err != nil {
		t.Fatal(err)
	}
	if sc.Kind != SelfOnly {
		t.Fatalf("vendor scope kind: got %v", sc.Kind)
	}
	// SelfOnly bypasses territory filtering; the agent endpoints already
	// constrain by agent id
	if q, _ := sc.BusinessCondition("business_id"); q != "" {
		t.Fatalf("vendor business filter should be a no-op, got %q", q)
	}
}

func TestResolveSupervisorZonalRestricted(t *testing.T) {
	src := &fakeAssignments{
		zonals:     map[string][]string{"s1": {"z1", "z2"}},
		businesses: map[string][]string{"s1": {"b1"}},
	}
	r := NewResolver(src, NewCache(DefaultTTL, nil))
	sc, err := r.Resolve(context.Background(), models.Agent{ID: "s1", Role: models.RoleSupervisor})
	if err != nil {
		t.Fatal(err)
	}
	if sc.Kind != ZonalRestricted {
		t.Fatalf("supervisor scope kind: got %v", sc.Kind)
	}
	if !sc.AllowsZonal("z1") || !sc.AllowsZonal("z2") || sc.AllowsZonal("z3") {
		t.Fatalf("zonal membership wrong: %+v", sc.ZonalIDs)
	}
	q, args := sc.ZonalCondition("zonal_id")
	if q != "zonal_id IN (?)" || len(args) != 1 {
		t.Fatalf("zonal condition: %q %v", q, args)
	}
}

func TestSupervisorWithoutAssignmentsDeniesAll(t *testing.T) {
	src := &fakeAssignments{}
	r := NewResolver(src, NewCache(DefaultTTL, nil))
	sc, err := r.Resolve(context.Background(), models.Agent{ID: "s9", Role: models.RoleSupervisor})
	if err != nil {
		t.Fatal(err)
	}
	if !sc.DeniesEverything() {
		t.Fatal("closed world: no assignment must mean no visibility")
	}
	if sc.AllowsZonal("z1") {
		t.Fatal("unassigned supervisor must not see any zonal")
	}
	if q, _ := sc.ZonalCondition("zonal_id"); q != "1=0" {
		t.Fatalf("empty restriction must produce a deny-all clause, got %q", q)
	}
	if q, _ := sc.CombinedCondition("business_id", "zonal_id"); q != "(1=0 AND 1=0)" {
		t.Fatalf("combined deny-all clause: got %q", q)
	}
}

func TestResolveCachesUntilTTL(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	src := &fakeAssignments{zonals: map[string][]string{"s1": {"z1"}}}
	r := NewResolver(src, NewCache(5*time.Minute, clock.Now))
	agent := models.Agent{ID: "s1", Role: models.RoleSupervisor}

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), agent); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one assignment lookup within TTL, got %d", src.calls)
	}

	// Assignment changes are not observed until expiry
	src.zonals["s1"] = []string{"z1", "z2"}
	sc, _ := r.Resolve(context.Background(), agent)
	if len(sc.ZonalIDs) != 1 {
		t.Fatal("stale scope expected before TTL expiry")
	}

	clock.Advance(5*time.Minute + time.Second)
	sc, _ = r.Resolve(context.Background(), agent)
	if len(sc.ZonalIDs) != 2 {
		t.Fatalf("expired entry must recompute, got %v", sc.ZonalIDs)
	}
	if src.calls != 2 {
		t.Fatalf("expected recompute after TTL, got %d calls", src.calls)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	src := &fakeAssignments{zonals: map[string][]string{"s1": {"z1"}}}
	r := NewResolver(src, NewCache(time.Hour, nil))
	agent := models.Agent{ID: "s1", Role: models.RoleSupervisor}

	r.Resolve(context.Background(), agent)
	src.zonals["s1"] = []string{"z1", "z9"}
	r.Invalidate("s1")

	sc, _ := r.Resolve(context.Background(), agent)
	if !sc.AllowsZonal("z9") {
		t.Fatal("invalidate must drop the cached scope")
	}
}
