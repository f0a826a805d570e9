package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/geo"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/scope"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func seedOrg(m *Memory) {
	m.AddBusiness(models.Business{ID: "b1", Name: "Andes Distribution"})
	m.AddZonal(models.Zonal{ID: "z1", BusinessID: "b1", Name: "Lima Norte"})
	m.AddZonal(models.Zonal{ID: "z2", BusinessID: "b1", Name: "Lima Sur"})
	m.AddCircuit(models.Circuit{ID: "c1", ZonalID: "z1", Name: "Circuito 01"})
	m.AddCircuit(models.Circuit{ID: "c2", ZonalID: "z2", Name: "Circuito 02"})
	m.AddRoute(models.Route{ID: "r1", CircuitID: "c1", Name: "Ruta 01"})
	m.AddRoute(models.Route{ID: "r2", CircuitID: "c2", Name: "Ruta 02"})
}

func addPDVAt(m *Memory, id, routeID string, lat, lon float64) {
	m.AddPDV(models.PDV{ID: id, RouteID: routeID, Name: "PDV " + id, Status: "active", Latitude: &lat, Longitude: &lon})
}

func TestSessionLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.StartSession(ctx, "a1", &models.Coordinate{Latitude: -12.0464, Longitude: -77.0428}, nil, t0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != models.SessionStatusActive {
		t.Fatalf("start: status %s", s.Status)
	}

	if _, err := m.ResumeSession(ctx, "a1", t0.Add(time.Minute)); err == nil {
		t.Fatal("resume from active must fail")
	}

	s, err = m.PauseSession(ctx, "a1", t0.Add(10*time.Minute))
	if err != nil || s.Status != models.SessionStatusPaused {
		t.Fatalf("pause: %v %s", err, s.Status)
	}

	var invalid *apperrors.InvalidStateError
	if _, err := m.PauseSession(ctx, "a1", t0.Add(11*time.Minute)); !errors.As(err, &invalid) {
		t.Fatalf("double pause: expected InvalidStateError, got %v", err)
	}

	s, err = m.ResumeSession(ctx, "a1", t0.Add(15*time.Minute))
	if err != nil || s.Status != models.SessionStatusActive {
		t.Fatalf("resume: %v %s", err, s.Status)
	}
	if s.TotalPauseSeconds != 300 {
		t.Fatalf("pause accounting: got %d seconds", s.TotalPauseSeconds)
	}

	s, err = m.EndSession(ctx, "a1", &models.Coordinate{Latitude: -12.05, Longitude: -77.04}, t0.Add(80*time.Minute), models.EndReasonManual)
	if err != nil || s.Status != models.SessionStatusEnded {
		t.Fatalf("end: %v %s", err, s.Status)
	}
	if s.EndTime == nil || *s.EndTime != t0.Add(80*time.Minute).Unix() {
		t.Fatal("end time not stamped")
	}

	// Ended is terminal: operations fail, a fresh start succeeds
	if _, err := m.EndSession(ctx, "a1", nil, t0.Add(81*time.Minute), models.EndReasonManual); err == nil {
		t.Fatal("end after end must fail")
	}
	if _, err := m.StartSession(ctx, "a1", nil, nil, t0.Add(82*time.Minute)); err != nil {
		t.Fatalf("start after end: %v", err)
	}
}

func TestStartSessionConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.StartSession(ctx, "a1", nil, nil, t0); err != nil {
		t.Fatal(err)
	}
	var conflict *apperrors.ConflictError
	if _, err := m.StartSession(ctx, "a1", nil, nil, t0.Add(time.Second)); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// Paused still counts as open
	m.PauseSession(ctx, "a1", t0.Add(time.Minute))
	if _, err := m.StartSession(ctx, "a1", nil, nil, t0.Add(2*time.Minute)); !errors.As(err, &conflict) {
		t.Fatalf("start over paused: expected ConflictError, got %v", err)
	}
}

func TestConcurrentStartsExactlyOneWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.StartSession(ctx, "a1", nil, nil, t0)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *apperrors.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one start to win, got %d", succeeded)
	}
}

func TestForceEndOpenSessions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.StartSession(ctx, "a1", nil, nil, t0)
	m.StartSession(ctx, "a2", nil, nil, t0.Add(time.Hour))
	m.PauseSession(ctx, "a2", t0.Add(2*time.Hour))
	m.StartSession(ctx, "a3", nil, nil, t0.Add(time.Hour))
	m.EndSession(ctx, "a3", nil, t0.Add(3*time.Hour), models.EndReasonManual)

	cutoff := time.Date(2025, 6, 2, 21, 0, 0, 0, time.UTC)
	ended, err := m.ForceEndOpenSessions(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(ended) != 2 {
		t.Fatalf("expected 2 force-ended sessions, got %d", len(ended))
	}
	for _, s := range ended {
		if *s.EndTime != cutoff.Unix() {
			t.Fatalf("cutoff not stamped: %d", *s.EndTime)
		}
		if s.EndReason == nil || *s.EndReason != models.EndReasonAutoClosed {
			t.Fatal("end reason not auto_closed")
		}
	}

	// Sweep is idempotent; nothing left open
	again, _ := m.ForceEndOpenSessions(ctx, cutoff.Add(time.Minute))
	if len(again) != 0 {
		t.Fatalf("second sweep ended %d sessions", len(again))
	}
}

func TestInsertSamplesDedup(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	sample := models.GpsSample{AgentID: "a1", Latitude: -12.05, Longitude: -77.04, CapturedAt: t0.Unix()}
	n, err := m.InsertSamples(ctx, []models.GpsSample{sample, sample})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("duplicate within batch: inserted %d", n)
	}

	// Client retry of the same payload inserts nothing new
	n, _ = m.InsertSamples(ctx, []models.GpsSample{sample})
	if n != 0 {
		t.Fatalf("retry: inserted %d", n)
	}

	all, _ := m.ListSamples(ctx, "a1", t0.Add(-time.Hour), t0.Add(time.Hour))
	if len(all) != 1 {
		t.Fatalf("stored %d samples", len(all))
	}
}

func TestListSamplesChronological(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// Batch arrives out of order, as an offline flush would
	batch := []models.GpsSample{
		{AgentID: "a1", Latitude: -12.055, Longitude: -77.038, CapturedAt: t0.Add(15 * time.Minute).Unix()},
		{AgentID: "a1", Latitude: -12.0464, Longitude: -77.0428, CapturedAt: t0.Add(5 * time.Minute).Unix()},
		{AgentID: "a1", Latitude: -12.050, Longitude: -77.040, CapturedAt: t0.Add(10 * time.Minute).Unix()},
	}
	if _, err := m.InsertSamples(ctx, batch); err != nil {
		t.Fatal(err)
	}

	out, _ := m.ListSamples(ctx, "a1", t0, t0.Add(time.Hour))
	if len(out) != 3 {
		t.Fatalf("got %d samples", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].CapturedAt < out[i-1].CapturedAt {
			t.Fatal("samples not in chronological order")
		}
	}
	if out[0].Latitude != -12.0464 {
		t.Fatal("earliest sample not first")
	}
}

func TestNearbyStrictRadius(t *testing.T) {
	m := NewMemory()
	seedOrg(m)
	ctx := context.Background()

	center := models.Coordinate{Latitude: -12.0464, Longitude: -77.0428}

	// ~111.19 km east is exactly one degree of longitude at this latitude
	// scaled by cos(lat); build one PDV just inside 1 km and one outside.
	addPDVAt(m, "near", "r1", center.Latitude, center.Longitude+0.005)
	addPDVAt(m, "far", "r1", center.Latitude, center.Longitude+0.05)
	m.AddPDV(models.PDV{ID: "nocoords", RouteID: "r1", Name: "PDV nocoords", Status: "active"})

	got, err := m.NearbyPDVs(ctx, center.Latitude, center.Longitude, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "near" {
		t.Fatalf("expected only the near PDV, got %+v", got)
	}

	// Boundary: exclude a PDV at exactly the radius
	d := got[0].DistanceKm
	if d <= 0 || d >= 1.0 {
		t.Fatalf("near distance out of range: %f", d)
	}
	exact, _ := m.NearbyPDVs(ctx, center.Latitude, center.Longitude, d)
	for _, p := range exact {
		if p.ID == "near" {
			t.Fatal("PDV exactly at radius must be excluded")
		}
	}
	within, _ := m.NearbyPDVs(ctx, center.Latitude, center.Longitude, d+1e-9)
	found := false
	for _, p := range within {
		if p.ID == "near" {
			found = true
		}
	}
	if !found {
		t.Fatal("PDV just inside radius must be included")
	}
}

func TestNearbySortedAscending(t *testing.T) {
	m := NewMemory()
	seedOrg(m)
	ctx := context.Background()

	addPDVAt(m, "p3", "r1", -12.0464, -77.0300)
	addPDVAt(m, "p1", "r1", -12.0464, -77.0420)
	addPDVAt(m, "p2", "r1", -12.0464, -77.0380)

	got, _ := m.NearbyPDVs(ctx, -12.0464, -77.0428, 5.0)
	if len(got) != 3 {
		t.Fatalf("got %d PDVs", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceKm < got[i-1].DistanceKm {
			t.Fatal("results not sorted ascending by distance")
		}
	}
	if got[0].ID != "p1" || got[2].ID != "p3" {
		t.Fatalf("order wrong: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestScopedListingsCloseWorld(t *testing.T) {
	m := NewMemory()
	seedOrg(m)
	ctx := context.Background()
	addPDVAt(m, "p1", "r1", -12.04, -77.04)
	addPDVAt(m, "p2", "r2", -12.20, -77.00)

	admin := scope.Scope{Kind: scope.Unrestricted}
	supervisorZ1 := scope.Scope{Kind: scope.ZonalRestricted, ZonalIDs: []string{"z1"}, BusinessIDs: []string{"b1"}}
	unassigned := scope.Scope{Kind: scope.ZonalRestricted}

	if pdvs, _ := m.ListPDVs(ctx, admin); len(pdvs) != 2 {
		t.Fatalf("admin sees %d PDVs", len(pdvs))
	}
	if pdvs, _ := m.ListPDVs(ctx, supervisorZ1); len(pdvs) != 1 || pdvs[0].ID != "p1" {
		t.Fatalf("z1 supervisor: %+v", pdvs)
	}
	if pdvs, _ := m.ListPDVs(ctx, unassigned); len(pdvs) != 0 {
		t.Fatal("unassigned supervisor must see zero PDVs")
	}
	if zonals, _ := m.ListZonals(ctx, unassigned); len(zonals) != 0 {
		t.Fatal("unassigned supervisor must see zero zonals")
	}
	if circuits, _ := m.ListCircuits(ctx, supervisorZ1); len(circuits) != 1 || circuits[0].ID != "c1" {
		t.Fatalf("z1 supervisor circuits: %+v", circuits)
	}
	if routes, _ := m.ListRoutes(ctx, admin); len(routes) != 2 {
		t.Fatal("admin must see all routes")
	}

	// Scoped proximity composes the same restriction
	near, _ := m.NearbyPDVsScoped(ctx, supervisorZ1, -12.20, -77.00, 2.0)
	if len(near) != 0 {
		t.Fatalf("z2 PDV leaked into z1 scope: %+v", near)
	}
	nearAdmin, _ := m.NearbyPDVsScoped(ctx, admin, -12.20, -77.00, 2.0)
	if len(nearAdmin) != 1 || nearAdmin[0].ID != "p2" {
		t.Fatalf("admin scoped nearby: %+v", nearAdmin)
	}
}

func TestListActiveAgentsScope(t *testing.T) {
	m := NewMemory()
	seedOrg(m)
	ctx := context.Background()

	m.CreateAgent(ctx, models.Agent{ID: "v1", Email: "v1@x.pe", Role: models.RoleVendor, Active: true, Name: "Vendor One"})
	m.CreateAgent(ctx, models.Agent{ID: "v2", Email: "v2@x.pe", Role: models.RoleVendor, Active: true, Name: "Vendor Two"})
	m.AssignCircuit("v1", "c1") // zonal z1
	m.AssignCircuit("v2", "c2") // zonal z2

	m.StartSession(ctx, "v1", nil, nil, t0)
	m.StartSession(ctx, "v2", nil, nil, t0)
	m.InsertSamples(ctx, []models.GpsSample{{AgentID: "v1", Latitude: -12.04, Longitude: -77.04, CapturedAt: t0.Add(time.Minute).Unix()}})

	admin := scope.Scope{Kind: scope.Unrestricted}
	supervisorZ1 := scope.Scope{Kind: scope.ZonalRestricted, ZonalIDs: []string{"z1"}}

	all, _ := m.ListActiveAgents(ctx, admin)
	if len(all) != 2 {
		t.Fatalf("admin sees %d active agents", len(all))
	}

	scoped, _ := m.ListActiveAgents(ctx, supervisorZ1)
	if len(scoped) != 1 || scoped[0].AgentID != "v1" {
		t.Fatalf("z1 supervisor sees %+v", scoped)
	}
	if scoped[0].LastLocation == nil {
		t.Fatal("latest sample missing from dashboard row")
	}

	none, _ := m.ListActiveAgents(ctx, scope.Scope{Kind: scope.ZonalRestricted})
	if len(none) != 0 {
		t.Fatal("unassigned supervisor must see zero agents")
	}
}

func TestRouteDistanceMatchesHaversine(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	pts := [][2]float64{
		{-12.0464, -77.0428},
		{-12.0500, -77.0400},
		{-12.0550, -77.0380},
	}
	for i, p := range pts {
		m.InsertSamples(ctx, []models.GpsSample{{
			AgentID: "a1", Latitude: p[0], Longitude: p[1],
			CapturedAt: t0.Add(time.Duration(5*(i+1)) * time.Minute).Unix(),
		}})
	}

	samples, _ := m.ListSamples(ctx, "a1", t0, t0.Add(time.Hour))
	total := 0.0
	for i := 1; i < len(samples); i++ {
		total += geo.HaversineKm(samples[i-1].Latitude, samples[i-1].Longitude, samples[i].Latitude, samples[i].Longitude)
	}
	want := geo.PathDistanceKm(pts)
	if total != want {
		t.Fatalf("distance %f != %f", total, want)
	}
}
