package stats

import (
	"context"
	"testing"
	"time"

	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/store"
)

var lima = time.FixedZone("America/Lima", -5*3600)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }
func intPtr(v int) *int       { return &v }

func TestReconstructEmptyAndSingle(t *testing.T) {
	r := Reconstruct(nil)
	if r.TotalDistanceKm != 0 || r.SampleCount != 0 || r.LastActivityAt != nil {
		t.Fatalf("empty: %+v", r)
	}

	r = Reconstruct([]models.GpsSample{{Latitude: -12.0464, Longitude: -77.0428, CapturedAt: 1000}})
	if r.TotalDistanceKm != 0 {
		t.Fatalf("single sample distance %f", r.TotalDistanceKm)
	}
	if r.SampleCount != 1 || r.LastActivityAt == nil || *r.LastActivityAt != 1000 {
		t.Fatalf("single: %+v", r)
	}
}

func TestReconstructSortsBeforeSumming(t *testing.T) {
	// One degree of longitude at the equator is ~111.19 km. Delivered in
	// reverse order: summed in arrival order the zig-zag would differ.
	samples := []models.GpsSample{
		{Latitude: 0, Longitude: 2, CapturedAt: 3000},
		{Latitude: 0, Longitude: 0, CapturedAt: 1000},
		{Latitude: 0, Longitude: 1, CapturedAt: 2000},
	}
	r := Reconstruct(samples)
	if r.TotalDistanceKm < 222.2 || r.TotalDistanceKm > 222.5 {
		t.Fatalf("distance %f, want ~222.39", r.TotalDistanceKm)
	}
	if r.Points[0].Longitude != 0 || r.Points[2].Longitude != 2 {
		t.Fatal("polyline not chronological")
	}
	if *r.LastActivityAt != 3000 {
		t.Fatalf("last activity %d", *r.LastActivityAt)
	}
}

func TestDailyStats(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	// 09:00-09:20 session with three samples and one complete visit
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, lima)
	m.StartSession(ctx, "a1", &models.Coordinate{Latitude: -12.0464, Longitude: -77.0428}, nil, start)
	m.EndSession(ctx, "a1", nil, start.Add(20*time.Minute), models.EndReasonManual)

	m.InsertSamples(ctx, []models.GpsSample{
		{AgentID: "a1", Latitude: -12.0464, Longitude: -77.0428, CapturedAt: start.Add(1 * time.Minute).Unix()},
		{AgentID: "a1", Latitude: -12.0500, Longitude: -77.0400, CapturedAt: start.Add(10 * time.Minute).Unix()},
		{AgentID: "a1", Latitude: -12.0550, Longitude: -77.0380, CapturedAt: start.Add(19 * time.Minute).Unix()},
	})

	m.AddVisit(models.PdvVisit{
		ID: "v1", AgentID: "a1", PdvID: "p1",
		CheckIn:  start.Add(12 * time.Minute).Unix(),
		CheckOut: i64Ptr(start.Add(17 * time.Minute).Unix()),
		PdvName:  strPtr("Bodega Rosita"),
	})

	agg := NewAggregator(m, FixedExpectedVisits(10), lima, fixedNow(start.Add(time.Hour)))
	got, err := agg.Daily(ctx, "a1", start)
	if err != nil {
		t.Fatal(err)
	}

	if got.Date != "2025-06-02" {
		t.Fatalf("date %s", got.Date)
	}
	if got.TotalLocations != 3 {
		t.Fatalf("locations %d", got.TotalLocations)
	}
	if got.WorkingTimeMinutes != 20 {
		t.Fatalf("working minutes %d", got.WorkingTimeMinutes)
	}
	if got.DistanceTraveledKm <= 0 || got.DistanceTraveledKm > 2 {
		t.Fatalf("distance %f", got.DistanceTraveledKm)
	}
	if got.PdvVisits != 1 || got.ProgrammedPdvs != 10 {
		t.Fatalf("visits %d/%d", got.PdvVisits, got.ProgrammedPdvs)
	}
	if got.CompliancePercentage != 10.0 {
		t.Fatalf("compliance %f", got.CompliancePercentage)
	}
	if len(got.Visits) != 1 {
		t.Fatalf("visit details %d", len(got.Visits))
	}
	v := got.Visits[0]
	if v.PdvName != "Bodega Rosita" || v.CheckInTime != "09:12" || v.DurationMinutes != 5 {
		t.Fatalf("visit detail %+v", v)
	}
}

func TestDailyStatsOpenSessionUsesNow(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, lima)
	m.StartSession(ctx, "a1", nil, nil, start)

	agg := NewAggregator(m, FixedExpectedVisits(0), lima, fixedNow(start.Add(45*time.Minute)))
	got, err := agg.Daily(ctx, "a1", start)
	if err != nil {
		t.Fatal(err)
	}
	if got.WorkingTimeMinutes != 45 {
		t.Fatalf("open session working minutes %d", got.WorkingTimeMinutes)
	}
	// Nothing programmed means zero compliance, never a division by zero
	if got.CompliancePercentage != 0 {
		t.Fatalf("compliance %f", got.CompliancePercentage)
	}
}

func TestVisitDetailFallbacks(t *testing.T) {
	agg := NewAggregator(store.NewMemory(), nil, lima, nil)

	checkIn := time.Date(2025, 6, 2, 14, 30, 0, 0, lima).Unix()
	v := agg.visitDetail(models.PdvVisit{CheckIn: checkIn, DurationMinutes: intPtr(8)})
	if v.PdvName != "PDV sin nombre" {
		t.Fatalf("fallback name %q", v.PdvName)
	}
	if v.CheckInTime != "14:30" {
		t.Fatalf("check-in %q", v.CheckInTime)
	}
	if v.DurationMinutes != 8 {
		t.Fatalf("stored duration estimate not used: %d", v.DurationMinutes)
	}
}

func TestPeriodStatsHours(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, lima)
	to := from.Add(7 * 24 * time.Hour)

	// Two full days worked across the week
	d1 := from.Add(9 * time.Hour)
	m.StartSession(ctx, "a1", nil, nil, d1)
	m.EndSession(ctx, "a1", nil, d1.Add(8*time.Hour), models.EndReasonManual)
	d2 := from.Add(24*time.Hour + 9*time.Hour)
	m.StartSession(ctx, "a1", nil, nil, d2)
	m.EndSession(ctx, "a1", nil, d2.Add(4*time.Hour+30*time.Minute), models.EndReasonManual)

	for i := 0; i < 3; i++ {
		m.AddVisit(models.PdvVisit{
			ID: string(rune('a' + i)), AgentID: "a1", PdvID: "p1",
			CheckIn: d1.Add(time.Duration(i) * time.Hour).Unix(),
		})
	}

	agg := NewAggregator(m, FixedExpectedVisits(6), lima, fixedNow(to))
	got, err := agg.Period(ctx, "a1", from, to)
	if err != nil {
		t.Fatal(err)
	}
	if got.WorkingTimeHours != 12.5 {
		t.Fatalf("working hours %f", got.WorkingTimeHours)
	}
	if got.PdvVisits != 3 || got.CompliancePercentage != 50.0 {
		t.Fatalf("visits %d compliance %f", got.PdvVisits, got.CompliancePercentage)
	}
	if got.From != "2025-06-02" {
		t.Fatalf("from %s", got.From)
	}
}

func TestComplianceRounding(t *testing.T) {
	cases := []struct {
		visits, programmed int
		want               float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{10, 10, 100},
		{12, 10, 120}, // over-delivery is reported, not clamped
	}
	for _, c := range cases {
		if got := compliance(c.visits, c.programmed); got != c.want {
			t.Errorf("compliance(%d,%d) = %f, want %f", c.visits, c.programmed, got, c.want)
		}
	}
}
