package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"fieldtrack-backend/internal/models"
)

// DataSource is the slice of the store the aggregator reads from.
type DataSource interface {
	ListSessionsStartedBetween(ctx context.Context, agentID string, from, to time.Time) ([]models.WorkingSession, error)
	ListSamples(ctx context.Context, agentID string, from, to time.Time) ([]models.GpsSample, error)
	ListVisits(ctx context.Context, agentID string, from, to time.Time) ([]models.PdvVisit, error)
}

// ExpectedVisitsProvider supplies the planned visit count for a window.
// There is no real assignment table yet, so the default is a fixed figure.
type ExpectedVisitsProvider interface {
	ExpectedVisits(ctx context.Context, agentID string, from, to time.Time) (int, error)
}

// FixedExpectedVisits returns the same count for every agent and window.
type FixedExpectedVisits int

func (f FixedExpectedVisits) ExpectedVisits(_ context.Context, _ string, _, _ time.Time) (int, error) {
	return int(f), nil
}

// DefaultProgrammedPDVs is the placeholder daily visit plan.
const DefaultProgrammedPDVs = 10

// DailyStats reports one agent's day. Working time is in minutes here;
// period summaries use hours. The two units are deliberate, the daily
// detail screen and the period report consume different granularities.
type DailyStats struct {
	Date                 string        `json:"date"` // YYYY-MM-DD
	TotalLocations       int           `json:"total_locations"`
	DistanceTraveledKm   float64       `json:"distance_traveled_km"`
	WorkingTimeMinutes   int           `json:"working_time_minutes"`
	PdvVisits            int           `json:"pdv_visits"`
	ProgrammedPdvs       int           `json:"programmed_pdvs"`
	CompliancePercentage float64       `json:"compliance_percentage"`
	Visits               []VisitDetail `json:"visits"`
}

type PeriodStats struct {
	From                 string  `json:"from"`
	To                   string  `json:"to"`
	TotalLocations       int     `json:"total_locations"`
	DistanceTraveledKm   float64 `json:"distance_traveled_km"`
	WorkingTimeHours     float64 `json:"working_time_hours"`
	PdvVisits            int     `json:"pdv_visits"`
	ProgrammedPdvs       int     `json:"programmed_pdvs"`
	CompliancePercentage float64 `json:"compliance_percentage"`
}

// VisitDetail is one row of the daily visit breakdown.
type VisitDetail struct {
	PdvName         string `json:"pdv_name"`
	CheckInTime     string `json:"check_in_time"` // HH:mm
	DurationMinutes int    `json:"duration_minutes"`
}

// Aggregator combines sessions, samples and visit records into
// per-agent metrics.
type Aggregator struct {
	src      DataSource
	expected ExpectedVisitsProvider
	now      func() time.Time
	loc      *time.Location
}

func NewAggregator(src DataSource, expected ExpectedVisitsProvider, loc *time.Location, now func() time.Time) *Aggregator {
	if expected == nil {
		expected = FixedExpectedVisits(DefaultProgrammedPDVs)
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{src: src, expected: expected, now: now, loc: loc}
}

// Daily computes the stats for one calendar day in the aggregator's timezone.
func (a *Aggregator) Daily(ctx context.Context, agentID string, date time.Time) (DailyStats, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, a.loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	core, visits, err := a.window(ctx, agentID, dayStart, dayEnd)
	if err != nil {
		return DailyStats{}, err
	}

	out := DailyStats{
		Date:                 dayStart.Format("2006-01-02"),
		TotalLocations:       core.locations,
		DistanceTraveledKm:   core.distanceKm,
		WorkingTimeMinutes:   int(core.working.Minutes()),
		PdvVisits:            len(visits),
		ProgrammedPdvs:       core.programmed,
		CompliancePercentage: compliance(len(visits), core.programmed),
		Visits:               make([]VisitDetail, 0, len(visits)),
	}
	for _, v := range visits {
		out.Visits = append(out.Visits, a.visitDetail(v))
	}
	return out, nil
}

// Period computes a summary over [from, to); working time is in hours.
func (a *Aggregator) Period(ctx context.Context, agentID string, from, to time.Time) (PeriodStats, error) {
	core, visits, err := a.window(ctx, agentID, from, to)
	if err != nil {
		return PeriodStats{}, err
	}
	return PeriodStats{
		From:                 from.In(a.loc).Format("2006-01-02"),
		To:                   to.In(a.loc).Format("2006-01-02"),
		TotalLocations:       core.locations,
		DistanceTraveledKm:   core.distanceKm,
		WorkingTimeHours:     math.Round(core.working.Hours()*10) / 10,
		PdvVisits:            len(visits),
		ProgrammedPdvs:       core.programmed,
		CompliancePercentage: compliance(len(visits), core.programmed),
	}, nil
}

type windowStats struct {
	locations  int
	distanceKm float64
	working    time.Duration
	programmed int
}

func (a *Aggregator) window(ctx context.Context, agentID string, from, to time.Time) (windowStats, []models.PdvVisit, error) {
	samples, err := a.src.ListSamples(ctx, agentID, from, to)
	if err != nil {
		return windowStats{}, nil, fmt.Errorf("listing samples: %w", err)
	}
	sessions, err := a.src.ListSessionsStartedBetween(ctx, agentID, from, to)
	if err != nil {
		return windowStats{}, nil, fmt.Errorf("listing sessions: %w", err)
	}
	visits, err := a.src.ListVisits(ctx, agentID, from, to)
	if err != nil {
		return windowStats{}, nil, fmt.Errorf("listing visits: %w", err)
	}

	now := a.now()
	var working time.Duration
	for i := range sessions {
		working += sessions[i].WorkedDuration(now)
	}

	programmed, err := a.expected.ExpectedVisits(ctx, agentID, from, to)
	if err != nil {
		return windowStats{}, nil, fmt.Errorf("expected visits: %w", err)
	}

	return windowStats{
		locations:  len(samples),
		distanceKm: Reconstruct(samples).TotalDistanceKm,
		working:    working,
		programmed: programmed,
	}, visits, nil
}

func (a *Aggregator) visitDetail(v models.PdvVisit) VisitDetail {
	name := "PDV sin nombre"
	if v.PdvName != nil && *v.PdvName != "" {
		name = *v.PdvName
	}

	duration := 0
	switch {
	case v.CheckOut != nil:
		duration = int((*v.CheckOut - v.CheckIn) / 60)
	case v.DurationMinutes != nil:
		duration = *v.DurationMinutes
	}

	return VisitDetail{
		PdvName:         name,
		CheckInTime:     time.Unix(v.CheckIn, 0).In(a.loc).Format("15:04"),
		DurationMinutes: duration,
	}
}

// compliance is visits/programmed as a percentage rounded to 1 decimal,
// exactly 0 when nothing is programmed.
func compliance(visits, programmed int) float64 {
	if programmed == 0 {
		return 0
	}
	return math.Round(float64(visits)/float64(programmed)*1000) / 10
}
