package stats

import (
	"sort"

	"fieldtrack-backend/internal/geo"
	"fieldtrack-backend/internal/models"
)

// Reconstruct orders samples chronologically and derives the traveled
// polyline with its cumulative haversine distance. Fewer than two samples
// means zero distance, not an error.
func Reconstruct(samples []models.GpsSample) models.RouteResult {
	sorted := make([]models.GpsSample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CapturedAt < sorted[j].CapturedAt })

	result := models.RouteResult{
		Points:      make([]models.RoutePoint, 0, len(sorted)),
		SampleCount: len(sorted),
	}

	total := 0.0
	for i, s := range sorted {
		result.Points = append(result.Points, models.RoutePoint{
			Latitude:   s.Latitude,
			Longitude:  s.Longitude,
			CapturedAt: s.CapturedAt,
		})
		if i > 0 {
			prev := sorted[i-1]
			total += geo.HaversineKm(prev.Latitude, prev.Longitude, s.Latitude, s.Longitude)
		}
	}
	result.TotalDistanceKm = geo.RoundKm(total)

	if n := len(sorted); n > 0 {
		last := sorted[n-1].CapturedAt
		result.LastActivityAt = &last
	}
	return result
}
