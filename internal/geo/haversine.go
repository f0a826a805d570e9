// Package geo holds the geodesic math every distance computation in the
// service goes through. Consumer-grade GPS input, spherical earth model;
// no map matching or road snapping.
package geo

import "math"

// EarthRadiusKm is the sphere radius used by every haversine computation.
// Route distances are only comparable across deployments because this
// constant and the formula below never change.
const EarthRadiusKm = 6371.0

// HaversineKm calculates the great-circle distance between two GPS
// coordinates in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	// Convert to radians
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	// Haversine formula
	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// PathDistanceKm sums the pairwise haversine legs of an ordered path.
// Fewer than two points is distance zero, not an error.
func PathDistanceKm(points [][2]float64) float64 {
	if len(points) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1][0], points[i-1][1], points[i][0], points[i][1])
	}
	return total
}

// RoundKm rounds a distance to two decimal places for display
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
