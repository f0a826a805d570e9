package models

// Organizational hierarchy: business → zonal → circuit → route → PDV.
// All of it is static reference data supplied by the admin collaborator;
// this service reads it, filters it by visibility scope, and never writes.

type Business struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

type Zonal struct {
	ID         string `json:"id" db:"id"`
	BusinessID string `json:"business_id" db:"business_id"`
	Name       string `json:"name" db:"name"`
	CreatedAt  int64  `json:"created_at" db:"created_at"`
}

type Circuit struct {
	ID        string  `json:"id" db:"id"`
	ZonalID   string  `json:"zonal_id" db:"zonal_id"`
	Name      string  `json:"name" db:"name"`
	Frequency *string `json:"frequency,omitempty" db:"frequency"` // visit cadence label, informational only
	CreatedAt int64   `json:"created_at" db:"created_at"`
}

type Route struct {
	ID        string `json:"id" db:"id"`
	CircuitID string `json:"circuit_id" db:"circuit_id"`
	Name      string `json:"name" db:"name"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

// PDV is a point of sale an agent visits
type PDV struct {
	ID             string   `json:"id" db:"id"`
	RouteID        string   `json:"route_id" db:"route_id"`
	Name           string   `json:"name" db:"name"`
	Classification *string  `json:"classification,omitempty" db:"classification"`
	Status         string   `json:"status" db:"status"`
	Latitude       *float64 `json:"latitude" db:"latitude"`
	Longitude      *float64 `json:"longitude" db:"longitude"`
	CreatedAt      int64    `json:"created_at" db:"created_at"`
}

// HasCoordinates reports whether the PDV can participate in proximity search
func (p *PDV) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// PDVWithDistance is a proximity search result row
type PDVWithDistance struct {
	PDV
	DistanceKm float64 `json:"distance_km" db:"distance_km"`
}
