package handlers

import (
	"net/http"
	"strconv"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/pkg/utils"
)

// defaultRadiusKm applies when the caller does not specify a radius
const defaultRadiusKm = 1.0

// NearbyPDVs returns points of sale within the radius, ordered by
// distance ascending. A PDV exactly on the boundary is excluded.
func NearbyPDVs(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		latStr, lonStr := q.Get("latitude"), q.Get("longitude")
		verr := &apperrors.ValidationError{}
		if latStr == "" {
			verr.Add("latitude", "is required")
		}
		if lonStr == "" {
			verr.Add("longitude", "is required")
		}
		if len(verr.Fields) > 0 {
			respondAppError(w, verr)
			return
		}

		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil || lat < -90 || lat > 90 {
			respondAppError(w, apperrors.NewValidationError("latitude", "must be a number between -90 and 90"))
			return
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil || lon < -180 || lon > 180 {
			respondAppError(w, apperrors.NewValidationError("longitude", "must be a number between -180 and 180"))
			return
		}

		radius := defaultRadiusKm
		if radiusStr := q.Get("radius"); radiusStr != "" {
			radius, err = strconv.ParseFloat(radiusStr, 64)
			if err != nil || radius <= 0 || radius > 100 {
				respondAppError(w, apperrors.NewValidationError("radius", "must be a number between 0 and 100 km"))
				return
			}
		}

		pdvs, err := s.NearbyPDVs(r.Context(), lat, lon, radius)
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", map[string]interface{}{
			"pdvs":      pdvs,
			"count":     len(pdvs),
			"radius_km": radius,
		})
	}
}
