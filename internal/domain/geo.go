package domain

import "github.com/golang/geo/s2"

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

// radiusToleranceKm absorbs the difference between our spherical distance
// and the service's own distance computation.
const radiusToleranceKm = 1.0

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}
