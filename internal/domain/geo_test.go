package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	// One degree of latitude is ~111.2 km on the mean sphere.
	assert.InDelta(t, 111.19, DistanceKm(0, 0, 1, 0), 0.05)
	assert.InDelta(t, 0, DistanceKm(35.0, -97.0, 35.0, -97.0), 1e-9)
	// Tokyo to Osaka.
	assert.InDelta(t, 397, DistanceKm(35.6762, 139.6503, 34.6937, 135.5023), 5)
}
