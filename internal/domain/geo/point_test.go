package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRanges(t *testing.T) {
	require.NoError(t, Point{Lat: 9.6412, Lng: -13.5784}.Validate())
	require.NoError(t, Point{Lat: -90, Lng: 180}.Validate())
	require.NoError(t, Point{Lat: 90, Lng: -180}.Validate())

	assert.ErrorIs(t, Point{Lat: 90.0001, Lng: 0}.Validate(), ErrInvalidLatitude)
	assert.ErrorIs(t, Point{Lat: -90.0001, Lng: 0}.Validate(), ErrInvalidLatitude)
	assert.ErrorIs(t, Point{Lat: 0, Lng: 180.0001}.Validate(), ErrInvalidLongitude)
	assert.ErrorIs(t, Point{Lat: 0, Lng: -180.0001}.Validate(), ErrInvalidLongitude)

	assert.ErrorIs(t, Point{Lat: math.NaN(), Lng: 0}.Validate(), ErrInvalidLatitude)
	assert.ErrorIs(t, Point{Lat: 0, Lng: math.NaN()}.Validate(), ErrInvalidLongitude)
}

func TestHaversineKM(t *testing.T) {
	kaloum := Point{Lat: 9.5092, Lng: -13.7122}

	assert.Zero(t, HaversineKM(kaloum, kaloum))

	// Conakry to Kindia, roughly 110 km as the crow flies
	kindia := Point{Lat: 10.0569, Lng: -12.8658}
	got := HaversineKM(kaloum, kindia)
	assert.InDelta(t, 110, got, 15)

	// symmetric
	assert.InDelta(t, got, HaversineKM(kindia, kaloum), 1e-9)

	// one degree of latitude is about 111 km anywhere
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 1, Lng: 0}
	assert.InDelta(t, 111.19, HaversineKM(a, b), 0.1)
}
