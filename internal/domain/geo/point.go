package geo

import (
	"errors"
	"math"
)

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// Validate checks coordinate ranges and rejects NaN.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || math.IsNaN(p.Lat) {
		return ErrInvalidLatitude
	}
	if p.Lng < -180 || p.Lng > 180 || math.IsNaN(p.Lng) {
		return ErrInvalidLongitude
	}
	return nil
}

// HaversineKM returns the great-circle distance between two points in
// kilometers. Coordinates are lat/lon degrees, so Euclidean distance
// would be wrong; this is the only distance formula the engine uses.
func HaversineKM(a, b Point) float64 {
	const earthRadiusKM = 6371.0
	la1 := a.Lat * math.Pi / 180
	la2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}
