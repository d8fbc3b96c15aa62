package geocode

import (
	"context"
	"errors"
	"fmt"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/ports"

	"googlemaps.github.io/maps"
)

var ErrNoResult = errors.New("geocode: no result for coordinates")

// GoogleGeocoder resolves coordinates to street addresses via the Google
// Maps Geocoding API.
type GoogleGeocoder struct {
	client *maps.Client
}

// NewGoogleGeocoder creates a geocoder with the given API key.
func NewGoogleGeocoder(apiKey string) (*GoogleGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleGeocoder{client: client}, nil
}

var _ ports.Geocoder = (*GoogleGeocoder)(nil)

// ReverseGeocode returns the formatted address of the first match.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("geocode api error: %w", err)
	}
	if len(results) == 0 {
		return "", ErrNoResult
	}
	return results[0].FormattedAddress, nil
}

// NoopGeocoder is used when no API key is configured; it always reports
// ErrNoResult so callers fall back to the submitted address.
type NoopGeocoder struct{}

var _ ports.Geocoder = NoopGeocoder{}

func (NoopGeocoder) ReverseGeocode(context.Context, geo.Point) (string, error) {
	return "", ErrNoResult
}
