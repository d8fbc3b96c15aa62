package ports

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/geo"
)

// NearbyWorker is a geo index hit: a worker id with its last known
// position and how old that position is.
type NearbyWorker struct {
	WorkerID   string
	Point      geo.Point
	DistanceKM float64
	RecordedAt time.Time
}

// GeoIndex maintains last-known worker positions for radius queries.
// Implementations must exclude entries older than the staleness window.
type GeoIndex interface {
	Update(ctx context.Context, workerID string, p geo.Point, recordedAt time.Time) error
	Remove(ctx context.Context, workerID string) error
	Nearby(ctx context.Context, center geo.Point, radiusKM float64, limit int) ([]NearbyWorker, error)
}

// Geocoder resolves coordinates to a human-readable address. It is an
// external collaborator; failures degrade to the caller-supplied address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (string, error)
}

// Notification is a fire-and-forget message for a single recipient.
type Notification struct {
	RecipientID string         `json:"recipient_id"`
	Kind        string         `json:"kind"`
	JobID       string         `json:"job_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Notifier hands notifications to the external notification gateway.
// Delivery is best-effort: errors are logged by callers, never propagated
// into job state decisions.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
