package postgres

import (
	"context"
	"errors"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// PositionRepo persists worker positions: a one-row-per-worker latest table
// plus an append-only report archive.
type PositionRepo struct{}

// NewPositionRepo constructs a new PositionRepo.
func NewPositionRepo() ports.PositionRepository {
	return &PositionRepo{}
}

// ApplyLatest upserts worker_positions, but the DO UPDATE clause only fires
// when the incoming report is strictly newer. Out-of-order reports leave the
// stored row untouched and return applied=false.
func (repo *PositionRepo) ApplyLatest(ctx context.Context, report *geo.PositionReport) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO worker_positions (worker_id, lat, lng, accuracy_meters, speed_kmh, recorded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (worker_id) DO UPDATE
		SET lat = EXCLUDED.lat,
		    lng = EXCLUDED.lng,
		    accuracy_meters = EXCLUDED.accuracy_meters,
		    speed_kmh = EXCLUDED.speed_kmh,
		    recorded_at = EXCLUDED.recorded_at,
		    updated_at = now()
		WHERE worker_positions.recorded_at < EXCLUDED.recorded_at
	`,
		report.WorkerID,
		report.Point.Lat,
		report.Point.Lng,
		report.AccuracyMeters,
		report.SpeedKMH,
		report.RecordedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetLatest returns the worker's last applied position, or nil when the
// worker has never reported.
func (repo *PositionRepo) GetLatest(ctx context.Context, workerID string) (*geo.PositionReport, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out geo.PositionReport
	err = tx.QueryRow(ctx, `
		SELECT worker_id, lat, lng, accuracy_meters, speed_kmh, recorded_at
		FROM worker_positions
		WHERE worker_id = $1
	`, workerID).Scan(
		&out.WorkerID, &out.Point.Lat, &out.Point.Lng,
		&out.AccuracyMeters, &out.SpeedKMH, &out.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// Archive appends the raw report to position_reports. Every report lands
// here, applied or not; the archive is audit-only.
func (repo *PositionRepo) Archive(ctx context.Context, report *geo.PositionReport) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO position_reports (worker_id, job_id, lat, lng, accuracy_meters, speed_kmh, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		report.WorkerID,
		report.JobID,
		report.Point.Lat,
		report.Point.Lng,
		report.AccuracyMeters,
		report.SpeedKMH,
		report.RecordedAt,
	)
	return err
}
