package geo

import (
	"errors"
	"math"
	"strings"
	"time"
)

// PositionReport is the domain entity corresponding to the append-only
// `position_reports` table. Reports derive the worker's last known position;
// history is retained for audit only, never for dispatch decisions.
type PositionReport struct {
	ID             string
	WorkerID       string
	JobID          *string // set when the worker held an active job at report time
	Point          Point
	AccuracyMeters *float64
	SpeedKMH       *float64
	RecordedAt     time.Time
}

var (
	ErrMissingWorkerID    = errors.New("worker id is missing")
	ErrNegativeAccuracy   = errors.New("accuracy_meters cannot be negative")
	ErrNegativeSpeed      = errors.New("speed_kmh cannot be negative")
	ErrRecordedAtZeroTime = errors.New("recorded_at must be a valid timestamp")
)

// NewPositionReport constructs a validated PositionReport. Only worker id
// and coordinates are strictly required.
func NewPositionReport(workerID string, jobID *string, p Point, accuracyMeters, speedKMH *float64, recordedAt time.Time) (*PositionReport, error) {
	report := &PositionReport{
		WorkerID:       strings.TrimSpace(workerID),
		Point:          p,
		AccuracyMeters: accuracyMeters,
		SpeedKMH:       speedKMH,
		RecordedAt:     recordedAt,
	}

	if jobID != nil {
		id := strings.TrimSpace(*jobID)
		report.JobID = &id
	}
	if report.RecordedAt.IsZero() {
		report.RecordedAt = time.Now().UTC()
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}

// Validate checks invariants of the PositionReport entity.
func (report PositionReport) Validate() error {
	if report.WorkerID == "" {
		return ErrMissingWorkerID
	}
	if err := report.Point.Validate(); err != nil {
		return err
	}
	if report.AccuracyMeters != nil {
		if *report.AccuracyMeters < 0 || math.IsNaN(*report.AccuracyMeters) {
			return ErrNegativeAccuracy
		}
	}
	if report.SpeedKMH != nil {
		if *report.SpeedKMH < 0 || math.IsNaN(*report.SpeedKMH) {
			return ErrNegativeSpeed
		}
	}
	if report.RecordedAt.IsZero() {
		return ErrRecordedAtZeroTime
	}
	return nil
}
