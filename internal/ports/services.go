package ports

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/job"
)

// GeoPoint represents a simple latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ----- DTOs for Dispatch Service -----

// StopInput is one endpoint of a job as submitted by the requester.
type StopInput struct {
	Latitude     float64
	Longitude    float64
	Address      string
	ContactName  string
	ContactPhone string
}

// CreateJobInput is the validated input required to create a job.
type CreateJobInput struct {
	RequesterID string
	Kind        job.Kind
	PaymentMode job.PaymentMode
	Origin      StopInput
	Destination StopInput
}

// CreateJobResult is returned by DispatchService.CreateJob().
type CreateJobResult struct {
	JobID            string  `json:"job_id"`
	JobNumber        string  `json:"job_number"`
	Status           string  `json:"status"`
	Price            float64 `json:"price"`
	EstimatedMinutes int     `json:"estimated_minutes"`
	DistanceKM       float64 `json:"distance_km"`
}

// BoardInput is the validated input for GET /jobs/board.
type BoardInput struct {
	WorkerID string
	RadiusKM float64 // 0 means the configured default
	Limit    int     // 0 means the configured default
}

// BoardEntry is a redacted pending-job summary. It deliberately omits the
// destination and all requester contact details; a worker sees those only
// after a successful claim.
type BoardEntry struct {
	JobID              string  `json:"job_id"`
	JobNumber          string  `json:"job_number"`
	Kind               string  `json:"kind"`
	PaymentMode        string  `json:"payment_mode"`
	OriginAddress      string  `json:"origin_address"`
	DistanceToOrigin   float64 `json:"distance_to_origin_km"`
	TripDistanceKM     float64 `json:"trip_distance_km"`
	CombinedDistanceKM float64 `json:"combined_distance_km"`
	EstimatedEarnings  float64 `json:"estimated_earnings"`
	EstimatedMinutes   int     `json:"estimated_minutes"`
	PostedAt           string  `json:"posted_at"`
}

// BoardResult is the top-level response DTO for GET /jobs/board.
type BoardResult struct {
	Entries     []BoardEntry `json:"entries"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ClaimOutcome is the tri-state result of a claim attempt.
type ClaimOutcome string

const (
	ClaimOutcomeClaimed      ClaimOutcome = "CLAIMED"
	ClaimOutcomeAlreadyTaken ClaimOutcome = "ALREADY_TAKEN"
	ClaimOutcomeWorkerBusy   ClaimOutcome = "WORKER_BUSY"
)

// ClaimInput is the validated input for POST /jobs/{job_id}/claim.
type ClaimInput struct {
	JobID    string // from path
	WorkerID string // from auth claims
}

// JobDetails is the unredacted job view revealed to the claiming worker.
type JobDetails struct {
	JobID               string   `json:"job_id"`
	JobNumber           string   `json:"job_number"`
	Kind                string   `json:"kind"`
	PaymentMode         string   `json:"payment_mode"`
	Status              string   `json:"status"`
	Price               float64  `json:"price"`
	OriginAddress       string   `json:"origin_address"`
	OriginLocation      GeoPoint `json:"origin_location"`
	OriginContact       string   `json:"origin_contact"`
	OriginPhone         string   `json:"origin_phone"`
	DestinationAddress  string   `json:"destination_address"`
	DestinationLocation GeoPoint `json:"destination_location"`
	DestinationContact  string   `json:"destination_contact"`
	DestinationPhone    string   `json:"destination_phone"`
}

// ClaimResult is returned by DispatchService.Claim(). Details is non-nil
// only when Outcome is CLAIMED.
type ClaimResult struct {
	Outcome ClaimOutcome `json:"outcome"`
	Details *JobDetails  `json:"details,omitempty"`
	Message string       `json:"message"`
}

// AdvanceInput is the validated input for POST /jobs/{job_id}/transition.
type AdvanceInput struct {
	JobID    string     // from path
	WorkerID string     // from auth claims
	Next     job.Status // from body
}

// AdvanceResult matches the API response for a milestone transition.
type AdvanceResult struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Terminal  bool      `json:"terminal"`
}

// CancelJobResult matches the API response for a cancellation.
type CancelJobResult struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
	Message     string `json:"message"`
}

// MarkPaidInput is the validated input for POST /jobs/{job_id}/paid.
type MarkPaidInput struct {
	JobID    string // from path
	WorkerID string // from auth claims
}

// MarkPaidResult matches the API response for a cash settlement.
type MarkPaidResult struct {
	JobID    string    `json:"job_id"`
	Status   string    `json:"status"`
	PaidAt   time.Time `json:"paid_at"`
	Earnings float64   `json:"earnings"`
}

// ----- Dispatch Service Interface -----

// DispatchService exposes the boundary for the dispatch service.
type DispatchService interface {
	CreateJob(ctx context.Context, in CreateJobInput) (CreateJobResult, error)
	Board(ctx context.Context, in BoardInput) (BoardResult, error)
	Claim(ctx context.Context, in ClaimInput) (ClaimResult, error)
	Advance(ctx context.Context, in AdvanceInput) (AdvanceResult, error)
	CancelJob(ctx context.Context, jobID, callerID, reason string) (CancelJobResult, error)
	MarkPaid(ctx context.Context, in MarkPaidInput) (MarkPaidResult, error)
	RunBackgroundConsumers(ctx context.Context)
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for Tracking Service -----

// GoOnlineInput is the validated input for POST /workers/{worker_id}/online.
type GoOnlineInput struct {
	WorkerID  string  // from path
	Latitude  float64 // from body
	Longitude float64 // from body
}

// GoOnlineResult matches the API response for going online.
type GoOnlineResult struct {
	Status  string `json:"status"` // "AVAILABLE"
	Message string `json:"message"`
}

// GoOfflineInput is the validated input for POST /workers/{worker_id}/offline.
type GoOfflineInput struct {
	WorkerID string // from path
}

// GoOfflineResult matches the API response for going offline.
type GoOfflineResult struct {
	Status  string `json:"status"` // "OFFLINE"
	Message string `json:"message"`
}

// ReportPositionInput is the validated input for POST /workers/{worker_id}/position.
type ReportPositionInput struct {
	WorkerID       string     // from path
	Latitude       float64    // from body
	Longitude      float64    // from body
	AccuracyMeters *float64   // optional
	SpeedKMH       *float64   // optional
	RecordedAt     *time.Time // optional, defaults to server time
}

// ReportPositionResult matches the API response for a position report.
// Applied=false means a newer report was already stored and this one was
// archived only.
type ReportPositionResult struct {
	Applied    bool      `json:"applied"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ----- Tracking Service Interface -----

// TrackingService defines the methods for managing worker presence and positions.
type TrackingService interface {
	GoOnline(ctx context.Context, in GoOnlineInput) (GoOnlineResult, error)
	GoOffline(ctx context.Context, in GoOfflineInput) (GoOfflineResult, error)
	ReportPosition(ctx context.Context, in ReportPositionInput) (ReportPositionResult, error)
	StartBackgroundConsumer(ctx context.Context)
}
