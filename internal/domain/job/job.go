package job

import (
	"errors"
	"strings"
	"time"

	"courier-dispatch/internal/domain/geo"
)

// Stop is one endpoint of a job: coordinates plus the human-readable
// address and contact used by the worker on the ground.
type Stop struct {
	Point        geo.Point
	Address      string
	ContactName  string
	ContactPhone string
}

// Job is the domain entity corresponding to the `jobs` table. A job is a
// delivery or a ride; the destination stop is confidential until a worker
// successfully claims it.
type Job struct {
	// Identity & audit
	ID        string
	JobNumber string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Actors
	RequesterID string
	WorkerID    *string // nil until claimed

	// Core state
	Kind        Kind
	PaymentMode PaymentMode
	Status      Status
	Price       float64 // fixed at creation, GNF; never renegotiated

	// Endpoints
	Origin      Stop
	Destination Stop

	// Lifecycle timestamps
	ClaimedAt    *time.Time
	PickedUpAt   *time.Time
	CompletedAt  *time.Time
	PaidAt       *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

var (
	ErrRequesterRequired = errors.New("requester id is required")
	ErrWorkerRequired    = errors.New("worker id is required")
	ErrJobNumberRequired = errors.New("job number is required")
	ErrNegativePrice     = errors.New("price cannot be negative")
	ErrAlreadyClaimed    = errors.New("job already claimed")
	ErrNotClaimed        = errors.New("no worker assigned to job")
)

// NewJob creates a job in PENDING state with its price fixed.
func NewJob(jobNumber, requesterID string, kind Kind, mode PaymentMode, price float64, origin, destination Stop) (*Job, error) {
	if jobNumber = strings.TrimSpace(jobNumber); jobNumber == "" {
		return nil, ErrJobNumberRequired
	}
	if requesterID = strings.TrimSpace(requesterID); requesterID == "" {
		return nil, ErrRequesterRequired
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if !mode.Valid() {
		return nil, ErrInvalidPaymentMode
	}
	if price < 0 {
		return nil, ErrNegativePrice
	}
	if err := origin.Point.Validate(); err != nil {
		return nil, err
	}
	if err := destination.Point.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Job{
		JobNumber:   jobNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
		RequesterID: requesterID,
		Kind:        kind,
		PaymentMode: mode,
		Status:      StatusPending,
		Price:       price,
		Origin:      origin,
		Destination: destination,
	}, nil
}

// Claim assigns a worker and moves PENDING -> ASSIGNED. The authoritative
// check-and-set happens in the store; this mirrors it for in-memory use.
func (j *Job) Claim(workerID string) error {
	if workerID = strings.TrimSpace(workerID); workerID == "" {
		return ErrWorkerRequired
	}
	if j.WorkerID != nil && *j.WorkerID != "" {
		return ErrAlreadyClaimed
	}
	if j.Status != StatusPending {
		return ErrIllegalTransition
	}

	now := time.Now().UTC()
	j.WorkerID = &workerID
	j.ClaimedAt = &now
	j.setStatus(StatusAssigned)
	return nil
}

// Advance moves the job to the requested milestone, which must be the
// immediate successor of the current status. Skipping or reversing is an
// IllegalTransition, never coerced to the closest legal state.
func (j *Job) Advance(next Status) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if j.Status != StatusPending && (j.WorkerID == nil || *j.WorkerID == "") {
		return ErrNotClaimed
	}
	if !j.Status.CanTransitionTo(next, j.Kind, j.PaymentMode) {
		return ErrIllegalTransition
	}

	now := time.Now().UTC()
	switch next {
	case StatusPickedUp:
		j.PickedUpAt = &now
	case StatusCompleted:
		j.CompletedAt = &now
	case StatusPaid:
		j.PaidAt = &now
	case StatusCancelled:
		j.CancelledAt = &now
	}
	j.setStatus(next)
	return nil
}

// Cancel moves any non-terminal job to CANCELLED, recording the reason.
func (j *Job) Cancel(reason string) error {
	if j.Status.Terminal(j.PaymentMode) {
		return ErrAlreadyTerminal
	}
	now := time.Now().UTC()
	j.CancelledAt = &now
	if r := strings.TrimSpace(reason); r != "" {
		j.CancelReason = &r
	}
	j.setStatus(StatusCancelled)
	return nil
}

// Terminal reports whether the job has finished its lifecycle.
func (j *Job) Terminal() bool {
	return j.Status.Terminal(j.PaymentMode)
}

// Waypoint returns the point the worker is currently travelling towards:
// the origin until pickup/start, the destination after.
func (j *Job) Waypoint() (geo.Point, Leg, bool) {
	leg, ok := CurrentLeg(j.Status)
	if !ok {
		return geo.Point{}, "", false
	}
	if leg == LegPickup {
		return j.Origin.Point, leg, true
	}
	return j.Destination.Point, leg, true
}

// TripDistanceKM is the great-circle origin->destination distance.
func (j *Job) TripDistanceKM() float64 {
	return geo.HaversineKM(j.Origin.Point, j.Destination.Point)
}

// ----- internal helpers -----

func (j *Job) setStatus(status Status) {
	j.Status = status
	j.touch()
}

func (j *Job) touch() {
	j.UpdatedAt = time.Now().UTC()
}
