package job

import (
	"errors"
	"strings"
)

// Status is a job status as stored in the `job_status` column.
type Status string

const (
	StatusPending              Status = "PENDING"
	StatusAssigned             Status = "ASSIGNED"
	StatusEnRouteToOrigin      Status = "EN_ROUTE_TO_ORIGIN"
	StatusArrivedAtOrigin      Status = "ARRIVED_AT_ORIGIN"
	StatusPickedUp             Status = "PICKED_UP"
	StatusEnRouteToDestination Status = "EN_ROUTE_TO_DESTINATION"
	StatusArrivedAtDestination Status = "ARRIVED_AT_DESTINATION"
	StatusStarted              Status = "STARTED"
	StatusCompleted            Status = "COMPLETED"
	StatusPaid                 Status = "PAID"
	StatusCancelled            Status = "CANCELLED"
)

var (
	ErrInvalidStatus      = errors.New("invalid job status")
	ErrIllegalTransition  = errors.New("illegal job status transition")
	ErrStatusNotInChain   = errors.New("status does not belong to this job kind")
	ErrAlreadyTerminal    = errors.New("job is already in a terminal state")
	ErrSettlementNotOwed  = errors.New("job is not awaiting cash settlement")
	ErrSettlementTooEarly = errors.New("job must be completed before settlement")
)

// deliveryChain is the canonical milestone order for deliveries.
// PAID is appended only for cash-on-completion jobs.
var deliveryChain = []Status{
	StatusPending,
	StatusAssigned,
	StatusEnRouteToOrigin,
	StatusArrivedAtOrigin,
	StatusPickedUp,
	StatusEnRouteToDestination,
	StatusArrivedAtDestination,
	StatusCompleted,
}

// rideChain is the shorter analogous order for rides.
var rideChain = []Status{
	StatusPending,
	StatusAssigned,
	StatusStarted,
	StatusCompleted,
}

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusAssigned,
		StatusEnRouteToOrigin, StatusArrivedAtOrigin, StatusPickedUp,
		StatusEnRouteToDestination, StatusArrivedAtDestination,
		StatusStarted, StatusCompleted, StatusPaid, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Chain returns the canonical lifecycle sequence for a kind and payment mode.
// Cash-on-completion jobs carry an extra PAID milestone after COMPLETED,
// because cash receipt is a distinct real-world event that may lag completion.
func Chain(kind Kind, mode PaymentMode) []Status {
	base := rideChain
	if kind == KindDelivery {
		base = deliveryChain
	}
	if mode != PaymentCashOnCompletion {
		return base
	}
	out := make([]Status, 0, len(base)+1)
	out = append(out, base...)
	return append(out, StatusPaid)
}

// Successor returns the single legal next milestone from the current status.
// The second return value is false when the current status is terminal for
// the given kind/mode or does not belong to the chain at all.
func Successor(current Status, kind Kind, mode PaymentMode) (Status, bool) {
	chain := Chain(kind, mode)
	for i, s := range chain {
		if s == current {
			if i+1 >= len(chain) {
				return "", false
			}
			return chain[i+1], true
		}
	}
	return "", false
}

// CanTransitionTo reports whether next is legal from status for the given
// kind/mode. CANCELLED is legal from any non-terminal state; everything else
// must be the immediate successor in the chain; no skipping, no going back.
func (status Status) CanTransitionTo(next Status, kind Kind, mode PaymentMode) bool {
	if next == StatusCancelled {
		return !status.Terminal(mode)
	}
	succ, ok := Successor(status, kind, mode)
	return ok && succ == next
}

// Terminal indicates whether the status ends the lifecycle for the given
// payment mode. COMPLETED is terminal for prepaid jobs but not for
// cash-on-completion jobs, which still owe the PAID settlement.
func (status Status) Terminal(mode PaymentMode) bool {
	switch status {
	case StatusCancelled, StatusPaid:
		return true
	case StatusCompleted:
		return mode != PaymentCashOnCompletion
	default:
		return false
	}
}

// Active reports whether a job in this status occupies its worker: claimed
// and not yet terminal. PENDING jobs have no worker and are not active.
func (status Status) Active(mode PaymentMode) bool {
	return status != StatusPending && !status.Terminal(mode)
}
