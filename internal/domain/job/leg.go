package job

import (
	"errors"
	"strings"
)

// Leg identifies which half of the trip a claimed job is on. It keys
// proximity events so the "arriving soon" alert fires once per leg.
type Leg string

const (
	LegPickup  Leg = "PICKUP"  // worker heading to the job origin
	LegDropoff Leg = "DROPOFF" // goods/passenger on board, heading to destination
)

var ErrInvalidLeg = errors.New("invalid job leg")

// ParseLeg normalizes and validates a leg string.
func ParseLeg(in string) (Leg, error) {
	leg := Leg(strings.ToUpper(strings.TrimSpace(in)))
	if leg.Valid() {
		return leg, nil
	}
	return "", ErrInvalidLeg
}

// Valid reports whether leg is one of the allowed leg constants.
func (leg Leg) Valid() bool {
	return leg == LegPickup || leg == LegDropoff
}

// String returns the string representation of the Leg.
func (leg Leg) String() string {
	return string(leg)
}

// CurrentLeg maps an active status to the leg the worker is travelling.
// The second return value is false for PENDING and terminal statuses,
// where there is no waypoint to track.
func CurrentLeg(status Status) (Leg, bool) {
	switch status {
	case StatusAssigned, StatusEnRouteToOrigin, StatusArrivedAtOrigin:
		return LegPickup, true
	case StatusPickedUp, StatusEnRouteToDestination, StatusArrivedAtDestination, StatusStarted:
		return LegDropoff, true
	default:
		return "", false
	}
}
