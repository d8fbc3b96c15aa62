package job

import (
	"errors"
	"strings"
)

// EventType corresponds to the values in the `job_event_type` table.
type EventType string

const (
	EventJobCreated       EventType = "JOB_CREATED"
	EventJobReposted      EventType = "JOB_REPOSTED"
	EventJobClaimed       EventType = "JOB_CLAIMED"
	EventMilestoneReached EventType = "MILESTONE_REACHED"
	EventJobCompleted     EventType = "JOB_COMPLETED"
	EventJobPaid          EventType = "JOB_PAID"
	EventJobCancelled     EventType = "JOB_CANCELLED"
	EventProximityAlert   EventType = "PROXIMITY_ALERT"
	EventStatusChanged    EventType = "STATUS_CHANGED"
)

var ErrInvalidEventType = errors.New("invalid job event type")

// ParseEventType normalizes (uppercases+trims) and validates an event type string.
func ParseEventType(input string) (EventType, error) {
	eventType := EventType(strings.ToUpper(strings.TrimSpace(input)))
	if eventType.Valid() {
		return eventType, nil
	}
	return "", ErrInvalidEventType
}

// Valid reports whether eventType is one of the allowed event type constants.
func (eventType EventType) Valid() bool {
	switch eventType {
	case EventJobCreated,
		EventJobReposted,
		EventJobClaimed,
		EventMilestoneReached,
		EventJobCompleted,
		EventJobPaid,
		EventJobCancelled,
		EventProximityAlert,
		EventStatusChanged:
		return true
	default:
		return false
	}
}

// String returns the string representation of the EventType.
func (eventType EventType) String() string {
	return string(eventType)
}
