package worker

import (
	"errors"
	"strings"
)

// WorkerStatus is a worker status as stored in the `worker_status` column.
// BUSY means the worker holds an active job and must not appear on the
// board or claim another one.
type WorkerStatus string

const (
	WorkerStatusOffline   WorkerStatus = "OFFLINE"
	WorkerStatusAvailable WorkerStatus = "AVAILABLE"
	WorkerStatusBusy      WorkerStatus = "BUSY"
)

var ErrInvalidWorkerStatus = errors.New("invalid worker status")

// ParseWorkerStatus normalizes (uppercases+trims) and validates a worker status string.
func ParseWorkerStatus(in string) (WorkerStatus, error) {
	status := WorkerStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidWorkerStatus
}

// Valid reports whether the worker status is one of the allowed status constants.
func (status WorkerStatus) Valid() bool {
	switch status {
	case WorkerStatusOffline, WorkerStatusAvailable, WorkerStatusBusy:
		return true
	default:
		return false
	}
}

// String returns the string representation of the WorkerStatus.
func (status WorkerStatus) String() string {
	return string(status)
}
