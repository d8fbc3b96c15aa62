package job

import (
	"errors"
	"strings"
)

// Kind is a job kind as stored in the `job_kind` column.
type Kind string

const (
	KindDelivery Kind = "DELIVERY"
	KindRide     Kind = "RIDE"
)

var ErrInvalidKind = errors.New("invalid job kind")

// ParseKind normalizes (uppercases+trims) and validates a kind string.
func ParseKind(in string) (Kind, error) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(in)))
	if kind.Valid() {
		return kind, nil
	}
	return "", ErrInvalidKind
}

// Valid reports whether kind is one of the allowed kind constants.
func (kind Kind) Valid() bool {
	switch kind {
	case KindDelivery, KindRide:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Kind.
func (kind Kind) String() string {
	return string(kind)
}
