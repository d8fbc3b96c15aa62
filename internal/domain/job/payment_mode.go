package job

import (
	"errors"
	"strings"
)

// PaymentMode is a payment mode as stored in the `payment_mode` column.
type PaymentMode string

const (
	PaymentPrepaid          PaymentMode = "PREPAID"
	PaymentCashOnCompletion PaymentMode = "CASH_ON_COMPLETION"
)

var ErrInvalidPaymentMode = errors.New("invalid payment mode")

// ParsePaymentMode normalizes (uppercases+trims) and validates a payment mode string.
func ParsePaymentMode(in string) (PaymentMode, error) {
	mode := PaymentMode(strings.ToUpper(strings.TrimSpace(in)))
	if mode.Valid() {
		return mode, nil
	}
	return "", ErrInvalidPaymentMode
}

// Valid reports whether mode is one of the allowed payment mode constants.
func (mode PaymentMode) Valid() bool {
	switch mode {
	case PaymentPrepaid, PaymentCashOnCompletion:
		return true
	default:
		return false
	}
}

// String returns the string representation of the PaymentMode.
func (mode PaymentMode) String() string {
	return string(mode)
}
