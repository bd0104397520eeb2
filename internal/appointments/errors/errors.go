package errors

import "errors"

var (
	ErrNotFound = errors.New("appointment not found")

	ErrInvalidID = errors.New("invalid appointment ID format")

	// ErrInvalidTransition is returned when a status change violates the
	// forward-only lifecycle (pending -> confirmed -> completed, cancelled
	// only from pending or confirmed).
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	// ErrNotOwner rejects cancellation by anyone other than the
	// appointment's patient or doctor.
	ErrNotOwner = errors.New("actor does not own this appointment")
)
