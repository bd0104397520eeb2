package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID format")

	// ErrAlreadyReserved is returned when the reserve CAS loses: the slot
	// exists but another booking flipped the reserved flag first.
	ErrAlreadyReserved = errors.New("slot is already reserved")

	// ErrSlotInPast rejects slots whose start has already elapsed.
	ErrSlotInPast = errors.New("slot start time is in the past")

	// ErrScheduleLocked means another bulk mutation holds the doctor's
	// advisory lock.
	ErrScheduleLocked = errors.New("doctor schedule is locked by another operation")
)
