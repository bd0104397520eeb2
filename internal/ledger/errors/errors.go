package errors

import "errors"

var (
	ErrNotFound = errors.New("ledger entry not found")

	ErrInvalidID = errors.New("invalid ledger entry ID format")

	// ErrInconsistentSplit guards the settlement invariant: the gross amount
	// must equal platform fee plus doctor earning, always.
	ErrInconsistentSplit = errors.New("amount does not equal platform fee plus doctor earning")

	// ErrInvalidTransition is returned for settlement status changes outside
	// pending -> completed|failed and completed -> refunded.
	ErrInvalidTransition = errors.New("invalid settlement status transition")

	// ErrNothingToPayout means a payout run found no completed unpaid
	// entries for the doctor. Expected condition, not a failure.
	ErrNothingToPayout = errors.New("no completed unpaid ledger entries for doctor")
)
