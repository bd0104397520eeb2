package model

import "time"

// Settlement statuses for a transaction. UpdateStatus rejects anything
// outside this set.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Payout marking states. An empty payout status means the entry has never
// been considered by a payout run.
const (
	PayoutPending = "pending"
	PayoutPaid    = "paid"
)

// Transaction is the ledger entry splitting an appointment's gross payment
// between the platform and the doctor. Amounts are integer minor units
// (agorot/cents). Invariant: Amount == PlatformFee + DoctorEarning, at
// creation and after every status change. Entries are never deleted.
type Transaction struct {
	ID            string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	AppointmentID string `json:"appointment_id" bson:"appointment_id" validate:"required,mongodb"`
	DoctorID      string `json:"doctor_id" bson:"doctor_id" validate:"required,mongodb"`
	Amount        int64  `json:"amount" bson:"amount" validate:"required,min=1"`
	PlatformFee   int64  `json:"platform_fee" bson:"platform_fee" validate:"min=0"`
	DoctorEarning int64  `json:"doctor_earning" bson:"doctor_earning" validate:"min=0"`
	Status        string `json:"status" bson:"status" validate:"required,oneof=pending completed failed refunded"`

	// Payout linkage, set once by the payout batcher. A transaction belongs
	// to at most one payout batch ever.
	PayoutStatus    string     `json:"payout_status,omitempty" bson:"payout_status,omitempty" validate:"omitempty,oneof=pending paid"`
	PayoutMethod    string     `json:"payout_method,omitempty" bson:"payout_method,omitempty"`
	PayoutReference string     `json:"payout_reference,omitempty" bson:"payout_reference,omitempty"`
	PayoutBatchID   string     `json:"payout_batch_id,omitempty" bson:"payout_batch_id,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty" bson:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// SplitIsConsistent reports whether the fee split invariant holds.
func (t *Transaction) SplitIsConsistent() bool {
	return t.Amount == t.PlatformFee+t.DoctorEarning &&
		t.PlatformFee >= 0 && t.DoctorEarning >= 0
}

// Payable reports whether the entry is eligible for a payout run: settled
// and never marked paid.
func (t *Transaction) Payable() bool {
	return t.Status == PaymentCompleted && t.PayoutStatus != PayoutPaid
}

// ValidPaymentStatus reports membership in the settlement status whitelist.
func ValidPaymentStatus(status string) bool {
	switch status {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}
