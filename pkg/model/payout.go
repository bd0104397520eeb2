package model

import "time"

// PayoutResult summarizes one atomic payout run for a doctor.
type PayoutResult struct {
	DoctorID    string    `json:"doctor_id"`
	DoctorName  string    `json:"doctor_name"`
	TotalAmount int64     `json:"total_amount"`
	EntryCount  int       `json:"entry_count"`
	BatchID     string    `json:"batch_id"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference"`
	PaidAt      time.Time `json:"paid_at"`
}
