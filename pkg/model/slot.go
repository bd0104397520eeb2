package model

import "time"

// AvailabilitySlot is a single bookable time interval owned by one doctor on
// one calendar date. The triple (doctor_id, date, start_time) is unique; the
// migration runner enforces it with a compound unique index and the repository
// upserts against the same key so a replayed bulk create never duplicates.
type AvailabilitySlot struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	DoctorID  string    `json:"doctor_id" bson:"doctor_id" validate:"required,mongodb"`
	Date      string    `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	StartTime string    `json:"start_time" bson:"start_time" validate:"required,clock"`
	EndTime   string    `json:"end_time" bson:"end_time" validate:"required,clock"`
	Reserved  bool      `json:"reserved" bson:"reserved"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty" validate:"omitempty"`
}

// SlotInput is one entry of a doctor's bulk slot submission.
type SlotInput struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

// SlotCounts reports the outcome of a bulk slot creation.
type SlotCounts struct {
	Deleted int `json:"deleted"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// StartsBefore reports whether the slot's date/start-time key sorts before
// the other's. Used to keep bulk input handling deterministic.
func (s *SlotInput) StartsBefore(o *SlotInput) bool {
	if s.Date != o.Date {
		return s.Date < o.Date
	}
	return s.StartTime < o.StartTime
}
