package model

import "time"

// Appointment statuses. Transitions move forward only
// (pending -> confirmed -> completed); cancelled is reachable from pending
// or confirmed, never from completed.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Actor roles allowed to act on an appointment.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// Appointment binds one patient, one doctor and exactly one slot. Appointments
// are never deleted; cancellation is a status change so settlement and audit
// history survive.
type Appointment struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PatientID string    `json:"patient_id" bson:"patient_id" validate:"required,mongodb"`
	DoctorID  string    `json:"doctor_id" bson:"doctor_id" validate:"required,mongodb"`
	SlotID    string    `json:"slot_id" bson:"slot_id" validate:"required,mongodb"`
	Status    string    `json:"status" bson:"status" validate:"required,oneof=pending confirmed completed cancelled"`
	Notes     string    `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=500"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// IsLive reports whether the appointment still claims its slot.
func (a *Appointment) IsLive() bool {
	return a.Status != AppointmentCancelled
}

// CanCancel reports whether the appointment may transition to cancelled.
func (a *Appointment) CanCancel() bool {
	return a.Status == AppointmentPending || a.Status == AppointmentConfirmed
}

// AppointmentDetails is the booking API response shape: the appointment with
// its doctor and settlement summary resolved by identity.
type AppointmentDetails struct {
	Appointment *Appointment      `json:"appointment"`
	DoctorName  string            `json:"doctor_name,omitempty"`
	Slot        *AvailabilitySlot `json:"slot,omitempty"`
	Payment     *Transaction      `json:"payment,omitempty"`
}
