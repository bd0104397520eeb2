package model

import "time"

// Doctor is the read-only projection of the practitioner profile this service
// consults. Profile CRUD lives in an external service; we only read the
// verification and availability attributes that gate slot creation and
// booking, plus the fee used to price a consultation.
type Doctor struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name              string    `json:"name" bson:"name"`
	Verified          bool      `json:"verified" bson:"verified"`
	Active            bool      `json:"active" bson:"active"`
	AcceptingBookings bool      `json:"accepting_bookings" bson:"accepting_bookings"`
	ConsultationFee   int64     `json:"consultation_fee" bson:"consultation_fee"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// CanPublishSlots reports whether the doctor may create bookable slots.
func (d *Doctor) CanPublishSlots() bool {
	return d.Verified && d.Active
}
