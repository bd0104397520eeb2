package events

import (
	"context"
	"mediq/pkg/kafka"
	"mediq/pkg/logger"
	"time"

	"github.com/google/uuid"
)

// Appointment lifecycle event types published to the appointments topic.
const (
	TypeAppointmentBooked    = "appointment.booked"
	TypeAppointmentCancelled = "appointment.cancelled"
	TypeAppointmentCompleted = "appointment.completed"

	schemaVersion = "1.0"
	source        = "booking-service"
)

// AppointmentEvent is the wire payload for every lifecycle event. Monetary
// fields are set only where settlement context exists (booked, completed).
type AppointmentEvent struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	SlotID        string    `json:"slot_id"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CompletionEvent is the external consultation-completion signal consumed by
// the completion worker.
type CompletionEvent struct {
	AppointmentID string    `json:"appointment_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Publisher emits appointment lifecycle events. Services depend on this
// interface so tests can capture events without a broker.
type Publisher interface {
	Publish(ctx context.Context, eventType string, event *AppointmentEvent) error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		log:      log,
	}
}

// Publish keys messages by appointment id so every event for one appointment
// lands on the same partition in order.
func (p *kafkaPublisher) Publish(ctx context.Context, eventType string, event *AppointmentEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg := kafka.NewMessage().
		WithKey(event.AppointmentID).
		WithEventID(uuid.NewString()).
		WithEventType(eventType).
		WithAppointmentID(event.AppointmentID).
		WithSource(source).
		WithSchemaVersion(schemaVersion).
		WithValue(event).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish appointment event",
			"event_type", eventType,
			"appointment_id", event.AppointmentID,
			"error", err,
		)
		return err
	}

	p.log.Debug("Appointment event published",
		"event_type", eventType,
		"appointment_id", event.AppointmentID,
	)
	return nil
}

// NopPublisher drops events; used where a deployable runs without a broker.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType string, event *AppointmentEvent) error {
	return nil
}
