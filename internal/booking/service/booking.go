package service

import (
	"context"
	"errors"
	appointmentservice "mediq/internal/appointments/service"
	doctorerrors "mediq/internal/doctors/errors"
	doctorrepo "mediq/internal/doctors/repository"
	"mediq/internal/events"
	ledgerservice "mediq/internal/ledger/service"
	slotservice "mediq/internal/slots/service"
	"mediq/pkg/config"
	apperrors "mediq/pkg/errors"
	"mediq/pkg/model"
)

// CancelResult is the coordinator's cancellation outcome: the cancelled
// appointment plus the refund report when one was requested and possible.
type CancelResult struct {
	Appointment *model.Appointment          `json:"appointment"`
	Refund      *ledgerservice.RefundResult `json:"refund,omitempty"`
}

type BookingService interface {
	Book(ctx context.Context, patientID, slotID, notes string) (*model.AppointmentDetails, error)
	Cancel(ctx context.Context, appointmentID, actorID, actorRole string, issueRefund bool) (*CancelResult, error)
	GetDetails(ctx context.Context, appointmentID string) (*model.AppointmentDetails, error)
}

type bookingService struct {
	slots        slotservice.SlotService
	appointments appointmentservice.AppointmentService
	ledger       ledgerservice.LedgerService
	doctors      doctorrepo.DoctorRepository
	publisher    events.Publisher
	cfg          *config.Config
}

func NewBookingService(
	slots slotservice.SlotService,
	appointments appointmentservice.AppointmentService,
	ledger ledgerservice.LedgerService,
	doctors doctorrepo.DoctorRepository,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		slots:        slots,
		appointments: appointments,
		ledger:       ledger,
		doctors:      doctors,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// Book runs the whole booking flow: resolve the slot and its doctor, claim
// the slot with the atomic reserve, create the appointment and record the
// settlement. If anything after the reserve fails, the slot is released so
// no reserved slot is left without a live appointment. A failed compensation
// is the one inconsistency this flow cannot repair; it is escalated in logs
// for operators.
func (s *bookingService) Book(ctx context.Context, patientID, slotID, notes string) (*model.AppointmentDetails, error) {
	if patientID == "" {
		return nil, apperrors.InvalidInput("patient_id is required")
	}
	if slotID == "" {
		return nil, apperrors.InvalidInput("slot_id is required")
	}

	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Reserved {
		return nil, apperrors.Conflict("Slot is already booked")
	}

	doctor, err := s.resolveDoctor(ctx, slot.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.AcceptingBookings {
		return nil, apperrors.Conflict("Doctor is not accepting bookings")
	}
	if doctor.ConsultationFee <= 0 {
		return nil, apperrors.Internal("Doctor has no consultation fee configured", nil)
	}

	reserved, err := s.slots.Reserve(ctx, slotID)
	if err != nil {
		return nil, err
	}

	appointment, err := s.appointments.Create(ctx, &model.Appointment{
		PatientID: patientID,
		DoctorID:  doctor.ID,
		SlotID:    reserved.ID,
		Notes:     notes,
	})
	if err != nil {
		s.compensate(ctx, slotID, "appointment creation failed", err)
		return nil, err
	}

	entry, err := s.ledger.Record(ctx, appointment.ID, doctor.ID, patientID, doctor.ConsultationFee)
	if err != nil {
		// The appointment exists but has no settlement; cancel it and free
		// the slot so the patient can retry cleanly.
		if _, cancelErr := s.appointments.Cancel(ctx, appointment.ID, patientID, model.RolePatient); cancelErr != nil {
			s.cfg.Log.Error("FATAL INCONSISTENCY: settlement failed and appointment could not be cancelled",
				"appointment_id", appointment.ID,
				"slot_id", slotID,
				"record_error", err,
				"cancel_error", cancelErr,
			)
			return nil, apperrors.Internal("Booking failed and could not be rolled back", err)
		}
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.TypeAppointmentBooked, &events.AppointmentEvent{
		AppointmentID: appointment.ID,
		PatientID:     patientID,
		DoctorID:      doctor.ID,
		SlotID:        reserved.ID,
		Status:        appointment.Status,
		Amount:        entry.Amount,
	}); err != nil {
		s.cfg.Log.Error("Failed to publish booking event", "appointment_id", appointment.ID, "error", err)
	}

	s.cfg.Log.Info("Booking completed",
		"appointment_id", appointment.ID,
		"patient_id", patientID,
		"doctor_id", doctor.ID,
		"slot_id", reserved.ID,
		"amount", entry.Amount,
	)

	return &model.AppointmentDetails{
		Appointment: appointment,
		DoctorName:  doctor.Name,
		Slot:        reserved,
		Payment:     entry,
	}, nil
}

// Cancel composes the appointment cancellation with an optional refund of
// the appointment's completed settlement entry.
func (s *bookingService) Cancel(ctx context.Context, appointmentID, actorID, actorRole string, issueRefund bool) (*CancelResult, error) {
	appointment, err := s.appointments.Cancel(ctx, appointmentID, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	result := &CancelResult{Appointment: appointment}
	if !issueRefund {
		return result, nil
	}

	entry, err := s.ledger.GetByAppointment(ctx, appointmentID)
	if err != nil {
		s.cfg.Log.Warn("Cancelled without refund: no settlement entry found",
			"appointment_id", appointmentID,
			"error", err,
		)
		return result, nil
	}

	refund, err := s.ledger.Refund(ctx, entry.ID)
	if err != nil {
		s.cfg.Log.Error("Cancelled but refund failed",
			"appointment_id", appointmentID,
			"entry_id", entry.ID,
			"error", err,
		)
		return nil, err
	}
	result.Refund = refund
	return result, nil
}

// GetDetails resolves the appointment with its doctor, slot and settlement
// summary. Missing collaterals degrade to nil rather than failing the fetch.
func (s *bookingService) GetDetails(ctx context.Context, appointmentID string) (*model.AppointmentDetails, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	details := &model.AppointmentDetails{Appointment: appointment}

	if doctor, err := s.doctors.FindByID(ctx, appointment.DoctorID); err == nil {
		details.DoctorName = doctor.Name
	} else {
		s.cfg.Log.Warn("Failed to resolve doctor for appointment details",
			"appointment_id", appointmentID,
			"doctor_id", appointment.DoctorID,
			"error", err,
		)
	}

	if slot, err := s.slots.GetByID(ctx, appointment.SlotID); err == nil {
		details.Slot = slot
	}

	if entry, err := s.ledger.GetByAppointment(ctx, appointmentID); err == nil {
		details.Payment = entry
	}

	return details, nil
}

func (s *bookingService) compensate(ctx context.Context, slotID, reason string, cause error) {
	if err := s.slots.Release(context.WithoutCancel(ctx), slotID); err != nil {
		s.cfg.Log.Error("FATAL INCONSISTENCY: failed to release slot after booking failure",
			"slot_id", slotID,
			"reason", reason,
			"cause", cause,
			"release_error", err,
		)
		return
	}
	s.cfg.Log.Warn("Booking compensated: slot released",
		"slot_id", slotID,
		"reason", reason,
		"cause", cause,
	)
}

func (s *bookingService) resolveDoctor(ctx context.Context, doctorID string) (*model.Doctor, error) {
	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, doctorerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Doctor", doctorID)
		}
		if errors.Is(err, doctorerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid doctor ID format")
		}
		s.cfg.Log.Error("Failed to resolve doctor", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to resolve doctor", err)
	}
	return doctor, nil
}
