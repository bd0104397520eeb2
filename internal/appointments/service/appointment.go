package service

import (
	"context"
	"errors"
	appointmenterrors "mediq/internal/appointments/errors"
	"mediq/internal/appointments/repository"
	"mediq/internal/events"
	slotservice "mediq/internal/slots/service"
	"mediq/pkg/config"
	apperrors "mediq/pkg/errors"
	"mediq/pkg/model"
	"mediq/pkg/sanitizer"
	"sync"
)

const maxNotesLength = 500

type AppointmentService interface {
	Create(ctx context.Context, a *model.Appointment) (*model.Appointment, error)
	Cancel(ctx context.Context, id, actorID, actorRole string) (*model.Appointment, error)
	Complete(ctx context.Context, id string) (*model.Appointment, error)
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Appointment, int64, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Appointment, int64, error)
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	slots     slotservice.SlotService
	publisher events.Publisher
	cfg       *config.Config
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	slots slotservice.SlotService,
	publisher events.Publisher,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		repo:      repo,
		slots:     slots,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create persists a confirmed appointment. The slot must already be reserved
// by the caller; payment clears synchronously upstream, so there is no
// pending holding state between reserve and confirm.
func (s *appointmentService) Create(ctx context.Context, a *model.Appointment) (*model.Appointment, error) {
	if a.PatientID == "" || a.DoctorID == "" || a.SlotID == "" {
		return nil, apperrors.InvalidInput("patient_id, doctor_id and slot_id are required")
	}

	a.Status = model.AppointmentConfirmed
	a.Notes = sanitizer.NormalizeNotes(a.Notes, maxNotesLength)

	if err := s.repo.Create(ctx, a); err != nil {
		s.cfg.Log.Error("Failed to create appointment",
			"patient_id", a.PatientID,
			"doctor_id", a.DoctorID,
			"slot_id", a.SlotID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create appointment", err)
	}

	s.cfg.Log.Info("Appointment created",
		"id", a.ID,
		"patient_id", a.PatientID,
		"doctor_id", a.DoctorID,
		"slot_id", a.SlotID,
		"status", a.Status,
	)
	return a, nil
}

// Cancel transitions the appointment to cancelled and frees its slot for
// rebooking. Only the appointment's patient or doctor may cancel; completed
// and already-cancelled appointments are terminal.
func (s *appointmentService) Cancel(ctx context.Context, id, actorID, actorRole string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}
	if actorID == "" {
		return nil, apperrors.Unauthorized("Actor identity is required")
	}

	a, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.ownedBy(a, actorID, actorRole) {
		s.cfg.Log.Warn("Cancellation rejected: actor does not own appointment",
			"id", id,
			"actor_id", actorID,
			"actor_role", actorRole,
		)
		return nil, apperrors.Wrap(appointmenterrors.ErrNotOwner,
			apperrors.CodeForbidden, "Only the appointment's patient or doctor may cancel it", 403)
	}

	if !a.CanCancel() {
		return nil, apperrors.Wrap(appointmenterrors.ErrInvalidTransition,
			apperrors.CodeConflict, "Appointment can no longer be cancelled", 409)
	}

	if err := s.repo.UpdateStatus(ctx, id, a.Status, model.AppointmentCancelled); err != nil {
		if errors.Is(err, appointmenterrors.ErrInvalidTransition) {
			return nil, apperrors.Wrap(appointmenterrors.ErrInvalidTransition,
				apperrors.CodeConflict, "Appointment can no longer be cancelled", 409)
		}
		if errors.Is(err, appointmenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		s.cfg.Log.Error("Failed to cancel appointment", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to cancel appointment", err)
	}
	a.Status = model.AppointmentCancelled

	// The cancellation already committed; a failed release leaves the slot
	// blocked, which operators must clear, so log loudly but do not fail
	// the cancellation.
	if err := s.slots.Release(ctx, a.SlotID); err != nil {
		s.cfg.Log.Error("Cancelled appointment but failed to release slot",
			"id", id,
			"slot_id", a.SlotID,
			"error", err,
		)
	}

	if err := s.publisher.Publish(ctx, events.TypeAppointmentCancelled, &events.AppointmentEvent{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		SlotID:        a.SlotID,
		Status:        a.Status,
	}); err != nil {
		s.cfg.Log.Error("Failed to publish cancellation event", "id", id, "error", err)
	}

	s.cfg.Log.Info("Appointment cancelled",
		"id", id,
		"actor_id", actorID,
		"actor_role", actorRole,
	)
	return a, nil
}

// Complete moves a confirmed appointment to completed. Driven by the
// consultation-completion worker, never by clients.
func (s *appointmentService) Complete(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	a, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if a.Status == model.AppointmentCompleted {
		// Replayed completion signal; already done.
		return a, nil
	}
	if a.Status != model.AppointmentConfirmed {
		return nil, apperrors.Wrap(appointmenterrors.ErrInvalidTransition,
			apperrors.CodeConflict, "Only confirmed appointments can be completed", 409)
	}

	if err := s.repo.UpdateStatus(ctx, id, model.AppointmentConfirmed, model.AppointmentCompleted); err != nil {
		if errors.Is(err, appointmenterrors.ErrInvalidTransition) {
			return nil, apperrors.Wrap(appointmenterrors.ErrInvalidTransition,
				apperrors.CodeConflict, "Only confirmed appointments can be completed", 409)
		}
		s.cfg.Log.Error("Failed to complete appointment", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to complete appointment", err)
	}
	a.Status = model.AppointmentCompleted

	if err := s.publisher.Publish(ctx, events.TypeAppointmentCompleted, &events.AppointmentEvent{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		SlotID:        a.SlotID,
		Status:        a.Status,
	}); err != nil {
		s.cfg.Log.Error("Failed to publish completion event", "id", id, "error", err)
	}

	s.cfg.Log.Info("Appointment completed", "id", id)
	return a, nil
}

func (s *appointmentService) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}
	return s.findByID(ctx, id)
}

func (s *appointmentService) ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Appointment, int64, error) {
	if patientID == "" {
		return nil, 0, apperrors.InvalidInput("Patient ID cannot be empty")
	}
	return s.list(ctx, limit, offset,
		func(ctx context.Context) (int64, error) { return s.repo.CountByPatient(ctx, patientID) },
		func(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error) {
			return s.repo.FindByPatient(ctx, patientID, limit, offset)
		},
	)
}

func (s *appointmentService) ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Appointment, int64, error) {
	if doctorID == "" {
		return nil, 0, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	return s.list(ctx, limit, offset,
		func(ctx context.Context) (int64, error) { return s.repo.CountByDoctor(ctx, doctorID) },
		func(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error) {
			return s.repo.FindByDoctor(ctx, doctorID, limit, offset)
		},
	)
}

func (s *appointmentService) list(
	ctx context.Context,
	limit int,
	offset int64,
	count func(ctx context.Context) (int64, error),
	find func(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error),
) ([]*model.Appointment, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var total int64
	var appointments []*model.Appointment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		total, err = count(sharedCtx)
		if err != nil {
			s.cfg.Log.Error("Failed to count appointments", "error", err)
			errCount = apperrors.Internal("Failed to count appointments", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		appointments, err = find(sharedCtx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list appointments", "limit", limit, "offset", offset, "error", err)
			errFind = apperrors.Internal("Failed to retrieve appointments", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return appointments, total, nil
}

func (s *appointmentService) findByID(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointmenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		if errors.Is(err, appointmenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid appointment ID format")
		}
		s.cfg.Log.Error("Failed to get appointment", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve appointment", err)
	}
	return a, nil
}

func (s *appointmentService) ownedBy(a *model.Appointment, actorID, actorRole string) bool {
	switch actorRole {
	case model.RolePatient:
		return a.PatientID == actorID
	case model.RoleDoctor:
		return a.DoctorID == actorID
	}
	return false
}
