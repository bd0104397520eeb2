package service

import (
	"context"
	"errors"
	doctorerrors "mediq/internal/doctors/errors"
	doctorrepo "mediq/internal/doctors/repository"
	sloterrors "mediq/internal/slots/errors"
	"mediq/internal/slots/repository"
	"mediq/internal/slots/validator"
	"mediq/pkg/config"
	apperrors "mediq/pkg/errors"
	"mediq/pkg/model"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type SlotService interface {
	CreateSlots(ctx context.Context, doctorID string, inputs []*model.SlotInput, replaceExisting bool) (*model.SlotCounts, error)
	ListAvailable(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, int64, error)
	GetByID(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	Reserve(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	Release(ctx context.Context, id string) error
}

type slotService struct {
	repo      repository.SlotRepository
	lockRepo  repository.SlotLockRepository
	doctors   doctorrepo.DoctorRepository
	validator *validator.SlotValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewSlotService(
	repo repository.SlotRepository,
	lockRepo repository.SlotLockRepository,
	doctors doctorrepo.DoctorRepository,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		lockRepo:  lockRepo,
		doctors:   doctors,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSlots bulk-publishes a doctor's availability. Duplicates of existing
// slots are skipped, past entries are skipped, and with replaceExisting the
// doctor's future unreserved slots are cleared first. The whole run holds a
// doctor-scoped advisory lock so two concurrent publishes cannot interleave
// the delete and insert phases.
func (s *slotService) CreateSlots(ctx context.Context, doctorID string, inputs []*model.SlotInput, replaceExisting bool) (*model.SlotCounts, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	if len(inputs) == 0 {
		return nil, apperrors.InvalidInput("At least one slot is required")
	}

	doctor, err := s.resolveDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.CanPublishSlots() {
		return nil, apperrors.Forbidden("Doctor is not verified or not active")
	}

	for _, in := range inputs {
		if err := s.validator.ValidateInput(in); err != nil {
			s.cfg.Log.Warn("Slot validation failed",
				"doctor_id", doctorID,
				"date", in.Date,
				"start_time", in.StartTime,
				"error", err,
			)
			return nil, apperrors.Validation("Slot validation failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	sort.Slice(inputs, func(i, j int) bool {
		return inputs[i].StartsBefore(inputs[j])
	})

	lock := &model.SlotLock{
		ID:        doctorID,
		ExpiresAt: s.now().Add(s.cfg.SlotLockTTL),
	}
	if _, err := s.lockRepo.Acquire(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			s.cfg.Log.Warn("Slot schedule locked", "doctor_id", doctorID)
			return nil, apperrors.Wrap(sloterrors.ErrScheduleLocked,
				apperrors.CodeConflict,
				"Another slot operation is already running for this doctor",
				409,
			)
		}
		return nil, apperrors.Internal("Failed to acquire schedule lock", err)
	}
	defer func() {
		if err := s.lockRepo.Release(context.WithoutCancel(ctx), doctorID); err != nil {
			s.cfg.Log.Error("Failed to release schedule lock", "doctor_id", doctorID, "error", err)
		}
	}()

	nowDate, nowClock := s.cut()
	counts := &model.SlotCounts{Total: len(inputs)}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		*counts = model.SlotCounts{Total: len(inputs)}

		if replaceExisting {
			deleted, err := s.repo.DeleteFutureUnreserved(sessCtx, doctorID, nowDate, nowClock)
			if err != nil {
				return apperrors.Internal("Failed to clear existing slots", err)
			}
			counts.Deleted = int(deleted)
		}

		for _, in := range inputs {
			if in.Date < nowDate || (in.Date == nowDate && in.StartTime <= nowClock) {
				counts.Skipped++
				continue
			}

			slot := &model.AvailabilitySlot{
				DoctorID:  doctorID,
				Date:      in.Date,
				StartTime: in.StartTime,
				EndTime:   in.EndTime,
			}
			created, err := s.repo.InsertIfAbsent(sessCtx, slot)
			if err != nil {
				return apperrors.Internal("Failed to create slot", err)
			}
			if created {
				counts.Created++
			} else {
				counts.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create slots",
			"doctor_id", doctorID,
			"total", len(inputs),
			"replace_existing", replaceExisting,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Slots created successfully",
		"doctor_id", doctorID,
		"created", counts.Created,
		"skipped", counts.Skipped,
		"deleted", counts.Deleted,
		"replace_existing", replaceExisting,
	)
	return counts, nil
}

// ListAvailable returns the doctor's open future slots, soonest first. A
// doctor who paused bookings lists as empty rather than erroring, so search
// result pages degrade quietly.
func (s *slotService) ListAvailable(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	doctor, err := s.resolveDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.AcceptingBookings {
		s.cfg.Log.Debug("Doctor not accepting bookings, returning empty availability", "doctor_id", doctorID)
		return []*model.AvailabilitySlot{}, nil
	}

	nowDate, nowClock := s.cut()
	slots, err := s.repo.FindAvailable(ctx, doctorID, nowDate, nowClock, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list available slots", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve available slots", err)
	}
	if slots == nil {
		slots = []*model.AvailabilitySlot{}
	}
	return slots, nil
}

func (s *slotService) ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, int64, error) {
	if doctorID == "" {
		return nil, 0, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	// Create shared context with timeout for both goroutines
	// This ensures coordinated cancellation if one operation times out
	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var slots []*model.AvailabilitySlot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByDoctor(sharedCtx, doctorID)
		if err != nil {
			s.cfg.Log.Error("Failed to count slots", "doctor_id", doctorID, "error", err)
			errCount = apperrors.Internal("Failed to count slots", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		slots, err = s.repo.FindByDoctor(sharedCtx, doctorID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list slots",
				"doctor_id", doctorID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve slots", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return slots, count, nil
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sloterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Slot", id)
		}
		if errors.Is(err, sloterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		s.cfg.Log.Error("Failed to get slot by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}
	return slot, nil
}

// Reserve atomically claims a slot. Exactly one concurrent caller wins; the
// rest see a conflict. A slot whose start already elapsed cannot be claimed
// even when still unreserved.
func (s *slotService) Reserve(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.Reserve(ctx, id)
	if err != nil {
		if errors.Is(err, sloterrors.ErrAlreadyReserved) {
			return nil, apperrors.Wrap(sloterrors.ErrAlreadyReserved,
				apperrors.CodeConflict, "Slot is already booked", 409)
		}
		if errors.Is(err, sloterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Slot", id)
		}
		if errors.Is(err, sloterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		s.cfg.Log.Error("Failed to reserve slot", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to reserve slot", err)
	}

	nowDate, nowClock := s.cut()
	if slot.Date < nowDate || (slot.Date == nowDate && slot.StartTime <= nowClock) {
		if err := s.repo.Release(ctx, id); err != nil {
			s.cfg.Log.Error("Failed to release past slot after reserve", "id", id, "error", err)
		}
		return nil, apperrors.Wrap(sloterrors.ErrSlotInPast,
			apperrors.CodeInvalidInput, "Slot start time is in the past", 422)
	}

	s.cfg.Log.Info("Slot reserved", "id", id, "doctor_id", slot.DoctorID, "date", slot.Date, "start_time", slot.StartTime)
	return slot, nil
}

func (s *slotService) Release(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}

	if err := s.repo.Release(ctx, id); err != nil {
		if errors.Is(err, sloterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Slot", id)
		}
		if errors.Is(err, sloterrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid slot ID format")
		}
		s.cfg.Log.Error("Failed to release slot", "id", id, "error", err)
		return apperrors.Internal("Failed to release slot", err)
	}

	s.cfg.Log.Info("Slot released", "id", id)
	return nil
}

func (s *slotService) resolveDoctor(ctx context.Context, doctorID string) (*model.Doctor, error) {
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

// cut returns the current date and wall-clock strings used to compare
// against slot keys lexicographically.
func (s *slotService) cut() (string, string) {
	now := s.now()
	return now.Format("2006-01-02"), now.Format("15:04")
}
