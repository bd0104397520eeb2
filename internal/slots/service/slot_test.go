package service

import (
	"context"
	"errors"
	"fmt"
	doctorerrors "mediq/internal/doctors/errors"
	sloterrors "mediq/internal/slots/errors"
	"mediq/internal/slots/validator"
	"mediq/pkg/config"
	mongotx "mediq/pkg/db/mongo"
	apperrors "mediq/pkg/errors"
	"mediq/pkg/logger"
	"mediq/pkg/model"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type mockSlotRepository struct {
	insertIfAbsentFunc         func(ctx context.Context, slot *model.AvailabilitySlot) (bool, error)
	deleteFutureUnreservedFunc func(ctx context.Context, doctorID, fromDate, fromTime string) (int64, error)
	findByIDFunc               func(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	findAvailableFunc          func(ctx context.Context, doctorID, fromDate, fromTime string, limit int, offset int64) ([]*model.AvailabilitySlot, error)
	findByDoctorFunc           func(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, error)
	countByDoctorFunc          func(ctx context.Context, doctorID string) (int64, error)
	reserveFunc                func(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	releaseFunc                func(ctx context.Context, id string) error
}

func (m *mockSlotRepository) InsertIfAbsent(ctx context.Context, slot *model.AvailabilitySlot) (bool, error) {
	if m.insertIfAbsentFunc != nil {
		return m.insertIfAbsentFunc(ctx, slot)
	}
	return true, nil
}

func (m *mockSlotRepository) DeleteFutureUnreserved(ctx context.Context, doctorID, fromDate, fromTime string) (int64, error) {
	if m.deleteFutureUnreservedFunc != nil {
		return m.deleteFutureUnreservedFunc(ctx, doctorID, fromDate, fromTime)
	}
	return 0, nil
}

func (m *mockSlotRepository) FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", sloterrors.ErrNotFound, id)
}

func (m *mockSlotRepository) FindAvailable(ctx context.Context, doctorID, fromDate, fromTime string, limit int, offset int64) ([]*model.AvailabilitySlot, error) {
	if m.findAvailableFunc != nil {
		return m.findAvailableFunc(ctx, doctorID, fromDate, fromTime, limit, offset)
	}
	return []*model.AvailabilitySlot{}, nil
}

func (m *mockSlotRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, error) {
	if m.findByDoctorFunc != nil {
		return m.findByDoctorFunc(ctx, doctorID, limit, offset)
	}
	return []*model.AvailabilitySlot{}, nil
}

func (m *mockSlotRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	if m.countByDoctorFunc != nil {
		return m.countByDoctorFunc(ctx, doctorID)
	}
	return 0, nil
}

func (m *mockSlotRepository) Reserve(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", sloterrors.ErrNotFound, id)
}

func (m *mockSlotRepository) Release(ctx context.Context, id string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, id)
	}
	return nil
}

func (m *mockSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockSlotLockRepository struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
	releases int
	failWith error
}

func newMockSlotLockRepository() *mockSlotLockRepository {
	return &mockSlotLockRepository{held: map[string]bool{}}
}

func (m *mockSlotLockRepository) Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if m.held[lock.ID] {
		return nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	}
	m.held[lock.ID] = true
	m.acquires++
	return lock, nil
}

func (m *mockSlotLockRepository) Release(ctx context.Context, lockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, lockID)
	m.releases++
	return nil
}

type mockDoctorRepository struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Doctor, error)
}

func (m *mockDoctorRepository) FindByID(ctx context.Context, id string) (*model.Doctor, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", doctorerrors.ErrNotFound, id)
}

func testConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return &config.Config{
		Log:         log,
		ReadTimeout: 5 * time.Second,
		SlotLockTTL: 10 * time.Second,
	}
}

func activeDoctor() *model.Doctor {
	return &model.Doctor{
		ID:                "65a000000000000000000001",
		Name:              "Dr. Levi",
		Verified:          true,
		Active:            true,
		AcceptingBookings: true,
		ConsultationFee:   20000,
	}
}

func newTestService(repo *mockSlotRepository, locks *mockSlotLockRepository, doctors *mockDoctorRepository) *slotService {
	cfg := testConfig()
	return &slotService{
		repo:      repo,
		lockRepo:  locks,
		doctors:   doctors,
		validator: validator.NewSlotValidator(cfg.Log),
		cfg:       cfg,
		now: func() time.Time {
			return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
		},
	}
}

func TestCreateSlots_CountsAndPastFiltering(t *testing.T) {
	existing := map[string]bool{"2026-03-11|10:00": true}
	repo := &mockSlotRepository{
		insertIfAbsentFunc: func(ctx context.Context, slot *model.AvailabilitySlot) (bool, error) {
			key := slot.Date + "|" + slot.StartTime
			if existing[key] {
				return false, nil
			}
			existing[key] = true
			return true, nil
		},
	}
	doctors := &mockDoctorRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Doctor, error) {
			return activeDoctor(), nil
		},
	}
	svc := newTestService(repo, newMockSlotLockRepository(), doctors)

	inputs := []*model.SlotInput{
		{Date: "2026-03-11", StartTime: "10:00", EndTime: "10:30"}, // duplicate
		{Date: "2026-03-11", StartTime: "11:00", EndTime: "11:30"},
		{Date: "2026-03-09", StartTime: "10:00", EndTime: "10:30"}, // past date
		{Date: "2026-03-10", StartTime: "08:00", EndTime: "08:30"}, // past time today
		{Date: "2026-03-12", StartTime: "09:00", EndTime: "09:30"},
	}

	counts, err := svc.CreateSlots(context.Background(), "65a000000000000000000001", inputs, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Created != 2 {
		t.Errorf("expected 2 created, got %d", counts.Created)
	}
	if counts.Skipped != 3 {
		t.Errorf("expected 3 skipped, got %d", counts.Skipped)
	}
	if counts.Total != 5 {
		t.Errorf("expected total 5, got %d", counts.Total)
	}
	if counts.Deleted != 0 {
		t.Errorf("expected 0 deleted, got %d", counts.Deleted)
	}
}

func TestCreateSlots_ReplaceExistingDeletesFutureUnreserved(t *testing.T) {
	var deletedForDoctor string
	repo := &mockSlotRepository{
		deleteFutureUnreservedFunc: func(ctx context.Context, doctorID, fromDate, fromTime string) (int64, error) {
			deletedForDoctor = doctorID
			return 4, nil
		},
	}
	doctors := &mockDoctorRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Doctor, error) {
			return activeDoctor(), nil
		},
	}
	svc := newTestService(repo, newMockSlotLockRepository(), doctors)

	counts, err := svc.CreateSlots(context.Background(), "65a000000000000000000001", []*model.SlotInput{
		{Date: "2026-03-11", StartTime: "10:00", EndTime: "10:30"},
	}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Deleted != 4 {
		t.Errorf("expected 4 deleted, got %d", counts.Deleted)
	}
	if counts.Created != 1 {
		t.Errorf("expected 1 created, got %d", counts.Created)
	}
	if deletedForDoctor != "65a000000000000000000001" {
		t.Errorf("delete scoped to wrong doctor: %s", deletedForDoctor)
	}
}

func TestCreateSlots_UnverifiedDoctorForbidden(t *testing.T) {
	doctors := &mockDoctorRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Doctor, error) {
			d := activeDoctor()
			d.Verified = false
			return d, nil
		},
	}
	svc := newTestService(&mockSlotRepository{}, newMockSlotLockRepository(), doctors)

	_, err := svc.CreateSlots(context.Background(), "65a000000000000000000001", []*model.SlotInput{
		{Date: "2026-03-11", StartTime: "10:00", EndTime: "10:30"},
	}, false)
	if err == nil {
		t.Fatal("expected error for unverified doctor")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected FORBIDDEN, got %s", appErr.Code)
	}
}

func TestCreateSlots_HeldLockConflicts(t *testing.T) {
	locks := newMockSlotLockRepository()
	locks.held["65a000000000000000000001"] = true
	doctors := &mockDoctorRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Doctor, error) {
			return activeDoctor(), nil
		},
	}
	svc := newTestService(&mockSlotRepository{}, locks, doctors)

	_, err := svc.CreateSlots(context.Background(), "65a000000000000000000001", []*model.SlotInput{
		{Date: "2026-03-11", StartTime: "10:00", EndTime: "10:30"},
	}, false)
	if err == nil {
		t.Fatal("expected conflict while lock held")
	}
	if !errors.Is(err, sloterrors.ErrScheduleLocked) {
		t.Errorf("expected ErrScheduleLocked in chain, got %v", err)
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT, got %s", appErr.Code)
	}
}

func TestCreateSlots_ReleasesLockAfterRun(t *testing.T) {
	locks := newMockSlotLockRepository()
	doctors := &mockDoctorRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Doctor, error) {
			return activeDoctor(), nil
		},
	}
	svc := newTestService(&mockSlotRepository{}, locks, doctors)

	_, err := svc.CreateSlots(context.Background(), "65a000000000000000000001", []*model.SlotInput{
		{Date: "2026-03-11", StartTime: "10:00", EndTime: "10:30"},
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locks.releases != 1 {
		t.Errorf("expected lock released once, got %d", locks.releases)
	}
	if locks.held["65a000000000000000000001"] {
		t.Error("lock still held after run")
	}
}

func TestCreateSlots_InvalidInputRejected(t *testing.T) {
	doctors := &mockDoctorRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Doctor, error) {
			return activeDoctor(), nil
		},
	}
	svc := newTestService(&mockSlotRepository{}, newMockSlotLockRepository(), doctors)

	cases := []struct {
		name  string
		input *model.SlotInput
	}{
		{"bad date", &model.SlotInput{Date: "11-03-2026", StartTime: "10:00", EndTime: "10:30"}},
		{"bad time", &model.SlotInput{Date: "2026-03-11", StartTime: "25:00", EndTime: "10:30"}},
		{"inverted range", &model.SlotInput{Date: "2026-03-11", StartTime: "10:30", EndTime: "10:00"}},
		{"missing start", &model.SlotInput{Date: "2026-03-11", EndTime: "10:30"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSlots(context.Background(), "65a000000000000000000001", []*model.SlotInput{tc.input}, false)
			if err == nil {
				t.Fatal("expected validation error")
			}
			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeValidation {
				t.Errorf("expected VALIDATION_ERROR, got %s", appErr.Code)
			}
		})
	}
}

func TestListAvailable_NotAcceptingBookingsReturnsEmpty(t *testing.T) {
	repoCalled := false
	repo := &mockSlotRepository{
		findAvailableFunc: func(ctx context.Context, doctorID, fromDate, fromTime string, limit int, offset int64) ([]*model.AvailabilitySlot, error) {
			repoCalled = true
			return []*model.AvailabilitySlot{{ID: "s1"}}, nil
		},
	}
	doctors := &mockDoctorRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Doctor, error) {
			d := activeDoctor()
			d.AcceptingBookings = false
			return d, nil
		},
	}
	svc := newTestService(repo, newMockSlotLockRepository(), doctors)

	slots, err := svc.ListAvailable(context.Background(), "65a000000000000000000001", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected empty availability, got %d slots", len(slots))
	}
	if repoCalled {
		t.Error("repository should not be queried when doctor is not accepting bookings")
	}
}

func TestListAvailable_PassesTimeCut(t *testing.T) {
	var gotDate, gotTime string
	repo := &mockSlotRepository{
		findAvailableFunc: func(ctx context.Context, doctorID, fromDate, fromTime string, limit int, offset int64) ([]*model.AvailabilitySlot, error) {
			gotDate, gotTime = fromDate, fromTime
			return []*model.AvailabilitySlot{}, nil
		},
	}
	doctors := &mockDoctorRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Doctor, error) {
			return activeDoctor(), nil
		},
	}
	svc := newTestService(repo, newMockSlotLockRepository(), doctors)

	if _, err := svc.ListAvailable(context.Background(), "65a000000000000000000001", 10, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDate != "2026-03-10" || gotTime != "09:00" {
		t.Errorf("expected cut 2026-03-10 09:00, got %s %s", gotDate, gotTime)
	}
}

func TestReserve_SingleWinnerUnderConcurrency(t *testing.T) {
	var mu sync.Mutex
	reserved := false
	repo := &mockSlotRepository{
		reserveFunc: func(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
			mu.Lock()
			defer mu.Unlock()
			if reserved {
				return nil, fmt.Errorf("%w: %s", sloterrors.ErrAlreadyReserved, id)
			}
			reserved = true
			return &model.AvailabilitySlot{
				ID:        id,
				DoctorID:  "65a000000000000000000001",
				Date:      "2026-03-11",
				StartTime: "10:00",
				EndTime:   "10:30",
				Reserved:  true,
			}, nil
		},
	}
	svc := newTestService(repo, newMockSlotLockRepository(), &mockDoctorRepository{})

	const attempts = 50
	var wg sync.WaitGroup
	var winners, conflicts int64
	var countMu sync.Mutex

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), "65b000000000000000000001")
			countMu.Lock()
			defer countMu.Unlock()
			if err == nil {
				winners++
			} else if errors.Is(err, sloterrors.ErrAlreadyReserved) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestReserve_PastSlotRejectedAndReleased(t *testing.T) {
	released := false
	repo := &mockSlotRepository{
		reserveFunc: func(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
			return &model.AvailabilitySlot{
				ID:        id,
				Date:      "2026-03-10",
				StartTime: "08:00",
				Reserved:  true,
			}, nil
		},
		releaseFunc: func(ctx context.Context, id string) error {
			released = true
			return nil
		},
	}
	svc := newTestService(repo, newMockSlotLockRepository(), &mockDoctorRepository{})

	_, err := svc.Reserve(context.Background(), "65b000000000000000000001")
	if err == nil {
		t.Fatal("expected past-slot rejection")
	}
	if !errors.Is(err, sloterrors.ErrSlotInPast) {
		t.Errorf("expected ErrSlotInPast in chain, got %v", err)
	}
	if !released {
		t.Error("expected the slot to be released after past-slot rejection")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	calls := 0
	repo := &mockSlotRepository{
		releaseFunc: func(ctx context.Context, id string) error {
			calls++
			return nil
		},
	}
	svc := newTestService(repo, newMockSlotLockRepository(), &mockDoctorRepository{})

	for i := 0; i < 3; i++ {
		if err := svc.Release(context.Background(), "65b000000000000000000001"); err != nil {
			t.Fatalf("release %d: unexpected error: %v", i, err)
		}
	}
	if calls != 3 {
		t.Errorf("expected 3 repository calls, got %d", calls)
	}
}

func TestListByDoctor_FanOut(t *testing.T) {
	repo := &mockSlotRepository{
		countByDoctorFunc: func(ctx context.Context, doctorID string) (int64, error) {
			time.Sleep(5 * time.Millisecond)
			return 12, nil
		},
		findByDoctorFunc: func(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, error) {
			time.Sleep(5 * time.Millisecond)
			return []*model.AvailabilitySlot{{ID: "s1"}, {ID: "s2"}}, nil
		},
	}
	svc := newTestService(repo, newMockSlotLockRepository(), &mockDoctorRepository{})

	for i := 0; i < 10; i++ {
		slots, count, err := svc.ListByDoctor(context.Background(), "65a000000000000000000001", 10, 0)
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if count != 12 {
			t.Errorf("iteration %d: expected count 12, got %d", i, count)
		}
		if len(slots) != 2 {
			t.Errorf("iteration %d: expected 2 slots, got %d", i, len(slots))
		}
	}
}
