package service

import (
	"context"
	"errors"
	"fmt"
	doctorerrors "mediq/internal/doctors/errors"
	ledgererrors "mediq/internal/ledger/errors"
	"mediq/pkg/config"
	mongotx "mediq/pkg/db/mongo"
	apperrors "mediq/pkg/errors"
	"mediq/pkg/logger"
	"mediq/pkg/model"
	"sync"
	"testing"
	"time"
)

// fakeLedger is an in-memory TransactionRepository sufficient for payout
// runs: it honors the completed+unpaid selection filter and the re-pinned
// MarkPaid filter, so idempotency and all-or-nothing behavior are exercised
// for real.
type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]*model.Transaction
}

func newFakeLedger(entries ...*model.Transaction) *fakeLedger {
	f := &fakeLedger{entries: map[string]*model.Transaction{}}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return f
}

func (f *fakeLedger) Create(ctx context.Context, t *model.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[t.ID] = t
	return nil
}

func (f *fakeLedger) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %s", ledgererrors.ErrNotFound, id)
}

func (f *fakeLedger) FindByAppointment(ctx context.Context, appointmentID string) (*model.Transaction, error) {
	return nil, fmt.Errorf("%w: appointment %s", ledgererrors.ErrNotFound, appointmentID)
}

func (f *fakeLedger) FindPayable(ctx context.Context, doctorID string) ([]*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Transaction
	for _, e := range f.entries {
		if e.DoctorID == doctorID && e.Status == model.PaymentCompleted && e.PayoutStatus != model.PayoutPaid {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLedger) MarkPaid(ctx context.Context, ids []string, batchID, method, reference string, paidAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var marked int64
	for _, id := range ids {
		e, ok := f.entries[id]
		if !ok || e.Status != model.PaymentCompleted || e.PayoutStatus == model.PayoutPaid {
			continue
		}
		e.PayoutStatus = model.PayoutPaid
		e.PayoutBatchID = batchID
		e.PayoutMethod = method
		e.PayoutReference = reference
		e.PaidAt = &paidAt
		marked++
	}
	return marked, nil
}

func (f *fakeLedger) UpdateStatus(ctx context.Context, id, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledgererrors.ErrNotFound, id)
	}
	if e.Status != from {
		return fmt.Errorf("%w: %s is not %s", ledgererrors.ErrInvalidTransition, id, from)
	}
	e.Status = to
	return nil
}

func (f *fakeLedger) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	return 0, nil
}

func (f *fakeLedger) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type stubDoctorRepository struct {
	doctor *model.Doctor
}

func (s *stubDoctorRepository) FindByID(ctx context.Context, id string) (*model.Doctor, error) {
	if s.doctor != nil && s.doctor.ID == id {
		return s.doctor, nil
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
	return &config.Config{Log: log}
}

const doctorID = "65a000000000000000000001"

func payableEntry(id string, earning int64) *model.Transaction {
	return &model.Transaction{
		ID:            id,
		DoctorID:      doctorID,
		Amount:        earning + earning/9,
		PlatformFee:   earning / 9,
		DoctorEarning: earning,
		Status:        model.PaymentCompleted,
	}
}

func newPayout(ledger *fakeLedger) PayoutService {
	doctors := &stubDoctorRepository{doctor: &model.Doctor{ID: doctorID, Name: "Dr. Levi"}}
	return NewPayoutService(ledger, doctors, testConfig())
}

func TestRunPayout_TotalsAndMarking(t *testing.T) {
	ledger := newFakeLedger(
		payableEntry("65e000000000000000000001", 18000),
		payableEntry("65e000000000000000000002", 9000),
		&model.Transaction{ID: "65e000000000000000000003", DoctorID: doctorID, DoctorEarning: 5000, Status: model.PaymentRefunded},
		&model.Transaction{ID: "65e000000000000000000004", DoctorID: doctorID, DoctorEarning: 4000, Status: model.PaymentCompleted, PayoutStatus: model.PayoutPaid},
		&model.Transaction{ID: "65e000000000000000000005", DoctorID: "65a000000000000000000099", DoctorEarning: 7000, Status: model.PaymentCompleted},
	)
	svc := newPayout(ledger)

	result, err := svc.RunPayout(context.Background(), doctorID, "Bank Transfer", "INV-2026-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalAmount != 27000 {
		t.Errorf("expected total 27000, got %d", result.TotalAmount)
	}
	if result.EntryCount != 2 {
		t.Errorf("expected 2 entries, got %d", result.EntryCount)
	}
	if result.DoctorName != "Dr. Levi" {
		t.Errorf("expected doctor name, got %q", result.DoctorName)
	}
	if result.Method != "bank_transfer" {
		t.Errorf("expected normalized method, got %q", result.Method)
	}
	if result.BatchID == "" {
		t.Error("expected a batch id")
	}

	for _, id := range []string{"65e000000000000000000001", "65e000000000000000000002"} {
		e, _ := ledger.FindByID(context.Background(), id)
		if e.PayoutStatus != model.PayoutPaid {
			t.Errorf("entry %s not marked paid", id)
		}
		if e.PayoutBatchID != result.BatchID {
			t.Errorf("entry %s has wrong batch id", id)
		}
	}

	other, _ := ledger.FindByID(context.Background(), "65e000000000000000000005")
	if other.PayoutStatus == model.PayoutPaid {
		t.Error("other doctor's entry must not be touched")
	}
}

func TestRunPayout_NothingToPayout(t *testing.T) {
	svc := newPayout(newFakeLedger())

	_, err := svc.RunPayout(context.Background(), doctorID, "bank_transfer", "")
	if err == nil {
		t.Fatal("expected nothing-to-payout error")
	}
	if !errors.Is(err, ledgererrors.ErrNothingToPayout) {
		t.Errorf("expected ErrNothingToPayout in chain, got %v", err)
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != CodeNothingToPayout {
		t.Errorf("expected %s, got %s", CodeNothingToPayout, appErr.Code)
	}
	if appErr.StatusCode() != 404 {
		t.Errorf("expected 404, got %d", appErr.StatusCode())
	}
}

func TestRunPayout_Idempotent(t *testing.T) {
	ledger := newFakeLedger(
		payableEntry("65e000000000000000000001", 18000),
	)
	svc := newPayout(ledger)

	first, err := svc.RunPayout(context.Background(), doctorID, "bank_transfer", "")
	if err != nil {
		t.Fatalf("first run: unexpected error: %v", err)
	}
	if first.TotalAmount != 18000 {
		t.Errorf("first run: expected 18000, got %d", first.TotalAmount)
	}

	_, err = svc.RunPayout(context.Background(), doctorID, "bank_transfer", "")
	if !errors.Is(err, ledgererrors.ErrNothingToPayout) {
		t.Errorf("second run: expected ErrNothingToPayout, got %v", err)
	}

	e, _ := ledger.FindByID(context.Background(), "65e000000000000000000001")
	if e.PayoutBatchID != first.BatchID {
		t.Error("second run must not re-stamp the entry")
	}
}

func TestRunPayout_UnknownDoctor(t *testing.T) {
	svc := newPayout(newFakeLedger(payableEntry("65e000000000000000000001", 100)))

	_, err := svc.RunPayout(context.Background(), "65a000000000000000000042", "bank_transfer", "")
	if err == nil {
		t.Fatal("expected not-found error")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", appErr.Code)
	}
}

func TestRunPayout_MissingMethodRejected(t *testing.T) {
	svc := newPayout(newFakeLedger(payableEntry("65e000000000000000000001", 100)))

	_, err := svc.RunPayout(context.Background(), doctorID, "  ", "ref")
	if err == nil {
		t.Fatal("expected invalid input error")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
}

func TestRunPayout_AbortsWhenSelectionChangesMidRun(t *testing.T) {
	ledger := newFakeLedger(
		payableEntry("65e000000000000000000001", 18000),
		payableEntry("65e000000000000000000002", 9000),
	)
	doctors := &stubDoctorRepository{doctor: &model.Doctor{ID: doctorID, Name: "Dr. Levi"}}
	svc := NewPayoutService(&racingLedger{fakeLedger: ledger}, doctors, testConfig())

	_, err := svc.RunPayout(context.Background(), doctorID, "bank_transfer", "")
	if err == nil {
		t.Fatal("expected conflict when an entry is refunded between select and mark")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT, got %s", appErr.Code)
	}
}

// racingLedger refunds one selected entry between FindPayable and MarkPaid,
// simulating a concurrent refund inside the payout window.
type racingLedger struct {
	*fakeLedger
}

func (r *racingLedger) FindPayable(ctx context.Context, doctorID string) ([]*model.Transaction, error) {
	out, err := r.fakeLedger.FindPayable(ctx, doctorID)
	if err == nil && len(out) > 0 {
		_ = r.fakeLedger.UpdateStatus(ctx, out[0].ID, model.PaymentCompleted, model.PaymentRefunded)
	}
	return out, err
}
