package service

import (
	"context"
	"errors"
	ledgererrors "mediq/internal/ledger/errors"
	"mediq/internal/ledger/repository"
	"mediq/pkg/config"
	apperrors "mediq/pkg/errors"
	"mediq/pkg/model"
	"sync"
)

// RefundResult reports a refund outcome. ReconciliationRequired is set when
// the refunded entry was already paid out to the doctor; the money is not
// clawed back automatically, operators settle it out of band.
type RefundResult struct {
	Entry                  *model.Transaction `json:"entry"`
	ReconciliationRequired bool               `json:"reconciliation_required"`
}

type LedgerService interface {
	Record(ctx context.Context, appointmentID, doctorID, patientID string, gross int64) (*model.Transaction, error)
	Refund(ctx context.Context, entryID string) (*RefundResult, error)
	UpdateStatus(ctx context.Context, entryID, status string) (*model.Transaction, error)
	GetByAppointment(ctx context.Context, appointmentID string) (*model.Transaction, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Transaction, int64, error)
}

type ledgerService struct {
	repo    repository.TransactionRepository
	gateway PaymentGateway
	fee     FeePolicy
	cfg     *config.Config
}

func NewLedgerService(
	repo repository.TransactionRepository,
	gateway PaymentGateway,
	fee FeePolicy,
	cfg *config.Config,
) LedgerService {
	return &ledgerService{
		repo:    repo,
		gateway: gateway,
		fee:     fee,
		cfg:     cfg,
	}
}

// Record charges the patient and writes the settlement entry for an
// appointment. The split is derived from the fee policy so
// amount == platform_fee + doctor_earning holds by construction, and is
// still verified before persisting. A declined charge records a failed
// entry rather than dropping the attempt.
func (s *ledgerService) Record(ctx context.Context, appointmentID, doctorID, patientID string, gross int64) (*model.Transaction, error) {
	if appointmentID == "" || doctorID == "" {
		return nil, apperrors.InvalidInput("appointment_id and doctor_id are required")
	}
	if gross <= 0 {
		return nil, apperrors.InvalidInput("Amount must be positive")
	}

	fee := s.fee(gross)
	if fee < 0 || fee > gross {
		return nil, apperrors.Internal("Fee policy produced an out-of-range fee", ledgererrors.ErrInconsistentSplit)
	}

	entry := &model.Transaction{
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		Amount:        gross,
		PlatformFee:   fee,
		DoctorEarning: gross - fee,
		Status:        model.PaymentCompleted,
	}
	if !entry.SplitIsConsistent() {
		return nil, apperrors.Internal("Settlement split is inconsistent", ledgererrors.ErrInconsistentSplit)
	}

	if err := s.gateway.Charge(ctx, patientID, gross); err != nil {
		s.cfg.Log.Warn("Payment charge failed, recording failed entry",
			"appointment_id", appointmentID,
			"amount", gross,
			"error", err,
		)
		entry.Status = model.PaymentFailed
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.cfg.Log.Error("Failed to record ledger entry",
			"appointment_id", appointmentID,
			"doctor_id", doctorID,
			"amount", gross,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to record settlement", err)
	}

	s.cfg.Log.Info("Ledger entry recorded",
		"id", entry.ID,
		"appointment_id", appointmentID,
		"amount", gross,
		"platform_fee", entry.PlatformFee,
		"doctor_earning", entry.DoctorEarning,
		"status", entry.Status,
	)

	if entry.Status == model.PaymentFailed {
		return entry, apperrors.Wrap(errors.New("payment declined"),
			apperrors.CodeConflict, "Payment was declined", 402)
	}
	return entry, nil
}

// Refund moves a completed entry to refunded. Works on already-paid-out
// entries too, flagging them for manual reconciliation instead of touching
// the payout record.
func (s *ledgerService) Refund(ctx context.Context, entryID string) (*RefundResult, error) {
	if entryID == "" {
		return nil, apperrors.InvalidInput("Ledger entry ID cannot be empty")
	}

	entry, err := s.findByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if entry.Status != model.PaymentCompleted {
		return nil, apperrors.Wrap(ledgererrors.ErrInvalidTransition,
			apperrors.CodeConflict, "Only completed entries can be refunded", 409)
	}

	if err := s.repo.UpdateStatus(ctx, entryID, model.PaymentCompleted, model.PaymentRefunded); err != nil {
		if errors.Is(err, ledgererrors.ErrInvalidTransition) {
			return nil, apperrors.Wrap(ledgererrors.ErrInvalidTransition,
				apperrors.CodeConflict, "Only completed entries can be refunded", 409)
		}
		s.cfg.Log.Error("Failed to refund ledger entry", "id", entryID, "error", err)
		return nil, apperrors.Internal("Failed to refund settlement", err)
	}
	entry.Status = model.PaymentRefunded

	result := &RefundResult{
		Entry:                  entry,
		ReconciliationRequired: entry.PayoutStatus == model.PayoutPaid,
	}
	if result.ReconciliationRequired {
		s.cfg.Log.Warn("Refunded entry was already paid out; manual reconciliation required",
			"id", entryID,
			"doctor_id", entry.DoctorID,
			"payout_batch_id", entry.PayoutBatchID,
			"doctor_earning", entry.DoctorEarning,
		)
	}

	s.cfg.Log.Info("Ledger entry refunded", "id", entryID, "appointment_id", entry.AppointmentID)
	return result, nil
}

// UpdateStatus applies a settlement transition from the whitelist:
// pending -> completed|failed, completed -> refunded. An unknown status is a
// validation error before any transition check.
func (s *ledgerService) UpdateStatus(ctx context.Context, entryID, status string) (*model.Transaction, error) {
	if entryID == "" {
		return nil, apperrors.InvalidInput("Ledger entry ID cannot be empty")
	}
	if !model.ValidPaymentStatus(status) {
		return nil, apperrors.Validation("Unknown settlement status", map[string]any{
			"status":  status,
			"allowed": []string{model.PaymentPending, model.PaymentCompleted, model.PaymentFailed, model.PaymentRefunded},
		})
	}

	entry, err := s.findByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(entry.Status, status) {
		return nil, apperrors.Wrap(ledgererrors.ErrInvalidTransition,
			apperrors.CodeConflict, "Settlement status transition is not allowed", 409).
			WithDetails(map[string]any{"from": entry.Status, "to": status})
	}

	if err := s.repo.UpdateStatus(ctx, entryID, entry.Status, status); err != nil {
		if errors.Is(err, ledgererrors.ErrInvalidTransition) {
			return nil, apperrors.Wrap(ledgererrors.ErrInvalidTransition,
				apperrors.CodeConflict, "Settlement status transition is not allowed", 409)
		}
		s.cfg.Log.Error("Failed to update ledger entry status", "id", entryID, "to", status, "error", err)
		return nil, apperrors.Internal("Failed to update settlement status", err)
	}
	entry.Status = status

	s.cfg.Log.Info("Ledger entry status updated", "id", entryID, "status", status)
	return entry, nil
}

func (s *ledgerService) GetByAppointment(ctx context.Context, appointmentID string) (*model.Transaction, error) {
	if appointmentID == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	entry, err := s.repo.FindByAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ledgererrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Ledger entry for appointment", appointmentID)
		}
		s.cfg.Log.Error("Failed to get ledger entry by appointment", "appointment_id", appointmentID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve settlement", err)
	}
	return entry, nil
}

func (s *ledgerService) ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Transaction, int64, error) {
	if doctorID == "" {
		return nil, 0, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var entries []*model.Transaction
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByDoctor(sharedCtx, doctorID)
		if err != nil {
			s.cfg.Log.Error("Failed to count ledger entries", "doctor_id", doctorID, "error", err)
			errCount = apperrors.Internal("Failed to count ledger entries", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		entries, err = s.repo.FindByDoctor(sharedCtx, doctorID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list ledger entries", "doctor_id", doctorID, "error", err)
			errFind = apperrors.Internal("Failed to retrieve ledger entries", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return entries, count, nil
}

func (s *ledgerService) findByID(ctx context.Context, id string) (*model.Transaction, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ledgererrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Ledger entry", id)
		}
		if errors.Is(err, ledgererrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid ledger entry ID format")
		}
		s.cfg.Log.Error("Failed to get ledger entry", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve ledger entry", err)
	}
	return entry, nil
}

func transitionAllowed(from, to string) bool {
	switch from {
	case model.PaymentPending:
		return to == model.PaymentCompleted || to == model.PaymentFailed
	case model.PaymentCompleted:
		return to == model.PaymentRefunded
	}
	return false
}
