package service

import (
	"context"
	"errors"
	"fmt"
	doctorerrors "mediq/internal/doctors/errors"
	doctorrepo "mediq/internal/doctors/repository"
	ledgererrors "mediq/internal/ledger/errors"
	ledgerrepo "mediq/internal/ledger/repository"
	"mediq/pkg/config"
	apperrors "mediq/pkg/errors"
	"mediq/pkg/model"
	"mediq/pkg/sanitizer"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// CodeNothingToPayout is the API code for a payout run that found no
// payable entries. Expected outcome, surfaced as 404 rather than 5xx.
const CodeNothingToPayout = "NOTHING_TO_PAYOUT"

type PayoutService interface {
	RunPayout(ctx context.Context, doctorID, method, reference string) (*model.PayoutResult, error)
}

type payoutService struct {
	ledger  ledgerrepo.TransactionRepository
	doctors doctorrepo.DoctorRepository
	cfg     *config.Config
	now     func() time.Time
}

func NewPayoutService(
	ledger ledgerrepo.TransactionRepository,
	doctors doctorrepo.DoctorRepository,
	cfg *config.Config,
) PayoutService {
	return &payoutService{
		ledger:  ledger,
		doctors: doctors,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RunPayout settles everything the platform owes one doctor in a single
// atomic batch. Selection and marking run inside one transaction; if the
// marked count differs from the selection (an entry raced into a refund or
// another batch), the whole batch aborts and no entry is stamped. Re-running
// after success finds nothing payable, so the operation is idempotent.
func (s *payoutService) RunPayout(ctx context.Context, doctorID, method, reference string) (*model.PayoutResult, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	method = sanitizer.NormalizeLabel(method)
	reference = sanitizer.NormalizeReference(reference)
	if method == "" {
		return nil, apperrors.InvalidInput("Payout method is required")
	}

	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, doctorerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Doctor", doctorID)
		}
		if errors.Is(err, doctorerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid doctor ID format")
		}
		s.cfg.Log.Error("Failed to resolve doctor for payout", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to resolve doctor", err)
	}

	batchID := uuid.NewString()
	paidAt := s.now()
	result := &model.PayoutResult{
		DoctorID:   doctorID,
		DoctorName: doctor.Name,
		BatchID:    batchID,
		Method:     method,
		Reference:  reference,
		PaidAt:     paidAt,
	}

	err = s.ledger.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		payable, err := s.ledger.FindPayable(sessCtx, doctorID)
		if err != nil {
			return apperrors.Internal("Failed to select payable entries", err)
		}
		if len(payable) == 0 {
			return apperrors.Wrap(ledgererrors.ErrNothingToPayout,
				CodeNothingToPayout, "No completed unpaid entries for this doctor", 404)
		}

		ids := make([]string, 0, len(payable))
		var total int64
		for _, entry := range payable {
			ids = append(ids, entry.ID)
			total += entry.DoctorEarning
		}

		marked, err := s.ledger.MarkPaid(sessCtx, ids, batchID, method, reference, paidAt)
		if err != nil {
			return apperrors.Internal("Failed to mark entries paid", err)
		}
		if marked != int64(len(ids)) {
			// All-or-nothing: abort so the transaction rolls every mark back.
			return apperrors.Conflict(
				fmt.Sprintf("Payout selection changed mid-run: selected %d, marked %d", len(ids), marked))
		}

		result.TotalAmount = total
		result.EntryCount = len(ids)
		return nil
	})
	if err != nil {
		if errors.Is(err, ledgererrors.ErrNothingToPayout) {
			s.cfg.Log.Info("Payout run found nothing to pay", "doctor_id", doctorID)
			return nil, err
		}
		s.cfg.Log.Error("Payout run failed",
			"doctor_id", doctorID,
			"batch_id", batchID,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Payout completed",
		"doctor_id", doctorID,
		"batch_id", batchID,
		"total_amount", result.TotalAmount,
		"entry_count", result.EntryCount,
		"method", method,
	)
	return result, nil
}
