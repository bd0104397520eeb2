package service

import (
	"context"
	"errors"
	"fmt"
	ledgererrors "mediq/internal/ledger/errors"
	"mediq/pkg/config"
	mongotx "mediq/pkg/db/mongo"
	apperrors "mediq/pkg/errors"
	"mediq/pkg/logger"
	"mediq/pkg/model"
	"testing"
	"time"
)

type mockTransactionRepository struct {
	createFunc            func(ctx context.Context, t *model.Transaction) error
	findByIDFunc          func(ctx context.Context, id string) (*model.Transaction, error)
	findByAppointmentFunc func(ctx context.Context, appointmentID string) (*model.Transaction, error)
	findPayableFunc       func(ctx context.Context, doctorID string) ([]*model.Transaction, error)
	markPaidFunc          func(ctx context.Context, ids []string, batchID, method, reference string, paidAt time.Time) (int64, error)
	updateStatusFunc      func(ctx context.Context, id, from, to string) error
	findByDoctorFunc      func(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Transaction, error)
	countByDoctorFunc     func(ctx context.Context, doctorID string) (int64, error)
}

func (m *mockTransactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, t)
	}
	t.ID = "65e000000000000000000001"
	return nil
}

func (m *mockTransactionRepository) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", ledgererrors.ErrNotFound, id)
}

func (m *mockTransactionRepository) FindByAppointment(ctx context.Context, appointmentID string) (*model.Transaction, error) {
	if m.findByAppointmentFunc != nil {
		return m.findByAppointmentFunc(ctx, appointmentID)
	}
	return nil, fmt.Errorf("%w: appointment %s", ledgererrors.ErrNotFound, appointmentID)
}

func (m *mockTransactionRepository) FindPayable(ctx context.Context, doctorID string) ([]*model.Transaction, error) {
	if m.findPayableFunc != nil {
		return m.findPayableFunc(ctx, doctorID)
	}
	return []*model.Transaction{}, nil
}

func (m *mockTransactionRepository) MarkPaid(ctx context.Context, ids []string, batchID, method, reference string, paidAt time.Time) (int64, error) {
	if m.markPaidFunc != nil {
		return m.markPaidFunc(ctx, ids, batchID, method, reference, paidAt)
	}
	return int64(len(ids)), nil
}

func (m *mockTransactionRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to)
	}
	return nil
}

func (m *mockTransactionRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Transaction, error) {
	if m.findByDoctorFunc != nil {
		return m.findByDoctorFunc(ctx, doctorID, limit, offset)
	}
	return []*model.Transaction{}, nil
}

func (m *mockTransactionRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	if m.countByDoctorFunc != nil {
		return m.countByDoctorFunc(ctx, doctorID)
	}
	return 0, nil
}

func (m *mockTransactionRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type decliningGateway struct{}

func (decliningGateway) Charge(ctx context.Context, patientID string, amount int64) error {
	return errors.New("card declined")
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
	}
}

func newLedger(repo *mockTransactionRepository, gateway PaymentGateway, percent int) LedgerService {
	if gateway == nil {
		gateway = NewApproveAllGateway()
	}
	return NewLedgerService(repo, gateway, PercentFee(percent), testConfig())
}

func TestRecord_SplitInvariant(t *testing.T) {
	cases := []struct {
		name        string
		gross       int64
		percent     int
		wantFee     int64
		wantEarning int64
	}{
		{"ten percent of 20000", 20000, 10, 2000, 18000},
		{"rounding goes to doctor", 999, 10, 99, 900},
		{"zero percent", 5000, 0, 0, 5000},
		{"full fee", 5000, 100, 5000, 0},
		{"one minor unit", 1, 10, 0, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var saved *model.Transaction
			repo := &mockTransactionRepository{
				createFunc: func(ctx context.Context, tx *model.Transaction) error {
					saved = tx
					tx.ID = "65e000000000000000000001"
					return nil
				},
			}
			svc := newLedger(repo, nil, tc.percent)

			entry, err := svc.Record(context.Background(), "65c000000000000000000001", "65a000000000000000000001", "65d000000000000000000001", tc.gross)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if entry.PlatformFee != tc.wantFee {
				t.Errorf("expected fee %d, got %d", tc.wantFee, entry.PlatformFee)
			}
			if entry.DoctorEarning != tc.wantEarning {
				t.Errorf("expected earning %d, got %d", tc.wantEarning, entry.DoctorEarning)
			}
			if !saved.SplitIsConsistent() {
				t.Errorf("split invariant violated: %d != %d + %d", saved.Amount, saved.PlatformFee, saved.DoctorEarning)
			}
			if entry.Status != model.PaymentCompleted {
				t.Errorf("expected completed, got %s", entry.Status)
			}
		})
	}
}

func TestRecord_RejectsNonPositiveAmount(t *testing.T) {
	svc := newLedger(&mockTransactionRepository{}, nil, 10)

	for _, gross := range []int64{0, -500} {
		_, err := svc.Record(context.Background(), "65c000000000000000000001", "65a000000000000000000001", "65d000000000000000000001", gross)
		if err == nil {
			t.Errorf("expected error for amount %d", gross)
		}
	}
}

func TestRecord_DeclinedChargeRecordsFailedEntry(t *testing.T) {
	var saved *model.Transaction
	repo := &mockTransactionRepository{
		createFunc: func(ctx context.Context, tx *model.Transaction) error {
			saved = tx
			return nil
		},
	}
	svc := newLedger(repo, decliningGateway{}, 10)

	_, err := svc.Record(context.Background(), "65c000000000000000000001", "65a000000000000000000001", "65d000000000000000000001", 20000)
	if err == nil {
		t.Fatal("expected declined-payment error")
	}
	if saved == nil {
		t.Fatal("expected a failed entry to be persisted")
	}
	if saved.Status != model.PaymentFailed {
		t.Errorf("expected failed, got %s", saved.Status)
	}
	if !saved.SplitIsConsistent() {
		t.Error("split invariant must hold for failed entries too")
	}
}

func TestRefund_OnlyFromCompleted(t *testing.T) {
	cases := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{"completed refunds", model.PaymentCompleted, false},
		{"pending rejected", model.PaymentPending, true},
		{"failed rejected", model.PaymentFailed, true},
		{"refunded rejected", model.PaymentRefunded, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockTransactionRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Transaction, error) {
					return &model.Transaction{
						ID:            id,
						AppointmentID: "65c000000000000000000001",
						DoctorID:      "65a000000000000000000001",
						Amount:        20000,
						PlatformFee:   2000,
						DoctorEarning: 18000,
						Status:        tc.status,
					}, nil
				},
			}
			svc := newLedger(repo, nil, 10)

			result, err := svc.Refund(context.Background(), "65e000000000000000000001")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected invalid transition error")
				}
				if !errors.Is(err, ledgererrors.ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition in chain, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Entry.Status != model.PaymentRefunded {
				t.Errorf("expected refunded, got %s", result.Entry.Status)
			}
			if result.ReconciliationRequired {
				t.Error("unpaid entry should not require reconciliation")
			}
		})
	}
}

func TestRefund_AfterPayoutFlagsReconciliation(t *testing.T) {
	paidAt := time.Now().UTC()
	repo := &mockTransactionRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Transaction, error) {
			return &model.Transaction{
				ID:            id,
				DoctorID:      "65a000000000000000000001",
				Amount:        20000,
				PlatformFee:   2000,
				DoctorEarning: 18000,
				Status:        model.PaymentCompleted,
				PayoutStatus:  model.PayoutPaid,
				PayoutBatchID: "batch-1",
				PaidAt:        &paidAt,
			}, nil
		},
	}
	svc := newLedger(repo, nil, 10)

	result, err := svc.Refund(context.Background(), "65e000000000000000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ReconciliationRequired {
		t.Error("refund after payout must flag reconciliation")
	}
	if result.Entry.PayoutStatus != model.PayoutPaid {
		t.Error("payout record must not be clawed back")
	}
}

func TestUpdateStatus_Whitelist(t *testing.T) {
	repo := &mockTransactionRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Transaction, error) {
			return &model.Transaction{ID: id, Status: model.PaymentPending, Amount: 100, DoctorEarning: 90, PlatformFee: 10}, nil
		},
	}
	svc := newLedger(repo, nil, 10)

	_, err := svc.UpdateStatus(context.Background(), "65e000000000000000000001", "settled")
	if err == nil {
		t.Fatal("expected validation error for unknown status")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %s", appErr.Code)
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{model.PaymentPending, model.PaymentCompleted, true},
		{model.PaymentPending, model.PaymentFailed, true},
		{model.PaymentPending, model.PaymentRefunded, false},
		{model.PaymentCompleted, model.PaymentRefunded, true},
		{model.PaymentCompleted, model.PaymentPending, false},
		{model.PaymentCompleted, model.PaymentFailed, false},
		{model.PaymentFailed, model.PaymentCompleted, false},
		{model.PaymentRefunded, model.PaymentCompleted, false},
	}

	for _, tc := range cases {
		t.Run(tc.from+"_to_"+tc.to, func(t *testing.T) {
			repo := &mockTransactionRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Transaction, error) {
					return &model.Transaction{ID: id, Status: tc.from, Amount: 100, DoctorEarning: 90, PlatformFee: 10}, nil
				},
			}
			svc := newLedger(repo, nil, 10)

			entry, err := svc.UpdateStatus(context.Background(), "65e000000000000000000001", tc.to)
			if tc.allowed {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if entry.Status != tc.to {
					t.Errorf("expected %s, got %s", tc.to, entry.Status)
				}
				return
			}
			if err == nil {
				t.Fatal("expected transition rejection")
			}
			if !errors.Is(err, ledgererrors.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition in chain, got %v", err)
			}
		})
	}
}

func TestPercentFee(t *testing.T) {
	fee := PercentFee(10)
	if got := fee(20000); got != 2000 {
		t.Errorf("expected 2000, got %d", got)
	}
	if got := fee(99); got != 9 {
		t.Errorf("expected truncation to 9, got %d", got)
	}
}
