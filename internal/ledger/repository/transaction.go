package repository

import (
	"context"
	"errors"
	"fmt"
	ledgererrors "mediq/internal/ledger/errors"
	"mediq/pkg/config"
	mongotx "mediq/pkg/db/mongo"
	"mediq/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Transactions"
)

type mongoTransactionRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type TransactionRepository interface {
	Create(ctx context.Context, t *model.Transaction) error
	FindByID(ctx context.Context, id string) (*model.Transaction, error)
	FindByAppointment(ctx context.Context, appointmentID string) (*model.Transaction, error)
	FindPayable(ctx context.Context, doctorID string) ([]*model.Transaction, error)
	MarkPaid(ctx context.Context, ids []string, batchID, method, reference string, paidAt time.Time) (int64, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
	FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Transaction, error)
	CountByDoctor(ctx context.Context, doctorID string) (int64, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoTransactionRepository(cfg *config.Config) TransactionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTransactionRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoTransactionRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoTransactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	t.CreatedAt = now
	t.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid.Hex()
	}
	return nil
}

func (r *mongoTransactionRepository) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ledgererrors.ErrInvalidID, id)
	}

	var t model.Transaction
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ledgererrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find ledger entry: %w", err)
	}
	return &t, nil
}

func (r *mongoTransactionRepository) FindByAppointment(ctx context.Context, appointmentID string) (*model.Transaction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var t model.Transaction
	err := r.collection.FindOne(ctx, bson.M{"appointment_id": appointmentID}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: appointment %s", ledgererrors.ErrNotFound, appointmentID)
		}
		return nil, fmt.Errorf("failed to find ledger entry by appointment: %w", err)
	}
	return &t, nil
}

// FindPayable selects the doctor's settled entries that no payout run has
// claimed yet, oldest first so batch references stay chronological.
func (r *mongoTransactionRepository) FindPayable(ctx context.Context, doctorID string) ([]*model.Transaction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id":     doctorID,
		"status":        model.PaymentCompleted,
		"payout_status": bson.M{"$ne": model.PayoutPaid},
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query payable entries for doctor [%s]: %w", doctorID, err)
	}
	defer cursor.Close(ctx)

	var transactions []*model.Transaction
	if err = cursor.All(ctx, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode payable entries: %w", err)
	}
	return transactions, nil
}

// MarkPaid stamps the given entries with the batch in one UpdateMany. The
// filter re-pins status and payout state, so entries raced into a refund or
// another batch are not double-marked; the caller compares the modified count
// against the selection and aborts the surrounding transaction on mismatch.
func (r *mongoTransactionRepository) MarkPaid(ctx context.Context, ids []string, batchID, method, reference string, paidAt time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ledgererrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, oid)
	}

	filter := bson.M{
		"_id":           bson.M{"$in": objectIDs},
		"status":        model.PaymentCompleted,
		"payout_status": bson.M{"$ne": model.PayoutPaid},
	}
	update := bson.M{"$set": bson.M{
		"payout_status":    model.PayoutPaid,
		"payout_batch_id":  batchID,
		"payout_method":    method,
		"payout_reference": reference,
		"paid_at":          paidAt,
		"updated_at":       time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark entries paid: %w", err)
	}
	return result.ModifiedCount, nil
}

// UpdateStatus is a compare-and-set on the settlement status, mirroring the
// appointment transition guard.
func (r *mongoTransactionRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ledgererrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": from}
	update := bson.M{"$set": bson.M{
		"status":     to,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}
	if result.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if countErr == nil && count == 0 {
			return fmt.Errorf("%w: %s", ledgererrors.ErrNotFound, id)
		}
		return fmt.Errorf("%w: %s is not %s", ledgererrors.ErrInvalidTransition, id, from)
	}
	return nil
}

func (r *mongoTransactionRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Transaction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"doctor_id": doctorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries for doctor [%s]: %w", doctorID, err)
	}
	defer cursor.Close(ctx)

	var transactions []*model.Transaction
	if err = cursor.All(ctx, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return transactions, nil
}

func (r *mongoTransactionRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"doctor_id": doctorID})
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries for doctor [%s]: %w", doctorID, err)
	}
	return count, nil
}

func (r *mongoTransactionRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
