package repository

import (
	"context"
	"errors"
	"fmt"
	sloterrors "mediq/internal/slots/errors"
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
	CollectionName = "Slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type SlotRepository interface {
	InsertIfAbsent(ctx context.Context, slot *model.AvailabilitySlot) (created bool, err error)
	DeleteFutureUnreserved(ctx context.Context, doctorID, fromDate, fromTime string) (int64, error)
	FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	FindAvailable(ctx context.Context, doctorID, fromDate, fromTime string, limit int, offset int64) ([]*model.AvailabilitySlot, error)
	FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, error)
	CountByDoctor(ctx context.Context, doctorID string) (int64, error)
	Reserve(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	Release(ctx context.Context, id string) error

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

// InsertIfAbsent upserts on the (doctor_id, date, start_time) key with
// $setOnInsert only, so an existing slot (reserved or not) is left
// untouched. Returns whether a new document was created.
func (r *mongoSlotRepository) InsertIfAbsent(ctx context.Context, slot *model.AvailabilitySlot) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{
		"doctor_id":  slot.DoctorID,
		"date":       slot.Date,
		"start_time": slot.StartTime,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"doctor_id":  slot.DoctorID,
			"date":       slot.Date,
			"start_time": slot.StartTime,
			"end_time":   slot.EndTime,
			"reserved":   false,
			"created_at": now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to upsert slot: %w", err)
	}

	if result.UpsertedCount == 1 {
		if oid, ok := result.UpsertedID.(primitive.ObjectID); ok {
			slot.ID = oid.Hex()
		}
		slot.CreatedAt = now
		return true, nil
	}
	return false, nil
}

// DeleteFutureUnreserved removes the doctor's unreserved slots at or after
// the given date/time cut. Reserved slots stay: a booked patient never loses
// their appointment to a schedule republish.
func (r *mongoSlotRepository) DeleteFutureUnreserved(ctx context.Context, doctorID, fromDate, fromTime string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id": doctorID,
		"reserved":  false,
		"$or": []bson.M{
			{"date": bson.M{"$gt": fromDate}},
			{"date": fromDate, "start_time": bson.M{"$gte": fromTime}},
		},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete future slots for doctor [%s]: %w", doctorID, err)
	}
	return result.DeletedCount, nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	var slot model.AvailabilitySlot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", sloterrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

// FindAvailable lists unreserved future slots for a doctor, soonest first.
func (r *mongoSlotRepository) FindAvailable(ctx context.Context, doctorID, fromDate, fromTime string, limit int, offset int64) ([]*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id": doctorID,
		"reserved":  false,
		"$or": []bson.M{
			{"date": bson.M{"$gt": fromDate}},
			{"date": fromDate, "start_time": bson.M{"$gt": fromTime}},
		},
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query available slots for doctor [%s]: %w", doctorID, err)
	}
	defer cursor.Close(ctx)

	var slots []*model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"doctor_id": doctorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots for doctor [%s]: %w", doctorID, err)
	}
	defer cursor.Close(ctx)

	var slots []*model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"doctor_id": doctorID})
	if err != nil {
		return 0, fmt.Errorf("failed to count slots for doctor [%s]: %w", doctorID, err)
	}
	return count, nil
}

// Reserve flips the reserved flag with a single compare-and-set: the filter
// matches only an unreserved document, so under concurrent bookings exactly
// one caller observes the pre-image and wins. Losers get ErrAlreadyReserved
// if the slot exists reserved, ErrNotFound otherwise.
func (r *mongoSlotRepository) Reserve(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "reserved": false}
	update := bson.M{"$set": bson.M{
		"reserved":   true,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	var slot model.AvailabilitySlot
	err = r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
			if countErr == nil && count > 0 {
				return nil, fmt.Errorf("%w: %s", sloterrors.ErrAlreadyReserved, id)
			}
			return nil, fmt.Errorf("%w: %s", sloterrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to reserve slot: %w", err)
	}
	return &slot, nil
}

// Release clears the reserved flag. Releasing a slot that is already free is
// a no-op, which keeps booking compensation and cancellation retries safe.
func (r *mongoSlotRepository) Release(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{"$set": bson.M{
		"reserved":   false,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", sloterrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
