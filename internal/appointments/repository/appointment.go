package repository

import (
	"context"
	"errors"
	"fmt"
	appointmenterrors "mediq/internal/appointments/errors"
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
	CollectionName = "Appointments"
)

type mongoAppointmentRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *model.Appointment) error
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
	FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Appointment, error)
	CountByPatient(ctx context.Context, patientID string) (int64, error)
	FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Appointment, error)
	CountByDoctor(ctx context.Context, doctorID string) (int64, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoAppointmentRepository(cfg *config.Config) AppointmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAppointmentRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoAppointmentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoAppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	a.CreatedAt = now
	a.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		a.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", appointmenterrors.ErrInvalidID, id)
	}

	var a model.Appointment
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", appointmenterrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &a, nil
}

// UpdateStatus performs the transition as a compare-and-set: the filter pins
// the expected current status, so a concurrent transition makes this one miss
// and report ErrInvalidTransition instead of silently double-applying.
func (r *mongoAppointmentRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", appointmenterrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": from}
	update := bson.M{"$set": bson.M{
		"status":     to,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if result.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if countErr == nil && count == 0 {
			return fmt.Errorf("%w: %s", appointmenterrors.ErrNotFound, id)
		}
		return fmt.Errorf("%w: %s is not %s", appointmenterrors.ErrInvalidTransition, id, from)
	}
	return nil
}

func (r *mongoAppointmentRepository) FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Appointment, error) {
	return r.findBy(ctx, bson.M{"patient_id": patientID}, limit, offset)
}

func (r *mongoAppointmentRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	return r.countBy(ctx, bson.M{"patient_id": patientID})
}

func (r *mongoAppointmentRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Appointment, error) {
	return r.findBy(ctx, bson.M{"doctor_id": doctorID}, limit, offset)
}

func (r *mongoAppointmentRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	return r.countBy(ctx, bson.M{"doctor_id": doctorID})
}

func (r *mongoAppointmentRepository) findBy(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appointments []*model.Appointment
	if err = cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appointments, nil
}

func (r *mongoAppointmentRepository) countBy(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *mongoAppointmentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
