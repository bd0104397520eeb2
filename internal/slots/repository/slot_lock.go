package repository

import (
	"context"
	"mediq/pkg/config"
	"mediq/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Slot_locks"

// SlotLockRepository provides doctor-scoped advisory locks for bulk slot
// mutations. Acquisition is an insert against a unique _id; a duplicate key
// error means the lock is held. A TTL index on expires_at reaps locks
// orphaned by a crashed holder.
type SlotLockRepository interface {
	Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	Release(ctx context.Context, lockID string) error
}

type mongoSlotLockRepository struct {
	collection *mongo.Collection
}

func NewSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Acquire returns a duplicate key error if the lock already exists.
func (r *mongoSlotLockRepository) Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

func (r *mongoSlotLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
