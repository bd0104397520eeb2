package model

import "time"

// SlotLock is an advisory lock document guarding doctor-scoped bulk slot
// mutations. Insertion into a unique _id collection is the acquisition; a
// duplicate key error means another request holds the lock. A TTL index on
// expires_at reaps locks orphaned by a crashed holder.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
