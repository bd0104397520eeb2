package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediq/internal/migrations/mongo/validators"
)

var (
	SlotsIndexes = []mongo.IndexModel{
		// One slot per doctor per start time. Bulk creation relies on this
		// to make re-posting a schedule idempotent.
		{
			Keys: bson.D{
				{Key: "doctor_id", Value: 1},
				{Key: "date", Value: 1},
				{Key: "start_time", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		// Availability listing: free slots of a doctor in calendar order.
		{
			Keys: bson.D{
				{Key: "doctor_id", Value: 1},
				{Key: "reserved", Value: 1},
				{Key: "date", Value: 1},
				{Key: "start_time", Value: 1},
			},
		},
	}

	AppointmentsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "created_at", Value: -1}}},
		// At most one live appointment per slot. Cancelled appointments drop
		// out of the index so the slot can be rebooked.
		{
			Keys: bson.D{{Key: "slot_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": []string{"pending", "confirmed", "completed"}},
				}),
		},
	}

	TransactionsIndexes = []mongo.IndexModel{
		// One ledger entry per appointment.
		{
			Keys:    bson.D{{Key: "appointment_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// Payout selection: payable entries of a doctor in creation order.
		{
			Keys: bson.D{
				{Key: "doctor_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "payout_status", Value: 1},
				{Key: "created_at", Value: 1},
			},
		},
	}

	SlotLocksIndexes = []mongo.IndexModel{
		// Stale schedule locks expire on their own.
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	DoctorsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "accepting_bookings", Value: 1}}},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Slots": {
			Indexes:   SlotsIndexes,
			Validator: validators.SlotValidator,
		},
		"Appointments": {
			Indexes:   AppointmentsIndexes,
			Validator: validators.AppointmentValidator,
		},
		"Transactions": {
			Indexes:   TransactionsIndexes,
			Validator: validators.TransactionValidator,
		},
		"Doctors": {
			Indexes:   DoctorsIndexes,
			Validator: validators.DoctorValidator,
		},
		"Slot_locks": {
			Indexes: SlotLocksIndexes,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}

	fmt.Printf("ℹ️ Collection %s already exists — updating validator if needed\n", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}
