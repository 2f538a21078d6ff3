package mongo

import (
	"context"
	"fmt"

	bookingsrepo "courtbook/internal/bookings/repository"
	courtsrepo "courtbook/internal/courts/repository"
	membershipsrepo "courtbook/internal/memberships/repository"
	"courtbook/internal/migrations/mongo/validators"
	paymentsrepo "courtbook/internal/payments/repository"
	"courtbook/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collection struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

var (
	CourtsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_code"),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "code", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_reference"),
		},
		{
			Keys: bson.D{
				{Key: "court_id", Value: 1},
				{Key: "start_time", Value: 1},
				{Key: "end_time", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("court_overlap"),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_time", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_time", Value: 1}}},
	}

	PaymentsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_booking"),
		},
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_reference"),
		},
		{
			Keys:    bson.D{{Key: "gateway.order_reference", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	MembershipsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}, {Key: "end_date", Value: -1}}},
	}

	// Locks are swept by the TTL monitor once expires_at passes.
	BookingLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
		},
	}
)

func Collections() map[string]Collection {
	return map[string]Collection{
		courtsrepo.CollectionName: {
			Indexes:   CourtsIndexes,
			Validator: validators.CourtValidator,
		},
		bookingsrepo.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		paymentsrepo.CollectionName: {
			Indexes:   PaymentsIndexes,
			Validator: validators.PaymentValidator,
		},
		membershipsrepo.CollectionName: {
			Indexes:   MembershipsIndexes,
			Validator: validators.MembershipValidator,
		},
		bookingsrepo.LockCollectionName: {
			Indexes:   BookingLocksIndexes,
			Validator: validators.BookingLockValidator,
		},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
