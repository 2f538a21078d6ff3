package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/pkg/config"
	mongotx "courtbook/pkg/db/mongo"
	"courtbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository stores cross-process advisory locks, one document per court.
type BookingLockRepository interface {
	TryAcquire(ctx context.Context, lock *model.BookingLock) error
	Release(ctx context.Context, lockID, owner string) error
}

type mongoBookingLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func CourtLockID(courtID string) string {
	return "court_lock_" + courtID
}

// TryAcquire inserts the lock document, returning ErrLockHeld when another owner has it.
// An expired lock the TTL monitor has not swept yet is removed first.
func (r *mongoBookingLockRepository) TryAcquire(ctx context.Context, lock *model.BookingLock) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "expires_at": bson.M{"$lte": now}}); err != nil {
		return fmt.Errorf("failed to clear expired lock: %w", err)
	}

	lock.CreatedAt = now
	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

// Release only removes the lock if owner still holds it.
func (r *mongoBookingLockRepository) Release(ctx context.Context, lockID, owner string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner}); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
