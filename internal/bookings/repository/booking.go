package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/pkg/config"
	mongotx "courtbook/pkg/db/mongo"
	"courtbook/pkg/model"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	FindOverlapping(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error)
	Insert(ctx context.Context, booking *model.Booking) error
	UpdateWithVersionCheck(ctx context.Context, id string, expectedVersion int64, patch model.BookingPatch) (*model.Booking, error)
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByReference(ctx context.Context, reference string) (*model.Booking, error)
	FindAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
	Stats(ctx context.Context, courtID string, from, to *time.Time) (*model.BookingStats, error)
	HasFutureBookings(ctx context.Context, courtID string, now time.Time) (bool, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func toObjectID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return objectID, nil
}

// FindOverlapping returns slot-holding bookings on the court with start < end and end > start.
// Touching intervals are not returned.
func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"court_id":   courtID,
		"status":     bson.M{"$in": model.ActiveBookingStatuses},
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		objectID, err := toObjectID(excludeID)
		if err != nil {
			return nil, err
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

// Insert stores the booking under booking.ID when it is already set (pre-generated for
// the in-transaction overlap re-check), otherwise under a new ObjectID.
func (r *mongoBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID := primitive.NewObjectID()
	if booking.ID != "" {
		var err error
		if objectID, err = toObjectID(booking.ID); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = booking.CreatedAt
	if booking.Version == 0 {
		booking.Version = 1
	}

	doc, err := mongotx.WithObjectID(booking, objectID)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrDuplicate
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	booking.ID = objectID.Hex()
	return nil
}

func patchSet(patch model.BookingPatch, now time.Time) bson.M {
	set := bson.M{
		"updated_at": now,
		"updated_by": patch.UpdatedBy,
	}
	if patch.StartTime != nil {
		set["start_time"] = *patch.StartTime
	}
	if patch.EndTime != nil {
		set["end_time"] = *patch.EndTime
	}
	if patch.DurationMinutes != nil {
		set["duration_minutes"] = *patch.DurationMinutes
	}
	if patch.Pricing != nil {
		set["pricing"] = *patch.Pricing
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Payment != nil {
		set["payment"] = *patch.Payment
	}
	if patch.ConfirmedAt != nil {
		set["confirmed_at"] = *patch.ConfirmedAt
	}
	if patch.CheckedInAt != nil {
		set["checked_in_at"] = *patch.CheckedInAt
	}
	if patch.CompletedAt != nil {
		set["completed_at"] = *patch.CompletedAt
	}
	if patch.CancelledAt != nil {
		set["cancelled_at"] = *patch.CancelledAt
	}
	if patch.NoShowAt != nil {
		set["no_show_at"] = *patch.NoShowAt
	}
	if patch.Cancellation != nil {
		set["cancellation"] = *patch.Cancellation
	}
	return set
}

// UpdateWithVersionCheck applies patch only if the stored version equals expectedVersion,
// and bumps the version. A missed match is ErrNotFound or ErrVersionConflict.
func (r *mongoBookingRepository) UpdateWithVersionCheck(ctx context.Context, id string, expectedVersion int64, patch model.BookingPatch) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := toObjectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": objectID, "version": expectedVersion}
	update := bson.M{
		"$set": patchSet(patch, time.Now().UTC().Truncate(time.Millisecond)),
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Booking
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return nil, fmt.Errorf("failed to check booking existence: %w", err)
	}
	if count == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return nil, bookingserrors.ErrVersionConflict
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	objectID, err := toObjectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoBookingRepository) FindByReference(ctx context.Context, reference string) (*model.Booking, error) {
	return r.findOne(ctx, bson.M{"reference": reference})
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildSearchFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildSearchFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func buildSearchFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}
	if f.CourtID != "" {
		filter["court_id"] = f.CourtID
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}

	if f.From != nil && f.To != nil {
		filter["start_time"] = bson.M{"$lt": *f.To}
		filter["end_time"] = bson.M{"$gt": *f.From}
	} else if f.From != nil {
		filter["end_time"] = bson.M{"$gt": *f.From}
	} else if f.To != nil {
		filter["start_time"] = bson.M{"$lt": *f.To}
	}

	return filter
}

var paidStatuses = []model.BookingStatus{model.BookingConfirmed, model.BookingCheckedIn, model.BookingCompleted}

// Stats aggregates counts and revenue over bookings starting inside [from, to).
// Revenue counts confirmed, checked-in and completed bookings only.
func (r *mongoBookingRepository) Stats(ctx context.Context, courtID string, from, to *time.Time) (*model.BookingStats, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	match := bson.M{}
	if courtID != "" {
		match["court_id"] = courtID
	}
	if from != nil || to != nil {
		window := bson.M{}
		if from != nil {
			window["$gte"] = *from
		}
		if to != nil {
			window["$lt"] = *to
		}
		match["start_time"] = window
	}

	isPaid := bson.M{"$in": bson.A{"$status", paidStatuses}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":            nil,
			"total_bookings": bson.M{"$sum": 1},
			"paid_bookings":  bson.M{"$sum": bson.M{"$cond": bson.A{isPaid, 1, 0}}},
			"total_revenue":  bson.M{"$sum": bson.M{"$cond": bson.A{isPaid, "$pricing.total", 0}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate booking stats: %w", err)
	}
	defer cursor.Close(ctx)

	stats := &model.BookingStats{}
	if cursor.Next(ctx) {
		if err := cursor.Decode(stats); err != nil {
			return nil, fmt.Errorf("failed to decode booking stats: %w", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read booking stats: %w", err)
	}

	if stats.PaidBookings > 0 {
		stats.AvgBookingValue = model.MoneyFromDecimal(
			stats.TotalRevenue.Decimal().Div(decimal.NewFromInt(stats.PaidBookings)),
		)
	}
	return stats, nil
}

func (r *mongoBookingRepository) HasFutureBookings(ctx context.Context, courtID string, now time.Time) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"court_id": courtID,
		"status":   bson.M{"$in": model.ActiveBookingStatuses},
		"end_time": bson.M{"$gt": now},
	}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count future bookings: %w", err)
	}
	return count > 0, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
