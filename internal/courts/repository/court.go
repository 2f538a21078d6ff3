package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	courtserrors "courtbook/internal/courts/errors"
	"courtbook/pkg/config"
	mongotx "courtbook/pkg/db/mongo"
	"courtbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Courts"
)

type mongoCourtRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type CourtRepository interface {
	Create(ctx context.Context, court *model.Court) error
	FindByID(ctx context.Context, id string) (*model.Court, error)
	FindByCode(ctx context.Context, code string) (*model.Court, error)
	FindAll(ctx context.Context, status model.CourtStatus, limit int, offset int64) ([]*model.Court, error)
	Count(ctx context.Context, status model.CourtStatus) (int64, error)
	UpdateWithVersionCheck(ctx context.Context, id string, expectedVersion int64, court *model.Court) (*model.Court, error)
}

func NewMongoCourtRepository(cfg *config.Config) CourtRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCourtRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func toObjectID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", courtserrors.ErrInvalidID, id)
	}
	return objectID, nil
}

func (r *mongoCourtRepository) Create(ctx context.Context, court *model.Court) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	court.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	court.UpdatedAt = court.CreatedAt
	court.Version = 1

	result, err := r.collection.InsertOne(ctx, court)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return courtserrors.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create court: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		court.ID = oid.Hex()
	}
	return nil
}

func (r *mongoCourtRepository) FindByID(ctx context.Context, id string) (*model.Court, error) {
	objectID, err := toObjectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoCourtRepository) FindByCode(ctx context.Context, code string) (*model.Court, error) {
	return r.findOne(ctx, bson.M{"code": code})
}

func (r *mongoCourtRepository) findOne(ctx context.Context, filter bson.M) (*model.Court, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var court model.Court
	if err := r.collection.FindOne(ctx, filter).Decode(&court); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, courtserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find court: %w", err)
	}
	return &court, nil
}

func statusFilter(status model.CourtStatus) bson.M {
	if status == "" {
		return bson.M{}
	}
	return bson.M{"status": status}
}

func (r *mongoCourtRepository) FindAll(ctx context.Context, status model.CourtStatus, limit int, offset int64) ([]*model.Court, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "code", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, statusFilter(status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find courts: %w", err)
	}
	defer cursor.Close(ctx)

	var courts []*model.Court
	if err = cursor.All(ctx, &courts); err != nil {
		return nil, fmt.Errorf("failed to decode courts: %w", err)
	}
	return courts, nil
}

func (r *mongoCourtRepository) Count(ctx context.Context, status model.CourtStatus) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, statusFilter(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count courts: %w", err)
	}
	return count, nil
}

// UpdateWithVersionCheck writes every mutable field of court if the stored version is
// expectedVersion. The code and creation time never change.
func (r *mongoCourtRepository) UpdateWithVersionCheck(ctx context.Context, id string, expectedVersion int64, court *model.Court) (*model.Court, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := toObjectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": objectID, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"name":            court.Name,
			"description":     court.Description,
			"type":            court.Type,
			"status":          court.Status,
			"time_zone":       court.TimeZone,
			"pricing":         court.Pricing,
			"peak_hours":      court.PeakHours,
			"operating_hours": court.OperatingHours,
			"equipment":       court.Equipment,
			"booking_rules":   court.BookingRules,
			"updated_at":      time.Now().UTC().Truncate(time.Millisecond),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Court
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update court: %w", err)
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return nil, fmt.Errorf("failed to check court existence: %w", err)
	}
	if count == 0 {
		return nil, courtserrors.ErrNotFound
	}
	return nil, courtserrors.ErrVersionConflict
}
