package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	paymentserrors "courtbook/internal/payments/errors"
	"courtbook/pkg/config"
	mongotx "courtbook/pkg/db/mongo"
	"courtbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Payments"
)

type PaymentRepository interface {
	Insert(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	FindByBookingID(ctx context.Context, bookingID string) (*model.Payment, error)
	UpdateWithVersionCheck(ctx context.Context, id string, expectedVersion int64, patch model.PaymentPatch) (*model.Payment, error)
}

type mongoPaymentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPaymentRepository(cfg *config.Config) PaymentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPaymentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func toObjectID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", paymentserrors.ErrInvalidID, id)
	}
	return objectID, nil
}

func (r *mongoPaymentRepository) Insert(ctx context.Context, payment *model.Payment) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID := primitive.NewObjectID()
	if payment.ID != "" {
		var err error
		if objectID, err = toObjectID(payment.ID); err != nil {
			return err
		}
	}

	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	payment.UpdatedAt = payment.CreatedAt
	if payment.Version == 0 {
		payment.Version = 1
	}

	doc, err := mongotx.WithObjectID(payment, objectID)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return paymentserrors.ErrDuplicate
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	payment.ID = objectID.Hex()
	return nil
}

func (r *mongoPaymentRepository) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	objectID, err := toObjectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoPaymentRepository) FindByBookingID(ctx context.Context, bookingID string) (*model.Payment, error) {
	return r.findOne(ctx, bson.M{"booking_id": bookingID})
}

func (r *mongoPaymentRepository) findOne(ctx context.Context, filter bson.M) (*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var payment model.Payment
	if err := r.collection.FindOne(ctx, filter).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, paymentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

func (r *mongoPaymentRepository) UpdateWithVersionCheck(ctx context.Context, id string, expectedVersion int64, patch model.PaymentPatch) (*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := toObjectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	if patch.Amount != nil {
		set["amount"] = *patch.Amount
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Gateway != nil {
		set["gateway"] = *patch.Gateway
	}
	if patch.Method != nil {
		set["method"] = *patch.Method
	}
	if patch.Refunds != nil {
		set["refunds"] = patch.Refunds
	}
	if patch.RefundedTotal != nil {
		set["refunded_total"] = *patch.RefundedTotal
	}
	if patch.CompletedAt != nil {
		set["completed_at"] = *patch.CompletedAt
	}
	if patch.FailedAt != nil {
		set["failed_at"] = *patch.FailedAt
	}

	filter := bson.M{"_id": objectID, "version": expectedVersion}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Payment
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return nil, fmt.Errorf("failed to check payment existence: %w", err)
	}
	if count == 0 {
		return nil, paymentserrors.ErrNotFound
	}
	return nil, paymentserrors.ErrVersionConflict
}
