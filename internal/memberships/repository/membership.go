package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/pkg/config"
	mongotx "courtbook/pkg/db/mongo"
	"courtbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Memberships"
)

// MembershipRepository is read-only; memberships are sold and managed elsewhere.
type MembershipRepository interface {
	FindActiveByUser(ctx context.Context, userID string, at time.Time) (*model.Membership, error)
}

type mongoMembershipRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoMembershipRepository(cfg *config.Config) MembershipRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoMembershipRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// FindActiveByUser returns the user's membership covering at, or nil when there is none.
// When several overlap, the one ending last wins.
func (r *mongoMembershipRepository) FindActiveByUser(ctx context.Context, userID string, at time.Time) (*model.Membership, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"user_id":    userID,
		"status":     model.MembershipActive,
		"frozen":     bson.M{"$ne": true},
		"start_date": bson.M{"$lte": at},
		"end_date":   bson.M{"$gt": at},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "end_date", Value: -1}})

	var membership model.Membership
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&membership); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return &membership, nil
}
