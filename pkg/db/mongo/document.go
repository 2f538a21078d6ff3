package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithObjectID encodes v and sets its _id to id. Models keep their id as a hex string,
// so a pre-generated id has to be swapped in as a real ObjectID before insert.
func WithObjectID(v any, id primitive.ObjectID) (bson.D, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields bson.D
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	doc := make(bson.D, 0, len(fields)+1)
	doc = append(doc, bson.E{Key: "_id", Value: id})
	for _, f := range fields {
		if f.Key != "_id" {
			doc = append(doc, f)
		}
	}
	return doc, nil
}

// WithTimeout bounds ctx unless it is a session context, which must be passed through
// untouched to keep the operation inside its transaction.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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
