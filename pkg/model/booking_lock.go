package model

import "time"

// BookingLock is an advisory lock document serialising booking creation on one court across instances.
// A TTL index on ExpiresAt reclaims locks left behind by crashed holders.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	CourtID   string    `bson:"court_id" json:"court_id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
