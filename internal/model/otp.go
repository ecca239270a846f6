package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// OTP represents a one-time passcode issued for email verification. Records are
// removed by a TTL index 600 seconds after CreatedAt, and at most one live record
// exists per email (issuing replaces any previous one).
type OTP struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	Code      string        `bson:"code"`
	CreatedAt time.Time     `bson:"created_at"`
}
