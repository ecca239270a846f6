package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User represents a customer account. Email is the primary lookup key for every
// authentication flow and is stored lowercased and trimmed.
type User struct {
	ID           bson.ObjectID   `bson:"_id,omitempty"`
	Name         string          `bson:"name"`
	Email        string          `bson:"email"`
	PasswordHash string          `bson:"password_hash"`
	Phone        string          `bson:"phone,omitempty"`
	Verified     bool            `bson:"verified"`
	Blocked      bool            `bson:"blocked"`
	AddressIDs   []bson.ObjectID `bson:"address_ids,omitempty"`
	CreatedAt    time.Time       `bson:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at"`
}
