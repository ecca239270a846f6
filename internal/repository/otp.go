package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/solstyle/auth-api/internal/model"
)

// OTPTTL is how long an issued passcode stays valid. The TTL index enforces it
// at the store level; the workflow also checks it explicitly because the
// background expiry sweep is not immediate.
const OTPTTL = 600 * time.Second

// OTPRepository defines the interface for one-time passcode operations.
type OTPRepository interface {
	// ReplaceOTP atomically replaces any passcode issued for the email with a
	// fresh one, so at most one live record exists per email.
	ReplaceOTP(ctx context.Context, email, code string) (*model.OTP, error)

	// GetOTP retrieves a record by exact email and code match. Absence covers
	// wrong code, never issued, and expired alike.
	GetOTP(ctx context.Context, email, code string) (*model.OTP, error)

	// ConsumeOTP deletes a record after successful verification. It is a no-op
	// if the record is already gone.
	ConsumeOTP(ctx context.Context, id bson.ObjectID) error

	// PurgeOTPs removes all records for the email.
	PurgeOTPs(ctx context.Context, email string) error
}

const otpCollection = "otps"

type otpMongoRepository struct {
	db *mongo.Database
}

// NewOTPMongoRepository creates a new MongoDB repository for one-time passcodes.
func NewOTPMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) OTPRepository {
	collection := db.Collection(otpCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(OTPTTL / time.Second)), // TTL index
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create otp indexes")
	}

	return &otpMongoRepository{db: db}
}

func (r *otpMongoRepository) ReplaceOTP(ctx context.Context, email, code string) (*model.OTP, error) {
	otp := &model.OTP{
		Email:     email,
		Code:      code,
		CreatedAt: time.Now(),
	}

	result := r.db.Collection(otpCollection).FindOneAndReplace(
		ctx,
		bson.M{"email": email},
		otp,
		options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var replaced model.OTP
	if err := result.Decode(&replaced); err != nil {
		return nil, err
	}

	return &replaced, nil
}

func (r *otpMongoRepository) GetOTP(ctx context.Context, email, code string) (*model.OTP, error) {
	result := r.db.Collection(otpCollection).FindOne(ctx, bson.M{
		"email": email,
		"code":  code,
	})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var otp model.OTP
	if err := result.Decode(&otp); err != nil {
		return nil, err
	}

	return &otp, nil
}

func (r *otpMongoRepository) ConsumeOTP(ctx context.Context, id bson.ObjectID) error {
	// Deleting an already-removed record is a no-op, so consumption is
	// idempotent.
	_, err := r.db.Collection(otpCollection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *otpMongoRepository) PurgeOTPs(ctx context.Context, email string) error {
	_, err := r.db.Collection(otpCollection).DeleteMany(ctx, bson.M{"email": email})
	return err
}
