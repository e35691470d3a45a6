package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "users"

// MongoRepository handles user persistence in MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{col: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique indexes backing the (username, email)
// uniqueness invariant. Safe to call on every startup.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// Create inserts a new user. Returns ErrDuplicate when the username or email
// is already taken.
func (r *MongoRepository) Create(ctx context.Context, u *User) (*User, error) {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := r.col.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return u, nil
}

// GetByID retrieves a user by its ObjectID
func (r *MongoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var u User
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &u, nil
}

// GetByUsernameOrEmail retrieves a user whose username or email matches the
// identifier. Callers normalize usernames to lowercase before lookup.
func (r *MongoRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": identifier},
	}}

	var u User
	err := r.col.FindOne(ctx, filter).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}
	return &u, nil
}

// UpdateRefreshToken overwrites the stored refresh token, last writer wins
func (r *MongoRepository) UpdateRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return r.setFields(ctx, id, bson.M{"refresh_token": token})
}

// ClearRefreshToken unsets the refresh_token field entirely. Clearing an
// already-absent field matches a document, so repeated logout succeeds.
func (r *MongoRepository) ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"refresh_token": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash wholesale
func (r *MongoRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	return r.setFields(ctx, id, bson.M{"password_hash": passwordHash})
}

// UpdateAccount sets fullName and email and returns the updated user
func (r *MongoRepository) UpdateAccount(ctx context.Context, id primitive.ObjectID, fullName, email string) (*User, error) {
	return r.setFieldsReturning(ctx, id, bson.M{"full_name": fullName, "email": email})
}

// UpdateAvatar sets the avatar URL and returns the updated user
func (r *MongoRepository) UpdateAvatar(ctx context.Context, id primitive.ObjectID, url string) (*User, error) {
	return r.setFieldsReturning(ctx, id, bson.M{"avatar_url": url})
}

// UpdateCoverImage sets the cover image URL and returns the updated user
func (r *MongoRepository) UpdateCoverImage(ctx context.Context, id primitive.ObjectID, url string) (*User, error) {
	return r.setFieldsReturning(ctx, id, bson.M{"cover_image_url": url})
}

func (r *MongoRepository) setFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) setFieldsReturning(ctx context.Context, id primitive.ObjectID, fields bson.M) (*User, error) {
	fields["updated_at"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u User
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &u, nil
}
