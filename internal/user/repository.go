package user

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("username or email already exists")
)

// Repository defines user persistence. The store owns the single mutable piece
// of shared state in the system: the refresh_token field per user.
type Repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*User, error)

	// UpdateRefreshToken overwrites the stored refresh token (login and rotation).
	UpdateRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	// ClearRefreshToken removes the field entirely (logout). Idempotent.
	ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error

	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	UpdateAccount(ctx context.Context, id primitive.ObjectID, fullName, email string) (*User, error)
	UpdateAvatar(ctx context.Context, id primitive.ObjectID, url string) (*User, error)
	UpdateCoverImage(ctx context.Context, id primitive.ObjectID, url string) (*User, error)
}
