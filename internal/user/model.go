package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account document. Secret fields carry `json:"-"` so any
// User written to a response body is already sanitized.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username      string             `bson:"username" json:"username"`
	Email         string             `bson:"email" json:"email"`
	FullName      string             `bson:"full_name" json:"fullName"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	RefreshToken  string             `bson:"refresh_token,omitempty" json:"-"`
	AvatarURL     string             `bson:"avatar_url" json:"avatarUrl"`
	CoverImageURL string             `bson:"cover_image_url,omitempty" json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}
