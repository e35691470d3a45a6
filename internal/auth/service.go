package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/airaawat/ChaiAurBackend/internal/logging"
	"github.com/airaawat/ChaiAurBackend/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrWrongOldPassword   = errors.New("invalid old password")

	// ErrInvalidRefreshToken covers malformed, expired, or unresolvable refresh
	// tokens; ErrRefreshTokenReused is the rotation-violation guard. Handlers
	// present both as 401 so callers cannot tell which check failed.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenReused  = errors.New("refresh token expired or already used")
)

// AuthTokens is the token pair returned by login and refresh
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// RegisterInput carries the registration fields after media upload has resolved
// the file parts to URLs
type RegisterInput struct {
	FullName      string
	Username      string
	Email         string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// Service orchestrates the session lifecycle: login, refresh-token rotation,
// logout, and password change. It is the only writer of the stored refresh token.
type Service struct {
	users                user.Repository
	accessTokens         TokenService
	refreshTokens        TokenService
	logger               *logging.Logger
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
}

func NewService(
	users user.Repository,
	accessTokens TokenService,
	refreshTokens TokenService,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	refreshTokenDuration time.Duration,
) *Service {
	return &Service{
		users:                users,
		accessTokens:         accessTokens,
		refreshTokens:        refreshTokens,
		logger:               logger,
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
	}
}

// Register creates a new user account
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if fullName == "" || username == "" || email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if len(in.Password) < 8 {
		return nil, ErrPasswordTooShort
	}
	if in.AvatarURL == "" {
		return nil, ErrMissingFields
	}

	passwordHash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, &user.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  passwordHash,
		AvatarURL:     in.AvatarURL,
		CoverImageURL: in.CoverImageURL,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			return nil, user.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return newUser, nil
}

// Login authenticates by username or email and issues a token pair. An unknown
// identifier and a failed password check return the same error so the response
// does not reveal which one failed.
func (s *Service) Login(ctx context.Context, identifier, password string) (*AuthTokens, *user.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(existing.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issueTokenPair(ctx, existing)
	if err != nil {
		return nil, nil, err
	}

	return tokens, existing, nil
}

// Refresh rotates the token pair. The incoming token must verify against the
// refresh secret AND match the stored token by exact value; a well-signed token
// that was already rotated out is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.refreshTokens.VerifyToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	existing, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existing.RefreshToken == "" || existing.RefreshToken != refreshToken {
		s.logger.Warn("refresh token reuse detected", "user_id", existing.ID.Hex())
		return nil, ErrRefreshTokenReused
	}

	return s.issueTokenPair(ctx, existing)
}

// Logout removes the stored refresh token entirely. Repeated logout succeeds.
func (s *Service) Logout(ctx context.Context, userID primitive.ObjectID) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// ChangePassword verifies the old password before replacing the hash wholesale.
// Outstanding refresh tokens are left untouched.
func (s *Service) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	existing, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(existing.PasswordHash, oldPassword) {
		return ErrWrongOldPassword
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// issueTokenPair mints both tokens and persists the refresh token onto the
// user record, overwriting any prior value (single-session policy).
func (s *Service) issueTokenPair(ctx context.Context, u *user.User) (*AuthTokens, error) {
	accessToken, err := s.accessTokens.CreateToken(u.ID.Hex(), u.Email, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	// The refresh token encodes only the identity
	refreshToken, err := s.refreshTokens.CreateToken(u.ID.Hex(), "", s.refreshTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	if err := s.users.UpdateRefreshToken(ctx, u.ID, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenDuration.Seconds()),
	}, nil
}
