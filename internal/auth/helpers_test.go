package auth

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/airaawat/ChaiAurBackend/internal/logging"
	"github.com/airaawat/ChaiAurBackend/internal/user"
)

// memoryRepo is an in-memory user.Repository for tests
type memoryRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*user.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[primitive.ObjectID]*user.User)}
}

func clone(u *user.User) *user.User {
	c := *u
	return &c
}

func (r *memoryRepo) Create(_ context.Context, u *user.User) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, user.ErrDuplicate
		}
	}

	u.ID = primitive.NewObjectID()
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.users[u.ID] = clone(u)
	return clone(u), nil
}

func (r *memoryRepo) GetByID(_ context.Context, id primitive.ObjectID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return clone(u), nil
}

func (r *memoryRepo) GetByUsernameOrEmail(_ context.Context, identifier string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == identifier || u.Email == identifier {
			return clone(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *memoryRepo) UpdateRefreshToken(_ context.Context, id primitive.ObjectID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (r *memoryRepo) ClearRefreshToken(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.RefreshToken = ""
	return nil
}

func (r *memoryRepo) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *memoryRepo) UpdateAccount(_ context.Context, id primitive.ObjectID, fullName, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.FullName = fullName
	u.Email = email
	return clone(u), nil
}

func (r *memoryRepo) UpdateAvatar(_ context.Context, id primitive.ObjectID, url string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.AvatarURL = url
	return clone(u), nil
}

func (r *memoryRepo) UpdateCoverImage(_ context.Context, id primitive.ObjectID, url string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.CoverImageURL = url
	return clone(u), nil
}

// stubUploader returns a deterministic URL, or fails when broken is set
type stubUploader struct {
	broken bool
	calls  int
}

func (s *stubUploader) Upload(_ context.Context, localPath string) (string, error) {
	s.calls++
	if s.broken {
		return "", errors.New("upload failed")
	}
	return fmt.Sprintf("https://cdn.example.com/%s", filepath.Base(localPath)), nil
}

func newTestService(repo user.Repository) (*Service, TokenService, TokenService) {
	access, _ := NewJWTService([]byte("access-secret-for-tests"))
	refresh, _ := NewJWTService([]byte("refresh-secret-for-tests"))
	svc := NewService(repo, access, refresh, logging.NewLogger(true), 15*time.Minute, 24*time.Hour)
	return svc, access, refresh
}

func registerTestUser(svc *Service, username string) (*user.User, error) {
	return svc.Register(context.Background(), RegisterInput{
		FullName:  "Test User",
		Username:  username,
		Email:     username + "@example.com",
		Password:  "secret123",
		AvatarURL: "https://cdn.example.com/avatar.png",
	})
}
