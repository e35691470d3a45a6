package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	_ "github.com/airaawat/ChaiAurBackend/docs"
	"github.com/airaawat/ChaiAurBackend/internal/auth"
	"github.com/airaawat/ChaiAurBackend/internal/config"
	"github.com/airaawat/ChaiAurBackend/internal/logging"
	"github.com/airaawat/ChaiAurBackend/internal/ratelimit"
	"github.com/airaawat/ChaiAurBackend/internal/user"
)

// emptyRepo satisfies user.Repository with a store that holds no users
type emptyRepo struct{}

func (emptyRepo) Create(context.Context, *user.User) (*user.User, error) {
	return nil, user.ErrDuplicate
}
func (emptyRepo) GetByID(context.Context, primitive.ObjectID) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (emptyRepo) GetByUsernameOrEmail(context.Context, string) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (emptyRepo) UpdateRefreshToken(context.Context, primitive.ObjectID, string) error {
	return user.ErrNotFound
}
func (emptyRepo) ClearRefreshToken(context.Context, primitive.ObjectID) error {
	return user.ErrNotFound
}
func (emptyRepo) UpdatePassword(context.Context, primitive.ObjectID, string) error {
	return user.ErrNotFound
}
func (emptyRepo) UpdateAccount(context.Context, primitive.ObjectID, string, string) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (emptyRepo) UpdateAvatar(context.Context, primitive.ObjectID, string) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (emptyRepo) UpdateCoverImage(context.Context, primitive.ObjectID, string) (*user.User, error) {
	return nil, user.ErrNotFound
}

type noopUploader struct{}

func (noopUploader) Upload(context.Context, string) (string, error) {
	return "https://cdn.example.com/object", nil
}

func newTestRouter(t *testing.T, env string) http.Handler {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{
			Env:            env,
			TrustedOrigins: []string{"http://localhost:3000"},
		},
	}

	logger := logging.NewLogger(true)
	repo := emptyRepo{}

	accessTokens, err := auth.NewJWTService([]byte("access-secret-for-tests"))
	require.NoError(t, err)
	refreshTokens, err := auth.NewJWTService([]byte("refresh-secret-for-tests"))
	require.NoError(t, err)

	service := auth.NewService(repo, accessTokens, refreshTokens, logger, 15*time.Minute, 24*time.Hour)
	authHandler := auth.NewHandler(service, noopUploader{}, ratelimit.NewLimiter(redisClient), logger, false, 15*time.Minute, 24*time.Hour)
	authMiddleware := auth.NewMiddleware(accessTokens, repo)
	userHandler := user.NewHandler(repo, noopUploader{}, logger)

	return NewRouter(cfg, authHandler, userHandler, authMiddleware, logger)
}

func TestRouter(t *testing.T) {
	router := newTestRouter(t, "prod")

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	t.Run("health", func(t *testing.T) {
		rec := do(http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "api is running")
	})

	t.Run("security headers", func(t *testing.T) {
		rec := do(http.MethodGet, "/health")
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	})

	t.Run("protected routes reject anonymous requests", func(t *testing.T) {
		for _, route := range []struct{ method, path string }{
			{http.MethodPost, "/logout"},
			{http.MethodPost, "/change-password"},
			{http.MethodGet, "/me"},
			{http.MethodPatch, "/account"},
			{http.MethodPatch, "/avatar"},
			{http.MethodPatch, "/cover-image"},
		} {
			rec := do(route.method, route.path)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
		}
	})

	t.Run("unknown route is a 404", func(t *testing.T) {
		rec := do(http.MethodGet, "/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("swagger disabled outside development", func(t *testing.T) {
		rec := do(http.MethodGet, "/swagger/index.html")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cors preflight from a trusted origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/login", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRouterSwaggerInDevelopment(t *testing.T) {
	router := newTestRouter(t, "dev")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
