package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Server.Env)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "accounts", cfg.Mongo.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
	assert.Equal(t, "jwt", cfg.Auth.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 10*24*time.Hour, cfg.Auth.RefreshTokenDuration)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("TOKEN_BACKEND", "paseto")
	t.Setenv("ACCESS_TOKEN_DURATION", "600")
	t.Setenv("TRUSTED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "paseto", cfg.Auth.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.TrustedOrigins)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing access secret", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_SECRET", "")
		t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("missing refresh secret", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
		t.Setenv("REFRESH_TOKEN_SECRET", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("identical secrets", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_SECRET", "same-secret")
		t.Setenv("REFRESH_TOKEN_SECRET", "same-secret")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown token backend", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("TOKEN_BACKEND", "biscuit")

		_, err := Load()
		assert.Error(t, err)
	})
}
