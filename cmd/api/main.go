package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/airaawat/ChaiAurBackend/docs" // Swagger docs (generated)
	"github.com/airaawat/ChaiAurBackend/internal/auth"
	"github.com/airaawat/ChaiAurBackend/internal/config"
	"github.com/airaawat/ChaiAurBackend/internal/database"
	httpServer "github.com/airaawat/ChaiAurBackend/internal/http"
	"github.com/airaawat/ChaiAurBackend/internal/logging"
	"github.com/airaawat/ChaiAurBackend/internal/media"
	"github.com/airaawat/ChaiAurBackend/internal/ratelimit"
	"github.com/airaawat/ChaiAurBackend/internal/user"
)

// @title           Account Service API
// @version         1.0
// @description     User-account REST backend with JWT access/refresh token rotation and media uploads.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	mongoClient, err := database.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return fmt.Errorf("failed to initialize mongodb: %w", err)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := user.NewMongoRepository(mongoClient.Database(cfg.Mongo.Database))
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Token services: one instance per secret so access and refresh tokens
	// never verify against each other's key
	accessTokens, err := newTokenService(cfg.Auth.Backend, cfg.Auth.AccessTokenSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize access token service: %w", err)
	}
	refreshTokens, err := newTokenService(cfg.Auth.Backend, cfg.Auth.RefreshTokenSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize refresh token service: %w", err)
	}

	uploader, err := media.NewS3Uploader(ctx, cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize media uploader: %w", err)
	}

	authService := auth.NewService(
		userRepo,
		accessTokens,
		refreshTokens,
		logger,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)

	authHandler := auth.NewHandler(
		authService,
		uploader,
		rateLimiter,
		logger,
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)
	authMiddleware := auth.NewMiddleware(accessTokens, userRepo)
	userHandler := user.NewHandler(userRepo, uploader, logger)

	router := httpServer.NewRouter(cfg, authHandler, userHandler, authMiddleware, logger)

	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// newTokenService builds the configured token backend for one secret
func newTokenService(backend string, secret []byte) (auth.TokenService, error) {
	switch backend {
	case "paseto":
		return auth.NewPasetoService(secret)
	default:
		return auth.NewJWTService(secret)
	}
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
