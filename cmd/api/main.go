package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ruinabla/auth-api/internal/application/auth"
	"github.com/ruinabla/auth-api/internal/config"
	"github.com/ruinabla/auth-api/internal/domain"
	"github.com/ruinabla/auth-api/internal/infrastructure/dynamo"
	"github.com/ruinabla/auth-api/internal/infrastructure/smtp"
	"github.com/ruinabla/auth-api/internal/pkg/id"
	"github.com/ruinabla/auth-api/internal/pkg/passhash"
	transporthttp "github.com/ruinabla/auth-api/internal/transport/http"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)

	deps := &transporthttp.Deps{
		UserRepo:       userRepo,
		SessionRepo:    dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		TOTPSecretRepo: dynamo.NewTOTPSecretRepo(dynamoClient, cfg.DynamoTables.TOTPSecrets),
		PasskeyRepo:    dynamo.NewPasskeyRepo(dynamoClient, cfg.DynamoTables.Passkeys),
		EmailTokenRepo: dynamo.NewEmailTokenRepo(dynamoClient, cfg.DynamoTables.EmailTokens),
		ChallengeRepo:  dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.PasskeyChallenges),
		Mailer:         smtp.NewMailer(cfg),
	}

	// Fixture login is wired only outside production, and only when the
	// credentials are configured. Production carries a nil provider.
	if cfg.AppEnv != "production" && cfg.DevLoginEmail != "" && cfg.DevLoginPassword != "" {
		devUser, err := seedDevUser(context.Background(), userRepo, cfg)
		if err != nil {
			slog.Error("failed to seed dev login user", "err", err)
			os.Exit(1)
		}
		deps.DevIdentity = &auth.StaticIdentity{User: devUser, Password: cfg.DevLoginPassword}
		slog.Warn("dev login enabled", "email", cfg.DevLoginEmail)
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// seedDevUser makes sure the fixture account exists in the users table so
// session validation can resolve it like any other user.
func seedDevUser(ctx context.Context, users *dynamo.UserRepo, cfg *config.Config) (*domain.User, error) {
	u, err := users.GetByEmail(ctx, cfg.DevLoginEmail)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := passhash.Hash(cfg.DevLoginPassword)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u = &domain.User{
		UserID:        id.New(),
		Email:         cfg.DevLoginEmail,
		PasswordHash:  hash,
		EmailVerified: true,
		Role:          domain.RoleAdmin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := users.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
