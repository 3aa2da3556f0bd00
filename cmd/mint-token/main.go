// Command mint-token prints a bearer token for a provisioned user.
//
//	mint-token -user alice
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/server"
	"github.com/mmynk/splitledger/pkg/logging"
)

func main() {
	userID := flag.String("user", "", "ID of the user the token identifies")
	ttl := flag.Duration("ttl", 0, "token lifetime (default TOKEN_TTL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if *userID == "" {
		slog.Error("Missing -user flag")
		os.Exit(2)
	}
	if err := cfg.RequireSecret(); err != nil {
		slog.Error("Missing configuration", "error", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		cfg.TokenTTL = *ttl
	}

	token, err := mint(context.Background(), cfg, *userID)
	if err != nil {
		slog.Error("Failed to mint token", "user_id", *userID, "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(ctx context.Context, cfg *config.Config, userID string) (string, error) {
	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer store.Close()

	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL).Generate(user)
	if err != nil {
		return "", err
	}
	slog.Info("Token issued", "user_id", user.ID, "expires_at", time.Now().Add(cfg.TokenTTL).Format(time.RFC3339))
	return token, nil
}
