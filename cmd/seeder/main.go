// Command seeder provisions users and groups from a seed file.
//
//	seeder -file seed.yaml
//
// Storage is selected with the same environment variables as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/seed"
	"github.com/mmynk/splitledger/internal/server"
	"github.com/mmynk/splitledger/pkg/logging"
)

func main() {
	path := flag.String("file", "seed.yaml", "path to the seed file (YAML or JSON)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(context.Background(), cfg, *path); err != nil {
		slog.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	file, err := seed.Parse(f)
	if err != nil {
		return err
	}

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := seed.Apply(ctx, store, file)
	if err != nil {
		return err
	}
	slog.Info("Seeding complete",
		"users_created", res.UsersCreated,
		"users_skipped", res.UsersSkipped,
		"groups_created", res.GroupsCreated,
		"groups_skipped", res.GroupsSkipped,
	)
	return nil
}
