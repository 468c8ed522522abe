// Command init-db runs the fleet's idempotent schema creation: AutoMigrate
// over the four typed models plus the supporting indexes (SPEC_FULL.md
// §4.6). No flags; exits 0 on success.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/store"
)

func main() {
	log, err := logger.New("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init-db: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load(log)
	if err := cfg.Validate(); err != nil {
		log.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	s, err := store.Open(cfg, log)
	if err != nil {
		log.Error("store_open_failed", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	if err := s.Migrate(context.Background()); err != nil {
		log.Error("migrate_failed", "error", err)
		os.Exit(1)
	}

	log.Info("init_db_completed")
}
