// Command janitor runs the fleet's reaper on a fixed cycle, reclaiming
// stuck leases and failing hopeless tasks (SPEC_FULL.md §4.2). It accepts
// SIGINT/SIGTERM for graceful shutdown (finishes the in-flight cycle) and
// exits 0.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/janitor"
	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/platform/shutdown"
	"github.com/scrapefleet/coordinator/internal/store"
)

func main() {
	log, err := logger.New("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "janitor: build logger: %v\n", err)
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

	j, err := janitor.New(s, cfg, log)
	if err != nil {
		log.Error("janitor_init_failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.NotifyContext(context.Background())
	defer cancel()

	j.Run(ctx)
}
