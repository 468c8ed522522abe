// Command status prints a single read-only snapshot of the fleet's task,
// proxy, worker, and result tables (SPEC_FULL.md §4.5). No flags; exits
// non-zero only on connection/SQL failure.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/status"
	"github.com/scrapefleet/coordinator/internal/store"
)

func main() {
	log, err := logger.New("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load(log)

	s, err := store.Open(cfg, log)
	if err != nil {
		log.Error("store_open_failed", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	report, err := status.Build(context.Background(), s, cfg)
	if err != nil {
		log.Error("status_build_failed", "error", err)
		os.Exit(1)
	}
	report.Log(log)
}
