// Command worker runs a long-running process that owns WORKERS_COUNT
// concurrent scraper slots (SPEC_FULL.md §4.4). It accepts SIGINT/SIGTERM
// for graceful shutdown and exits 0.
//
// No concrete Driver/Detector/CardParser/CaptchaResolver implementation
// ships in this repo (SPEC_FULL.md §1 scope boundary); this binary is
// wired against whatever real collaborator package an operator's
// deployment provides. The placeholder below is a stub that fails fast —
// swap it for the real site-automation package before running against
// production traffic.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scrapefleet/coordinator/internal/collab"
	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/platform/shutdown"
	"github.com/scrapefleet/coordinator/internal/store"
	"github.com/scrapefleet/coordinator/internal/worker"
)

func main() {
	log, err := logger.New("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: build logger: %v\n", err)
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

	ctx, cancel := shutdown.NotifyContext(context.Background())
	defer cancel()

	driver, detector, parser, resolver := unconfiguredCollaborators()
	runtime := worker.New(s, cfg, log, driver, detector, parser, resolver)

	if err := runtime.Run(ctx); err != nil {
		log.Error("worker_run_failed", "error", err)
		os.Exit(1)
	}
}

// unconfiguredCollaborators returns collaborators that fail every call.
// This keeps the binary buildable and runnable end-to-end against a real
// database (useful for drain/janitor rehearsal) without pretending to ship
// a browser automation stack this repo deliberately doesn't own.
func unconfiguredCollaborators() (collab.Driver, collab.Detector, collab.CardParser, collab.CaptchaResolver) {
	return unconfiguredDriver{}, unconfiguredDetector{}, unconfiguredParser{}, unconfiguredResolver{}
}

type unconfiguredDriver struct{}

func (unconfiguredDriver) NewPage(ctx context.Context, proxy collab.ProxyTriple, displayID int) (collab.Page, error) {
	return nil, fmt.Errorf("worker: no Driver implementation configured")
}

type unconfiguredDetector struct{}

func (unconfiguredDetector) Detect(ctx context.Context, page collab.Page, priorityOrder []collab.Label) (collab.Label, error) {
	return "", fmt.Errorf("worker: no Detector implementation configured")
}

type unconfiguredParser struct{}

func (unconfiguredParser) Parse(ctx context.Context, html string, fields collab.RequestedFields) (collab.CardData, error) {
	return collab.CardData{}, fmt.Errorf("worker: no CardParser implementation configured")
}

type unconfiguredResolver struct{}

func (unconfiguredResolver) Resolve(ctx context.Context, page collab.Page, maxAttempts int) (collab.Label, bool, error) {
	return "", false, fmt.Errorf("worker: no CaptchaResolver implementation configured")
}
