// Package janitor runs the fleet's reaper: a fixed-interval sweep that
// reclaims stuck leases and fails hopeless tasks (SPEC_FULL.md §4.2).
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/store"
)

// Janitor runs the four sweep steps on a ticker, in the teacher's
// jobs/worker.Worker runLoop idiom: one goroutine, select between ctx.Done()
// and the ticker channel.
type Janitor struct {
	store *store.Store
	log   *logger.Logger

	interval      time.Duration
	taskTimeout   time.Duration
	proxyTimeout  time.Duration
	workerTimeout time.Duration
}

// New builds a Janitor from cfg. Returns an error if the timeout ordering
// invariant (WORKER_TIMEOUT <= PROXY_TIMEOUT <= TASK_TIMEOUT) doesn't hold —
// the caller must refuse to start rather than run with it violated.
func New(s *store.Store, cfg config.Config, log *logger.Logger) (*Janitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("janitor: %w", err)
	}
	return &Janitor{
		store:         s,
		log:           log.With("component", "janitor"),
		interval:      cfg.CleanupInterval,
		taskTimeout:   cfg.TaskTimeout,
		proxyTimeout:  cfg.ProxyTimeout,
		workerTimeout: cfg.WorkerTimeout,
	}, nil
}

// Run blocks, sweeping every interval until ctx is canceled. On cancellation
// the current cycle is allowed to finish before Run returns (SPEC_FULL.md
// §4.2: "the current cycle completes, then the process exits with code 0").
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.log.Info("janitor_started", "interval_seconds", int(j.interval/time.Second))

	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor_stopped")
			return
		case <-ticker.C:
			// A cycle that has started runs to completion even if ctx is
			// canceled mid-sweep; cancellation is observed at the next select.
			j.sweep(context.WithoutCancel(ctx))
		}
	}
}

// sweep runs the four reclaim/fail steps in order, logging each step's
// effect. A step's failure (after its own retry budget is exhausted) is
// logged and the cycle moves on to the next step rather than aborting —
// each step is independent and idempotent, so a skipped step just waits for
// the next cycle.
func (j *Janitor) sweep(ctx context.Context) {
	start := time.Now()

	reclaimedTasks, err := j.store.ReclaimStuckTasks(ctx, j.taskTimeout)
	if err != nil {
		j.log.Error("reclaim_stuck_tasks_failed", "error", err)
	}

	reclaimedProxies, err := j.store.ReclaimStuckProxies(ctx, j.proxyTimeout)
	if err != nil {
		j.log.Error("reclaim_stuck_proxies_failed", "error", err)
	}

	stoppedWorkers, err := j.store.StopDeadWorkers(ctx, j.workerTimeout)
	if err != nil {
		j.log.Error("stop_dead_workers_failed", "error", err)
	}

	failedTasks, err := j.store.FailHopelessTasks(ctx)
	if err != nil {
		j.log.Error("fail_hopeless_tasks_failed", "error", err)
	}

	j.log.Info("janitor_cycle_completed",
		"reclaimed_tasks", reclaimedTasks,
		"reclaimed_proxies", reclaimedProxies,
		"stopped_workers", stoppedWorkers,
		"failed_tasks", failedTasks,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
