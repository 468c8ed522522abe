// Package status builds the fleet's read-only operational snapshot
// (SPEC_FULL.md §4.5): four grouped-count queries plus three staleness
// queries sharing the janitor's thresholds.
package status

import (
	"context"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/store"
)

// Report is the single formatted snapshot cmd/status prints.
type Report struct {
	Tasks   store.StatusCounts
	Proxies store.StatusCounts
	Workers store.StatusCounts
	Results store.StatusCounts

	StuckTasks   int64
	StuckProxies int64
	DeadWorkers  int64
}

// Build runs all seven queries against s. It is read-only and opens no
// transaction — a connection/SQL failure on any query aborts the whole
// report (SPEC_FULL.md §4.5: "exits non-zero only on connection/SQL
// failure").
func Build(ctx context.Context, s *store.Store, cfg config.Config) (Report, error) {
	var r Report
	var err error

	if r.Tasks, err = s.TaskCounts(ctx); err != nil {
		return Report{}, err
	}
	if r.Proxies, err = s.ProxyCounts(ctx); err != nil {
		return Report{}, err
	}
	if r.Workers, err = s.WorkerCounts(ctx); err != nil {
		return Report{}, err
	}
	if r.Results, err = s.ResultCounts(ctx); err != nil {
		return Report{}, err
	}
	if r.StuckTasks, err = s.StuckTaskCount(ctx, cfg.TaskTimeout); err != nil {
		return Report{}, err
	}
	if r.StuckProxies, err = s.StuckProxyCount(ctx, cfg.ProxyTimeout); err != nil {
		return Report{}, err
	}
	if r.DeadWorkers, err = s.DeadWorkerCount(ctx, cfg.WorkerTimeout); err != nil {
		return Report{}, err
	}
	return r, nil
}

// Log emits the report as the same event=... line-oriented style the rest
// of the fleet logs through, one line per section.
func (r Report) Log(log interface {
	Info(event string, keysAndValues ...interface{})
}) {
	log.Info("status_tasks",
		"pending", r.Tasks[string(store.TaskPending)],
		"processing", r.Tasks[string(store.TaskProcessing)],
		"completed", r.Tasks[string(store.TaskCompleted)],
		"failed", r.Tasks[string(store.TaskFailed)],
		"stuck", r.StuckTasks,
	)
	log.Info("status_proxies",
		"available", r.Proxies[string(store.ProxyAvailable)],
		"locked", r.Proxies[string(store.ProxyLocked)],
		"blocked", r.Proxies[string(store.ProxyBlocked)],
		"stuck", r.StuckProxies,
	)
	log.Info("status_workers",
		"active", r.Workers[string(store.WorkerActive)],
		"stopped", r.Workers[string(store.WorkerStopped)],
		"dead", r.DeadWorkers,
	)
	log.Info("status_results",
		"success", r.Results[string(store.ResultSuccess)],
		"unavailable", r.Results[string(store.ResultUnavailable)],
	)
}
