// Package worker is the process that owns N concurrent scraper slots,
// generalizing the teacher's jobs/worker.Worker claim-dispatch-heartbeat
// loop from "N goroutines pulling job_run rows" to "N goroutines each
// owning a driver+proxy pair pulling task rows" (SPEC_FULL.md §4.4).
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scrapefleet/coordinator/internal/collab"
	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/loader"
	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/scraper"
	"github.com/scrapefleet/coordinator/internal/store"
)

// defaultCallTimeout bounds driver page creation (NewPage) and navigation
// (Goto). Decide's detector, parser and CAPTCHA resolver calls receive the
// slot context unchanged and are not bounded by this timeout.
// Not environment-configurable — the spec names it as a fixed default, not
// one of the §6 env-var knobs.
const defaultCallTimeout = 30 * time.Second

// listingURLFormat builds the per-task listing URL from its item_id
// (grounded on original_source/worker/src/processor.py's
// f"https://www.avito.ru/{item_id}").
const listingURLFormat = "https://www.avito.ru/%d"

// Runtime owns the worker process's N scraper slots.
type Runtime struct {
	store *store.Store
	log   *logger.Logger
	cfg   config.Config

	driver          collab.Driver
	detector        collab.Detector
	parser          collab.CardParser
	captchaResolver collab.CaptchaResolver
}

// New builds a Runtime. The four collaborators are supplied by the caller —
// this package never constructs a concrete browser or CAPTCHA
// implementation (SPEC_FULL.md §1 scope boundary).
func New(s *store.Store, cfg config.Config, log *logger.Logger, driver collab.Driver, detector collab.Detector, parser collab.CardParser, captchaResolver collab.CaptchaResolver) *Runtime {
	return &Runtime{
		store:           s,
		log:             log.With("component", "worker"),
		cfg:             cfg,
		driver:          driver,
		detector:        detector,
		parser:          parser,
		captchaResolver: captchaResolver,
	}
}

// Run launches WorkersCount slots and blocks until every slot exits —
// either by draining the task queue or by ctx being canceled. A slot's own
// fatal error (DB error surfaced past the retry budget) does not cancel its
// siblings: each slot's lifetime is independent except for the shared
// shutdown signal, matching the "no in-process shared mutable state except
// the shutdown flag" contract. Run returns the first slot error observed,
// if any, after every slot has finished.
func (r *Runtime) Run(ctx context.Context) error {
	base, err := baseIdentity(r.cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("worker: compute base identity: %w", err)
	}
	r.log.Info("worker_started", "base_identity", base, "slots", r.cfg.WorkersCount)

	var g errgroup.Group
	for i := 0; i < r.cfg.WorkersCount; i++ {
		slot := i
		workerID := fmt.Sprintf("%s:%d", base, slot)
		g.Go(func() error {
			return r.runSlot(ctx, slot, workerID)
		})
	}

	err = g.Wait()
	r.log.Info("worker_stopped")
	return err
}

func baseIdentity(program string) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d", program, hostname, os.Getpid()), nil
}

// runSlot is one scraper slot's full lifecycle: register, acquire an
// initial proxy and driver, loop acquiring and deciding tasks until
// shutdown or drain, then clean up (SPEC_FULL.md §4.4 pseudocode).
func (r *Runtime) runSlot(ctx context.Context, slot int, workerID string) error {
	log := r.log.With("worker_id", workerID, "slot", slot)

	if !r.registerWithRetry(ctx, workerID, log) {
		return fmt.Errorf("worker: slot %d failed to register", slot)
	}

	proxy, driverPage, err := r.acquireProxyAndDriver(ctx, workerID, slot, log)
	if err != nil {
		return fmt.Errorf("worker: slot %d initial proxy/driver: %w", slot, err)
	}

	lastBeat := time.Now()
	defer func() {
		if driverPage != nil {
			driverPage.Close()
		}
		if proxy != nil {
			if err := r.store.ReleaseProxy(context.Background(), proxy.ProxyID); err != nil {
				log.Error("release_proxy_on_cleanup_failed", "proxy_id", proxy.ProxyID, "error", err)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			log.Info("slot_shutdown")
			return nil
		}

		if time.Since(lastBeat) > r.cfg.HeartbeatInterval {
			if err := r.store.Heartbeat(ctx, workerID); err != nil {
				log.Error("heartbeat_failed", "error", err)
			}
			lastBeat = time.Now()
		}

		task, err := r.store.AcquireTask(ctx, workerID)
		if errors.Is(err, store.ErrNoTask) {
			log.Info("slot_drained")
			return nil
		}
		if err != nil {
			return fmt.Errorf("worker: slot %d acquire task: %w", slot, err)
		}

		var outcome scraper.Outcome
		url := fmt.Sprintf(listingURLFormat, task.ItemID)
		if gotoErr := driverPage.Goto(ctx, url, defaultCallTimeout); gotoErr != nil {
			log.Error("goto_failed", "item_id", task.ItemID, "url", url, "error", gotoErr)
			outcome = scraper.Outcome{Kind: scraper.OutcomeError, FailureReason: "goto_failed", RotateProxy: true}
		} else {
			var decideErr error
			outcome, decideErr = r.decideSafely(ctx, scraper.Lease{
				ItemID:   task.ItemID,
				Attempts: task.Attempts,
				Proxy:    proxy.Proxy,
				WorkerID: workerID,
				Page:     driverPage,
			})
			if decideErr != nil {
				log.Error("decide_panicked", "item_id", task.ItemID, "error", decideErr)
				outcome = scraper.Outcome{Kind: scraper.OutcomeError, FailureReason: "decide_panic", RotateProxy: false}
			}
		}

		if outcome.ItemIDMismatch {
			log.Info("item_id_mismatch", "item_id", task.ItemID)
		}

		if outcome.Kind == scraper.OutcomeError && outcome.RotateProxy {
			newProxy, newPage, rotErr := r.rotateProxy(ctx, workerID, slot, proxy, driverPage, log)
			if rotErr != nil {
				log.Error("rotate_proxy_failed", "error", rotErr)
				return fmt.Errorf("worker: slot %d rotate proxy: %w", slot, rotErr)
			}
			proxy, driverPage = newProxy, newPage
		}

		// Every store mutation below is surfaced as slot-fatal (SPEC_FULL.md
		// §7: a transient DB error is retried at the store layer then, once
		// surfaced here, treated as slot-fatal — exit the slot, let the
		// supervisor restart the process). A failure here leaves the task in
		// processing until the janitor reclaims it for another worker to
		// retry. If SaveResult succeeded before a later call failed, the
		// result row is already saved; the retry upserts the same item_id.
		if outcome.Kind == scraper.OutcomeSuccess || outcome.Kind == scraper.OutcomeUnavailable {
			if err := r.store.SaveResult(ctx, toStoreResult(outcome.Result, workerID, task.Attempts)); err != nil {
				return fmt.Errorf("worker: slot %d save result: %w", slot, err)
			}
			if err := r.store.MarkTaskCompleted(ctx, task.TaskID); err != nil {
				return fmt.Errorf("worker: slot %d mark task completed: %w", slot, err)
			}
			if err := r.store.IncrementWorkerStats(ctx, workerID, true); err != nil {
				return fmt.Errorf("worker: slot %d increment worker stats: %w", slot, err)
			}
			log.Info("task_success", "item_id", task.ItemID)
		} else {
			if err := r.store.ReleaseTask(ctx, task.TaskID); err != nil {
				return fmt.Errorf("worker: slot %d release task: %w", slot, err)
			}
			if err := r.store.IncrementWorkerStats(ctx, workerID, false); err != nil {
				return fmt.Errorf("worker: slot %d increment worker stats: %w", slot, err)
			}
			log.Info("task_error", "item_id", task.ItemID, "failure_reason", outcome.FailureReason, "rotate_proxy", outcome.RotateProxy)
		}
	}
}

// registerWithRetry heartbeats up to DBRetryAttempts times, the slot's
// registration step (SPEC_FULL.md §4.4: "repeat up to DB_RETRY_ATTEMPTS").
func (r *Runtime) registerWithRetry(ctx context.Context, workerID string, log *logger.Logger) bool {
	for attempt := 1; attempt <= r.cfg.DBRetryAttempts; attempt++ {
		if err := r.store.Heartbeat(ctx, workerID); err == nil {
			log.Info("worker_registered")
			return true
		} else {
			log.Warn("registration_heartbeat_failed", "attempt", attempt, "error", err)
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(r.cfg.RetryDelay):
		}
	}
	log.Error("worker_registration_failed")
	return false
}

// acquireProxyAndDriver leases a proxy and binds a fresh driver page to it
// on the slot's isolated display (slot index doubles as the display ID).
func (r *Runtime) acquireProxyAndDriver(ctx context.Context, workerID string, slot int, log *logger.Logger) (*store.Proxy, collab.Page, error) {
	proxy, err := r.store.AcquireProxy(ctx, workerID)
	if err != nil {
		return nil, nil, err
	}

	triple, err := proxyTriple(proxy.Proxy)
	if err != nil {
		return nil, nil, fmt.Errorf("parse proxy %q: %w", proxy.Proxy, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()
	page, err := r.driver.NewPage(callCtx, triple, slot)
	if err != nil {
		return nil, nil, err
	}
	log.Info("proxy_acquired", "proxy_id", proxy.ProxyID)
	return proxy, page, nil
}

// rotateProxy implements the §4.3/§4.4 rotate-proxy sequence: block the
// current proxy (releaseProxy is deliberately skipped — the status=blocked
// transition already clears the lease fields), tear down the driver, then
// acquire a fresh proxy and rebuild.
func (r *Runtime) rotateProxy(ctx context.Context, workerID string, slot int, current *store.Proxy, currentPage collab.Page, log *logger.Logger) (*store.Proxy, collab.Page, error) {
	if err := r.store.MarkProxyBlocked(ctx, current.ProxyID); err != nil {
		log.Error("mark_proxy_blocked_failed", "proxy_id", current.ProxyID, "error", err)
	}
	if currentPage != nil {
		currentPage.Close()
	}

	newProxy, newPage, err := r.acquireProxyAndDriver(ctx, workerID, slot, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("proxy_rotated", "blocked_proxy_id", current.ProxyID, "new_proxy_id", newProxy.ProxyID)
	return newProxy, newPage, nil
}

// decideSafely wraps scraper.Decide with panic recovery: a driver or
// detector panic must not take down a sibling slot (SPEC_FULL.md §4.4).
func (r *Runtime) decideSafely(ctx context.Context, lease scraper.Lease) (outcome scraper.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	o, derr := scraper.Decide(ctx, lease, r.detector, r.parser, r.captchaResolver)
	if derr != nil {
		return scraper.Outcome{}, derr
	}
	return o, nil
}

func proxyTriple(raw string) (collab.ProxyTriple, error) {
	p, err := loader.ParseProxyLine(raw)
	if err != nil {
		return collab.ProxyTriple{}, err
	}
	return collab.ProxyTriple{Server: p.Server(), Username: p.Username, Password: p.Password}, nil
}
