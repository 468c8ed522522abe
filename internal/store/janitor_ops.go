package store

import (
	"context"
	"time"
)

// ReclaimStuckTasks returns processing tasks whose last_attempt_at is older
// than taskTimeout back to pending, clearing worker_id and last_attempt_at.
// attempts is left untouched — it was already incremented at lease time
// (SPEC_FULL.md §4.2 step 1). Returns the number of rows reclaimed.
func (s *Store) ReclaimStuckTasks(ctx context.Context, taskTimeout time.Duration) (int64, error) {
	var affected int64
	err := s.withRetry(ctx, "reclaim_stuck_tasks", func() error {
		cutoff := time.Now().UTC().Add(-taskTimeout)
		res := s.db.WithContext(ctx).
			Model(&Task{}).
			Where("status = ? AND last_attempt_at < ?", TaskProcessing, cutoff).
			Updates(map[string]interface{}{
				"status":          TaskPending,
				"worker_id":       nil,
				"last_attempt_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

// ReclaimStuckProxies returns locked proxies whose locked_at is older than
// proxyTimeout back to available (SPEC_FULL.md §4.2 step 2).
func (s *Store) ReclaimStuckProxies(ctx context.Context, proxyTimeout time.Duration) (int64, error) {
	var affected int64
	err := s.withRetry(ctx, "reclaim_stuck_proxies", func() error {
		now := time.Now().UTC()
		cutoff := now.Add(-proxyTimeout)
		res := s.db.WithContext(ctx).
			Model(&Proxy{}).
			Where("status = ? AND locked_at < ?", ProxyLocked, cutoff).
			Updates(map[string]interface{}{
				"status":       ProxyAvailable,
				"locked_by":    nil,
				"locked_at":    nil,
				"last_used_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

// StopDeadWorkers flips active workers whose last_heartbeat is older than
// workerTimeout to stopped. Purely informational — the tasks and proxies
// those workers held are reclaimed separately by (1) and (2), since those
// timeouts are chosen to be >= the worker timeout (SPEC_FULL.md §4.2 step 3).
func (s *Store) StopDeadWorkers(ctx context.Context, workerTimeout time.Duration) (int64, error) {
	var affected int64
	err := s.withRetry(ctx, "stop_dead_workers", func() error {
		cutoff := time.Now().UTC().Add(-workerTimeout)
		res := s.db.WithContext(ctx).
			Model(&Worker{}).
			Where("status = ? AND last_heartbeat < ?", WorkerActive, cutoff).
			Update("status", WorkerStopped)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

// FailHopelessTasks flips pending tasks whose attempts have already reached
// max_attempts to failed. Closes the race where ReleaseTask could not
// evaluate the branch, e.g. a future change to max_attempts
// (SPEC_FULL.md §4.2 step 4).
func (s *Store) FailHopelessTasks(ctx context.Context) (int64, error) {
	var affected int64
	err := s.withRetry(ctx, "fail_hopeless_tasks", func() error {
		res := s.db.WithContext(ctx).
			Model(&Task{}).
			Where("status = ? AND attempts >= max_attempts", TaskPending).
			Update("status", TaskFailed)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}
