package store

import (
	"context"
	"time"
)

// StatusCounts is a grouped-count snapshot of one table's status column.
type StatusCounts map[string]int64

// TaskCounts groups tasks by status (SPEC_FULL.md §4.5).
func (s *Store) TaskCounts(ctx context.Context) (StatusCounts, error) {
	return s.groupedCounts(ctx, "tasks", "status")
}

// ProxyCounts groups proxies by status.
func (s *Store) ProxyCounts(ctx context.Context) (StatusCounts, error) {
	return s.groupedCounts(ctx, "proxies", "status")
}

// WorkerCounts groups workers by status.
func (s *Store) WorkerCounts(ctx context.Context) (StatusCounts, error) {
	return s.groupedCounts(ctx, "workers", "status")
}

// ResultCounts groups results by status.
func (s *Store) ResultCounts(ctx context.Context) (StatusCounts, error) {
	return s.groupedCounts(ctx, "results", "status")
}

func (s *Store) groupedCounts(ctx context.Context, table, column string) (StatusCounts, error) {
	out := StatusCounts{}
	err := s.withRetry(ctx, "grouped_counts_"+table, func() error {
		var rows []struct {
			Value string
			Count int64
		}
		if err := s.db.WithContext(ctx).
			Table(table).
			Select(column+" AS value, count(*) AS count").
			Group(column).
			Scan(&rows).Error; err != nil {
			return err
		}
		out = StatusCounts{}
		for _, r := range rows {
			out[r.Value] = r.Count
		}
		return nil
	})
	return out, err
}

// StuckTaskCount reports processing tasks past taskTimeout without being
// reclaimed yet (a staleness query sharing §4.2's thresholds).
func (s *Store) StuckTaskCount(ctx context.Context, taskTimeout time.Duration) (int64, error) {
	var n int64
	err := s.withRetry(ctx, "stuck_task_count", func() error {
		cutoff := time.Now().UTC().Add(-taskTimeout)
		return s.db.WithContext(ctx).
			Model(&Task{}).
			Where("status = ? AND last_attempt_at < ?", TaskProcessing, cutoff).
			Count(&n).Error
	})
	return n, err
}

// StuckProxyCount reports locked proxies past proxyTimeout.
func (s *Store) StuckProxyCount(ctx context.Context, proxyTimeout time.Duration) (int64, error) {
	var n int64
	err := s.withRetry(ctx, "stuck_proxy_count", func() error {
		cutoff := time.Now().UTC().Add(-proxyTimeout)
		return s.db.WithContext(ctx).
			Model(&Proxy{}).
			Where("status = ? AND locked_at < ?", ProxyLocked, cutoff).
			Count(&n).Error
	})
	return n, err
}

// DeadWorkerCount reports active workers past workerTimeout without a
// heartbeat.
func (s *Store) DeadWorkerCount(ctx context.Context, workerTimeout time.Duration) (int64, error) {
	var n int64
	err := s.withRetry(ctx, "dead_worker_count", func() error {
		cutoff := time.Now().UTC().Add(-workerTimeout)
		return s.db.WithContext(ctx).
			Model(&Worker{}).
			Where("status = ? AND last_heartbeat < ?", WorkerActive, cutoff).
			Count(&n).Error
	})
	return n, err
}
