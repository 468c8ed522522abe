package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Heartbeat upserts a worker row: inserts if absent, otherwise sets
// last_heartbeat=now and status=active (so a janitor-stopped worker that
// resumes reactivates itself, SPEC_FULL.md §4.1).
func (s *Store) Heartbeat(ctx context.Context, workerID string) error {
	return s.withRetry(ctx, "heartbeat", func() error {
		now := time.Now().UTC()
		row := Worker{
			WorkerID:      workerID,
			Status:        WorkerActive,
			LastHeartbeat: now,
			StartedAt:     now,
		}
		return s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "worker_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"status", "last_heartbeat",
				}),
			}).
			Create(&row).Error
	})
}

// IncrementWorkerStats bumps tasks_processed or tasks_failed for workerID.
func (s *Store) IncrementWorkerStats(ctx context.Context, workerID string, success bool) error {
	column := "tasks_failed"
	if success {
		column = "tasks_processed"
	}
	return s.withRetry(ctx, "increment_worker_stats", func() error {
		return s.db.WithContext(ctx).
			Model(&Worker{}).
			Where("worker_id = ?", workerID).
			Update(column, gorm.Expr(column+" + 1")).Error
	})
}

// GetWorker fetches a single worker row, used by tests and the status
// reporter.
func (s *Store) GetWorker(ctx context.Context, workerID string) (*Worker, error) {
	var w Worker
	err := s.withRetry(ctx, "get_worker", func() error {
		err := s.db.WithContext(ctx).Where("worker_id = ?", workerID).First(&w).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if w.WorkerID == "" {
		return nil, nil
	}
	return &w, nil
}
