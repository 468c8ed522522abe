package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AcquireTask atomically finds the oldest pending task with no contention
// (row-level lock, skip already-locked rows), flips it to processing, sets
// worker_id, bumps attempts, and sets last_attempt_at=now. Ordering: strict
// FIFO by created_at ascending, tie-broken by task_id (SPEC_FULL.md §4.1).
// Returns ErrNoTask when no pending task exists.
func (s *Store) AcquireTask(ctx context.Context, workerID string) (*Task, error) {
	var acquired *Task
	err := s.withRetry(ctx, "acquire_task", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var task Task
			err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Where("status = ?", TaskPending).
				Order("created_at ASC, task_id ASC").
				Limit(1).
				First(&task).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoTask
			}
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if err := tx.Model(&Task{}).
				Where("task_id = ?", task.TaskID).
				Updates(map[string]interface{}{
					"status":          TaskProcessing,
					"worker_id":       workerID,
					"attempts":        gorm.Expr("attempts + 1"),
					"last_attempt_at": now,
				}).Error; err != nil {
				return err
			}

			task.Status = TaskProcessing
			task.WorkerID = &workerID
			task.Attempts++
			task.LastAttemptAt = &now
			acquired = &task
			return nil
		})
	})
	if errors.Is(err, ErrNoTask) {
		return nil, ErrNoTask
	}
	if err != nil {
		return nil, err
	}
	return acquired, nil
}

// MarkTaskCompleted transitions a task to completed, sets completed_at=now,
// and clears worker_id.
func (s *Store) MarkTaskCompleted(ctx context.Context, taskID uint64) error {
	return s.withRetry(ctx, "mark_task_completed", func() error {
		now := time.Now().UTC()
		return s.db.WithContext(ctx).
			Model(&Task{}).
			Where("task_id = ?", taskID).
			Updates(map[string]interface{}{
				"status":       TaskCompleted,
				"completed_at": now,
				"worker_id":    nil,
			}).Error
	})
}

// ReleaseTask clears worker_id and last_attempt_at; the branch between
// pending and failed happens inside the single statement: failed when the
// already-incremented attempts has reached max_attempts, pending otherwise
// (SPEC_FULL.md §4.1).
func (s *Store) ReleaseTask(ctx context.Context, taskID uint64) error {
	return s.withRetry(ctx, "release_task", func() error {
		return s.db.WithContext(ctx).Exec(`
			UPDATE tasks
			SET worker_id = NULL,
			    last_attempt_at = NULL,
			    status = CASE WHEN attempts >= max_attempts THEN ? ELSE ? END
			WHERE task_id = ?
		`, TaskFailed, TaskPending, taskID).Error
	})
}

// CreateTasks bulk-inserts new pending tasks for the given external item
// IDs, skipping ones that already exist (unique on item_id). Used by the
// items bootstrap loader (SPEC_FULL.md §4.6).
func (s *Store) CreateTasks(ctx context.Context, itemIDs []int64, maxAttempts int) (inserted int, err error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	err = s.withRetry(ctx, "create_tasks", func() error {
		rows := make([]Task, 0, len(itemIDs))
		now := time.Now().UTC()
		for _, id := range itemIDs {
			rows = append(rows, Task{
				ItemID:      id,
				Status:      TaskPending,
				MaxAttempts: maxAttempts,
				CreatedAt:   now,
			})
		}
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "item_id"}}, DoNothing: true}).
			Create(&rows)
		if res.Error != nil {
			return res.Error
		}
		inserted = int(res.RowsAffected)
		return nil
	})
	return inserted, err
}

// DeleteAllTasks truncates the task queue, used by the items loader's
// overwrite mode.
func (s *Store) DeleteAllTasks(ctx context.Context) error {
	return s.withRetry(ctx, "delete_all_tasks", func() error {
		return s.db.WithContext(ctx).Exec("DELETE FROM tasks").Error
	})
}

// CountTasks returns the current row count, used by the loader to log the
// row count before and after an upload.
func (s *Store) CountTasks(ctx context.Context) (int64, error) {
	var n int64
	err := s.withRetry(ctx, "count_tasks", func() error {
		return s.db.WithContext(ctx).Model(&Task{}).Count(&n).Error
	})
	return n, err
}
