package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// SaveResult upserts a Result keyed by item_id: on conflict, overwrites all
// content columns and bumps updated_at=now. Idempotent — replaying the same
// result any number of times converges to the same row content
// (SPEC_FULL.md §4.1, §8).
func (s *Store) SaveResult(ctx context.Context, result Result) error {
	result.UpdatedAt = time.Now().UTC()
	return s.withRetry(ctx, "save_result", func() error {
		return s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "item_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "description", "characteristics", "price",
					"published_at", "seller_name", "seller_profile_url",
					"location_address", "location_metro", "location_region",
					"views_total", "status", "failure_reason", "worker_id",
					"attempts", "updated_at",
				}),
			}).
			Create(&result).Error
	})
}

// GetResult fetches a single result by item_id, used by tests.
func (s *Store) GetResult(ctx context.Context, itemID int64) (*Result, error) {
	var r Result
	err := s.withRetry(ctx, "get_result", func() error {
		return s.db.WithContext(ctx).Where("item_id = ?", itemID).First(&r).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
