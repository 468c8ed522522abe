package store

import "context"

// Migrate runs the idempotent schema creation for the fleet's four tables
// plus the supporting indexes named in SPEC_FULL.md §4.6: composite indexes
// on tasks(status, created_at) and proxies(status, uses_count), an index on
// workers(last_heartbeat), and the unique indexes AutoMigrate already
// derives from the struct tags (tasks.item_id, proxies.proxy, results.item_id).
//
// Two-phase, like the teacher's internal/data/db.AutoMigrateAll: AutoMigrate
// creates the tables and every index declared in struct tags, which already
// include the composite idx_tasks_status_created and idx_proxies_status_uses
// and idx_workers_last_heartbeat; then the CREATE INDEX IF NOT EXISTS
// statements below run. idx_workers_last_heartbeat matches a tag name and is
// a no-op; the two composite statements use different names, so the same
// column pairs end up indexed twice.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.AutoMigrate(&Task{}, &Proxy{}, &Worker{}, &Result{}); err != nil {
		return err
	}

	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_created_at ON tasks(status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_proxies_status_uses_count ON proxies(status, uses_count);`,
		`CREATE INDEX IF NOT EXISTS idx_workers_last_heartbeat ON workers(last_heartbeat);`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
