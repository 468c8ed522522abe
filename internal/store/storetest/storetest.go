// Package storetest provides the Postgres-backed test fixture shared by the
// store, janitor, status, and worker integration tests, in the teacher's
// testutil style: skip (don't fake) when no test database is configured.
package storetest

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/store"
)

var errMissingDSN = errors.New("storetest: set TEST_POSTGRES_DSN to run integration tests")

var (
	once   sync.Once
	shared *store.Store
	err    error
)

// Logger returns a quiet logger suitable for tests.
func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, lerr := logger.New("error")
	if lerr != nil {
		tb.Fatalf("storetest: build logger: %v", lerr)
	}
	return log
}

// Open returns a migrated Store backed by TEST_POSTGRES_DSN, or skips the
// test if that env var is unset. The store is shared across the test binary
// (mirrors the teacher's sync.Once-guarded testutil.DB).
func Open(tb testing.TB) *store.Store {
	tb.Helper()
	once.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			err = errMissingDSN
			return
		}
		s, openErr := store.OpenDSN(dsn, Logger(tb))
		if openErr != nil {
			err = openErr
			return
		}
		if migrateErr := s.Migrate(context.Background()); migrateErr != nil {
			err = migrateErr
			return
		}
		shared = s
	})
	if errors.Is(err, errMissingDSN) {
		tb.Skip(errMissingDSN.Error())
	}
	if err != nil {
		tb.Fatalf("storetest: open: %v", err)
	}
	return shared
}

// Reset truncates every fleet table so each test starts from an empty
// database, the way the teacher's per-test transaction rollback does —
// truncate is used instead of a transaction here because the code under
// test (leasing) runs its own transactions per call.
func Reset(tb testing.TB, s *store.Store) {
	tb.Helper()
	if err := s.DB().WithContext(context.Background()).
		Exec(`TRUNCATE tasks, proxies, workers, results RESTART IDENTITY`).Error; err != nil {
		tb.Fatalf("storetest: reset: %v", err)
	}
}
