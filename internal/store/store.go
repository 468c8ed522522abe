// Package store is the thin transactional gateway over the shared database
// (SPEC_FULL.md §4.1). Every exported operation is atomic with respect to
// concurrent callers and resilient to transient connection failure via a
// bounded retry.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/platform/logger"
)

// ErrNoTask is returned by AcquireTask when no pending task is available.
// Callers treat this as a clean drain signal, never an error outcome
// (SPEC_FULL.md §7).
var ErrNoTask = errors.New("store: no pending task")

// ErrNoProxy is returned by AcquireProxy when no available proxy exists.
var ErrNoProxy = errors.New("store: no available proxy")

// Store wraps a *gorm.DB with the fleet's nine coordination operations.
type Store struct {
	db          *gorm.DB
	log         *logger.Logger
	maxAttempts int           // DB_RETRY_ATTEMPTS
	retryDelay  time.Duration // RETRY_DELAY
}

// Open connects to Postgres per cfg and returns a Store. The pool is sized per SPEC_FULL.md §5 (min 5, max 20 for
// the default 15-slot worker).
func Open(cfg config.Config, log *logger.Logger) (*Store, error) {
	return open(cfg.DSN(), cfg.DBRetryAttempts, cfg.RetryDelay, log)
}

// OpenDSN connects with a raw DSN and the config package's defaults for
// retry behavior, bypassing env-var loading entirely. Used by storetest and
// any tool that already has a connection string in hand.
func OpenDSN(dsn string, log *logger.Logger) (*Store, error) {
	return open(dsn, 5, 10*time.Second, log)
}

func open(dsn string, maxAttempts int, retryDelay time.Duration, log *logger.Logger) (*Store, error) {
	serviceLog := log.With("component", "store")

	gormLog := gormLogger.New(
		newGormWriter(log),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{
		db:          db,
		log:         serviceLog,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}, nil
}

// DB exposes the underlying handle for migration/loader code that needs raw
// access (AutoMigrate, CREATE INDEX, batch inserts).
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withRetry runs fn up to maxAttempts times with retryDelay between
// attempts, logging each failure, and surfaces the last error once the
// budget is exhausted (SPEC_FULL.md §4.1: "resilient to connection failure
// via bounded retry"). fn should be idempotent or itself transactional;
// every Store operation below wraps a single statement, so a retried
// attempt simply re-runs the same atomic SQL.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNoTask) || errors.Is(lastErr, ErrNoProxy) {
			return lastErr
		}
		s.log.Warn("store_retry",
			"op", op,
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", lastErr,
		)
		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	s.log.Error("store_op_failed", "op", op, "error", lastErr)
	return fmt.Errorf("store: %s: %w", op, lastErr)
}

// gormWriter adapts *logger.Logger to gorm's io.Writer-based Writer
// interface, the same way the teacher pipes gorm's logger through
// log.New(os.Stdout, ...) in internal/db/postgres.go — here routed through
// our structured logger instead of the stdlib one.
type gormWriter struct {
	log *logger.Logger
}

func newGormWriter(log *logger.Logger) gormWriter {
	return gormWriter{log: log}
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Debug("gorm", "message", fmt.Sprintf(format, args...))
}
