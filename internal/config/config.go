// Package config loads the fleet's environment-variable configuration
// (SPEC_FULL.md §6) and enforces the startup invariant on reaper timeouts.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/utils"
)

// Config holds every environment-driven knob the fleet's components share.
type Config struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	TaskTimeout       time.Duration
	ProxyTimeout      time.Duration
	WorkerTimeout     time.Duration
	HeartbeatInterval time.Duration
	CleanupInterval   time.Duration
	DBConnectTimeout  time.Duration
	DBRetryAttempts   int
	RetryDelay        time.Duration
	MaxTaskAttempts   int
	WorkersCount      int
	ProgramID         string
	LogLevel          string
}

// Load reads Config from the environment, applying the defaults from
// SPEC_FULL.md §6. log may be nil (used by CLIs that haven't built a logger
// yet, e.g. to pick LOG_LEVEL before constructing one).
func Load(log *logger.Logger) Config {
	program := utils.GetEnv("PROGRAM_ID", defaultProgramID(), log)
	return Config{
		DBHost:     utils.GetEnv("DB_HOST", "localhost", log),
		DBPort:     utils.GetEnv("DB_PORT", "5432", log),
		DBName:     utils.GetEnv("DB_NAME", "scrapefleet", log),
		DBUser:     utils.GetEnv("DB_USER", "postgres", log),
		DBPassword: utils.GetEnv("DB_PASSWORD", "", log),

		TaskTimeout:       utils.GetEnvAsSeconds("TASK_TIMEOUT", 600*time.Second, log),
		ProxyTimeout:      utils.GetEnvAsSeconds("PROXY_TIMEOUT", 300*time.Second, log),
		WorkerTimeout:     utils.GetEnvAsSeconds("WORKER_TIMEOUT", 240*time.Second, log),
		HeartbeatInterval: utils.GetEnvAsSeconds("HEARTBEAT_INTERVAL", 60*time.Second, log),
		CleanupInterval:   utils.GetEnvAsSeconds("CLEANUP_INTERVAL", 60*time.Second, log),
		DBConnectTimeout:  utils.GetEnvAsSeconds("DB_CONNECT_TIMEOUT", 10*time.Second, log),
		DBRetryAttempts:   utils.GetEnvAsInt("DB_RETRY_ATTEMPTS", 5, log),
		RetryDelay:        utils.GetEnvAsSeconds("RETRY_DELAY", 10*time.Second, log),
		MaxTaskAttempts:   utils.GetEnvAsInt("MAX_TASK_ATTEMPTS", 5, log),
		WorkersCount:      utils.GetEnvAsInt("WORKERS_COUNT", 15, log),
		ProgramID:         program,
		LogLevel:          utils.GetEnv("LOG_LEVEL", "info", log),
	}
}

func defaultProgramID() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return "scrapefleet"
}

// Validate enforces SPEC_FULL.md §4.2's ordering note: WORKER_TIMEOUT <=
// PROXY_TIMEOUT <= TASK_TIMEOUT. A violation would let the janitor reassign
// a dead worker's proxy before its task lease is reclaimed, or reclaim a
// task whose lease row still looks live. Implementations must refuse to
// start rather than run with an inconsistent ordering.
func (c Config) Validate() error {
	if c.WorkerTimeout > c.ProxyTimeout {
		return fmt.Errorf("config: WORKER_TIMEOUT (%s) must be <= PROXY_TIMEOUT (%s)", c.WorkerTimeout, c.ProxyTimeout)
	}
	if c.ProxyTimeout > c.TaskTimeout {
		return fmt.Errorf("config: PROXY_TIMEOUT (%s) must be <= TASK_TIMEOUT (%s)", c.ProxyTimeout, c.TaskTimeout)
	}
	if c.DBRetryAttempts < 1 {
		return fmt.Errorf("config: DB_RETRY_ATTEMPTS must be >= 1, got %d", c.DBRetryAttempts)
	}
	if c.MaxTaskAttempts < 1 {
		return fmt.Errorf("config: MAX_TASK_ATTEMPTS must be >= 1, got %d", c.MaxTaskAttempts)
	}
	if c.WorkersCount < 1 {
		return fmt.Errorf("config: WORKERS_COUNT must be >= 1, got %d", c.WorkersCount)
	}
	return nil
}

// DSN renders the Postgres connection string gorm's postgres driver expects,
// following the teacher's internal/db.NewPostgresService construction.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}
