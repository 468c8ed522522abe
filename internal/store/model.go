package store

import (
	"time"

	"gorm.io/datatypes"
)

// TaskStatus is the lifecycle state of a Task row (SPEC_FULL.md §3).
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// ProxyStatus is the lifecycle state of a Proxy row.
type ProxyStatus string

const (
	ProxyAvailable ProxyStatus = "available"
	ProxyLocked    ProxyStatus = "locked"
	ProxyBlocked   ProxyStatus = "blocked"
)

// WorkerStatus is the liveness state of a Worker row.
type WorkerStatus string

const (
	WorkerActive  WorkerStatus = "active"
	WorkerStopped WorkerStatus = "stopped"
)

// ResultStatus distinguishes a successfully parsed listing from one
// confirmed removed by the site.
type ResultStatus string

const (
	ResultSuccess     ResultStatus = "success"
	ResultUnavailable ResultStatus = "unavailable"
)

// Task is one listing to fetch. Invariants (enforced by Store operations,
// never by application-level checks after the fact):
//
//	status=processing  => worker_id != null && last_attempt_at != null
//	status in {pending,failed,completed} => worker_id == null
//	attempts <= max_attempts
//	status=failed => attempts >= max_attempts
type Task struct {
	TaskID        uint64     `gorm:"column:task_id;primaryKey;autoIncrement" json:"task_id"`
	ItemID        int64      `gorm:"column:item_id;uniqueIndex;not null" json:"item_id"`
	Status        TaskStatus `gorm:"column:status;not null;index:idx_tasks_status_created" json:"status"`
	Attempts      int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts   int        `gorm:"column:max_attempts;not null;default:5" json:"max_attempts"`
	WorkerID      *string    `gorm:"column:worker_id;index" json:"worker_id,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;default:now();index:idx_tasks_status_created" json:"created_at"`
	LastAttemptAt *time.Time `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Task) TableName() string { return "tasks" }

// Proxy is one rotating upstream. Invariants:
//
//	status=locked => locked_by != null && locked_at != null
//	status in {available,blocked} => locked_by == null && locked_at == null
//	uses_count, blocks_count are monotonically non-decreasing
type Proxy struct {
	ProxyID     uint64      `gorm:"column:proxy_id;primaryKey;autoIncrement" json:"proxy_id"`
	Proxy       string      `gorm:"column:proxy;uniqueIndex;not null" json:"proxy"`
	Status      ProxyStatus `gorm:"column:status;not null;index:idx_proxies_status_uses" json:"status"`
	LockedBy    *string     `gorm:"column:locked_by" json:"locked_by,omitempty"`
	LockedAt    *time.Time  `gorm:"column:locked_at" json:"locked_at,omitempty"`
	LastUsedAt  *time.Time  `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	UsesCount   int64       `gorm:"column:uses_count;not null;default:0;index:idx_proxies_status_uses" json:"uses_count"`
	BlocksCount int64       `gorm:"column:blocks_count;not null;default:0" json:"blocks_count"`
}

func (Proxy) TableName() string { return "proxies" }

// Worker is one scraper process instance (one row per slot, keyed by the
// worker_id the slot assigns itself: {program}:{hostname}:{pid}:{slot}).
type Worker struct {
	WorkerID       string       `gorm:"column:worker_id;primaryKey" json:"worker_id"`
	Status         WorkerStatus `gorm:"column:status;not null" json:"status"`
	LastHeartbeat  time.Time    `gorm:"column:last_heartbeat;not null;index:idx_workers_last_heartbeat" json:"last_heartbeat"`
	TasksProcessed int64        `gorm:"column:tasks_processed;not null;default:0" json:"tasks_processed"`
	TasksFailed    int64        `gorm:"column:tasks_failed;not null;default:0" json:"tasks_failed"`
	StartedAt      time.Time    `gorm:"column:started_at;not null;default:now()" json:"started_at"`
}

func (Worker) TableName() string { return "workers" }

// Result is the parsed listing content, upserted by item_id.
type Result struct {
	ItemID           int64          `gorm:"column:item_id;primaryKey" json:"item_id"`
	Title            string         `gorm:"column:title" json:"title"`
	Description      string         `gorm:"column:description" json:"description"`
	Characteristics  datatypes.JSON `gorm:"column:characteristics" json:"characteristics"`
	Price            *int64         `gorm:"column:price" json:"price,omitempty"` // fixed-point, scale 2 (cents)
	PublishedAt      *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	SellerName       string         `gorm:"column:seller_name" json:"seller_name"`
	SellerProfileURL string         `gorm:"column:seller_profile_url" json:"seller_profile_url"`
	LocationAddress  string         `gorm:"column:location_address" json:"location_address"`
	LocationMetro    string         `gorm:"column:location_metro" json:"location_metro"`
	LocationRegion   string         `gorm:"column:location_region" json:"location_region"`
	ViewsTotal       *int64         `gorm:"column:views_total" json:"views_total,omitempty"`
	Status           ResultStatus   `gorm:"column:status;not null" json:"status"`
	FailureReason    string         `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	WorkerID         string         `gorm:"column:worker_id" json:"worker_id"`
	Attempts         int            `gorm:"column:attempts" json:"attempts"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

func (Result) TableName() string { return "results" }
