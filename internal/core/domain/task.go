package domain

import "time"

// TaskState tracks a queued enrichment task through its lifetime.
type TaskState string

// Task states. Failed tasks are logged and dropped; they do not retry.
const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// EnrichTask is one unit of background enrichment work.
type EnrichTask struct {
	// ItemID identifies the item to enrich.
	ItemID string

	// EmbedOnly skips the extraction stages and only refreshes the
	// embedding. Used by the startup backfill migration.
	EmbedOnly bool

	// State is the current task state.
	State TaskState

	// EnqueuedAt is when the task entered the queue.
	EnqueuedAt time.Time
}
