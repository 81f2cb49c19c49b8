package worker

import (
	"time"

	"swift2s3/internal/storage"
)

// State tracks where a task is in its pipeline.
type State string

const (
	StatePending  State = "pending"
	StateStaging  State = "staging"
	StateChecking State = "checking"
	StatePushing  State = "pushing"
	StateRetrying State = "retrying"
	StateDone     State = "done"
	StateSkipped  State = "skipped"
	StateFailed   State = "failed"
)

// Task represents one object to carry from source to destination. A task is
// owned exclusively by the worker executing it.
type Task struct {
	Object    storage.ObjectInfo
	DestKey   string
	StagePath string
	Attempts  int
	State     State
}

// Outcome is a task's terminal result classification.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Result is the terminal record for one task. Immutable once produced.
type Result struct {
	Task     Task
	Outcome  Outcome
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Config contains worker configuration
type Config struct {
	SourceContainer string
	DestBucket      string
	MaxAttempts     int
	RetryBackoffMs  int
	StageDir        string
	Resume          bool
}
