package ledger

import (
	"time"
)

// Outcome mirrors a task's terminal classification.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Record is the persisted terminal outcome for one object key.
type Record struct {
	Container string    `json:"container"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	ETag      string    `json:"etag"`
	Outcome   Outcome   `json:"outcome"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for the transfer ledger. The ledger is an
// operational record only; resume reads it, nothing else depends on it.
type Store interface {
	Get(container, key string) (*Record, error)
	Save(record *Record) error
	ListFailed() ([]*Record, error)

	Close() error
}
