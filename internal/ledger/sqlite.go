package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db      *sql.DB
	closed  bool
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite transfer ledger
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite for concurrent access
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=2000&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	store := &SQLiteStore{
		db:     db,
		closed: false,
	}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS transfers (
		container TEXT NOT NULL,
		key TEXT NOT NULL,
		size INTEGER NOT NULL,
		etag TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		last_error TEXT,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (container, key)
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_outcome ON transfers(outcome);
	CREATE INDEX IF NOT EXISTS idx_transfers_updated_at ON transfers(updated_at);
	`

	_, err := s.db.Exec(query)
	return err
}

// Get retrieves a record with retry on SQLITE_BUSY
func (s *SQLiteStore) Get(container, key string) (*Record, error) {
	if s.closed {
		return nil, fmt.Errorf("ledger store is closed")
	}

	var result *Record
	err := s.retryOnBusy(func() error {
		var err error
		result, err = s.getInternal(container, key)
		return err
	})
	return result, err
}

func (s *SQLiteStore) getInternal(container, key string) (*Record, error) {
	query := `
	SELECT container, key, size, etag, outcome, attempts, last_error, updated_at
	FROM transfers WHERE container = ? AND key = ?
	`

	row := s.db.QueryRow(query, container, key)

	var record Record
	var lastError sql.NullString

	err := row.Scan(
		&record.Container,
		&record.Key,
		&record.Size,
		&record.ETag,
		&record.Outcome,
		&record.Attempts,
		&lastError,
		&record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastError.Valid {
		record.LastError = lastError.String
	}

	return &record, nil
}

// Save upserts a record with retry on SQLITE_BUSY
func (s *SQLiteStore) Save(record *Record) error {
	if s.closed {
		return fmt.Errorf("ledger store is closed")
	}

	// Serialize writes to avoid SQLITE_BUSY from multiple concurrent workers
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		return s.saveWithTransaction(record)
	})
}

func (s *SQLiteStore) saveWithTransaction(record *Record) error {
	record.UpdatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // This will be ignored if Commit() succeeds

	// UPSERT keeps lock contention lower than REPLACE's DELETE+INSERT
	query := `
    INSERT INTO transfers
    (container, key, size, etag, outcome, attempts, last_error, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(container, key) DO UPDATE SET
        size = excluded.size,
        etag = excluded.etag,
        outcome = excluded.outcome,
        attempts = excluded.attempts,
        last_error = excluded.last_error,
        updated_at = excluded.updated_at
    `

	_, err = tx.Exec(query,
		record.Container,
		record.Key,
		record.Size,
		record.ETag,
		record.Outcome,
		record.Attempts,
		record.LastError,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}

	return tx.Commit()
}

// retryOnBusy retries the operation if SQLite is busy
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	maxRetries := 10
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if isSQLiteBusyError(err) {
			if attempt < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<uint(attempt))
				jitter := time.Duration(attempt*10) * time.Millisecond
				time.Sleep(delay + jitter)
				continue
			}
		}

		return err
	}

	return nil
}

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// ListFailed returns all records whose last recorded outcome is failed
func (s *SQLiteStore) ListFailed() ([]*Record, error) {
	query := `
	SELECT container, key, size, etag, outcome, attempts, last_error, updated_at
	FROM transfers WHERE outcome = ?
	ORDER BY updated_at ASC
	`

	rows, err := s.db.Query(query, OutcomeFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record

	for rows.Next() {
		var record Record
		var lastError sql.NullString

		err := rows.Scan(
			&record.Container,
			&record.Key,
			&record.Size,
			&record.ETag,
			&record.Outcome,
			&record.Attempts,
			&lastError,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if lastError.Valid {
			record.LastError = lastError.String
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.closed = true
	return s.db.Close()
}
