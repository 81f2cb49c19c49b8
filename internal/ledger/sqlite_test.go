package ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "transfer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)

	rec := &Record{
		Container: "photos",
		Key:       "2024/01/img.jpg",
		Size:      2048,
		ETag:      "abc123",
		Outcome:   OutcomeSucceeded,
		Attempts:  1,
	}
	require.NoError(t, store.Save(rec))

	got, err := store.Get("photos", "2024/01/img.jpg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, OutcomeSucceeded, got.Outcome)
	assert.Equal(t, int64(2048), got.Size)
	assert.Equal(t, "abc123", got.ETag)
	assert.Equal(t, 1, got.Attempts)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get("photos", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveUpserts(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&Record{
		Container: "photos", Key: "a", Size: 10, ETag: "v1",
		Outcome: OutcomeFailed, Attempts: 3, LastError: "connection reset",
	}))
	require.NoError(t, store.Save(&Record{
		Container: "photos", Key: "a", Size: 10, ETag: "v1",
		Outcome: OutcomeSucceeded, Attempts: 1,
	}))

	got, err := store.Get("photos", "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, OutcomeSucceeded, got.Outcome)
	assert.Equal(t, 1, got.Attempts)
}

func TestListFailed(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&Record{Container: "c", Key: "ok", ETag: "e", Outcome: OutcomeSucceeded}))
	require.NoError(t, store.Save(&Record{Container: "c", Key: "bad-1", ETag: "e", Outcome: OutcomeFailed, LastError: "timeout"}))
	require.NoError(t, store.Save(&Record{Container: "c", Key: "bad-2", ETag: "e", Outcome: OutcomeFailed, LastError: "timeout"}))

	failed, err := store.ListFailed()
	require.NoError(t, err)
	require.Len(t, failed, 2)
	for _, rec := range failed {
		assert.Equal(t, OutcomeFailed, rec.Outcome)
		assert.Equal(t, "timeout", rec.LastError)
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Get("c", "k")
	assert.Error(t, err)
	assert.Error(t, store.Save(&Record{Container: "c", Key: "k", ETag: "e", Outcome: OutcomeSucceeded}))
}
