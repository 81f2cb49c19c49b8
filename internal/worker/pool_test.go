package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swift2s3/internal/storage/storagetest"
)

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestPool(t *testing.T, size int, src *storagetest.FakeSource, dst *storagetest.FakeDestination, abort context.CancelCauseFunc) *Pool {
	t.Helper()
	return NewPool(size, Config{
		SourceContainer: "src-container",
		DestBucket:      "dst-bucket",
		MaxAttempts:     3,
		RetryBackoffMs:  1,
		StageDir:        t.TempDir(),
	}, src, dst, nil, nil, newTestLogger(), abort)
}

func enqueueAll(t *testing.T, src *storagetest.FakeSource, keys []string) chan Task {
	t.Helper()
	tasks := make(chan Task, len(keys))
	for _, key := range keys {
		tasks <- taskFor(src, key)
	}
	close(tasks)
	return tasks
}

func collect(results <-chan Result) []Result {
	var out []Result
	for r := range results {
		out = append(out, r)
	}
	return out
}

func TestPoolTransfersEveryObject(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()

	keys := make([]string, 100)
	for i := range keys {
		keys[i] = fmt.Sprintf("bulk/object-%03d", i)
		src.Seed(keys[i], []byte(fmt.Sprintf("content %d", i)))
	}

	pool := newTestPool(t, 10, src, dst, nil)
	results := collect(pool.Run(context.Background(), enqueueAll(t, src, keys)))

	require.Len(t, results, 100)
	for _, r := range results {
		assert.Equal(t, OutcomeSucceeded, r.Outcome, "key %s", r.Task.Object.Key)
	}

	count, err := dst.CountObjects(context.Background(), "dst-bucket")
	require.NoError(t, err)
	assert.Equal(t, int64(100), count)
}

func TestPoolFailureStaysLocalToTask(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()

	keys := []string{"good-1", "bad", "good-2"}
	for _, key := range keys {
		src.Seed(key, []byte("content "+key))
	}
	dst.FailPut("bad", errTransient, errTransient, errTransient)

	pool := newTestPool(t, 2, src, dst, nil)
	results := collect(pool.Run(context.Background(), enqueueAll(t, src, keys)))

	require.Len(t, results, 3)
	byKey := make(map[string]Result, len(results))
	for _, r := range results {
		byKey[r.Task.Object.Key] = r
	}

	assert.Equal(t, OutcomeSucceeded, byKey["good-1"].Outcome)
	assert.Equal(t, OutcomeSucceeded, byKey["good-2"].Outcome)
	assert.Equal(t, OutcomeFailed, byKey["bad"].Outcome)
	assert.Equal(t, 3, byKey["bad"].Task.Attempts)
}

func TestPoolSecondRunPushesNothing(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()

	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("stable/object-%02d", i)
		src.Seed(keys[i], []byte(fmt.Sprintf("content %d", i)))
	}

	pool := newTestPool(t, 4, src, dst, nil)

	first := collect(pool.Run(context.Background(), enqueueAll(t, src, keys)))
	require.Len(t, first, 20)
	pushedOnce := dst.PutCalls()

	second := collect(pool.Run(context.Background(), enqueueAll(t, src, keys)))
	require.Len(t, second, 20)
	for _, r := range second {
		assert.Equal(t, OutcomeSkipped, r.Outcome)
	}
	assert.Equal(t, pushedOnce, dst.PutCalls())
}

func TestPoolCancellationFailsQueuedTasks(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()

	keys := make([]string, 5)
	for i := range keys {
		keys[i] = fmt.Sprintf("queued-%d", i)
		src.Seed(keys[i], []byte("content"))
	}

	cause := errors.New("credentials expired")
	ctx, abort := context.WithCancelCause(context.Background())
	abort(cause)

	pool := newTestPool(t, 2, src, dst, nil)
	results := collect(pool.Run(ctx, enqueueAll(t, src, keys)))

	// Cancellation stops dispatch but every queued task still yields a
	// terminal result.
	require.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, OutcomeFailed, r.Outcome)
	}
}

func TestPoolAuthExpiryAbortsRun(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()

	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("run/object-%02d", i)
		src.Seed(keys[i], []byte("content"))
	}
	authErr := minio.ErrorResponse{Code: "ExpiredToken", Message: "token expired"}
	dst.FailPut(keys[0], authErr)

	ctx, abort := context.WithCancelCause(context.Background())
	defer abort(nil)

	pool := NewPool(2, Config{
		SourceContainer: "src-container",
		DestBucket:      "dst-bucket",
		MaxAttempts:     3,
		RetryBackoffMs:  1,
		StageDir:        t.TempDir(),
	}, src, dst, nil, nil, newTestLogger(), abort)

	results := collect(pool.Run(ctx, enqueueAll(t, src, keys)))

	require.Len(t, results, 20)
	assert.ErrorContains(t, context.Cause(ctx), "token expired")

	var failed int
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			failed++
		}
	}
	assert.GreaterOrEqual(t, failed, 1)
}
