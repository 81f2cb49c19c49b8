package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"swift2s3/internal/storage"
	"swift2s3/internal/storage/storagetest"
	"swift2s3/internal/worker"
)

func results(skipped, succeeded, failed int) []worker.Result {
	var out []worker.Result
	for i := 0; i < skipped; i++ {
		out = append(out, worker.Result{Outcome: worker.OutcomeSkipped})
	}
	for i := 0; i < succeeded; i++ {
		out = append(out, worker.Result{Outcome: worker.OutcomeSucceeded})
	}
	for i := 0; i < failed; i++ {
		out = append(out, worker.Result{Outcome: worker.OutcomeFailed, Err: errors.New("boom")})
	}
	return out
}

func seededDest(n int) *storagetest.FakeDestination {
	dst := storagetest.NewFakeDestination()
	for i := 0; i < n; i++ {
		dst.Seed(keyFor(i), []byte("x"))
	}
	return dst
}

func keyFor(i int) string {
	return "obj-" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestReconcileAllTransferred(t *testing.T) {
	dst := seededDest(100)

	report := New(dst, "bucket").Reconcile(context.Background(), 100, results(0, 100, 0))

	assert.True(t, report.Matched)
	assert.Equal(t, int64(100), report.SourceCount)
	assert.Equal(t, int64(100), report.DestinationCount)
	assert.Equal(t, int64(100), report.Succeeded)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Discrepancy)
}

func TestReconcileSkippedCountTowardMatch(t *testing.T) {
	dst := seededDest(10)

	report := New(dst, "bucket").Reconcile(context.Background(), 10, results(7, 3, 0))

	assert.True(t, report.Matched)
	assert.Equal(t, int64(7), report.Skipped)
	assert.Equal(t, int64(3), report.Succeeded)
}

func TestReconcileFailuresProduceDiscrepancy(t *testing.T) {
	dst := seededDest(8)

	report := New(dst, "bucket").Reconcile(context.Background(), 10, results(0, 8, 2))

	assert.False(t, report.Matched)
	assert.Equal(t, int64(2), report.Failed)
	assert.Contains(t, report.Discrepancy, "2 of 10 objects failed")
}

func TestReconcileShortDestinationCount(t *testing.T) {
	dst := seededDest(6)

	report := New(dst, "bucket").Reconcile(context.Background(), 10, results(0, 10, 0))

	assert.False(t, report.Matched)
	assert.Equal(t, int64(6), report.DestinationCount)
	assert.Contains(t, report.Discrepancy, "expected at least 10")
}

func TestReconcilePreexistingExtrasStillMatch(t *testing.T) {
	// One-way transfer never deletes; extra destination objects are fine.
	dst := seededDest(12)

	report := New(dst, "bucket").Reconcile(context.Background(), 10, results(0, 10, 0))

	assert.True(t, report.Matched)
}

func TestReconcileCountQueryFailureIsReportedNotThrown(t *testing.T) {
	verifier := New(countErrDest{}, "bucket")

	report := verifier.Reconcile(context.Background(), 5, results(0, 5, 0))

	assert.False(t, report.Matched)
	assert.Contains(t, report.Discrepancy, "destination count unavailable")
}

type countErrDest struct{ *storagetest.FakeDestination }

func (countErrDest) CountObjects(ctx context.Context, bucket string) (int64, error) {
	return 0, errors.New("listing timed out")
}

var _ storage.Destination = countErrDest{}
