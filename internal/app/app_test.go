package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swift2s3/internal/config"
	"swift2s3/internal/metrics"
	"swift2s3/internal/storage"
	"swift2s3/internal/storage/storagetest"
)

// Prometheus collectors register globally, so the whole test binary shares
// one instance.
var testMetrics = metrics.New()

func newTestTransferer(t *testing.T, src *storagetest.FakeSource, dst *storagetest.FakeDestination) *Transferer {
	t.Helper()

	cfg := &config.Config{
		Source: config.SourceConfig{Container: "photos"},
		Dest:   config.DestConfig{Bucket: "archive"},
		Transfer: config.Transfer{
			Concurrency:    4,
			BandwidthMBps:  1,
			MaxAttempts:    3,
			RetryBackoffMs: 1,
			StageDir:       t.TempDir(),
		},
		LogLevel: "info",
	}

	return &Transferer{
		cfg:     cfg,
		logger:  zap.NewNop(),
		src:     src,
		dst:     dst,
		metrics: testMetrics,
	}
}

func TestRunTransfersEverything(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()
	for i := 0; i < 25; i++ {
		src.Seed(fmt.Sprintf("album/%02d.jpg", i), []byte(fmt.Sprintf("image %d", i)))
	}

	err := newTestTransferer(t, src, dst).Run(context.Background())
	require.NoError(t, err)

	count, err := dst.CountObjects(context.Background(), "archive")
	require.NoError(t, err)
	assert.Equal(t, int64(25), count)
}

func TestRunAbortsWhenDestinationMissing(t *testing.T) {
	src := storagetest.NewFakeSource()
	src.Seed("a.dat", []byte("content"))
	dst := storagetest.NewFakeDestination()
	dst.SetMissing(true)

	err := newTestTransferer(t, src, dst).Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrDestinationMissing))
	// Aborted pre-flight: nothing was fetched or pushed.
	assert.Zero(t, src.GetCalls())
	assert.Zero(t, dst.PutCalls())
}

func TestRunReportsFailedObjects(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()
	src.Seed("fine.dat", []byte("content"))
	src.Seed("broken.dat", []byte("content"))
	transient := errors.New("connection reset by peer")
	dst.FailPut("broken.dat", transient, transient, transient)

	err := newTestTransferer(t, src, dst).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconciliation failed")

	_, ok := dst.Object("fine.dat")
	assert.True(t, ok, "sibling transfer must not be aborted by a per-object failure")
}

func TestRunEmptySourceIsNoop(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()

	err := newTestTransferer(t, src, dst).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dst.PutCalls())
}

func TestRunDryRunPushesNothing(t *testing.T) {
	src := storagetest.NewFakeSource()
	dst := storagetest.NewFakeDestination()
	src.Seed("a.dat", []byte("content"))

	tr := newTestTransferer(t, src, dst)
	tr.cfg.Transfer.DryRun = true

	err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dst.PutCalls())
}

func TestDestKeyPreservesHierarchy(t *testing.T) {
	l := &ObjectLister{destPrefix: ""}
	assert.Equal(t, "a/b/c.txt", l.destKey("a/b/c.txt"))

	l = &ObjectLister{destPrefix: "backup/"}
	assert.Equal(t, "backup/a/b/c.txt", l.destKey("a/b/c.txt"))

	l = &ObjectLister{destPrefix: "backup"}
	assert.Equal(t, "backup/a/b/c.txt", l.destKey("a/b/c.txt"))
}
