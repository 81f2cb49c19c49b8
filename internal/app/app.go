package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"swift2s3/internal/config"
	"swift2s3/internal/ledger"
	"swift2s3/internal/metrics"
	"swift2s3/internal/progress"
	"swift2s3/internal/ratelimit"
	"swift2s3/internal/storage"
	"swift2s3/internal/verify"
	"swift2s3/internal/worker"

	"go.uber.org/zap"
)

// Transferer is the main transfer application
type Transferer struct {
	cfg     *config.Config
	logger  *zap.Logger
	src     storage.Source
	dst     storage.Destination
	ledger  ledger.Store
	metrics *metrics.Collector
	limiter *ratelimit.Limiter
}

// New creates a new transferer instance
func New(cfg *config.Config, logger *zap.Logger) (*Transferer, error) {
	srcClient, err := storage.NewMinIOClient(storage.Config{
		Endpoint:  cfg.Source.Endpoint,
		AccessKey: cfg.Source.AccessKey,
		SecretKey: cfg.Source.SecretKey,
		Secure:    cfg.Source.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create source client: %w", err)
	}

	dstClient, err := storage.NewMinIOClient(storage.Config{
		Endpoint:  cfg.Dest.Endpoint,
		AccessKey: cfg.Dest.AccessKey,
		SecretKey: cfg.Dest.SecretKey,
		Region:    cfg.Dest.Region,
		Secure:    cfg.Dest.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create destination client: %w", err)
	}

	ledgerStore, err := ledger.NewSQLiteStore(cfg.Transfer.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer ledger: %w", err)
	}

	return &Transferer{
		cfg:     cfg,
		logger:  logger,
		src:     srcClient,
		dst:     dstClient,
		ledger:  ledgerStore,
		metrics: metrics.New(),
		limiter: ratelimit.NewLimiter(cfg.Transfer.BandwidthMBps * 1024 * 1024),
	}, nil
}

// Run executes the transfer end to end: pre-flight check, listing, worker
// pool, result aggregation, reconciliation. The returned error is non-nil
// when any object terminally failed or reconciliation found a mismatch, so
// the process exit status reflects the run's health.
func (t *Transferer) Run(ctx context.Context) error {
	t.logger.Info("Starting transfer",
		zap.String("container", t.cfg.Source.Container),
		zap.String("bucket", t.cfg.Dest.Bucket),
		zap.Int("concurrency", t.cfg.Transfer.Concurrency),
		zap.Int64("bandwidth_mbps", t.cfg.Transfer.BandwidthMBps),
		zap.Bool("dry_run", t.cfg.Transfer.DryRun),
	)

	// Pre-flight: the destination bucket must exist before anything moves.
	exists, err := t.dst.BucketExists(ctx, t.cfg.Dest.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check destination bucket %s: %w", t.cfg.Dest.Bucket, err)
	}
	if !exists {
		t.logger.Error("Destination bucket does not exist", zap.String("bucket", t.cfg.Dest.Bucket))
		return fmt.Errorf("%w: %s", storage.ErrDestinationMissing, t.cfg.Dest.Bucket)
	}

	if err := os.MkdirAll(t.cfg.Transfer.StageDir, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(t.cfg.Transfer.StageDir); err == nil {
			t.logger.Info("Staging directory removed")
		}
	}()

	if addr := t.cfg.Transfer.MetricsAddr; addr != "" {
		go func() {
			if err := t.metrics.StartServer(addr); err != nil {
				t.logger.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	lister := &ObjectLister{
		client:     t.src,
		container:  t.cfg.Source.Container,
		prefix:     t.cfg.Source.Prefix,
		destPrefix: t.cfg.Dest.Prefix,
		logger:     t.logger,
	}

	sourceCount, totalBytes, err := lister.Count(ctx, t.cfg.Transfer.Object)
	if err != nil {
		return fmt.Errorf("failed to count source objects: %w", err)
	}
	if sourceCount == 0 {
		t.logger.Warn("No objects found in source container")
		return nil
	}
	t.metrics.SetTotalCounts(sourceCount, totalBytes)
	t.logger.Info("Source listing counted",
		zap.Int64("objects", sourceCount),
		zap.String("total_size", progress.FormatBytes(totalBytes)),
	)

	var display *progress.Display
	if t.cfg.Transfer.ShowProgress && !t.cfg.Transfer.DryRun && progress.IsTerminalSupported() {
		display = progress.NewDisplay(t.metrics.GetProgressTracker(), 2*time.Second)
		display.Start()
	}

	// Workers abort the whole run on fatal errors (expired credentials);
	// the cause is carried on the context.
	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	pool := worker.NewPool(t.cfg.Transfer.Concurrency, worker.Config{
		SourceContainer: t.cfg.Source.Container,
		DestBucket:      t.cfg.Dest.Bucket,
		MaxAttempts:     t.cfg.Transfer.MaxAttempts,
		RetryBackoffMs:  t.cfg.Transfer.RetryBackoffMs,
		StageDir:        t.cfg.Transfer.StageDir,
		Resume:          t.cfg.Transfer.Resume,
	}, t.src, t.dst, t.limiter, t.ledger, t.logger, abort)
	t.metrics.SetInflightWorkers(t.cfg.Transfer.Concurrency)

	tasks := make(chan worker.Task, t.cfg.Transfer.Concurrency*2)
	results := pool.Run(runCtx, tasks)

	listErrCh := make(chan error, 1)
	go func() {
		defer close(tasks)
		listErrCh <- lister.ListAndEnqueue(runCtx, t.cfg.Transfer.Object, tasks, t.cfg.Transfer.DryRun)
	}()

	collected := t.aggregate(results)
	listErr := <-listErrCh
	t.metrics.SetInflightWorkers(0)

	if display != nil {
		display.Stop()
	}

	if listErr != nil && !errors.Is(listErr, context.Canceled) {
		return fmt.Errorf("failed to list source objects: %w", listErr)
	}
	if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("transfer aborted: %w", cause)
	}

	if t.cfg.Transfer.DryRun {
		t.logger.Info("Dry run completed", zap.Int64("objects", sourceCount))
		return nil
	}

	report := verify.New(t.dst, t.cfg.Dest.Bucket).Reconcile(ctx, sourceCount, collected)
	t.logger.Info("Reconciliation finished",
		zap.Int64("source_count", report.SourceCount),
		zap.Int64("destination_count", report.DestinationCount),
		zap.Int64("succeeded", report.Succeeded),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("failed", report.Failed),
		zap.Bool("matched", report.Matched),
	)
	if !report.Matched {
		t.logger.Warn("Reconciliation discrepancy", zap.String("discrepancy", report.Discrepancy))
		return fmt.Errorf("reconciliation failed: %s", report.Discrepancy)
	}

	t.logger.Info("Transfer completed")
	return nil
}

// aggregate serializes the result stream into the shared tally.
func (t *Transferer) aggregate(results <-chan worker.Result) []worker.Result {
	collected := make([]worker.Result, 0)
	for res := range results {
		switch res.Outcome {
		case worker.OutcomeSucceeded:
			t.metrics.IncSucceeded(res.Bytes)
			t.metrics.ObserveDuration(res.Duration)
		case worker.OutcomeSkipped:
			t.metrics.IncSkipped(res.Task.Object.Size)
		case worker.OutcomeFailed:
			t.metrics.IncFailed()
		}
		collected = append(collected, res)
	}
	return collected
}

// Close cleans up resources
func (t *Transferer) Close() error {
	if t.ledger != nil {
		return t.ledger.Close()
	}
	return nil
}
