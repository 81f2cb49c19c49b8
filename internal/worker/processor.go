package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"swift2s3/internal/checksum"
	"swift2s3/internal/ledger"
	"swift2s3/internal/ratelimit"
	"swift2s3/internal/storage"

	"go.uber.org/zap"
)

// TaskProcessor carries one object at a time through the transfer pipeline:
// stage to a local file, fingerprint-check against the destination, push
// through the shared bandwidth limiter.
type TaskProcessor struct {
	config  Config
	src     storage.Source
	dst     storage.Destination
	limiter *ratelimit.Limiter
	policy  RetryPolicy
	ledger  ledger.Store
	logger  *zap.Logger
	abort   context.CancelCauseFunc
}

// Process executes the full pipeline for one task and returns its terminal
// result. Every task yields exactly one result.
func (p *TaskProcessor) Process(ctx context.Context, task Task) Result {
	task.State = StatePending
	start := time.Now()

	if p.config.Resume && p.ledger != nil {
		if rec, err := p.ledger.Get(p.config.SourceContainer, task.Object.Key); err == nil && rec != nil {
			if rec.Outcome != ledger.OutcomeFailed && rec.ETag == task.Object.ETag {
				p.logger.Debug("Skipping previously completed object", zap.String("key", task.Object.Key))
				task.State = StateSkipped
				return Result{Task: task, Outcome: OutcomeSkipped}
			}
		}
	}

	var result Result
	if strings.HasSuffix(task.Object.Key, "/") {
		result = p.processMarker(ctx, task)
	} else {
		result = p.processObject(ctx, task)
	}
	result.Duration = time.Since(start)

	p.record(result)

	switch result.Outcome {
	case OutcomeSucceeded:
		p.logger.Info("Transfer completed",
			zap.String("key", task.Object.Key),
			zap.Int64("size", task.Object.Size),
			zap.Int("attempts", result.Task.Attempts),
			zap.Duration("duration", time.Since(start)),
		)
	case OutcomeSkipped:
		p.logger.Info("Object unchanged, skipped", zap.String("key", task.Object.Key))
	case OutcomeFailed:
		p.logger.Error("Transfer failed",
			zap.String("key", task.Object.Key),
			zap.Int("attempts", result.Task.Attempts),
			zap.Error(result.Err),
		)
	}

	return result
}

// processMarker handles directory-marker keys (trailing slash): an empty
// object is pushed to keep the hierarchy, with no staging. Markers go
// through the same fingerprint gate as regular objects so a re-run does not
// re-push them.
func (p *TaskProcessor) processMarker(ctx context.Context, task Task) Result {
	task.State = StateChecking
	destFingerprint, err := p.destFingerprint(ctx, task.DestKey)
	if err != nil {
		task.State = StateFailed
		return Result{Task: task, Outcome: OutcomeFailed, Err: err}
	}

	emptyFingerprint, _ := checksum.Sum(bytes.NewReader(nil))
	if checksum.Decide(emptyFingerprint, destFingerprint) == checksum.Skip {
		task.State = StateSkipped
		return Result{Task: task, Outcome: OutcomeSkipped}
	}

	task.State = StatePushing
	err = p.pushWithRetry(ctx, &task, func() error {
		return p.dst.PutObject(ctx, p.config.DestBucket, task.DestKey, bytes.NewReader(nil), 0, storage.PutOptions{})
	})
	if err != nil {
		task.State = StateFailed
		return Result{Task: task, Outcome: OutcomeFailed, Err: err}
	}
	task.State = StateDone
	return Result{Task: task, Outcome: OutcomeSucceeded}
}

func (p *TaskProcessor) processObject(ctx context.Context, task Task) Result {
	// Stage
	task.State = StateStaging
	task.StagePath = filepath.Join(p.config.StageDir, filepath.FromSlash(task.Object.Key))
	if err := p.stageWithRetry(ctx, &task); err != nil {
		task.State = StateFailed
		return Result{Task: task, Outcome: OutcomeFailed, Err: err}
	}
	// The staged file is removed on every exit path below.
	defer os.Remove(task.StagePath)

	if err := context.Cause(ctx); err != nil {
		task.State = StateFailed
		return Result{Task: task, Outcome: OutcomeFailed, Err: err}
	}

	// Check
	task.State = StateChecking
	srcFingerprint, err := checksum.File(task.StagePath)
	if err != nil {
		// Fail open: an uncomputable fingerprint means transfer, never drop.
		p.logger.Warn("Fingerprint computation failed, transferring anyway",
			zap.String("key", task.Object.Key), zap.Error(err))
		srcFingerprint = ""
	}

	destFingerprint, err := p.destFingerprint(ctx, task.DestKey)
	if err != nil {
		task.State = StateFailed
		return Result{Task: task, Outcome: OutcomeFailed, Err: err}
	}

	if checksum.Decide(srcFingerprint, destFingerprint) == checksum.Skip {
		task.State = StateSkipped
		return Result{Task: task, Outcome: OutcomeSkipped}
	}

	if err := context.Cause(ctx); err != nil {
		task.State = StateFailed
		return Result{Task: task, Outcome: OutcomeFailed, Err: err}
	}

	// Push
	task.State = StatePushing
	err = p.pushWithRetry(ctx, &task, func() error {
		return p.push(ctx, task)
	})
	if err != nil {
		task.State = StateFailed
		return Result{Task: task, Outcome: OutcomeFailed, Err: err}
	}

	task.State = StateDone
	return Result{Task: task, Outcome: OutcomeSucceeded, Bytes: task.Object.Size}
}

// destFingerprint looks up the destination object's fingerprint. An absent
// object yields "", which the gate treats as "must transfer". Auth expiry
// escalates to pool-wide cancellation.
func (p *TaskProcessor) destFingerprint(ctx context.Context, key string) (string, error) {
	info, err := p.dst.HeadObject(ctx, p.config.DestBucket, key)
	if err == nil {
		return info.ETag, nil
	}
	if storage.IsNotFound(err) {
		return "", nil
	}
	if storage.IsAuthExpired(err) {
		p.escalate(err)
		return "", err
	}
	// Fail open toward transfer on any other head failure.
	p.logger.Warn("Destination head failed, transferring anyway", zap.String("key", key), zap.Error(err))
	return "", nil
}

// stageWithRetry fetches the source object into the staging file,
// classifying failures through the retry policy.
func (p *TaskProcessor) stageWithRetry(ctx context.Context, task *Task) error {
	for attempt := 1; ; attempt++ {
		task.Attempts = attempt
		err := p.stage(ctx, *task)
		if err == nil {
			return nil
		}
		if storage.IsAuthExpired(err) {
			p.escalate(err)
			return err
		}

		decision := p.policy.Decide(attempt, err)
		if !decision.Retry {
			return fmt.Errorf("staging %s: %w", task.Object.Key, err)
		}

		p.logger.Warn("Staging attempt failed, retrying",
			zap.String("key", task.Object.Key),
			zap.Int("attempt", attempt),
			zap.Duration("delay", decision.Delay),
			zap.Error(err),
		)
		if err := p.sleep(ctx, decision.Delay); err != nil {
			return err
		}
	}
}

func (p *TaskProcessor) stage(ctx context.Context, task Task) error {
	if err := os.MkdirAll(filepath.Dir(task.StagePath), 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	obj, err := p.src.GetObject(ctx, p.config.SourceContainer, task.Object.Key)
	if err != nil {
		return fmt.Errorf("failed to get source object: %w", err)
	}
	defer obj.Close()

	f, err := os.Create(task.StagePath)
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}

	if _, err := io.Copy(f, obj); err != nil {
		f.Close()
		os.Remove(task.StagePath)
		return fmt.Errorf("failed to stage object: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(task.StagePath)
		return fmt.Errorf("failed to finalize staging file: %w", err)
	}
	return nil
}

// pushWithRetry drives the push-only retry loop: on a retryable failure the
// push step is re-attempted after the policy's delay without re-staging. The
// attempt number fed to the policy is step-local, but the task's Attempts
// counter never decreases: a retried stage keeps its count through the push.
func (p *TaskProcessor) pushWithRetry(ctx context.Context, task *Task, push func() error) error {
	for attempt := 1; ; attempt++ {
		if attempt > task.Attempts {
			task.Attempts = attempt
		}
		task.State = StatePushing
		err := push()
		if err == nil {
			return nil
		}
		if storage.IsAuthExpired(err) {
			p.escalate(err)
			return err
		}

		decision := p.policy.Decide(attempt, err)
		if !decision.Retry {
			return err
		}

		task.State = StateRetrying
		p.logger.Warn("Push attempt failed, retrying",
			zap.String("key", task.Object.Key),
			zap.Int("attempt", attempt),
			zap.Duration("delay", decision.Delay),
			zap.Error(err),
		)
		if err := p.sleep(ctx, decision.Delay); err != nil {
			return err
		}
	}
}

func (p *TaskProcessor) push(ctx context.Context, task Task) error {
	f, err := os.Open(task.StagePath)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	contentType := task.Object.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reader := p.limiter.Reader(ctx, f)
	return p.dst.PutObject(ctx, p.config.DestBucket, task.DestKey, reader, task.Object.Size, storage.PutOptions{
		ContentType: contentType,
		Metadata:    task.Object.Metadata,
	})
}

func (p *TaskProcessor) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// escalate triggers pool-wide cancellation for fatal, run-level errors.
func (p *TaskProcessor) escalate(err error) {
	if p.abort != nil {
		p.logger.Error("Fatal error, cancelling remaining transfers", zap.Error(err))
		p.abort(err)
	}
}

func (p *TaskProcessor) record(result Result) {
	if p.ledger == nil {
		return
	}

	rec := &ledger.Record{
		Container: p.config.SourceContainer,
		Key:       result.Task.Object.Key,
		Size:      result.Task.Object.Size,
		ETag:      result.Task.Object.ETag,
		Outcome:   ledger.Outcome(result.Outcome),
		Attempts:  result.Task.Attempts,
	}
	if result.Err != nil {
		rec.LastError = result.Err.Error()
	}

	if err := p.ledger.Save(rec); err != nil {
		p.logger.Error("Failed to save ledger record",
			zap.String("key", result.Task.Object.Key),
			zap.Error(err))
	}
}
