package worker

import (
	"context"
	"sync"

	"swift2s3/internal/ledger"
	"swift2s3/internal/ratelimit"
	"swift2s3/internal/storage"

	"go.uber.org/zap"
)

// Pool manages a fixed-size set of transfer workers fed from a task channel.
type Pool struct {
	size    int
	config  Config
	src     storage.Source
	dst     storage.Destination
	limiter *ratelimit.Limiter
	ledger  ledger.Store
	logger  *zap.Logger
	abort   context.CancelCauseFunc
}

// NewPool creates a new worker pool. abort is invoked by workers when a
// fatal, run-level error (expired credentials) means no further task can
// succeed; it may be nil.
func NewPool(
	size int,
	config Config,
	src storage.Source,
	dst storage.Destination,
	limiter *ratelimit.Limiter,
	ledgerStore ledger.Store,
	logger *zap.Logger,
	abort context.CancelCauseFunc,
) *Pool {
	return &Pool{
		size:    size,
		config:  config,
		src:     src,
		dst:     dst,
		limiter: limiter,
		ledger:  ledgerStore,
		logger:  logger,
		abort:   abort,
	}
}

// Run starts the workers and returns the result stream. Exactly one Result
// is emitted per task read from tasks; the stream closes once tasks is
// closed and all workers have drained. After cancellation workers stop
// executing transfers but still consume queued tasks, failing them with the
// cancellation cause, so no task is silently dropped.
func (p *Pool) Run(ctx context.Context, tasks <-chan Task) <-chan Result {
	results := make(chan Result, p.size)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, tasks, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan Task, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Debug("Worker started")

	processor := &TaskProcessor{
		config:  p.config,
		src:     p.src,
		dst:     p.dst,
		limiter: p.limiter,
		policy:  NewRetryPolicy(p.config.MaxAttempts, p.config.RetryBackoffMs),
		ledger:  p.ledger,
		logger:  logger,
		abort:   p.abort,
	}

	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				logger.Debug("Worker finished - no more tasks")
				return
			}

			results <- processor.Process(ctx, task)

		case <-ctx.Done():
			logger.Debug("Worker stopped - run cancelled")
			p.failRemaining(ctx, tasks, results)
			return
		}
	}
}

// failRemaining consumes tasks still queued after cancellation and emits a
// Failed result for each, carrying the cancellation cause.
func (p *Pool) failRemaining(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	cause := context.Cause(ctx)
	for task := range tasks {
		task.State = StateFailed
		results <- Result{Task: task, Outcome: OutcomeFailed, Err: cause}
	}
}
