// Package ratelimit caps aggregate transfer throughput across all workers
// with a shared token bucket.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Limiter enforces a global byte-rate ceiling. All workers share one
// Limiter; the bucket refills continuously at the configured rate and
// holds at most one second of tokens as burst. A nil *Limiter is valid
// and means unlimited.
type Limiter struct {
	limiter *rate.Limiter
	burst   int
}

// NewLimiter creates a limiter allowing bytesPerSecond aggregate throughput.
// bytesPerSecond <= 0 returns nil (no limit).
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(bytesPerSecond)
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		burst:   burst,
	}
}

// Acquire blocks until n bytes may be sent without exceeding the configured
// rate. Requests larger than the bucket's burst are consumed in burst-sized
// chunks, so an oversized request still completes at the configured rate
// instead of deadlocking. Safe for concurrent use.
func (l *Limiter) Acquire(ctx context.Context, n int64) error {
	if l == nil || n <= 0 {
		return nil
	}
	for n > 0 {
		chunk := n
		if chunk > int64(l.burst) {
			chunk = int64(l.burst)
		}
		if err := l.limiter.WaitN(ctx, int(chunk)); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Reader wraps r so that bytes read from it are charged against the
// limiter. The bytes a caller receives from Read have been paid for, so a
// push that streams through this reader cannot exceed the ceiling by more
// than one buffer's worth.
func (l *Limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if l == nil {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, limiter: l}
}

type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *Limiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := lr.limiter.Acquire(lr.ctx, int64(n)); werr != nil {
			return n, werr
		}
	}
	return n, err
}
