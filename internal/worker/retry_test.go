package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("connection reset by peer")

func TestRetryPolicyTransientRetriesWithExponentialDelay(t *testing.T) {
	p := NewRetryPolicy(5, 100)

	d := p.Decide(1, errTransient)
	assert.True(t, d.Retry)
	assert.Equal(t, 100*time.Millisecond, d.Delay)

	d = p.Decide(2, errTransient)
	assert.True(t, d.Retry)
	assert.Equal(t, 200*time.Millisecond, d.Delay)

	d = p.Decide(3, errTransient)
	assert.True(t, d.Retry)
	assert.Equal(t, 400*time.Millisecond, d.Delay)
}

func TestRetryPolicyGivesUpAtMaxAttempts(t *testing.T) {
	p := NewRetryPolicy(3, 100)

	assert.True(t, p.Decide(2, errTransient).Retry)
	assert.False(t, p.Decide(3, errTransient).Retry)
	assert.False(t, p.Decide(10, errTransient).Retry)
}

func TestRetryPolicyFatalErrorsAlwaysGiveUp(t *testing.T) {
	p := NewRetryPolicy(10, 100)

	fatal := []error{
		errors.New("malformed input"),
		minio.ErrorResponse{Code: "ExpiredToken"},
		minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404},
	}
	for _, err := range fatal {
		assert.False(t, p.Decide(1, err).Retry, "expected give-up for %v", err)
	}
}

func TestRetryPolicyNilError(t *testing.T) {
	p := NewRetryPolicy(3, 100)
	assert.False(t, p.Decide(1, nil).Retry)
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	p := NewRetryPolicy(30, 1000)

	d := p.Decide(12, errTransient)
	assert.True(t, d.Retry)
	assert.Equal(t, 30*time.Second, d.Delay)
}

func TestRetryPolicyThrottlingIsRetryable(t *testing.T) {
	p := NewRetryPolicy(3, 100)

	d := p.Decide(1, minio.ErrorResponse{Code: "SlowDown", StatusCode: 503})
	assert.True(t, d.Retry)
}
