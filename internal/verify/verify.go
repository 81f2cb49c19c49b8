// Package verify reconciles the transfer tally against the destination's
// actual object count once the worker pool has drained.
package verify

import (
	"context"
	"fmt"

	"swift2s3/internal/storage"
	"swift2s3/internal/worker"
)

// Report summarizes a reconciliation pass. It is informational only;
// remediation is left to the caller.
type Report struct {
	Matched          bool
	SourceCount      int64
	DestinationCount int64
	Skipped          int64
	Succeeded        int64
	Failed           int64
	Discrepancy      string
}

// Verifier cross-checks the aggregated results against an independent
// destination count.
type Verifier struct {
	dst    storage.Destination
	bucket string
}

// New creates a Verifier for the given destination bucket.
func New(dst storage.Destination, bucket string) *Verifier {
	return &Verifier{dst: dst, bucket: bucket}
}

// Reconcile tallies the terminal results and re-queries the destination
// object count. It reports, never fails: a count query error is recorded
// as a discrepancy with Matched=false.
func (v *Verifier) Reconcile(ctx context.Context, sourceCount int64, results []worker.Result) Report {
	report := Report{SourceCount: sourceCount}

	for _, r := range results {
		switch r.Outcome {
		case worker.OutcomeSkipped:
			report.Skipped++
		case worker.OutcomeSucceeded:
			report.Succeeded++
		case worker.OutcomeFailed:
			report.Failed++
		}
	}

	destCount, err := v.dst.CountObjects(ctx, v.bucket)
	if err != nil {
		report.Discrepancy = fmt.Sprintf("destination count unavailable: %v", err)
		return report
	}
	report.DestinationCount = destCount

	expected := sourceCount - report.Failed
	switch {
	case report.Failed > 0:
		report.Discrepancy = fmt.Sprintf("%d of %d objects failed to transfer", report.Failed, sourceCount)
	case destCount < expected:
		report.Discrepancy = fmt.Sprintf("destination holds %d objects, expected at least %d", destCount, expected)
	default:
		report.Matched = true
	}

	return report
}
