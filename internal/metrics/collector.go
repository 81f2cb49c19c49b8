package metrics

import (
	"net/http"
	"time"

	"swift2s3/internal/progress"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes metrics
type Collector struct {
	objectsTotal    *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	inflightWorkers prometheus.Gauge
	duration        prometheus.Histogram
	progressTracker *progress.Tracker
}

// New creates a new metrics collector
func New() *Collector {
	c := &Collector{
		objectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_objects_total",
				Help: "Total number of objects processed",
			},
			[]string{"outcome"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "transfer_bytes_total",
				Help: "Total bytes pushed to the destination",
			},
		),
		inflightWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "transfer_inflight_workers",
				Help: "Number of workers currently processing",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transfer_object_duration_seconds",
				Help:    "Time taken to transfer an object",
				Buckets: prometheus.DefBuckets,
			},
		),
		progressTracker: progress.NewTracker(),
	}

	prometheus.MustRegister(c.objectsTotal)
	prometheus.MustRegister(c.bytesTotal)
	prometheus.MustRegister(c.inflightWorkers)
	prometheus.MustRegister(c.duration)

	return c
}

// IncSucceeded counts a successful transfer and its bytes
func (c *Collector) IncSucceeded(bytes int64) {
	c.objectsTotal.WithLabelValues("succeeded").Inc()
	c.bytesTotal.Add(float64(bytes))
	c.progressTracker.AddSuccess(bytes)
}

// IncFailed counts a terminally failed transfer
func (c *Collector) IncFailed() {
	c.objectsTotal.WithLabelValues("failed").Inc()
	c.progressTracker.AddFailed()
}

// IncSkipped counts an unchanged object that was not re-pushed
func (c *Collector) IncSkipped(bytes int64) {
	c.objectsTotal.WithLabelValues("skipped").Inc()
	c.progressTracker.AddSkipped(bytes)
}

// SetInflightWorkers sets the number of inflight workers
func (c *Collector) SetInflightWorkers(count int) {
	c.inflightWorkers.Set(float64(count))
}

// ObserveDuration observes per-object transfer duration
func (c *Collector) ObserveDuration(duration time.Duration) {
	c.duration.Observe(duration.Seconds())
}

// StartServer starts the metrics HTTP server
func (c *Collector) StartServer(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, nil)
}

// GetProgressTracker returns the progress tracker
func (c *Collector) GetProgressTracker() *progress.Tracker {
	return c.progressTracker
}

// SetTotalCounts sets the total counts for progress tracking
func (c *Collector) SetTotalCounts(objects, bytes int64) {
	c.progressTracker.SetTotal(objects, bytes)
}
