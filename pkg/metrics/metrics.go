// Package metrics exposes Prometheus collectors for the credential and
// namespace subsystems, registered against the default registry the way
// the teacher's pkg/metrics does.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CredentialsIssued counts credentials built, labeled by subsystem
	// (job, bcast, net).
	CredentialsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_credentials_issued_total",
			Help: "Total number of credentials issued",
		},
		[]string{"kind"},
	)

	// CredentialsVerified counts successful verifications.
	CredentialsVerified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_credentials_verified_total",
			Help: "Total number of credentials verified successfully",
		},
		[]string{"kind"},
	)

	// CredentialsRejected counts verification failures, labeled by the
	// operational error code.
	CredentialsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_credentials_rejected_total",
			Help: "Total number of credentials rejected by error code",
		},
		[]string{"kind", "code"},
	)

	// BcastReplayRejections counts bcast extract calls that failed the
	// replay-cache check.
	BcastReplayRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bastion_bcast_replay_rejections_total",
			Help: "Total number of bcast credential blocks rejected as replays",
		},
	)

	// BcastCacheSize is the live replay-cache entry count.
	BcastCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bastion_bcast_cache_size",
			Help: "Current number of live entries in the bcast replay cache",
		},
	)

	// NamespaceCreateDuration measures per-job namespace creation latency.
	NamespaceCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bastion_namespace_create_duration_seconds",
			Help:    "Time taken to create a per-job mount namespace",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NamespaceOperations counts create/join/delete calls by outcome.
	NamespaceOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_namespace_operations_total",
			Help: "Total number of namespace engine operations by op and outcome",
		},
		[]string{"op", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(CredentialsIssued)
	prometheus.MustRegister(CredentialsVerified)
	prometheus.MustRegister(CredentialsRejected)
	prometheus.MustRegister(BcastReplayRejections)
	prometheus.MustRegister(BcastCacheSize)
	prometheus.MustRegister(NamespaceCreateDuration)
	prometheus.MustRegister(NamespaceOperations)
}

// Handler returns the HTTP handler serving the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time against histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time against the histogram in vec
// selected by labels.
func (t *Timer) ObserveDurationVec(vec *prometheus.HistogramVec, labels ...string) {
	vec.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time without recording it.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
