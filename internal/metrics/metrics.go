package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vidgallery"

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps unit tests free of registry plumbing.
type Metrics struct {
	authAttempts      *prometheus.CounterVec
	videoWrites       *prometheus.CounterVec
	shareLookups      *prometheus.CounterVec
	liveSubscriptions prometheus.Gauge
	snapshots         prometheus.Counter
	thumbnailMirrors  *prometheus.CounterVec
	registry          prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Sign-up and sign-in attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		videoWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_writes_total",
			Help:      "Gallery writes by operation and outcome.",
		}, []string{"operation", "outcome"}),
		shareLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_lookups_total",
			Help:      "Shared gallery lookups by outcome.",
		}, []string{"outcome"}),
		liveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscriptions",
			Help:      "Currently open gallery subscriptions.",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_delivered_total",
			Help:      "Gallery snapshots pushed to live subscribers.",
		}),
		thumbnailMirrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnail_mirrors_total",
			Help:      "Thumbnail mirror jobs by outcome.",
		}, []string{"outcome"}),
		registry: reg,
	}

	reg.MustRegister(
		m.authAttempts,
		m.videoWrites,
		m.shareLookups,
		m.liveSubscriptions,
		m.snapshots,
		m.thumbnailMirrors,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AuthAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) VideoWrite(operation, outcome string) {
	if m == nil {
		return
	}
	m.videoWrites.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ShareLookup(outcome string) {
	if m == nil {
		return
	}
	m.shareLookups.WithLabelValues(outcome).Inc()
}

// SubscriptionOpened and SubscriptionClosed track the live subscription gauge.
func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.liveSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.liveSubscriptions.Dec()
}

func (m *Metrics) SnapshotDelivered() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

func (m *Metrics) ThumbnailMirror(outcome string) {
	if m == nil {
		return
	}
	m.thumbnailMirrors.WithLabelValues(outcome).Inc()
}
