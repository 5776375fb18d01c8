// Package metrics defines the Prometheus collectors for tweet ingestion and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProcessingStarted        prometheus.Counter
	ProcessingFailed         prometheus.Counter
	MissingSnapshot          prometheus.Counter
	RecoveryFailed           prometheus.Counter
	StreamRecordsSkipped     *prometheus.CounterVec
	QuoteTweetsIngested      prometheus.Counter
	QuoteTweetsAlreadyStored prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. Pass
// prometheus.NewRegistry() in tests to avoid global registration.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ProcessingStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweet_processing_started_total",
			Help: "Tweet records marked as processing started.",
		}),
		ProcessingFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweet_processing_failed_total",
			Help: "Tweet records whose processing failed and got an error status.",
		}),
		MissingSnapshot: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweet_processing_missing_snapshot_total",
			Help: "Creation notifications delivered without a record snapshot.",
		}),
		RecoveryFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweet_processing_recovery_failed_total",
			Help: "Failures where the error status itself could not be written.",
		}),
		StreamRecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweet_stream_records_skipped_total",
			Help: "Stream records ignored because they are not creations, by event name.",
		}, []string{"event_name"}),
		QuoteTweetsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_tweets_ingested_total",
			Help: "Quote tweets written as new tweet records by the poller.",
		}),
		QuoteTweetsAlreadyStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_tweets_already_stored_total",
			Help: "Quote tweets the poller found already stored.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.ProcessingStarted,
		m.ProcessingFailed,
		m.MissingSnapshot,
		m.RecoveryFailed,
		m.StreamRecordsSkipped,
		m.QuoteTweetsIngested,
		m.QuoteTweetsAlreadyStored,
	)
	return m
}

// Handler returns the scrape handler for the registry the metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncStarted() {
	if m != nil {
		m.ProcessingStarted.Inc()
	}
}

func (m *Metrics) IncFailed() {
	if m != nil {
		m.ProcessingFailed.Inc()
	}
}

func (m *Metrics) IncMissingSnapshot() {
	if m != nil {
		m.MissingSnapshot.Inc()
	}
}

func (m *Metrics) IncRecoveryFailed() {
	if m != nil {
		m.RecoveryFailed.Inc()
	}
}

func (m *Metrics) IncSkipped(eventName string) {
	if m != nil {
		m.StreamRecordsSkipped.WithLabelValues(eventName).Inc()
	}
}

func (m *Metrics) AddIngested(created, existing int) {
	if m != nil {
		m.QuoteTweetsIngested.Add(float64(created))
		m.QuoteTweetsAlreadyStored.Add(float64(existing))
	}
}
