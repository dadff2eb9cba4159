package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals          *prometheus.CounterVec
	skips            *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	published        *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	scanDuration     *prometheus.HistogramVec
	lastStrength     *prometheus.GaugeVec
	lastPrice        *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_signals_total",
				Help: "Total number of signals produced by scans",
			},
			[]string{"timeframe", "sentiment"},
		),
		skips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_skips_total",
				Help: "Total number of symbols skipped during scans",
			},
			[]string{"reason"},
		),
		providerRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_provider_requests_total",
				Help: "Total number of indicator provider requests",
			},
			[]string{"status"},
		),
		published: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_published_total",
				Help: "Total number of signals delivered to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalscan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		scanDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "signalscan_scan_duration_seconds",
				Help: "Duration of full scan passes in seconds",
				// Scans pace themselves against the provider window, so
				// whole passes run seconds to tens of minutes.
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"timeframe"},
		),
		lastStrength: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalscan_last_strength",
				Help: "Strength of the most recent signal for a symbol",
			},
			[]string{"symbol"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalscan_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordSignal records a produced signal by timeframe and sentiment.
func (r *Recorder) RecordSignal(timeframe, sentiment string) {
	r.signals.WithLabelValues(timeframe, sentiment).Inc()
}

// RecordSkip records a skipped symbol by reason.
func (r *Recorder) RecordSkip(reason string) {
	r.skips.WithLabelValues(reason).Inc()
}

// RecordProviderRequest records an indicator provider request outcome.
func (r *Recorder) RecordProviderRequest(status string) {
	r.providerRequests.WithLabelValues(status).Inc()
}

// RecordPublished records a signal delivered to a backend.
func (r *Recorder) RecordPublished(backend, symbol string) {
	r.published.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordScanDuration records the duration of one full scan pass.
func (r *Recorder) RecordScanDuration(timeframe string, seconds float64) {
	r.scanDuration.WithLabelValues(timeframe).Observe(seconds)
}

// RecordLastStrength records the strength of a symbol's latest signal.
func (r *Recorder) RecordLastStrength(symbol string, strength float64) {
	r.lastStrength.WithLabelValues(symbol).Set(strength)
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}
