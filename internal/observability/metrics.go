package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// decode pipeline.
type Metrics struct {
	SamplesProcessed prometheus.Counter
	BitsDemodulated  prometheus.Counter
	CandidatesFramed prometheus.Counter
	FramingDiscards  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	AlertsConsolidated *prometheus.CounterVec // labels: kind={header,eom}, bursts={1,2,3}
	AlertConfidence    prometheus.Histogram
	AlertsPublished    prometheus.Counter
	PublishErrors      prometheus.Counter
}

// NewMetrics creates and registers all decoder metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SamplesProcessed,
		m.BitsDemodulated,
		m.CandidatesFramed,
		m.FramingDiscards,
		m.PipelineRunning,
		m.AlertsConsolidated,
		m.AlertConfidence,
		m.AlertsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SamplesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "same_codec",
			Name:      "samples_processed_total",
			Help:      "Total PCM samples fed to the demodulator.",
		}),
		BitsDemodulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "same_codec",
			Name:      "bits_demodulated_total",
			Help:      "Total bits produced by the demodulator, regardless of confidence.",
		}),
		CandidatesFramed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "same_codec",
			Name:      "candidates_framed_total",
			Help:      "Structurally complete header/EOM candidates found by the scanner.",
		}),
		FramingDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "same_codec",
			Name:      "framing_discards_total",
			Help:      "Candidates abandoned on framing errors (non-ASCII, oversize, bad prefix).",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "same_codec",
			Name:      "pipeline_running",
			Help:      "1 when the decode pipeline is active, 0 when shut down.",
		}),
		AlertsConsolidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "same_codec",
			Name:      "alerts_consolidated_total",
			Help:      "Finalized consolidations by kind and contributing burst count.",
		}, []string{"kind", "bursts"}),
		AlertConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "same_codec",
			Name:      "alert_confidence",
			Help:      "Confidence score distribution of emitted alerts.",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 1},
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "same_codec",
			Name:      "alerts_published_total",
			Help:      "Alerts written to the sink.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "same_codec",
			Name:      "publish_errors_total",
			Help:      "Failed sink writes.",
		}),
	}
}
