package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal   *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	tokenTotal   *prometheus.CounterVec
	pollTicks    *prometheus.CounterVec
	records      prometheus.Gauge
	sinkTotal    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsync_fetch_total",
				Help: "Data endpoint calls by endpoint and result",
			},
			[]string{"endpoint", "result"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketsync_fetch_duration_seconds",
				Help:    "Data endpoint latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		tokenTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsync_token_acquisitions_total",
				Help: "Network token acquisitions by kind and result",
			},
			[]string{"kind", "result"},
		),
		pollTicks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsync_poll_ticks_total",
				Help: "Polling loop firings",
			},
			[]string{"loop"},
		),
		records: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketsync_snapshot_records",
				Help: "Records in the last applied snapshot",
			},
		),
		sinkTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsync_sink_records_total",
				Help: "Records published to the snapshot sink",
			},
			[]string{"sink", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsync_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordFetch(endpoint, result string, seconds float64) {
	r.fetchTotal.WithLabelValues(endpoint, result).Inc()
	r.fetchLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (r *Recorder) RecordTokenAcquisition(kind, result string) {
	r.tokenTotal.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) RecordPollTick(loop string) {
	r.pollTicks.WithLabelValues(loop).Inc()
}

func (r *Recorder) RecordSnapshot(records int) {
	r.records.Set(float64(records))
}

func (r *Recorder) RecordSinkPublish(sink string, records int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.sinkTotal.WithLabelValues(sink, result).Add(float64(records))
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
