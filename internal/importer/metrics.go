package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts reconciliation outcomes per layer. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	outcomes  *prometheus.CounterVec
	indexSize *prometheus.GaugeVec
	calls     *prometheus.HistogramVec
}

// NewMetrics registers the importer collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topoload",
			Name:      "import_outcomes_total",
			Help:      "Candidates reconciled, by layer and outcome.",
		}, []string{"layer", "outcome"}),
		indexSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "topoload",
			Name:      "index_records",
			Help:      "Stored records in the existing-item index at layer start.",
		}, []string{"layer"}),
		calls: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "topoload",
			Name:      "remote_call_seconds",
			Help:      "Latency of create and delete calls against the inventory system.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"layer", "operation"}),
	}
}

// ObserveOutcome counts one reconciled candidate.
func (m *Metrics) ObserveOutcome(layer string, o Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(layer, string(o)).Inc()
}

// SetIndexSize records how many stored records a layer started with.
func (m *Metrics) SetIndexSize(layer string, n int) {
	if m == nil {
		return
	}
	m.indexSize.WithLabelValues(layer).Set(float64(n))
}

// ObserveCall records the latency of one remote call.
func (m *Metrics) ObserveCall(layer, operation string, seconds float64) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(layer, operation).Observe(seconds)
}

// WriteTextfile dumps everything g gathers in the node-exporter textfile
// format, for batch runs that exit before any scrape.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
