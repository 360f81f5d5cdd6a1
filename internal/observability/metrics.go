package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the posting core.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	postingsTotal    *prometheus.CounterVec
	postingErrors    *prometheus.CounterVec
	reversalsTotal   prometheus.Counter
	closeTransitions *prometheus.CounterVec
}

// NewMetrics initialises the registry and the core counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerline_postings_total",
		Help: "Posted transactions by document type.",
	}, []string{"doc_type"})
	postingErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerline_posting_errors_total",
		Help: "Rejected postings by document type.",
	}, []string{"doc_type"})
	reversals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerline_reversals_total",
		Help: "Reversal transactions created.",
	})
	closeTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerline_close_transitions_total",
		Help: "Period close state transitions by action.",
	}, []string{"action"})
	registry.MustRegister(postings, postingErrors, reversals, closeTransitions)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		postingsTotal:    postings,
		postingErrors:    postingErrors,
		reversalsTotal:   reversals,
		closeTransitions: closeTransitions,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObservePosting records one posted transaction.
func (m *Metrics) ObservePosting(docType string) {
	if m == nil {
		return
	}
	m.postingsTotal.WithLabelValues(docType).Inc()
}

// ObservePostingError records one rejected posting.
func (m *Metrics) ObservePostingError(docType string) {
	if m == nil {
		return
	}
	m.postingErrors.WithLabelValues(docType).Inc()
}

// ObserveReversal records one reversal transaction.
func (m *Metrics) ObserveReversal() {
	if m == nil {
		return
	}
	m.reversalsTotal.Inc()
}

// ObserveCloseTransition records one period close state change.
func (m *Metrics) ObserveCloseTransition(action string) {
	if m == nil {
		return
	}
	m.closeTransitions.WithLabelValues(action).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}
