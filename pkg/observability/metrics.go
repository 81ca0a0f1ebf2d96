// Package observability provides Prometheus metrics for monitoring calls
// made by the LKEAP adapters to the vendor APIs.
package observability

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Status label values for ProviderRequestsTotal.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	// ProviderRequestsTotal counts calls sent to the vendor by adapter, model and outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lkeap_provider_requests_total",
			Help: "Vendor requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records vendor call latency in seconds. For streams it
	// covers the time until response headers arrive.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lkeap_provider_latency_seconds",
			Help:    "Vendor latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens reported by the vendor by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lkeap_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// StreamFragmentsTotal counts emitted stream fragments by kind
	// (reasoning, content, terminal).
	StreamFragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lkeap_stream_fragments_total",
			Help: "Streamed fragments",
		},
		[]string{"model", "kind"},
	)

	// RerankDocumentsTotal counts reranked documents by outcome (kept/filtered).
	RerankDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lkeap_rerank_documents_total",
			Help: "Reranked documents",
		},
		[]string{"model", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		StreamFragmentsTotal,
		RerankDocumentsTotal,
	)
}

// ObserveRequest records the outcome and latency of one vendor call.
func ObserveRequest(provider, model string, started time.Time, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	ProviderRequestsTotal.WithLabelValues(provider, model, status).Inc()
	ProviderLatency.WithLabelValues(provider, model).Observe(time.Since(started).Seconds())
}

// ObserveTokens records vendor-reported token counts.
func ObserveTokens(provider, model string, input, output int) {
	if input > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "input").Add(float64(input))
	}
	if output > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "output").Add(float64(output))
	}
}

// WriteText writes every metric registered with the default gatherer to w in
// the Prometheus text exposition format.
func WriteText(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
