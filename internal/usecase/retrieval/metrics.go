package retrieval

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type retrievalMetrics struct {
	degradedTotal   metric.Int64Counter
	retrieveSeconds metric.Float64Histogram
}

func newRetrievalMetrics() retrievalMetrics {
	meter := otel.Meter("legal-rag")
	fallback := noop.NewMeterProvider().Meter("legal-rag")

	degraded, err := meter.Int64Counter("legal_rag_retriever_degraded_total",
		metric.WithDescription("Retriever calls that degraded to an empty candidate list"),
	)
	if err != nil {
		degraded, _ = fallback.Int64Counter("legal_rag_retriever_degraded_total")
	}

	duration, err := meter.Float64Histogram("legal_rag_hybrid_retrieve_duration_seconds",
		metric.WithDescription("Hybrid retrieval duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		duration, _ = fallback.Float64Histogram("legal_rag_hybrid_retrieve_duration_seconds")
	}

	return retrievalMetrics{degradedTotal: degraded, retrieveSeconds: duration}
}
