// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bill_intelligence"

var (
	BillsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bills_extracted_total",
		Help:      "Bill records produced by the field extractor.",
	}, []string{"bill_type", "confidence"})

	BillsDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bills_degraded_total",
		Help:      "Documents stored as degraded records because no analyzer could read them.",
	})

	DuplicateDocuments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicate_documents_total",
		Help:      "Uploaded documents skipped because the user already has a bill with the same checksum.",
	})

	Forecasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecasts_total",
		Help:      "Forecasts generated, by algorithm.",
	}, []string{"algorithm"})

	ForecastDowngrades = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecast_downgrades_total",
		Help:      "Forecasts that failed numerically and fell back to the mock algorithm.",
	})

	CollaboratorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collaborator_errors_total",
		Help:      "Failed calls to the document analyzer or the bill store.",
	}, []string{"collaborator", "operation"})
)
