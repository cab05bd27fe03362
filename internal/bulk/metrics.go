package bulk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/greenbudget/backend/internal/bulk")

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenbudget",
		Subsystem: "bulk",
		Name:      "operations_total",
		Help:      "Bulk operations by kind, operation and result.",
	}, []string{"kind", "operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "greenbudget",
		Subsystem: "bulk",
		Name:      "operation_duration_seconds",
		Help:      "Duration of bulk operations including the transaction.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"kind", "operation"})

	rowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenbudget",
		Subsystem: "bulk",
		Name:      "rows_total",
		Help:      "Rows created, updated or deleted by bulk operations.",
	}, []string{"kind", "operation"})

	recomputedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "greenbudget",
		Subsystem: "bulk",
		Name:      "recomputed_nodes",
		Help:      "Nodes whose derived values changed per bulk operation.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 500},
	})

	conflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "greenbudget",
		Subsystem: "bulk",
		Name:      "order_conflict_retries_total",
		Help:      "Order keys that had to be recomputed after a uniqueness violation.",
	})
)
