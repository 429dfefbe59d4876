package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StockMetrics counts inventory ledger operations.
type StockMetrics struct {
	operations *prometheus.CounterVec
}

// NewStockMetrics registers warehouse_stock_operations_total.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_stock_operations_total",
		Help: "Inventory ledger operations by operation and result.",
	}, []string{"operation", "result"})
	reg.MustRegister(operations)
	return &StockMetrics{operations: operations}
}

// Inc records one operation outcome, e.g. ("reserve", "applied").
func (m *StockMetrics) Inc(operation, result string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Inc()
}
