package amm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for pool operations. A nil *Metrics
// records nothing.
type Metrics struct {
	Operations    *prometheus.CounterVec
	SwapVolumeIn  *prometheus.CounterVec
	SwapVolumeOut *prometheus.CounterVec
}

// NewMetrics registers the pool collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Pool operations by kind and result code",
			},
			[]string{"op", "result"},
		),
		SwapVolumeIn: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "pool",
				Name:      "swap_in_total",
				Help:      "Input amount paid into pools by swaps, in base units",
			},
			[]string{"pool", "direction"},
		),
		SwapVolumeOut: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "pool",
				Name:      "swap_out_total",
				Help:      "Output amount paid out of pools by swaps, in base units",
			},
			[]string{"pool", "direction"},
		),
	}
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, Code(err)).Inc()
}

func (m *Metrics) swap(pool, direction string, amountIn, amountOut uint64) {
	if m == nil {
		return
	}
	m.SwapVolumeIn.WithLabelValues(pool, direction).Add(float64(amountIn))
	m.SwapVolumeOut.WithLabelValues(pool, direction).Add(float64(amountOut))
}
