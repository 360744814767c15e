package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	unknownTool    = "_unknown"
)

// Metrics records tool invocations.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the dispatcher collectors on registerer. A nil
// registerer yields working but unregistered collectors.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_tool_invocations_total",
				Help: "Total number of tool invocations, by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_tool_invocation_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
	}
}

// observe records one finished invocation. Unknown tool names share a label
// so callers cannot grow the series set.
func (m *Metrics) observe(tool string, err error, elapsed time.Duration) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = string(KindOf(err))
		if KindOf(err) == KindNotFound {
			tool = unknownTool
		}
	}
	m.invocations.WithLabelValues(tool, outcome).Inc()
	m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
