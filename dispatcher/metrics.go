package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stages as reported by the failures counter.
const (
	StageDecode    = "decode"
	StageResolve   = "resolve"
	StageAggregate = "aggregate"
	StagePublish   = "publish"
	StagePanic     = "panic"
)

// Metrics are the Prometheus collectors updated by a Dispatcher.
type Metrics struct {
	frames    prometheus.Counter
	ignored   prometheus.Counter
	published prometheus.Counter
	failures  *prometheus.CounterVec
	inFlight  prometheus.Gauge
}

// NewMetrics creates the dispatcher collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		frames: factory.NewCounter(prometheus.CounterOpts{
			Name: "zkill_feed_frames_total",
			Help: "Total frames received from the killmail feed.",
		}),
		ignored: factory.NewCounter(prometheus.CounterOpts{
			Name: "zkill_kills_ignored_total",
			Help: "Total kills not involving the watched entity.",
		}),
		published: factory.NewCounter(prometheus.CounterOpts{
			Name: "zkill_notifications_published_total",
			Help: "Total notifications accepted by the webhook or logged in dry-run mode.",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zkill_pipeline_failures_total",
			Help: "Total frames dropped by pipeline stage.",
		}, []string{"stage"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "zkill_pipeline_in_flight",
			Help: "Frames currently being processed.",
		}),
	}
}
