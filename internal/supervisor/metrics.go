package supervisor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the optional /metrics exposition (§4.J expansion): boot
// failures, rate-limiter usage, and scheduler job count, each a gauge
// since they are point-in-time snapshots rather than counters.
type Metrics struct {
	BootFailures  prometheus.Gauge
	RateLimitHour prometheus.Gauge
	RateLimitDay  prometheus.Gauge
	SchedulerJobs prometheus.Gauge
}

// NewMetrics registers every gauge with Prometheus's default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		BootFailures: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "concierge_boot_failures",
			Help: "Consecutive failed boots since the counter last reset, as read at startup.",
		}),
		RateLimitHour: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "concierge_rate_limit_hour_count",
			Help: "Admitted LLM requests in the current rolling hour window.",
		}),
		RateLimitDay: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "concierge_rate_limit_day_count",
			Help: "Admitted LLM requests in the current rolling day window.",
		}),
		SchedulerJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "concierge_scheduler_jobs",
			Help: "Number of scheduled jobs currently held in the job table.",
		}),
	}
}

// Handler serves the standard Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
