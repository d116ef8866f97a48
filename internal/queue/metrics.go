package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	queuesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "queue",
			Name:      "active_queues",
			Help:      "Number of live model queues",
		},
	)

	tasksInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "queue",
			Name:      "inflight_tasks",
			Help:      "Currently executing inference tasks",
		},
		[]string{"model"},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "queue",
			Name:      "submissions_total",
			Help:      "Total accepted submissions",
		},
		[]string{"model"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "queue",
			Name:      "events_total",
			Help:      "Total emitted inference events",
		},
		[]string{"status"},
	)

	cancellationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "queue",
			Name:      "cancellations_total",
			Help:      "Total successful cancellations",
		},
	)
)

func init() {
	prometheus.MustRegister(queuesActive, tasksInflight, submissionsTotal, eventsTotal, cancellationsTotal)
}
