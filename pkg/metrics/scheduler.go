package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Number of push tasks currently armed
	SchedulerPendingTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_pending_tasks",
		Help: "Number of armed per-user tasks",
	})

	// Task lifecycle events: scheduled, replaced, cancelled, fired, claim_failed, restored, dropped
	SchedulerTaskEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_task_events_total",
		Help: "Scheduler task lifecycle events",
	}, []string{"event"})
)

func Init() {
	prometheus.MustRegister(
		SchedulerPendingTasks,
		SchedulerTaskEvents,
	)
}
