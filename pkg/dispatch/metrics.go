package dispatch

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of a manager.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Counters
	tasksSubmitted  *prometheus.CounterVec
	tasksRejected   prometheus.Counter
	tasksExecuted   *prometheus.CounterVec
	tasksPreempted  *prometheus.CounterVec
	tasksTimedOut   prometheus.Counter
	tasksHandedOver prometheus.Counter
	workersReplaced prometheus.Counter

	// Gauges
	tasksPending prometheus.Gauge
	workersBusy  prometheus.Gauge

	// Histograms
	taskDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tasksSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netdispatch",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks accepted into the queue",
			},
			[]string{"priority"},
		),
		tasksRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "netdispatch",
				Name:      "tasks_rejected_total",
				Help:      "Total number of duplicate submissions dropped",
			},
		),
		tasksExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netdispatch",
				Name:      "tasks_executed_total",
				Help:      "Total number of tasks that left a worker, by outcome",
			},
			[]string{"priority", "outcome"},
		),
		tasksPreempted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netdispatch",
				Name:      "tasks_preempted_total",
				Help:      "Total number of running tasks paused or killed for critical work",
			},
			[]string{"action"},
		),
		tasksTimedOut: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "netdispatch",
				Name:      "tasks_timed_out_total",
				Help:      "Total number of tasks killed by the watchdog",
			},
		),
		tasksHandedOver: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "netdispatch",
				Name:      "tasks_handed_over_total",
				Help:      "Total number of pinned tasks returned to the queue by a foreign worker",
			},
		),
		workersReplaced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "netdispatch",
				Name:      "workers_replaced_total",
				Help:      "Total number of workers abandoned by the watchdog",
			},
		),
		tasksPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "netdispatch",
				Name:      "tasks_pending",
				Help:      "Current number of pending tasks",
			},
		),
		workersBusy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "netdispatch",
				Name:      "workers_busy",
				Help:      "Current number of workers running an operation",
			},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "netdispatch",
				Name:      "task_duration_seconds",
				Help:      "Task execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"priority"},
		),
	}

	collectors := []prometheus.Collector{
		m.tasksSubmitted,
		m.tasksRejected,
		m.tasksExecuted,
		m.tasksPreempted,
		m.tasksTimedOut,
		m.tasksHandedOver,
		m.workersReplaced,
		m.tasksPending,
		m.workersBusy,
		m.taskDuration,
	}
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) submitted(p Priority) {
	if m == nil {
		return
	}
	m.tasksSubmitted.WithLabelValues(p.String()).Inc()
}

func (m *Metrics) rejected() {
	if m == nil {
		return
	}
	m.tasksRejected.Inc()
}

func (m *Metrics) executed(p Priority, outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.tasksExecuted.WithLabelValues(p.String(), string(outcome)).Inc()
	if outcome != OutcomeDiscarded {
		m.taskDuration.WithLabelValues(p.String()).Observe(d.Seconds())
	}
}

func (m *Metrics) preempted(action string) {
	if m == nil {
		return
	}
	m.tasksPreempted.WithLabelValues(action).Inc()
}

func (m *Metrics) timedOut() {
	if m == nil {
		return
	}
	m.tasksTimedOut.Inc()
}

func (m *Metrics) handedOver() {
	if m == nil {
		return
	}
	m.tasksHandedOver.Inc()
}

func (m *Metrics) replaced() {
	if m == nil {
		return
	}
	m.workersReplaced.Inc()
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.tasksPending.Set(float64(n))
}

func (m *Metrics) busy(delta float64) {
	if m == nil {
		return
	}
	m.workersBusy.Add(delta)
}
