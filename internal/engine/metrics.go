package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics is the Prometheus collector group for the executor, built
// the way the teacher's internal/platform/metrics.Metrics groups collectors
// per subsystem and registers them once at construction.
type engineMetrics struct {
	submissionsAccepted prometheus.Counter
	submissionsRejected prometheus.Counter
	inFlight            prometheus.Gauge
	intakeDepth         prometheus.GaugeFunc
	activeWorkers       prometheus.Gauge
	executionDuration   *prometheus.HistogramVec
	taskFaults          prometheus.Counter
	postHookFaults      prometheus.Counter
	asyncFutureFaults   prometheus.Counter
	registrySize prometheus.GaugeFunc
	janitorReaped prometheus.Counter
}

// newEngineMetrics builds and registers the engine's collectors against reg.
// intakeDepthFn and registrySizeFn are polled lazily by Prometheus on
// scrape, avoiding a background goroutine just to keep a gauge in sync.
func newEngineMetrics(reg prometheus.Registerer, intakeDepthFn func() float64, registrySizeFn func() float64) *engineMetrics {
	m := &engineMetrics{
		submissionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "submissions_accepted_total",
			Help: "Submissions accepted by the executor.",
		}),
		submissionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "submissions_rejected_total",
			Help: "Submissions rejected for back-pressure.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "in_flight",
			Help: "Accepted but not yet completed submissions.",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "active_workers",
			Help: "Workers currently executing a task body.",
		}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "execution_duration_seconds",
			Help:    "Task body execution duration by shape.",
			Buckets: prometheus.DefBuckets,
		}, []string{"shape"}),
		taskFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "task_faults_total",
			Help: "Task bodies that returned or threw an error.",
		}),
		postHookFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "post_hook_faults_total",
			Help: "Post-hooks that returned or threw an error.",
		}),
		asyncFutureFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "async_future_faults_total",
			Help: "Async futures that settled with an error.",
		}),
		janitorReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordertask", Subsystem: "engine", Name: "janitor_reaped_total",
			Help: "Idle identities evicted by the registry janitor.",
		}),
	}

	m.intakeDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "ordertask", Subsystem: "engine", Name: "intake_depth",
		Help: "Ready queues currently buffered in intake.",
	}, intakeDepthFn)

	m.registrySize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "ordertask", Subsystem: "engine", Name: "registry_size",
		Help: "Identities currently tracked by the queue registry.",
	}, registrySizeFn)

	if reg != nil {
		reg.MustRegister(
			m.submissionsAccepted, m.submissionsRejected, m.inFlight, m.activeWorkers,
			m.executionDuration, m.taskFaults, m.postHookFaults, m.asyncFutureFaults,
			m.janitorReaped, m.intakeDepth, m.registrySize,
		)
	}

	return m
}

func (m *engineMetrics) observeActiveWorkers(delta int64) {
	if delta > 0 {
		m.activeWorkers.Inc()
	} else {
		m.activeWorkers.Dec()
	}
}

func (m *engineMetrics) observeExecution(shape Shape, d time.Duration) {
	m.executionDuration.WithLabelValues(string(shape)).Observe(d.Seconds())
}

// timedInvoke runs fn and records its wall-clock duration against the
// envelope's shape regardless of outcome.
func timedInvoke(m *engineMetrics, env *Envelope, fn func() *invocationResult) *invocationResult {
	start := time.Now()
	result := fn()
	m.observeExecution(env.Shape, time.Since(start))
	return result
}
