package unitofwork

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/refbridge/errors"
)

// uowMetrics holds Prometheus metrics for unit of work operations. A nil
// receiver disables all observation, so callers never branch on metrics
// being configured.
type uowMetrics struct {
	persistOps  *prometheus.CounterVec // by state: new, managed
	removeOps   prometheus.Counter
	loadOps     prometheus.Counter
	commits     prometheus.Counter
	clears      prometheus.Counter
	conflicts   prometheus.Counter
	flushedMgrs prometheus.Histogram
	queueDepth  *prometheus.GaugeVec // by queue: insert, update, remove
}

// newUOWMetrics creates and registers unit of work metrics with the provided
// registerer.
func newUOWMetrics(reg prometheus.Registerer) (*uowMetrics, error) {
	if reg == nil {
		return nil, nil // Metrics disabled
	}

	m := &uowMetrics{
		persistOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refbridge",
			Subsystem: "unitofwork",
			Name:      "persist_operations_total",
			Help:      "Total number of persist operations",
		}, []string{"state"}),

		removeOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refbridge",
			Subsystem: "unitofwork",
			Name:      "remove_operations_total",
			Help:      "Total number of remove operations",
		}),

		loadOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refbridge",
			Subsystem: "unitofwork",
			Name:      "load_operations_total",
			Help:      "Total number of loadReferences operations",
		}),

		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refbridge",
			Subsystem: "unitofwork",
			Name:      "commits_total",
			Help:      "Total number of effective commit cycles",
		}),

		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refbridge",
			Subsystem: "unitofwork",
			Name:      "clears_total",
			Help:      "Total number of effective clear cycles",
		}),

		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refbridge",
			Subsystem: "unitofwork",
			Name:      "scheduling_conflicts_total",
			Help:      "Total number of rejected scheduling attempts",
		}),

		flushedMgrs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "refbridge",
			Subsystem: "unitofwork",
			Name:      "flushed_managers",
			Help:      "Distinct managers flushed per commit",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "refbridge",
			Subsystem: "unitofwork",
			Name:      "queue_depth",
			Help:      "Scheduled references per queue",
		}, []string{"queue"}),
	}

	collectors := []prometheus.Collector{
		m.persistOps, m.removeOps, m.loadOps, m.commits, m.clears,
		m.conflicts, m.flushedMgrs, m.queueDepth,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "UnitOfWork", "newUOWMetrics", "register collector")
		}
	}

	return m, nil
}

func (m *uowMetrics) observePersist(isNew bool) {
	if m == nil {
		return
	}
	state := "managed"
	if isNew {
		state = "new"
	}
	m.persistOps.WithLabelValues(state).Inc()
}

func (m *uowMetrics) observeRemove() {
	if m == nil {
		return
	}
	m.removeOps.Inc()
}

func (m *uowMetrics) observeLoad() {
	if m == nil {
		return
	}
	m.loadOps.Inc()
}

func (m *uowMetrics) observeCommit(managerCount int) {
	if m == nil {
		return
	}
	m.commits.Inc()
	m.flushedMgrs.Observe(float64(managerCount))
}

func (m *uowMetrics) observeClear() {
	if m == nil {
		return
	}
	m.clears.Inc()
}

func (m *uowMetrics) observeConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// updateQueueMetrics refreshes the queue depth gauges.
func (u *UnitOfWork) updateQueueMetrics() {
	if u.metrics == nil {
		return
	}
	u.metrics.queueDepth.WithLabelValues("insert").Set(float64(u.inserts.len()))
	u.metrics.queueDepth.WithLabelValues("update").Set(float64(u.updates.len()))
	u.metrics.queueDepth.WithLabelValues("remove").Set(float64(u.removes.len()))
}
