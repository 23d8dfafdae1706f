package switcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors of the switch engine. A nil *Metrics records nothing.
type Metrics struct {
	calculated *prometheus.CounterVec
	rejected   prometheus.Counter
	checkouts  *prometheus.CounterVec
	commits    *prometheus.CounterVec
	commitTime prometheus.Histogram
}

// NewMetrics creates and registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calculated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switchkit",
			Name:      "switch_items_calculated_total",
			Help:      "Switch items priced, by switch type.",
		}, []string{"switch_type"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "switchkit",
			Name:      "switch_items_rejected_total",
			Help:      "Switch items removed from carts by validation.",
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switchkit",
			Name:      "switch_checkouts_total",
			Help:      "Switch orders recorded, by result.",
		}, []string{"result"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switchkit",
			Name:      "switch_commits_total",
			Help:      "Switch order commits, by result.",
		}, []string{"result"}),
		commitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "switchkit",
			Name:      "switch_commit_duration_seconds",
			Help:      "Time spent applying a switch plan.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.calculated, m.rejected, m.checkouts, m.commits, m.commitTime)
	return m
}

const (
	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

func (m *Metrics) observeCalculated(switchType string) {
	if m != nil {
		m.calculated.WithLabelValues(switchType).Inc()
	}
}

func (m *Metrics) observeRejected() {
	if m != nil {
		m.rejected.Inc()
	}
}

func (m *Metrics) observeCheckout(err error) {
	if m != nil {
		m.checkouts.WithLabelValues(result(err)).Inc()
	}
}

func (m *Metrics) observeCommit(result string, d time.Duration) {
	if m != nil {
		m.commits.WithLabelValues(result).Inc()
		m.commitTime.Observe(d.Seconds())
	}
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
