// Package metrics holds the Prometheus collectors of the dose workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	doses        *prometheus.CounterVec
	restrictions *prometheus.CounterVec
	conflicts    prometheus.Counter
	refusals     *prometheus.CounterVec
	reminders    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		doses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtracker",
			Name:      "doses_committed_total",
			Help:      "Doses written to the log, by status.",
		}, []string{"status"}),
		restrictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtracker",
			Name:      "safety_restrictions_total",
			Help:      "Safety restrictions raised by dose requests, by kind.",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medtracker",
			Name:      "store_conflicts_total",
			Help:      "Commits refused because the stored state changed after it was read.",
		}),
		refusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtracker",
			Name:      "dose_requests_refused_total",
			Help:      "Dose requests refused before the safety check, by reason.",
		}, []string{"reason"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtracker",
			Name:      "reminders_total",
			Help:      "Next-dose reminders attempted, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.doses, m.restrictions, m.conflicts, m.refusals, m.reminders)
	}
	return m
}

func (m *Metrics) DoseCommitted(status string) {
	if m == nil {
		return
	}
	m.doses.WithLabelValues(status).Inc()
}

func (m *Metrics) Restriction(timeRestricted, quotaRestricted bool) {
	if m == nil {
		return
	}
	if timeRestricted {
		m.restrictions.WithLabelValues("time").Inc()
	}
	if quotaRestricted {
		m.restrictions.WithLabelValues("quota").Inc()
	}
}

func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) Refused(reason string) {
	if m == nil {
		return
	}
	m.refusals.WithLabelValues(reason).Inc()
}

func (m *Metrics) Reminder(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.reminders.WithLabelValues(result).Inc()
}
