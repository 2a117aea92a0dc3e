// Package metrics exposes Prometheus collectors for report flagging,
// notifications and event fan-out.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// FlagsTotal counts classified result rows by flag and deciding rule.
	FlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathlab",
		Subsystem: "classifier",
		Name:      "flags_total",
		Help:      "Total number of result rows classified, labeled by flag and rule.",
	}, []string{"flag", "rule"})

	// CriticalEscalationsTotal counts low/high flags raised to critical by panic limits.
	CriticalEscalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pathlab",
		Subsystem: "classifier",
		Name:      "critical_escalations_total",
		Help:      "Total number of flags escalated to critical by template panic limits.",
	})

	// ReportsSavedTotal counts persisted reports by operation (create/update).
	ReportsSavedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathlab",
		Subsystem: "reports",
		Name:      "saved_total",
		Help:      "Total number of reports persisted, labeled by operation.",
	}, []string{"op"})

	// NotificationsTotal counts report-ready notifications by result.
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathlab",
		Subsystem: "notify",
		Name:      "notifications_total",
		Help:      "Total number of report-ready notifications, labeled by result.",
	}, []string{"result"})

	// EventsPublishedTotal counts report events by sink and result.
	EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathlab",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total number of report events published, labeled by sink and result.",
	}, []string{"sink", "result"})

	// EventSubscribers is the number of connected WebSocket subscribers.
	EventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathlab",
		Subsystem: "events",
		Name:      "subscribers",
		Help:      "Current number of WebSocket event subscribers.",
	})
)

// Register registers pathlab metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			FlagsTotal,
			CriticalEscalationsTotal,
			ReportsSavedTotal,
			NotificationsTotal,
			EventsPublishedTotal,
			EventSubscribers,
		)
	})
}
