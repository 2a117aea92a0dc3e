// Package events fans report lifecycle events out to WebSocket subscribers
// and, optionally, a RabbitMQ exchange.
package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/metrics"
)

// Event types
const (
	TypeReportCreated   = "report.created"
	TypeReportUpdated   = "report.updated"
	TypeReportFinalized = "report.finalized"
)

// Event is a report lifecycle notification. It carries the summary a lab
// dashboard needs, not the full report document.
type Event struct {
	Type          string              `json:"type"`
	ReportID      string              `json:"report_id"`
	LabID         string              `json:"lab_id"`
	TestName      string              `json:"test_name"`
	Status        domain.ReportStatus `json:"status"`
	AbnormalCount int                 `json:"abnormal_count"`
	Critical      bool                `json:"critical"`
	Timestamp     time.Time           `json:"timestamp"`
}

// NewReportEvent builds an event from a persisted report.
func NewReportEvent(eventType string, report *domain.Report) Event {
	critical := false
	for _, row := range report.Results {
		if row.Flag == domain.FlagCritical {
			critical = true
			break
		}
	}
	return Event{
		Type:          eventType,
		ReportID:      report.ID,
		LabID:         report.LabID,
		TestName:      report.TestName,
		Status:        report.Status,
		AbnormalCount: report.AbnormalCount,
		Critical:      critical,
		Timestamp:     time.Now().UTC(),
	}
}

// Publisher delivers events to one sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NamedPublisher is a Publisher labelled for logs and metrics.
type NamedPublisher struct {
	Name string
	Publisher
}

// Fanout publishes each event to every sink. A failing sink is logged and
// counted but does not stop delivery to the others.
type Fanout struct {
	sinks  []NamedPublisher
	logger *logrus.Logger
}

// NewFanout creates a fanout over the given sinks.
func NewFanout(logger *logrus.Logger, sinks ...NamedPublisher) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

// Publish implements Publisher. It always returns nil.
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			metrics.EventsPublishedTotal.WithLabelValues(sink.Name, "error").Inc()
			f.logger.WithFields(logrus.Fields{
				"sink":      sink.Name,
				"event":     event.Type,
				"report_id": event.ReportID,
			}).WithError(err).Warn("Failed to publish report event")
			continue
		}
		metrics.EventsPublishedTotal.WithLabelValues(sink.Name, "ok").Inc()
	}
	return nil
}
