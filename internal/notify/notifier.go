// Package notify sends "report ready" messages to patients over WhatsApp.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.mau.fi/whatsmeow/types"
	"golang.org/x/time/rate"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/metrics"
)

// maxListedAbnormal caps the parameters named in a message.
const maxListedAbnormal = 5

// Sender delivers a text message.
type Sender interface {
	SendText(ctx context.Context, to types.JID, text string) error
}

// ReportNotifier formats and sends report-ready messages. Sends are rate
// limited and pass through a circuit breaker so a stuck WhatsApp session
// fails fast instead of queueing behind the timeout.
type ReportNotifier struct {
	sender  Sender
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	region  string
	labName string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewReportNotifier creates a notifier over sender.
func NewReportNotifier(cfg domain.NotificationsConfig, sender Sender, logger *logrus.Logger) *ReportNotifier {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "WhatsApp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from,
				"to_state":        to,
			}).Warn("Circuit breaker state changed")
		},
	})

	return &ReportNotifier{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		breaker: breaker,
		region:  cfg.DefaultRegion,
		labName: cfg.LabName,
		timeout: timeout,
		logger:  logger,
	}
}

// NotifyReportReady messages the patient on report. It waits for the rate
// limiter within the send timeout.
func (n *ReportNotifier) NotifyReportReady(ctx context.Context, report *domain.Report) error {
	jid, err := PhoneToJID(report.Patient.Phone, n.region)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("invalid_phone").Inc()
		return &domain.APIError{Code: domain.ErrNotification, Message: "cannot notify patient", Details: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.limiter.Wait(ctx); err != nil {
		metrics.NotificationsTotal.WithLabelValues("throttled").Inc()
		return fmt.Errorf("notification rate limit: %w", err)
	}

	text := FormatReportReady(report, n.labName)
	_, err = n.breaker.Execute(func() (interface{}, error) {
		return nil, n.sender.SendText(ctx, jid, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.NotificationsTotal.WithLabelValues("circuit_open").Inc()
		} else {
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("failed to send report notification: %w", err)
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	n.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"to":        jid.User,
	}).Info("Report-ready notification sent")
	return nil
}

// State returns the circuit breaker state.
func (n *ReportNotifier) State() gobreaker.State {
	return n.breaker.State()
}

// FormatReportReady renders the patient-facing message.
func FormatReportReady(report *domain.Report, labName string) string {
	var b strings.Builder

	name := strings.TrimSpace(report.Patient.Name)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hello %s,\n", name)
	fmt.Fprintf(&b, "Your %s report is ready.", report.TestName)
	if labName != "" {
		fmt.Fprintf(&b, " - %s", labName)
	}
	b.WriteString("\n")

	abnormal := report.AbnormalResults()
	if len(abnormal) == 0 {
		b.WriteString("All results are within the reference range.")
		return b.String()
	}

	fmt.Fprintf(&b, "%d result(s) outside the reference range:\n", len(abnormal))
	for i, row := range abnormal {
		if i == maxListedAbnormal {
			fmt.Fprintf(&b, "...and %d more\n", len(abnormal)-maxListedAbnormal)
			break
		}
		fmt.Fprintf(&b, "- %s: %s", row.Parameter, row.Value)
		if row.Unit != "" {
			fmt.Fprintf(&b, " %s", row.Unit)
		}
		fmt.Fprintf(&b, " (%s)\n", row.Flag.Symbol())
	}
	b.WriteString("Please consult your doctor.")
	return b.String()
}

// LogSender logs messages instead of sending them. Used when WhatsApp is
// not configured.
type LogSender struct {
	logger *logrus.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendText implements Sender.
func (s *LogSender) SendText(_ context.Context, to types.JID, text string) error {
	s.logger.WithFields(logrus.Fields{
		"to":     to.String(),
		"length": len(text),
	}).Info("WhatsApp disabled, notification logged only")
	return nil
}
