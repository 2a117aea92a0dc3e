package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/events"
	"github.com/pathlab-mcp-server/internal/logging"
	"github.com/pathlab-mcp-server/internal/metrics"
)

// TemplateSource resolves templates by ID.
type TemplateSource interface {
	Resolve(ctx context.Context, id string) (*domain.TestTemplate, error)
}

// Notifier tells a patient their report is ready.
type Notifier interface {
	NotifyReportReady(ctx context.Context, report *domain.Report) error
}

// ErrTemplatesUnavailable is returned when a request names a template but
// the service runs without template storage.
var ErrTemplatesUnavailable = errors.New("templates are not available")

// CreateReportRequest is the input to CreateReport.
type CreateReportRequest struct {
	LabID      string              `json:"lab_id"`
	TemplateID string              `json:"template_id,omitempty"`
	TestName   string              `json:"test_name"`
	Patient    domain.PatientInfo  `json:"patient"`
	Results    []domain.ResultRow  `json:"results"`
	Status     domain.ReportStatus `json:"status,omitempty"`
}

// ReportService runs the report create and update flows: every result row
// is (re)flagged before the report is persisted.
type ReportService struct {
	store     domain.ReportRepository
	templates TemplateSource
	flags     *FlagService
	events    events.Publisher
	notifier  Notifier
	logger    *logrus.Logger

	pending sync.WaitGroup
}

// ReportServiceOption configures optional collaborators.
type ReportServiceOption func(*ReportService)

// WithTemplates enables template-backed reports.
func WithTemplates(src TemplateSource) ReportServiceOption {
	return func(s *ReportService) { s.templates = src }
}

// WithEvents publishes report lifecycle events.
func WithEvents(pub events.Publisher) ReportServiceOption {
	return func(s *ReportService) { s.events = pub }
}

// WithNotifier sends report-ready notifications on finalisation.
func WithNotifier(n Notifier) ReportServiceOption {
	return func(s *ReportService) { s.notifier = n }
}

// NewReportService creates a report service.
func NewReportService(store domain.ReportRepository, flags *FlagService, logger *logrus.Logger, opts ...ReportServiceOption) *ReportService {
	s := &ReportService{
		store:  store,
		flags:  flags,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReport flags, validates and stores a new report.
func (s *ReportService) CreateReport(ctx context.Context, req CreateReportRequest) (*domain.Report, error) {
	tmpl, err := s.resolveTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	report := &domain.Report{
		LabID:      req.LabID,
		TemplateID: req.TemplateID,
		TestName:   req.TestName,
		Patient:    req.Patient,
		Results:    req.Results,
		Status:     req.Status,
	}
	report.Patient.Gender = domain.ParseGender(string(req.Patient.Gender))
	if report.Status == "" {
		report.Status = domain.ReportDraft
	}
	if tmpl != nil {
		if report.TestName == "" {
			report.TestName = tmpl.Name
		}
		if len(report.Results) == 0 {
			report.Results = rowsFromTemplate(tmpl)
		}
	}

	s.applyFlags(report, tmpl)

	if err := report.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	metrics.ReportsSavedTotal.WithLabelValues("create").Inc()

	logging.Entry(ctx, s.logger).WithFields(logrus.Fields{
		"report_id": report.ID,
		"lab_id":    report.LabID,
		"rows":      len(report.Results),
		"abnormal":  report.AbnormalCount,
	}).Info("Report created")

	s.publish(ctx, events.TypeReportCreated, report)
	if report.Status == domain.ReportFinal {
		s.publish(ctx, events.TypeReportFinalized, report)
		s.notify(ctx, report)
	}
	return report, nil
}

// UpdateResults replaces a report's rows and recomputes every flag. An empty
// status keeps the current one. Moving from draft to final triggers the
// report-ready notification.
func (s *ReportService) UpdateResults(ctx context.Context, id string, rows []domain.ResultRow, status domain.ReportStatus) (*domain.Report, error) {
	report, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}

	tmpl, err := s.resolveTemplate(ctx, report.TemplateID)
	if err != nil {
		return nil, err
	}

	previous := report.Status
	report.Results = rows
	if status != "" {
		report.Status = status
	}
	s.applyFlags(report, tmpl)

	if err := report.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	metrics.ReportsSavedTotal.WithLabelValues("update").Inc()

	logging.Entry(ctx, s.logger).WithFields(logrus.Fields{
		"report_id": report.ID,
		"status":    report.Status,
		"abnormal":  report.AbnormalCount,
	}).Info("Report results updated")

	s.publish(ctx, events.TypeReportUpdated, report)
	if previous != domain.ReportFinal && report.Status == domain.ReportFinal {
		s.publish(ctx, events.TypeReportFinalized, report)
		s.notify(ctx, report)
	}
	return report, nil
}

// GetReport returns a stored report.
func (s *ReportService) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	return s.store.Get(ctx, id)
}

// ListReports returns a page of reports and the total count.
func (s *ReportService) ListReports(ctx context.Context, limit, offset int) ([]*domain.Report, int, error) {
	if limit <= 0 {
		limit = 50
	}
	list, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return list, total, nil
}

// Flags exposes the underlying flag service.
func (s *ReportService) Flags() *FlagService {
	return s.flags
}

func (s *ReportService) applyFlags(report *domain.Report, tmpl *domain.TestTemplate) {
	report.Results = s.flags.FlagRows(report.Results, report.Patient.Gender, tmpl)
	report.AbnormalCount = CountAbnormal(report.Results)
}

func (s *ReportService) resolveTemplate(ctx context.Context, id string) (*domain.TestTemplate, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	if s.templates == nil {
		return nil, ErrTemplatesUnavailable
	}
	return s.templates.Resolve(ctx, id)
}

func (s *ReportService) publish(ctx context.Context, eventType string, report *domain.Report) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events.NewReportEvent(eventType, report)); err != nil {
		s.logger.WithError(err).WithField("report_id", report.ID).Warn("Failed to publish report event")
	}
}

// notify sends in the background on a context detached from the request,
// so a slow or rate-limited sender never delays the save. It never fails the
// surrounding operation.
func (s *ReportService) notify(ctx context.Context, report *domain.Report) {
	if s.notifier == nil || report.Patient.Phone == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	snapshot := *report
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.notifier.NotifyReportReady(ctx, &snapshot); err != nil {
			logging.Entry(ctx, s.logger).WithError(err).WithField("report_id", snapshot.ID).Warn("Report-ready notification failed")
		}
	}()
}

// Wait blocks until in-flight report-ready notifications have finished.
func (s *ReportService) Wait() {
	s.pending.Wait()
}

func rowsFromTemplate(tmpl *domain.TestTemplate) []domain.ResultRow {
	var rows []domain.ResultRow
	for _, section := range tmpl.Sections {
		for _, p := range section.Parameters {
			rows = append(rows, domain.ResultRow{
				Parameter:      p.Name,
				Section:        section.Name,
				Unit:           p.Unit,
				ReferenceRange: p.ReferenceRange,
			})
		}
	}
	return rows
}
