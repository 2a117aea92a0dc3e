package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/events"
)

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Save(ctx context.Context, report *domain.Report) error {
	args := m.Called(ctx, report)
	if report.ID == "" {
		report.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *MockReportRepository) Get(ctx context.Context, id string) (*domain.Report, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockReportRepository) List(ctx context.Context, limit, offset int) ([]*domain.Report, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*domain.Report), args.Error(1)
}

func (m *MockReportRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockReportRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) Create(ctx context.Context, tmpl *domain.TestTemplate) error {
	return m.Called(ctx, tmpl).Error(0)
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, id string) (*domain.TestTemplate, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*domain.TestTemplate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTemplateRepository) List(ctx context.Context, labID string) ([]*domain.TestTemplate, error) {
	args := m.Called(ctx, labID)
	return args.Get(0).([]*domain.TestTemplate), args.Error(1)
}

func (m *MockTemplateRepository) Update(ctx context.Context, tmpl *domain.TestTemplate) error {
	return m.Called(ctx, tmpl).Error(0)
}

func (m *MockTemplateRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockTemplateCache struct {
	mock.Mock
}

func (m *MockTemplateCache) Get(ctx context.Context, id string) (*domain.TestTemplate, bool, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*domain.TestTemplate), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *MockTemplateCache) Set(ctx context.Context, tmpl *domain.TestTemplate, ttl time.Duration) error {
	return m.Called(ctx, tmpl, ttl).Error(0)
}

func (m *MockTemplateCache) Invalidate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyReportReady(ctx context.Context, report *domain.Report) error {
	return m.Called(ctx, report).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	return m.Called(ctx, event).Error(0)
}

func ptr(f float64) *float64 { return &f }

func cbcTemplate() *domain.TestTemplate {
	return &domain.TestTemplate{
		ID:    "tmpl-cbc",
		LabID: "lab-a",
		Name:  "Complete Blood Count",
		Sections: []domain.TemplateSection{
			{
				Name: "Haemogram",
				Parameters: []domain.TemplateParameter{
					{Name: "Hemoglobin", Unit: "g/dL", ReferenceRange: "M - 13.5 - 18.0\nF - 11.5 - 16.4", CriticalLow: ptr(7)},
					{Name: "Platelet Count", Unit: "/cumm", ReferenceRange: "150000 - 450000", CriticalLow: ptr(20000), CriticalHigh: ptr(1000000)},
				},
			},
			{
				Name: "Differential Count",
				Parameters: []domain.TemplateParameter{
					{Name: "Neutrophils", Unit: "%", ReferenceRange: "40 - 75"},
				},
			},
		},
	}
}
