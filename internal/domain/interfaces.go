package domain

import (
	"context"
)

// ReportRepository persists report documents.
type ReportRepository interface {
	Save(ctx context.Context, report *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context, limit, offset int) ([]*Report, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

// TemplateRepository persists lab test templates.
type TemplateRepository interface {
	Create(ctx context.Context, tmpl *TestTemplate) error
	GetByID(ctx context.Context, id string) (*TestTemplate, error)
	List(ctx context.Context, labID string) ([]*TestTemplate, error)
	Update(ctx context.Context, tmpl *TestTemplate) error
	Delete(ctx context.Context, id string) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
