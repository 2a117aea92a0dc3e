// Package reports persists lab report documents. Each report is stored as a
// JSON document alongside a few indexed columns used for listing.
package reports

import (
	"context"
	"io"
	"time"

	"github.com/pathlab-mcp-server/internal/domain"
)

// Store defines the interface for report storage operations.
type Store interface {
	// Save inserts or replaces a report by ID. An empty ID is assigned.
	Save(ctx context.Context, report *domain.Report) error

	// Get retrieves a report by ID. Missing reports return domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Report, error)

	// List returns reports newest first with pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.Report, error)

	// Count returns the total number of stored reports.
	Count(ctx context.Context) (int, error)

	// Delete removes a report by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes every report to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON loads reports from reader, skipping IDs that already exist.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ReportExport represents the JSON export format.
type ReportExport struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Reports    []*domain.Report `json:"reports"`
}

// maxExportLimit is the maximum number of reports to export at once.
const maxExportLimit = 1000000

const exportVersion = "1.0"
