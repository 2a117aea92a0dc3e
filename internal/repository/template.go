package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
)

// TemplateRepository handles test template persistence. Sections and their
// parameters are stored as a single JSONB column.
type TemplateRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *pgxpool.Pool, logger *logrus.Logger) *TemplateRepository {
	return &TemplateRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new template. A missing ID is generated.
func (r *TemplateRepository) Create(ctx context.Context, tmpl *domain.TestTemplate) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}

	sections, err := json.Marshal(tmpl.Sections)
	if err != nil {
		return fmt.Errorf("encoding template sections: %w", err)
	}

	query := `
		INSERT INTO test_templates (id, lab_id, name, category, sections)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		tmpl.ID,
		tmpl.LabID,
		tmpl.Name,
		tmpl.Category,
		sections,
	).Scan(&tmpl.CreatedAt, &tmpl.UpdatedAt)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"template_id": tmpl.ID,
			"lab_id":      tmpl.LabID,
			"error":       err,
		}).Error("Failed to create template")
		return fmt.Errorf("creating template: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"template_id": tmpl.ID,
		"lab_id":      tmpl.LabID,
		"name":        tmpl.Name,
	}).Info("Template created successfully")

	return nil
}

// GetByID retrieves a template by its ID
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*domain.TestTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("template not found: %w", domain.ErrNotFound)
	}

	query := `
		SELECT id, lab_id, name, category, sections, created_at, updated_at
		FROM test_templates
		WHERE id = $1`

	tmpl, err := scanTemplate(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"template_id": id,
			"error":       err,
		}).Error("Failed to get template by ID")
		return nil, fmt.Errorf("getting template by ID: %w", err)
	}

	return tmpl, nil
}

// List returns all templates for a lab ordered by name
func (r *TemplateRepository) List(ctx context.Context, labID string) ([]*domain.TestTemplate, error) {
	query := `
		SELECT id, lab_id, name, category, sections, created_at, updated_at
		FROM test_templates
		WHERE lab_id = $1
		ORDER BY name`

	rows, err := r.db.Query(ctx, query, labID)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.TestTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning template row: %w", err)
		}
		templates = append(templates, tmpl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating template rows: %w", err)
	}

	return templates, nil
}

// Update replaces a template's name, category and sections
func (r *TemplateRepository) Update(ctx context.Context, tmpl *domain.TestTemplate) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}

	sections, err := json.Marshal(tmpl.Sections)
	if err != nil {
		return fmt.Errorf("encoding template sections: %w", err)
	}

	query := `
		UPDATE test_templates
		SET name = $2, category = $3, sections = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err = r.db.QueryRow(ctx, query, tmpl.ID, tmpl.Name, tmpl.Category, sections).Scan(&tmpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("template not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"template_id": tmpl.ID,
			"error":       err,
		}).Error("Failed to update template")
		return fmt.Errorf("updating template: %w", err)
	}

	r.log.WithField("template_id", tmpl.ID).Info("Template updated successfully")
	return nil
}

// Delete removes a template by ID
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("template not found: %w", domain.ErrNotFound)
	}

	tag, err := r.db.Exec(ctx, "DELETE FROM test_templates WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template not found: %w", domain.ErrNotFound)
	}

	r.log.WithField("template_id", id).Info("Template deleted")
	return nil
}

func scanTemplate(row pgx.Row) (*domain.TestTemplate, error) {
	var (
		tmpl                 domain.TestTemplate
		sections             []byte
		createdAt, updatedAt time.Time
	)

	if err := row.Scan(
		&tmpl.ID,
		&tmpl.LabID,
		&tmpl.Name,
		&tmpl.Category,
		&sections,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(sections, &tmpl.Sections); err != nil {
		return nil, fmt.Errorf("decoding template sections: %w", err)
	}
	tmpl.CreatedAt = createdAt
	tmpl.UpdatedAt = updatedAt

	return &tmpl, nil
}
