package reports

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlab-mcp-server/internal/domain"
)

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "reports.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
	assert.Equal(t, dbPath, store.Path())
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	report := sampleReport()

	require.NoError(t, store.Save(ctx, report))
	assert.NotEmpty(t, report.ID, "ID should be assigned")
	assert.False(t, report.CreatedAt.IsZero())
	assert.False(t, report.UpdatedAt.IsZero())

	got, err := store.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.TestName, got.TestName)
	assert.Equal(t, domain.GenderMale, got.Patient.Gender)
	require.Len(t, got.Results, 2)
	assert.Equal(t, domain.FlagLow, got.Results[0].Flag)
	assert.Equal(t, "M - 13.5 - 18.0\nF - 11.5 - 16.4", got.Results[0].ReferenceRange)
	assert.True(t, report.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	report := sampleReport()
	require.NoError(t, store.Save(ctx, report))
	id := report.ID

	report.Status = domain.ReportFinal
	report.Results[1].Value = "25"
	report.Results[1].Flag = domain.FlagHigh
	report.AbnormalCount = 2
	require.NoError(t, store.Save(ctx, report))
	assert.Equal(t, id, report.ID)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportFinal, got.Status)
	assert.Equal(t, 2, got.AbnormalCount)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	got, err := store.Get(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_ListAndDelete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := sampleReport()
		r.TestName = []string{"CBC", "LFT", "KFT", "Lipid", "CRP"}[i]
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Save(ctx, r))
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "CRP", page[0].TestName, "newest first")
	assert.Equal(t, "Lipid", page[1].TestName)

	page, err = store.List(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "CBC", page[1].TestName)

	require.NoError(t, store.Delete(ctx, page[1].ID))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	src := createTestStore(t)
	defer src.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, src.Save(ctx, sampleReport()))
	}

	var buf bytes.Buffer
	require.NoError(t, src.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"version": "1.0"`)
	assert.Contains(t, buf.String(), `"count": 3`)

	dst := createTestStore(t)
	defer dst.Close()

	// one report already present in the destination
	existing, err := src.List(ctx, 1, 0)
	require.NoError(t, err)
	require.NoError(t, dst.Save(ctx, existing[0]))

	imported, skipped, err := dst.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, skipped)

	count, err := dst.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLiteStore_ImportBadJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	_, _, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte("{not json")))
	assert.Error(t, err)
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return store
}

func sampleReport() *domain.Report {
	return &domain.Report{
		LabID:    "lab-1",
		TestName: "Complete Blood Count",
		Patient:  domain.PatientInfo{Name: "Ravi Kumar", Age: 42, Gender: domain.GenderMale, Phone: "9876543210"},
		Status:   domain.ReportDraft,
		Results: []domain.ResultRow{
			{Parameter: "Hemoglobin", Value: "10", Unit: "g/dL", ReferenceRange: "M - 13.5 - 18.0\nF - 11.5 - 16.4", Flag: domain.FlagLow, Rule: "gender_split"},
			{Parameter: "ESR", Value: "12", Unit: "mm/hr", ReferenceRange: "0-20", Flag: domain.FlagNormal, Rule: "numeric_range"},
		},
		AbnormalCount: 1,
	}
}
