package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/reports"
)

func reportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "Export and import report documents",
		Flags: []cli.Flag{
			databaseURLFlag(),
			&cli.StringFlag{
				Name:    "sqlite",
				Sources: cli.EnvVars("PATHLAB_REPORTS_DB"),
				Usage:   "SQLite report database used by the lite server; takes precedence over --database-url",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Write all reports as JSON to <file>, or stdout when omitted",
				ArgsUsage: "[file]",
				Action:    reportsExport,
			},
			{
				Name:      "import",
				Usage:     "Load reports from a JSON export, skipping IDs that already exist",
				ArgsUsage: "<file>",
				Action:    reportsImport,
			},
		},
	}
}

func openReportStore(cmd *cli.Command) (reports.Store, error) {
	if path := cmd.String("sqlite"); path != "" {
		return reports.NewSQLiteStore(path)
	}
	if databaseURL := cmd.String("database-url"); databaseURL != "" {
		return reports.NewPostgresStoreFromURL(databaseURL, domain.DatabaseConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	}
	return nil, fmt.Errorf("a report store is required (set --sqlite or --database-url)")
}

func reportsExport(ctx context.Context, cmd *cli.Command) error {
	store, err := openReportStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	path := cmd.Args().First()
	if path == "" || path == "-" {
		return store.ExportJSON(ctx, cmd.Root().Writer)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := store.ExportJSON(ctx, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	fmt.Fprintf(cmd.Root().ErrWriter, "Exported reports to %s\n", path)
	return nil
}

func reportsImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("expected <file>")
	}

	store, err := openReportStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	imported, skipped, err := store.ImportJSON(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "Imported %d reports (%d skipped)\n", imported, skipped)
	return nil
}
