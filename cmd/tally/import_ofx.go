package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/backofhouse/tally/internal/cli"
	"github.com/backofhouse/tally/internal/ingest"
	"github.com/backofhouse/tally/internal/model"
)

func importOFXCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import bank transactions from OFX/QFX files",
		Long: `Import bank transactions from OFX or QFX files exported from your bank.
Imported records start uncategorized; rules flagged for auto-apply run
against each one as it lands.

Examples:
  tally import-ofx ~/Downloads/chase_jan.qfx
  tally import-ofx ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var allFiles []string
			for _, pattern := range args {
				matches, err := filepath.Glob(pattern)
				if err != nil {
					return fmt.Errorf("invalid pattern %s: %w", pattern, err)
				}
				if len(matches) == 0 {
					if _, err := os.Stat(pattern); err == nil {
						allFiles = append(allFiles, pattern)
					} else {
						slog.Warn("No files found matching pattern", "pattern", pattern)
					}
				} else {
					allFiles = append(allFiles, matches...)
				}
			}
			if len(allFiles) == 0 {
				return fmt.Errorf("no files found to import")
			}

			parser := ingest.NewOFXParser()
			seen := make(map[string]bool)
			var allRecords []model.Record

			for _, filePath := range allFiles {
				f, err := os.Open(filePath)
				if err != nil {
					slog.Error("Failed to open file", "file", filePath, "error", err)
					continue
				}

				records, err := parser.ParseFile(ctx, f)
				_ = f.Close()
				if err != nil {
					slog.Error("Failed to parse OFX file", "file", filePath, "error", err)
					continue
				}

				added := 0
				for _, rec := range records {
					if !seen[rec.ID] {
						seen[rec.ID] = true
						allRecords = append(allRecords, rec)
						added++
					}
				}
				slog.Info("Processed file",
					"file", filepath.Base(filePath),
					"records", len(records),
					"added", added,
					"duplicates", len(records)-added)
			}

			if len(allRecords) == 0 {
				slog.Warn("No transactions found in any file")
				return nil
			}

			if dryRun {
				fmt.Println(cli.WarningStyle.Render(fmt.Sprintf(
					"Dry run: %d records would be imported", len(allRecords))))
				return nil
			}

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := eng.InsertRecords(ctx, allRecords); err != nil {
				return fmt.Errorf("failed to import records: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"✓ Imported %d records from %d files", len(allRecords), len(allFiles))))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "preview import without saving")

	return cmd
}
