package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/backofhouse/tally/internal/cli"
	"github.com/backofhouse/tally/internal/engine"
)

func applyCmd() *cobra.Command {
	var (
		source     string
		batchLimit int
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply rules to uncategorized records",
		Long: `Run the active rule set over records still waiting for a category.
Each record is applied in its own transaction, so an interrupted run
leaves nothing half-done and can simply be rerun.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var bar *progressbar.ProgressBar
			progress := func(processed, total int) {
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionShowCount(),
						progressbar.OptionSetWidth(40),
						progressbar.OptionSetDescription("Applying rules..."))
				}
				_ = bar.Set(processed)
			}

			var summaries []engine.BulkSummary
			if source == "" {
				summaries, err = eng.BulkApplyAll(ctx, batchLimit, progress)
			} else {
				src, parseErr := parseSource(source)
				if parseErr != nil {
					return parseErr
				}
				var summary engine.BulkSummary
				summary, err = eng.BulkApply(ctx, src, batchLimit, progress)
				summaries = append(summaries, summary)
			}
			if bar != nil {
				_ = bar.Finish()
				fmt.Println()
			}
			if err != nil {
				return err
			}

			for _, summary := range summaries {
				fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
					"✓ %s: applied %d of %d considered",
					summary.Source, summary.AppliedCount, summary.TotalConsidered)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "limit to one source (bank or pos); default is both")
	cmd.Flags().IntVar(&batchLimit, "limit", 500, "maximum records to process per source")

	return cmd
}
