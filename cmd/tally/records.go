package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/backofhouse/tally/internal/cli"
	"github.com/backofhouse/tally/internal/model"
)

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect ingested records",
	}

	cmd.AddCommand(listRecordsCmd())
	cmd.AddCommand(showRecordCmd())

	return cmd
}

func listRecordsCmd() *cobra.Command {
	var (
		source        string
		limit         int
		uncategorized bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			src, err := parseSource(source)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var records []model.Record
			if uncategorized {
				records, err = store.GetUncategorizedRecords(ctx, src, limit)
			} else {
				records, err = store.GetRecords(ctx, src, limit)
			}
			if err != nil {
				return fmt.Errorf("failed to get records: %w", err)
			}

			if len(records) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No records found."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tDESCRIPTION\tAMOUNT\tSTATE\tCATEGORY")
			for i := range records {
				rec := &records[i]
				category := "-"
				if rec.CategoryID != nil {
					category = fmt.Sprintf("%d", *rec.CategoryID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rec.ID, rec.Description, formatAmount(rec.Amount), rec.State, category)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "bank", "record source (bank or pos)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to list")
	cmd.Flags().BoolVar(&uncategorized, "uncategorized", false, "only records still waiting for a category")

	return cmd
}

func showRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show one record with its allocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rec, err := store.GetRecordByID(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Record %s", rec.ID)))
			fmt.Printf("  Source:      %s\n", rec.Source)
			fmt.Printf("  Description: %s\n", rec.Description)
			fmt.Printf("  Amount:      %s\n", formatAmount(rec.Amount))
			fmt.Printf("  State:       %s\n", rec.State)
			if rec.CategoryID != nil {
				fmt.Printf("  Category:    %d\n", *rec.CategoryID)
			}
			if rec.SupplierID != nil {
				fmt.Printf("  Supplier:    %s\n", *rec.SupplierID)
			}
			if rec.PosCategory != nil {
				fmt.Printf("  POS category: %s\n", *rec.PosCategory)
			}

			if rec.State != model.StateSplit {
				return nil
			}

			allocations, err := store.GetAllocationsForRecord(ctx, rec.ID)
			if err != nil {
				return fmt.Errorf("failed to get allocations: %w", err)
			}

			fmt.Println("  Allocations:")
			for _, a := range allocations {
				label := a.Label
				if label == "" {
					label = "(unlabeled)"
				}
				fmt.Printf("    - category %d: %s %s\n", a.CategoryID, formatAmount(a.Amount), label)
			}
			return nil
		},
	}
}
