package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backofhouse/tally/internal/cli"
	"github.com/backofhouse/tally/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Bring the database schema up to date. Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"✓ Database schema is at version %d", storage.ExpectedSchemaVersion)))
			return nil
		},
	}
}
