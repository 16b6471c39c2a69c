package main

import (
	"salesplan/internal/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return db.RunMigrations(cmd.Context(), a.pool, a.log)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
