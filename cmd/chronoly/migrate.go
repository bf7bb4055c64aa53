package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chronoly/internal/cli"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		down   bool
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQLite schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				path = a.cfg.SQLiteDBPath
			}
			version, err := cli.Migrate(a.logger, path, down)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back every migration")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default SQLITE_DB_PATH)")
	return cmd
}
