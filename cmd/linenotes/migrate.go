package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"linenotes/internal/config"
	"linenotes/internal/persist"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect sqlite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Backend != persist.BackendSQLite {
				return fmt.Errorf("migrate needs the sqlite backend (backend is %q)", cfg.Backend)
			}
			path := persist.SQLitePath(notesDir(cfg))

			var plan *persist.MigrationStatus
			if inspect {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				db, err := openRawDB(path)
				if err != nil {
					return err
				}
				defer db.Close()
				if plan, err = persist.MigrationPlan(db); err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
			} else {
				// Opening the backend applies every pending migration.
				st, err := persist.OpenSQLite(path)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				defer st.Close()
				if plan, err = st.MigrationStatus(); err != nil {
					return err
				}
			}

			if *jsonOutput {
				return writeJSON(plan)
			}
			_ = writePlain("Database: %s\n", path)
			_ = writePlain("Current version: %d\n", plan.CurrentVersion)
			_ = writePlain("Available version: %d\n", plan.AvailableVersion)
			if len(plan.Pending) == 0 {
				return writePlain("No pending migrations.\n")
			}
			_ = writePlain("Pending migrations: %d\n", len(plan.Pending))
			for _, m := range plan.Pending {
				_ = writePlain("  %d: %s\n", m.Version, m.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status without applying")
	return cmd
}

func openRawDB(path string) (*sql.DB, error) {
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
