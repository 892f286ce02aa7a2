package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/sortdl/internal/core/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := opts.setup(cmd)
				if err != nil {
					return err
				}
				defer e.Close()

				if err := e.openDB(false); err != nil {
					return err
				}
				if err := db.MigrateUp(e.db, e.log); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := opts.setup(cmd)
				if err != nil {
					return err
				}
				defer e.Close()

				if err := e.openDB(false); err != nil {
					return err
				}
				statuses, err := db.MigrateStatus(e.db)
				if err != nil {
					return fmt.Errorf("failed to read migration status: %w", err)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tDURATION")
				for _, s := range statuses {
					if !s.Applied {
						fmt.Fprintf(w, "%s\tpending\t-\t-\n", s.ID)
						continue
					}
					fmt.Fprintf(w, "%s\tapplied\t%s\t%dms\n", s.ID, *s.AppliedAt, s.ExecutionMs)
				}
				return w.Flush()
			},
		},
	)
	return cmd
}
