package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"inkpad/api/internal/store"
)

func newMigrateCmd(opts *options) *cobra.Command {
	var (
		dir    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if strings.EqualFold(opts.backend, "sqlite") {
				// the sqlite store creates its schema on open
				s, err := store.NewSQLiteStore(ctx, opts.sqlite)
				if err != nil {
					return err
				}
				defer s.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "sqlite schema ready at %s\n", opts.sqlite)
				return nil
			}

			db, err := store.Open(ctx, opts.dbURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if dryRun {
				pending, err := store.PendingMigrations(ctx, db, os.DirFS(dir))
				if err != nil {
					return err
				}
				for _, v := range pending {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return nil
			}
			applied, err := store.ApplyMigrations(ctx, db, dir, opts.logger(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", opts.cfg.MigrationsDir, "Migrations directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
	return cmd
}
