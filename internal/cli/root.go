// Package cli implements the inkpadctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inkpad/api/internal/config"
	"inkpad/api/internal/logging"
	"inkpad/api/internal/store"
)

type options struct {
	cfg     config.Config
	backend string
	dbURL   string
	sqlite  string
}

// NewRootCmd builds the command tree. Defaults come from the same
// environment the API server reads.
func NewRootCmd() *cobra.Command {
	opts := &options{cfg: config.Load()}
	root := &cobra.Command{
		Use:           "inkpadctl",
		Short:         "Operate an inkpad document store",
		Long:          "Maintenance commands for inkpad: schema migrations, part inspection, chunk planning, rendering and local session tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.backend, "backend", opts.cfg.StoreBackend, "Store backend: postgres or sqlite")
	root.PersistentFlags().StringVar(&opts.dbURL, "database-url", opts.cfg.DatabaseURL, "Postgres connection URL")
	root.PersistentFlags().StringVar(&opts.sqlite, "sqlite", opts.cfg.SQLitePath, "SQLite database path")

	root.AddCommand(
		newMigrateCmd(opts),
		newPartsCmd(opts),
		newChunkCmd(opts),
		newRenderCmd(opts),
		newTokenCmd(opts),
		newIDCmd(),
	)
	return root
}

// Execute runs the CLI and reports failures on stderr.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (o *options) logger(cmd *cobra.Command) zerolog.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), o.cfg.LogLevel, "console")
}

type partReader interface {
	ListParts(ctx context.Context, documentID string) ([]store.DocumentPart, error)
	Close() error
}

func (o *options) openStore(ctx context.Context) (partReader, error) {
	switch strings.ToLower(o.backend) {
	case "sqlite":
		s, err := store.NewSQLiteStore(ctx, o.sqlite)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "":
		db, err := store.Open(ctx, o.dbURL)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", o.backend)
	}
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}
