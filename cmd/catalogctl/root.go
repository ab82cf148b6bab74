package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/garyellow/college-predictor-go/internal/buildinfo"
	"github.com/garyellow/college-predictor-go/internal/config"
	"github.com/garyellow/college-predictor-go/internal/logger"
	"github.com/garyellow/college-predictor-go/internal/storage"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	dbPath   string
	logLevel string
	output   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Manage the college catalog of the college predictor",
		Long: `catalogctl loads college catalog dumps into the predictor's SQLite
database and evaluates predictions offline.

Configuration is read from the same CP_* environment variables (and .env
file) as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if opts.dbPath == "" {
				opts.dbPath = cfg.SQLitePath()
			}

			level := opts.logLevel
			if level == "" {
				level = cfg.LogLevel
			}
			slog.SetDefault(logger.NewWithWriter(level, cmd.ErrOrStderr()).Logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default: $CP_DATA_DIR/college_predictor.db)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format (table, json)")

	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newPredictCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func (o *globalOptions) openDB(cmd *cobra.Command) (*storage.DB, error) {
	db, err := storage.New(cmd.Context(), o.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (o *globalOptions) checkOutput() error {
	switch o.output {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use table or json)", o.output)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "catalogctl %s\n", buildinfo.String())
}
