package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/export"
	"github.com/localrivet/csvexport/internal/metrics"
	"github.com/localrivet/csvexport/internal/notify"
	"github.com/localrivet/csvexport/internal/tables"
	"github.com/localrivet/csvexport/pkg/database"
)

var version = "1.0.0"

const (
	exitOK = iota
	exitUsage
	exitConfig
	exitConnect
	exitFailure
)

// usageError marks command line mistakes.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type app struct {
	stdout    io.Writer
	stderr    io.Writer
	logger    *slog.Logger
	cfgFile   string
	outputDir string
	verbose   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if code == exitUsage {
			fmt.Fprintln(stderr, "Run 'csvexport --help' for usage.")
		}
	}
	return code
}

func exitCode(err error) int {
	var (
		usageErr   *usageError
		patternErr *tables.PatternError
		cfgErr     *config.Error
		connErr    *database.ConnectError
	)

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr), errors.As(err, &patternErr), errors.Is(err, tables.ErrNoSelection):
		return exitUsage
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &connErr):
		return exitConnect
	default:
		return exitFailure
	}
}

func (a *app) rootCmd() *cobra.Command {
	var sel tables.Selection

	cmd := &cobra.Command{
		Use:   "csvexport --table a,b | --all-tables | --pattern RE",
		Short: "Export database tables to CSV files",
		Long: "Export database tables to timestamped CSV files.\n\n" +
			"Connection settings are read from the [database] section of the config file.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{fmt.Errorf("unexpected argument %q", args[0])}
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewJSONHandler(a.stderr, &slog.HandlerOptions{
				Level: level,
			}))

			// A missing .env is the common case.
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				a.logger.Warn("failed to load .env", "error", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sel.Validate(); err != nil {
				return err
			}

			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}

			engine, err := a.newEngine(cfg)
			if err != nil {
				return err
			}

			_, err = engine.Run(cmd.Context(), sel, a.output(cmd, cfg))
			return err
		},
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	cmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", config.DefaultPath, "config file path")
	cmd.PersistentFlags().StringVarP(&a.outputDir, "output", "o", "output", "directory CSV files are written to")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	addSelectionFlags(cmd, &sel)

	cmd.AddCommand(a.tablesCmd())
	cmd.AddCommand(a.artifactsCmd())
	cmd.AddCommand(a.verifyCmd())
	cmd.AddCommand(a.daemonCmd())

	return cmd
}

func addSelectionFlags(cmd *cobra.Command, sel *tables.Selection) {
	cmd.Flags().StringVar(&sel.Tables, "table", "", "comma-separated list of tables to export")
	cmd.Flags().BoolVar(&sel.AllTables, "all-tables", false, "export all tables")
	cmd.Flags().StringVar(&sel.Pattern, "pattern", "", "export tables whose name matches this regular expression")
}

// output returns --output when given, otherwise the configured directory.
func (a *app) output(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("output") || cfg.Export.OutputDir == "" {
		return a.outputDir
	}
	return cfg.Export.OutputDir
}

func (a *app) newEngine(cfg *config.Config, opts ...export.Option) (*export.Engine, error) {
	mirror, err := export.NewMirror(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact mirror: %w", err)
	}

	opts = append([]export.Option{
		export.WithOutput(a.stdout),
		export.WithMirror(mirror, cfg.Storage.Prefix),
		export.WithNotifier(notify.NewNotifier(cfg.Monitoring.WebhookURL, a.logger)),
	}, opts...)

	return export.NewEngine(cfg, a.logger, opts...), nil
}

func (a *app) newMetrics() *metrics.Metrics {
	return metrics.New("csvexport")
}
