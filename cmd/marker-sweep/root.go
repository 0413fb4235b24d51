package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"marker-sweep/internal/config"
	"marker-sweep/internal/database"
	"marker-sweep/internal/exitcodes"
	"marker-sweep/internal/logging"
	"marker-sweep/internal/report"
	"marker-sweep/internal/runner"
	"marker-sweep/internal/safety"
	"marker-sweep/internal/sweep"
)

var (
	errUsage  = errors.New("usage")
	errConfig = errors.New("config")
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	dryRun     bool
	policy     string
	marker     string
	logLevel   string
	dbPath     string
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "marker-sweep",
		Short: "Remove marker files from a monorepo checkout",
		Long: `marker-sweep deletes marker files (.npmignore by default) from a source tree.

The glob command searches a directory recursively and removes every file named
like the marker. The list command removes an explicit, ordered list of paths,
reporting the ones that do not exist.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to YAML configuration file")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "report what would be removed without deleting")
	flags.StringVar(&opts.policy, "policy", "", "failure policy: continue or fail-fast")
	flags.StringVar(&opts.marker, "marker", "", "marker file name (default .npmignore)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, disabled")
	flags.StringVar(&opts.dbPath, "db", "", "path to sweep history database (empty disables history)")
	flags.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	cmd.AddCommand(newGlobCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return exitCode(cmd.ExecuteContext(ctx), cmd.ErrOrStderr())
}

// exitCode prints err and maps it onto the exit code contract.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitcodes.Success
	}
	fmt.Fprintln(stderr, "Error:", err)

	switch {
	case errors.Is(err, errUsage), errors.Is(err, errConfig), errors.Is(err, runner.ErrConfig):
		return exitcodes.InvalidConfig
	case errors.Is(err, sweep.ErrAborted) && safety.IsViolation(err):
		return exitcodes.SafetyViolation
	default:
		return exitcodes.RuntimeError
	}
}

// usageArgs tags positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		return nil
	}
}

// loadConfig reads the config file and applies flag overrides. The mutate
// hook lets a subcommand set its own fields before validation.
func (o *options) loadConfig(cmd *cobra.Command, mutate func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.DryRun = o.dryRun
	}
	if flags.Changed("policy") {
		cfg.Policy = o.policy
	}
	if flags.Changed("marker") {
		cfg.MarkerName = o.marker
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("db") {
		cfg.DatabasePath = o.dbPath
	}
	if mutate != nil {
		mutate(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return cfg, nil
}

type runFunc func(context.Context, *config.Config, runner.Deps) (*sweep.Result, error)

// runSweep runs one glob or list invocation and prints its report. The report
// is printed even when the run was aborted.
func (o *options) runSweep(cmd *cobra.Command, cfg *config.Config, run runFunc) error {
	logger, closer := logging.NewWithConfig(cfg)
	defer closer.Close()

	deps := runner.Deps{Logger: logger}
	if cfg.DatabasePath != "" {
		db, err := openHistory(cfg.DatabasePath, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.History = db
	}

	res, runErr := run(cmd.Context(), cfg, deps)
	if res != nil {
		out := cmd.OutOrStdout()
		var err error
		if o.jsonOut {
			err = report.JSON(out, res)
		} else {
			err = report.Text(out, res)
		}
		if err != nil && runErr == nil {
			runErr = fmt.Errorf("write report: %w", err)
		}
	}
	return runErr
}

func openHistory(path string, logger zerolog.Logger) (*database.HistoryDB, error) {
	logger.Debug().Str("path", path).Msg("opening sweep history")
	db, err := database.NewHistoryDB(path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	return db, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  `Print the version number of marker-sweep`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "marker-sweep version %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
