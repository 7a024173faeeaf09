// Package main provides the CLI entry point for the surveysim runtime.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/surveysim/runtime/internal/activity"
	"github.com/surveysim/runtime/internal/cli"
	"github.com/surveysim/runtime/internal/config"
	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/lightcurve"
	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/registry"
	"github.com/surveysim/runtime/internal/runtime"
	"github.com/surveysim/runtime/pkg/survey"
)

// Build information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// options holds the flag values of one invocation.
type options struct {
	verbose   bool
	quiet     bool
	logFormat string
	logFile   string
	dryRun    bool

	exitCode int
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute runs the command line and returns the process exit code.
func execute(args []string) int {
	opts := &options{}
	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(cli.Stdout)
	root.SetErr(cli.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(cli.Stderr, "Error: %v\n", err)
		if opts.exitCode == cli.ExitSuccess {
			opts.exitCode = cli.ExitRuntimeError
		}
	}
	logger.CloseLogFile()
	return opts.exitCode
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "surveysim",
		Short: "surveysim - survey detection post-processing runtime",
		Long: `surveysim applies the observational cuts and brightness adjustments of a
simulated sky survey to a table of detections.

A pipeline configuration (JSON/YAML) names one detection source, an ordered
chain of filters and one sink, executed as Input → Filter → Output.

Examples:
  # Validate a configuration file
  surveysim validate survey.yaml

  # Run a pipeline
  surveysim run survey.yaml

  # Run without writing, showing what would be written
  surveysim run --dry-run survey.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return configureLogging(opts)
		},
	}

	addGlobalFlags(root.PersistentFlags(), opts)

	validateCmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a pipeline configuration file",
		Long: `Validate a pipeline configuration file against the schema.

Exit codes:
  0 - Configuration is valid
  1 - Validation errors (schema violations)
  2 - Parse errors (invalid JSON/YAML syntax)`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			opts.exitCode = runValidate(opts, args[0])
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <config-file>",
		Short: "Run a pipeline from configuration file",
		Long: `Run a pipeline defined in the configuration file.

The configuration file is first validated against the schema.
If validation fails, the pipeline will not be executed.

Exit codes:
  0 - Pipeline executed successfully
  1 - Validation errors
  2 - Parse errors
  3 - Runtime errors`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts.exitCode = runPipeline(cmd.Context(), opts, args[0])
		},
	}
	runCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Run input and filters but do not write output")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List available module types and models",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			printList("Inputs", registry.ListInputTypes())
			printList("Filters", registry.ListFilterTypes())
			printList("Outputs", registry.ListOutputTypes())
			printList("Lightcurve models", lightcurve.Registry.Names())
			printList("Activity models", activity.Registry.Names())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version, commit hash, and build date information.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(cli.Stdout, "Version: %s\n", version)
			fmt.Fprintf(cli.Stdout, "Commit: %s\n", commit)
			fmt.Fprintf(cli.Stdout, "Build Date: %s\n", buildDate)
		},
	}

	root.AddCommand(validateCmd, runCmd, modelsCmd, versionCmd)
	return root
}

func addGlobalFlags(fs *pflag.FlagSet, opts *options) {
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress non-error output")
	fs.StringVar(&opts.logFormat, "log-format", "json", "Console log format (json or human)")
	fs.StringVar(&opts.logFile, "log-file", "", "Also write JSON logs to this file")
}

func configureLogging(opts *options) error {
	format, err := logger.ParseFormat(opts.logFormat)
	if err != nil {
		opts.exitCode = cli.ExitRuntimeError
		return err
	}
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	} else if opts.quiet {
		level = slog.LevelError
	}

	if opts.logFile != "" {
		if err := logger.SetLogFile(opts.logFile, level, format); err != nil {
			opts.exitCode = cli.ExitRuntimeError
			return err
		}
		return nil
	}
	logger.SetLevelAndFormat(level, format)
	return nil
}

func runValidate(opts *options, configPath string) int {
	if !opts.quiet {
		fmt.Fprintf(cli.Stdout, "Validating configuration: %s\n", configPath)
	}

	pipeline, result, err := loadConfig(configPath)
	if err != nil {
		return cli.PrintLoadErrors(result, err, opts.verbose, opts.quiet)
	}

	if !opts.quiet {
		fmt.Fprintf(cli.Stdout, "✓ Configuration is valid (format: %s)\n", result.Format)
		if opts.verbose {
			cli.PrintConfigSummary(result.Data)
			fmt.Fprintf(cli.Stdout, "  Pipeline ID: %s\n", pipeline.ID)
		}
	}
	return cli.ExitSuccess
}

func runPipeline(ctx context.Context, opts *options, configPath string) int {
	if !opts.quiet {
		fmt.Fprintf(cli.Stdout, "Loading pipeline configuration: %s\n", configPath)
	}

	pipeline, result, err := loadConfig(configPath)
	if err != nil {
		return cli.PrintLoadErrors(result, err, opts.verbose, opts.quiet)
	}

	if opts.verbose {
		fmt.Fprintf(cli.Stdout, "  Pipeline: %s (v%s)\n", pipeline.Name, pipeline.Version)
		if pipeline.Description != "" {
			fmt.Fprintf(cli.Stdout, "  Description: %s\n", pipeline.Description)
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor, err := runtime.NewExecutorFromPipeline(ctx, pipeline, opts.dryRun)
	if err != nil {
		fmt.Fprintf(cli.Stderr, "✗ Failed to create modules: %v\n", err)
		if errhandling.GetErrorCategory(err) == errhandling.CategoryConfig {
			return cli.ExitValidationError
		}
		return cli.ExitRuntimeError
	}

	if !opts.quiet {
		if opts.dryRun {
			fmt.Fprintln(cli.Stdout, "Executing pipeline (dry-run mode - output will not be written)...")
		} else {
			fmt.Fprintln(cli.Stdout, "Executing pipeline...")
		}
	}

	execResult, err := executor.Execute(ctx, pipeline)
	cli.PrintExecutionResult(execResult, err, cli.OutputOptions{
		Verbose: opts.verbose,
		Quiet:   opts.quiet,
		DryRun:  opts.dryRun,
	})
	if err != nil {
		return cli.ExitRuntimeError
	}
	return cli.ExitSuccess
}

// loadConfig makes the command-line path absolute so that arguments such as
// ../survey.yaml pass the traversal check in config.Load.
func loadConfig(configPath string) (*survey.Pipeline, *config.Result, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, &config.Result{FilePath: configPath, ParseErrors: []config.ParseError{{
			Path:    configPath,
			Message: err.Error(),
			Type:    config.ErrorTypeIO,
		}}}, fmt.Errorf("%w: %v", config.ErrParse, err)
	}
	return config.Load(abs)
}

func printList(title string, names []string) {
	fmt.Fprintf(cli.Stdout, "%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(cli.Stdout, "  %s\n", name)
	}
}
