package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	LogFormat  string // "json" | "text"
	ConfigFile string

	// Config is the layered configuration, loaded before any command runs.
	Config *Config
	// Logger writes diagnostics to the command's error stream.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the scrutiny CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "scrutiny",
		Short: "scrutiny - compare device profiles against a reference",
		Long: `Compare a profile snapshot of a device against a reference snapshot.

A schema describes the sections of a snapshot, how records in each section
are matched and which comparator judges them. The result is a JSON report
grading every difference as OK, WARN, SUSPICIOUS or ERROR.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load layered config (also validates --format)
			cfg, err := LoadConfig(opts.ConfigFile, cmd.Flags())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			opts.Verbose = cfg.Verbose
			opts.Format = cfg.Format
			opts.LogFormat = cfg.LogFormat
			// Logger goes to stderr so stdout stays parseable
			opts.Logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFormat)
			if cfg.File != "" {
				opts.Logger.Debug("config file loaded", "path", cfg.File)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format on stderr (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default scrutiny.yaml in the working directory)")

	// Add subcommands
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewCheckSchemaCommand(opts))
	cmd.AddCommand(NewComparatorsCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// Execute runs the root command with os.Args. Errors not already written by
// a command are printed to stderr.
func Execute() error {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil && !wasReported(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

// newLogger builds the stderr logger: Info by default, Debug when verbose.
func newLogger(w io.Writer, verbose bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns an OutputFormatter bound to cmd's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger returns the configured logger, or a discarding one before
// PersistentPreRunE has run.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}
