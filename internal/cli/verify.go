package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/crocs-muni/scrutiny-viz/internal/compare"
	"github.com/crocs-muni/scrutiny-viz/internal/engine"
	"github.com/crocs-muni/scrutiny-viz/internal/ingest"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
	"github.com/crocs-muni/scrutiny-viz/internal/store"
)

// VerifyOptions holds the hooks of the verify command. Flag values are read
// from RootOptions.Config so config files and environment apply to them.
type VerifyOptions struct {
	*RootOptions

	// Registry overrides the comparator registry (for testing).
	// If nil, compare.Default() is used.
	Registry *compare.Registry

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// VerifySummary is the JSON payload of the verify command.
type VerifySummary struct {
	Overall   report.Severity         `json:"overall"`
	Output    string                  `json:"output,omitempty"`
	Store     string                  `json:"store,omitempty"`
	Sections  []report.SectionSummary `json:"sections"`
	Warnings  []string                `json:"warnings,omitempty"`
	Reference string                  `json:"reference_name"`
	Profile   string                  `json:"profile_name"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare a profile snapshot against a reference",
		Long: `Compare a profile snapshot against a reference snapshot using a schema.

Every section of the schema is evaluated independently. A section that
cannot be evaluated is reported as SECTION_ERROR and the others still run.
The full result is written with --output-file; a summary is printed.

Example:
  scrutiny verify -s schema.yml -r ref.json -p card.json -o report.json
  scrutiny verify -s schema.yml -r ref.json -p card.json --fail-on SUSPICIOUS
  scrutiny verify -s schema.yml -r ref.json -p card.json --store runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runVerify(ctx, opts, cmd)
		},
	}

	// Values are read through the layered config; flag defaults here only
	// document the effective defaults.
	f := cmd.Flags()
	f.StringP("schema", "s", "", "schema file (.yml, .yaml, .json or .cue)")
	f.StringP("reference", "r", "", "reference snapshot")
	f.StringP("profile", "p", "", "profile snapshot")
	f.StringP("output-file", "o", "", "write the comparison document to this file")
	f.String("store", "", "also append the run to this SQLite artifact")
	f.Bool("emit-matches", false, "record matching fields in every section")
	f.Int("print-diffs", 3, "differences to print per section")
	f.Int("print-matches", 0, "matches to print per section")
	f.Int("parallel", 1, "sections evaluated concurrently (1 = sequential)")
	f.String("fail-on", FailOnNone, "exit 1 when the overall severity reaches this level (none|WARN|SUSPICIOUS|ERROR)")
	f.Bool("strict", false, "fail when a schema section is missing from a snapshot")
	f.String("reference-name", "", "display name of the reference (default: file name)")
	f.String("profile-name", "", "display name of the profile (default: file name)")
	f.String("metrics-file", "", "write the run's OpenTelemetry metrics as JSON to this file")

	return cmd
}

func runVerify(ctx context.Context, opts *VerifyOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if cfg == nil {
		return NewExitError(ExitCommandError, "configuration not loaded")
	}
	out := opts.formatter(cmd)
	logger := opts.logger()

	for _, req := range []struct{ name, value string }{
		{"schema", cfg.Schema},
		{"reference", cfg.Reference},
		{"profile", cfg.Profile},
	} {
		if req.value == "" {
			return out.fail(CodeConfig, ExitCommandError, fmt.Sprintf("--%s is required", req.name), nil)
		}
	}

	logger.Info("loading schema", "path", cfg.Schema)
	sch, err := schema.LoadFile(cfg.Schema, schema.WithLogger(logger))
	if err != nil {
		return out.fail(CodeSchema, ExitCommandError, "failed to load schema", err)
	}
	for _, w := range sch.Warnings {
		logger.Warn("schema warning", "warning", w)
	}

	ref, err := ingest.Load(cfg.Reference, sch,
		ingest.WithStrict(cfg.Strict), ingest.WithName(cfg.ReferenceName))
	if err != nil {
		return out.fail(CodeSnapshot, ExitCommandError, "failed to load reference", err)
	}
	profile, err := ingest.Load(cfg.Profile, sch,
		ingest.WithStrict(cfg.Strict), ingest.WithName(cfg.ProfileName))
	if err != nil {
		return out.fail(CodeSnapshot, ExitCommandError, "failed to load profile", err)
	}
	// Schema and snapshot warnings belong to no section; they travel in the
	// document meta.
	warnings := append(append(append([]string{}, sch.Warnings...), ref.Warnings...), profile.Warnings...)
	for _, w := range warnings {
		logger.Warn("snapshot warning", "warning", w)
	}

	metrics, flush, err := verifyMetrics(cfg, logger)
	if err != nil {
		return out.fail(CodeOutput, ExitCommandError, "failed to set up metrics export", err)
	}
	defer func() {
		if err := flush(context.WithoutCancel(ctx)); err != nil {
			logger.Error("error writing metrics", "path", cfg.MetricsFile, "error", err)
		}
	}()

	eng := newEngine(opts, cfg, logger, metrics)
	res, err := eng.Run(ctx, sch, ref.Data, profile.Data)
	if err != nil {
		return out.fail(CodeEngine, ExitCommandError, "comparison aborted", err)
	}

	doc := report.Assemble(res, report.DocumentInfo{
		ReferenceName: ref.Name,
		ProfileName:   profile.Name,
		Meta: report.Meta{
			GeneratedBy:   "scrutiny " + Version,
			SchemaVersion: sch.Version,
			RunID:         eng.NewRunID(),
			Warnings:      warnings,
		},
	})

	if cfg.Output != "" {
		if err := doc.WriteFile(cfg.Output); err != nil {
			return out.fail(CodeOutput, ExitCommandError, "failed to write output", err)
		}
		logger.Info("document written", "path", cfg.Output)
	}
	if cfg.Store != "" {
		if err := storeDocument(ctx, cfg.Store, doc, logger); err != nil {
			return out.fail(CodeOutput, ExitCommandError, "failed to store run", err)
		}
	}

	if out.Format == "json" {
		if err := out.SuccessRun(doc.Meta.RunID, VerifySummary{
			Overall:   doc.Overall,
			Output:    cfg.Output,
			Store:     cfg.Store,
			Sections:  doc.Dashboard.BySection,
			Warnings:  warnings,
			Reference: doc.ReferenceName,
			Profile:   doc.ProfileName,
		}); err != nil {
			return err
		}
	} else {
		renderDocument(out.Writer, doc, renderLimits{Diffs: cfg.PrintDiffs, Matches: cfg.PrintMatches}, NewStyles(out.Writer))
	}

	threshold, enabled, _ := cfg.FailOnSeverity()
	if enabled && doc.Overall >= threshold {
		return NewExitError(ExitFailure,
			fmt.Sprintf("overall severity %s reaches --fail-on %s", doc.Overall, threshold))
	}
	return nil
}

// verifyMetrics returns the engine instruments for a run. With a metrics file
// they are backed by an SDK meter provider that exports on flush; otherwise
// they come from the global provider. flush is never nil.
func verifyMetrics(cfg *Config, logger *slog.Logger) (*engine.Metrics, func(context.Context) error, error) {
	if cfg.MetricsFile != "" {
		return initMetrics(cfg.MetricsFile)
	}
	noFlush := func(context.Context) error { return nil }
	m, err := engine.NewMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
		return nil, noFlush, nil
	}
	return m, noFlush, nil
}

func newEngine(opts *VerifyOptions, cfg *Config, logger *slog.Logger, metrics *engine.Metrics) *engine.Engine {
	engOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithParallelism(cfg.Parallelism),
		engine.WithEmitMatches(cfg.EmitMatches),
	}
	if metrics != nil {
		engOpts = append(engOpts, engine.WithMetrics(metrics))
	}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	return engine.New(opts.Registry, engOpts...)
}

func storeDocument(ctx context.Context, path string, doc *report.Document, logger *slog.Logger) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()
	if err := st.WriteDocument(ctx, doc); err != nil {
		return err
	}
	logger.Info("run stored", "path", path, "run_id", doc.Meta.RunID)
	return nil
}
