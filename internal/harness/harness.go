package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crocs-muni/scrutiny-viz/internal/compare"
	"github.com/crocs-muni/scrutiny-viz/internal/engine"
	"github.com/crocs-muni/scrutiny-viz/internal/ingest"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// GeneratedBy is written to harness documents instead of a build version so
// golden files stay stable.
const GeneratedBy = "scrutiny harness"

// Harness runs scenarios against a comparator registry.
type Harness struct {
	registry *compare.Registry
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithRegistry runs scenarios against reg instead of compare.Default().
func WithRegistry(reg *compare.Registry) Option {
	return func(h *Harness) { h.registry = reg }
}

// WithLogger sets the logger passed to the schema resolver and engine.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a Harness. Logs are discarded unless WithLogger is given.
func New(opts ...Option) *Harness {
	h := &Harness{
		registry: compare.Default(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with the default harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a scenario and evaluates its assertions.
//
// Execution flow:
// 1. Load and resolve the schema
// 2. Load both snapshots from files or inline sections
// 3. Run the engine with a fixed run id
// 4. Assemble the document and evaluate assertions
//
// An error is returned only when the scenario cannot be executed; failed
// assertions are reported in the Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	sch, err := schema.LoadFile(scenario.Schema, schema.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	result := NewResult()
	ref, refName, err := loadSnapshot(scenario.Reference, sch, "reference", result)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference: %w", err)
	}
	profile, profileName, err := loadSnapshot(scenario.Profile, sch, "profile", result)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	eng := engine.New(h.registry,
		engine.WithLogger(h.logger),
		engine.WithParallelism(scenario.Parallelism),
		engine.WithEmitMatches(scenario.EmitMatches),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(runID)),
	)

	res, err := eng.Run(ctx, sch, ref, profile)
	if err != nil {
		return nil, fmt.Errorf("comparison failed: %w", err)
	}

	result.Document = report.Assemble(res, report.DocumentInfo{
		ReferenceName: refName,
		ProfileName:   profileName,
		Meta: report.Meta{
			GeneratedBy:   GeneratedBy,
			SchemaVersion: sch.Version,
			RunID:         eng.NewRunID(),
			Warnings:      result.Warnings,
		},
	})

	for _, msg := range EvaluateAssertions(result.Document, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func loadSnapshot(s Snapshot, sch *schema.Schema, side string, result *Result) (record.Dataset, string, error) {
	if s.File != "" {
		snap, err := ingest.Load(s.File, sch, ingest.WithName(s.Name))
		if err != nil {
			return nil, "", err
		}
		result.Warnings = append(result.Warnings, snap.Warnings...)
		return snap.Data, snap.Name, nil
	}

	ds, err := ingest.FromMap(s.Sections)
	if err != nil {
		return nil, "", err
	}
	name := s.Name
	if name == "" {
		name = side
	}
	return ds, name, nil
}
