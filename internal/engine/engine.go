package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crocs-muni/scrutiny-viz/internal/compare"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// Engine runs schema-driven comparisons. An Engine holds no per-run state and
// may be used for any number of runs, including concurrent ones.
type Engine struct {
	registry    *compare.Registry
	logger      *slog.Logger
	parallelism int
	emitMatches bool
	metrics     *Metrics
	runIDs      RunIDGenerator
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithParallelism evaluates up to n sections at once. Values below 2 keep
// evaluation sequential. Output order does not depend on n.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		e.parallelism = n
	}
}

// WithEmitMatches forces include_matches on for every section.
func WithEmitMatches(on bool) EngineOption {
	return func(e *Engine) {
		e.emitMatches = on
	}
}

// WithMetrics records section outcomes on m.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRunIDGenerator sets the source of run ids. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// New creates an Engine that looks comparators up in reg. A nil reg means
// compare.Default().
func New(reg *compare.Registry, opts ...EngineOption) *Engine {
	if reg == nil {
		reg = compare.Default()
	}
	e := &Engine{
		registry:    reg,
		logger:      slog.Default(),
		parallelism: 1,
		runIDs:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRunID returns an id for a new run.
func (e *Engine) NewRunID() string {
	return e.runIDs.Generate()
}

// Run compares ref and profile section by section and returns one result per
// schema section, in declaration order. It fails only for an unusable schema
// or a cancelled context; everything that goes wrong inside a section is
// recorded in that section's result.
func (e *Engine) Run(ctx context.Context, sch *schema.Schema, ref, profile record.Dataset) (*report.Result, error) {
	plan, err := e.Compile(sch)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan, ref, profile)
}

// Execute runs a compiled plan.
func (e *Engine) Execute(ctx context.Context, plan *Plan, ref, profile record.Dataset) (*report.Result, error) {
	results := make([]*report.SectionResult, len(plan.Sections))

	if e.parallelism > 1 {
		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(e.parallelism)
		for i, sp := range plan.Sections {
			eg.Go(func() error {
				if err := egctx.Err(); err != nil {
					return err
				}
				results[i] = e.evaluate(egctx, sp, ref, profile)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, sp := range plan.Sections {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = e.evaluate(ctx, sp, ref, profile)
		}
	}

	res := report.NewResult()
	for i, sp := range plan.Sections {
		res.Set(sp.Section.Name, results[i])
	}
	e.logger.Info("comparison finished",
		"sections", res.Len(),
		"overall", res.Overall().String(),
	)
	return res, nil
}

// evaluate runs one section and always returns a result for it.
func (e *Engine) evaluate(ctx context.Context, sp *SectionPlan, ref, profile record.Dataset) *report.SectionResult {
	start := time.Now()
	sr := &report.SectionResult{
		Comparator: sp.ComparatorName,
		Status:     report.SectionCompleted,
		Stage:      report.StageLoaded,
		KeyLabels:  map[string]string{},
		Diffs:      []report.DiffEntry{},
		Warnings:   append([]string(nil), sp.Warnings...),
		Report:     sp.Section.Report,
	}

	if err := e.runStages(sp, sr, ref, profile); err != nil {
		se := &SectionError{Section: sp.Section.Name, Stage: sr.Stage, Err: err}
		e.logger.Error("section failed",
			"section", se.Section,
			"comparator", sr.Comparator,
			"stage", string(se.Stage),
			"error", err,
		)
		sr.Status = report.SectionError
		sr.Severity = report.SeverityError
		sr.Stats = report.Stats{}
		sr.Diffs = []report.DiffEntry{}
		sr.Matches = nil
		sr.Artifacts = nil
		sr.Error = se.failure()
	} else {
		e.logger.Debug("section evaluated",
			"section", sp.Section.Name,
			"comparator", sr.Comparator,
			"severity", sr.Severity.String(),
			"diffs", len(sr.Diffs),
			"issues", len(sr.Issues),
		)
	}

	if e.metrics != nil {
		e.metrics.RecordSection(ctx, sr, time.Since(start))
	}
	return sr
}
