package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
)

// Metrics holds OTel instruments for section evaluation. NewMetrics uses the
// global meter provider, which is a no-op unless the program installs an
// SDK; the verify command passes its own SDK meter when --metrics-file is set.
type Metrics struct {
	Sections        metric.Int64Counter
	SectionDuration metric.Float64Histogram
	DiffEntries     metric.Int64Counter
	Issues          metric.Int64Counter
}

// NewMetrics creates the engine instruments.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter("scrutiny"))
}

// NewMetricsWithMeter creates the engine instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	sections, err := meter.Int64Counter("scrutiny.section.count",
		metric.WithDescription("Number of sections evaluated"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("scrutiny.section.duration_seconds",
		metric.WithDescription("Time spent evaluating one section"),
	)
	if err != nil {
		return nil, err
	}

	diffs, err := meter.Int64Counter("scrutiny.diff.count",
		metric.WithDescription("Number of diff entries produced"),
	)
	if err != nil {
		return nil, err
	}

	issues, err := meter.Int64Counter("scrutiny.validation.issue.count",
		metric.WithDescription("Number of record validation issues"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Sections:        sections,
		SectionDuration: duration,
		DiffEntries:     diffs,
		Issues:          issues,
	}, nil
}

// RecordSection records the outcome of one section.
func (m *Metrics) RecordSection(ctx context.Context, sr *report.SectionResult, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("comparator", sr.Comparator),
		attribute.String("status", string(sr.Status)),
		attribute.String("severity", sr.Severity.String()),
	)
	m.Sections.Add(ctx, 1, attrs)
	m.SectionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("comparator", sr.Comparator)),
	)
	if n := len(sr.Diffs); n > 0 {
		m.DiffEntries.Add(ctx, int64(n), attrs)
	}
	if n := len(sr.Issues); n > 0 {
		m.Issues.Add(ctx, int64(n),
			metric.WithAttributes(attribute.String("comparator", sr.Comparator)),
		)
	}
}
