package compare

import (
	"fmt"
	"math"

	"github.com/crocs-muni/scrutiny-viz/internal/match"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// DefaultRatio is the relative change algperf tolerates when the section
// sets no threshold_ratio.
const DefaultRatio = 0.2

// Chart row statuses.
const (
	ChartMatch         = "match"
	ChartMismatch      = "mismatch"
	ChartSkipped       = "skipped"
	ChartDataError     = "data_error"
	ChartError         = "error"
	ChartErrorMismatch = "error_mismatch"
	ChartMissing       = "missing"
	ChartExtra         = "extra"
)

// AlgPerf compares algorithm timing measurements. For each metric the
// relative change (profile-ref)/ref is checked against threshold_ratio.
// Metrics over the ratio are WARN while their number stays within
// threshold_count and SUSPICIOUS beyond it; with no threshold_count they are
// WARN. A change from a zero reference is always SUSPICIOUS.
//
// A non-empty error field on either side replaces the numeric comparison
// with one CHANGED entry carrying the error text.
type AlgPerf struct {
	Metrics     []string
	ErrorField  string
	MinField    string
	MaxField    string
	SkipBelowMs float64
	UseSpread   bool

	// errorFieldSet is true when error_field was given explicitly. The
	// default "error" field may be absent from record_schema.
	errorFieldSet bool
}

// NewAlgPerf is the algperf Factory. Target settings:
//
//	metrics        metric fields to compare (default [avg_ms])
//	error_field    field holding a measurement failure (default "error")
//	min_field      reference minimum, used with use_spread (default "min_ms")
//	max_field      reference maximum, used with use_spread (default "max_ms")
//	skip_below_ms  treat pairs where both sides are at or below this as equal (default 0, off)
//	use_spread     ignore changes within the reference min..max spread (default false)
func NewAlgPerf(target *schema.Tree) (Comparator, error) {
	r := newTargetReader("algperf", target)
	a := AlgPerf{
		Metrics:     r.Strings("metrics", []string{"avg_ms"}),
		ErrorField:  r.String("error_field", "error"),
		MinField:    r.String("min_field", "min_ms"),
		MaxField:    r.String("max_field", "max_ms"),
		SkipBelowMs: r.Float("skip_below_ms", 0),
		UseSpread:   r.Bool("use_spread", false),

		errorFieldSet: r.Has("error_field"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

func (AlgPerf) Name() string { return "algperf" }

// CheckFields requires every metric to be declared, error_field when set
// explicitly, and min_field and max_field when use_spread is on.
func (a AlgPerf) CheckFields(rs schema.RecordSchema) error {
	for _, m := range a.Metrics {
		if !rs.Has(m) {
			return undeclaredField("algperf", "metrics", m)
		}
	}
	if a.errorFieldSet && !rs.Has(a.ErrorField) {
		return undeclaredField("algperf", "error_field", a.ErrorField)
	}
	if a.UseSpread {
		if !rs.Has(a.MinField) {
			return undeclaredField("algperf", "min_field", a.MinField)
		}
		if !rs.Has(a.MaxField) {
			return undeclaredField("algperf", "max_field", a.MaxField)
		}
	}
	return nil
}

func (a AlgPerf) primary() string { return a.Metrics[0] }

func (a AlgPerf) Compare(pair match.Pair, sec *Section) Verdict {
	if pair.Ref == nil || pair.Profile == nil {
		v := Presence(pair, sec)
		row := report.ChartRow{Key: pair.Key}
		if pair.RefOnly() {
			row.Status, row.Note = ChartMissing, "present only in reference"
			row.RefAvg = a.num(pair.Ref, a.primary())
		} else {
			row.Status, row.Note = ChartExtra, "present only in profile"
			row.TestAvg = a.num(pair.Profile, a.primary())
		}
		v.ChartRows = append(v.ChartRows, row)
		return v
	}
	label := Label(pair, sec)

	if v, ok := a.compareErrors(pair, label); ok {
		return v
	}

	ratio := DefaultRatio
	if sec.Thresholds.Ratio != nil {
		ratio = *sec.Thresholds.Ratio
	}

	var (
		v        Verdict
		exceeded []metricChange
		row      = report.ChartRow{Key: pair.Key, Status: ChartMatch, Note: "similar"}
	)
	for i, metric := range a.Metrics {
		rv, pv := pair.Ref.Get(metric), pair.Profile.Get(metric)
		r, rok := record.Float(rv)
		p, pok := record.Float(pv)
		v.Stats.Compared++

		if i == 0 {
			row.RefAvg, row.TestAvg = floatPtr(r, rok), floatPtr(p, pok)
			if rok && pok {
				// Deltas of extreme values can overflow; the row then
				// carries none rather than an unencodable Inf.
				delta := p - r
				row.DeltaMs = floatPtr(delta, finite(delta))
				pct := delta / r * 100
				row.DeltaPct = floatPtr(pct, r != 0 && finite(pct))
			}
		}

		if !rok || !pok {
			v.Stats.Changed++
			d := changed(pair, label, metric, rv, pv)
			d.Detail = fmt.Sprintf("%s: missing numeric value (ref=%s, profile=%s)", metric, record.Format(rv), record.Format(pv))
			v.Diffs = append(v.Diffs, d)
			if i == 0 {
				row.Status, row.Note = ChartDataError, "missing numeric "+metric
			}
			continue
		}

		if a.SkipBelowMs > 0 && r <= a.SkipBelowMs && p <= a.SkipBelowMs {
			v.Stats.Matched++
			if sec.IncludeMatches {
				v.Matches = append(v.Matches, matched(pair, label, metric+" (skipped)", pv))
			}
			if i == 0 {
				row.Status, row.Note = ChartSkipped, "fast op"
			}
			continue
		}

		if a.withinTolerance(pair, r, p, ratio) {
			v.Stats.Matched++
			if sec.IncludeMatches {
				v.Matches = append(v.Matches, matched(pair, label, metric, pv))
			}
			continue
		}

		exceeded = append(exceeded, metricChange{field: metric, ref: r, profile: p})
		if i == 0 {
			row.Status, row.Note = ChartMismatch, "significant diff"
		}
	}

	status := report.StatusWarn
	if c := sec.Thresholds.Count; c != nil && len(exceeded) > *c {
		status = report.StatusSuspicious
	}
	for _, m := range exceeded {
		st := status
		if m.ref == 0 {
			st = report.StatusSuspicious
		}
		v.Stats.Changed++
		v.Diffs = append(v.Diffs, report.DiffEntry{
			Key:       pair.Key,
			ShowLabel: label,
			Status:    st,
			Severity:  st.DefaultSeverity(),
			Detail:    m.detail(),
			Field:     m.field,
			Ref:       record.Number(m.ref),
			Op:        compareOp(m.ref, m.profile),
			Test:      record.Number(m.profile),
		})
	}
	v.ChartRows = append(v.ChartRows, row)
	return v
}

// compareErrors handles pairs where either side recorded a failure.
func (a AlgPerf) compareErrors(pair match.Pair, label string) (Verdict, bool) {
	rErr, pErr := pair.Ref.Get(a.ErrorField), pair.Profile.Get(a.ErrorField)
	if !hasError(rErr) && !hasError(pErr) {
		return Verdict{}, false
	}

	row := report.ChartRow{Key: pair.Key}
	if record.Equal(rErr, pErr) {
		row.Status, row.Note = ChartError, "both failed: "+record.Format(rErr)
	} else {
		row.Status = ChartErrorMismatch
		row.Note = fmt.Sprintf("error ref=%s vs prof=%s", record.Format(rErr), record.Format(pErr))
	}
	d := changed(pair, label, a.ErrorField, rErr, pErr)
	d.Detail = fmt.Sprintf("%s: ref=%s, profile=%s", a.ErrorField, record.Format(rErr), record.Format(pErr))
	return Verdict{
		Stats:     report.Stats{Compared: 1, Changed: 1},
		Diffs:     []report.DiffEntry{d},
		ChartRows: []report.ChartRow{row},
	}, true
}

func (a AlgPerf) withinTolerance(pair match.Pair, r, p, ratio float64) bool {
	if r == 0 {
		return p == 0
	}
	delta := math.Abs(p - r)
	if a.UseSpread {
		lo, lok := record.Float(pair.Ref.Get(a.MinField))
		hi, hok := record.Float(pair.Ref.Get(a.MaxField))
		if lok && hok && delta <= hi-lo {
			return true
		}
	}
	return delta/math.Abs(r) <= ratio
}

func (a AlgPerf) num(rec record.Record, field string) *float64 {
	f, ok := record.Float(rec.Get(field))
	return floatPtr(f, ok)
}

type metricChange struct {
	field   string
	ref     float64
	profile float64
}

func (m metricChange) detail() string {
	if m.ref == 0 {
		return fmt.Sprintf("%s: %s -> %s (from zero)", m.field, record.FormatNumber(m.ref), record.FormatNumber(m.profile))
	}
	pct := (m.profile - m.ref) / m.ref * 100
	return fmt.Sprintf("%s: %s -> %s (%+.1f%%)", m.field, record.FormatNumber(m.ref), record.FormatNumber(m.profile), pct)
}

func hasError(v record.Value) bool {
	switch val := v.(type) {
	case nil, record.Null:
		return false
	case record.String:
		return val != ""
	case record.Bool:
		return bool(val)
	default:
		return true
	}
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func compareOp(r, p float64) string {
	switch {
	case r < p:
		return "<"
	case r > p:
		return ">"
	}
	return "=="
}

func floatPtr(f float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &f
}
