package compare

import (
	"fmt"

	"github.com/crocs-muni/scrutiny-viz/internal/match"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// Thresholds are the section's sensitivity knobs. Nil means unset.
type Thresholds struct {
	Ratio *float64
	Count *int
}

// Section is the per-section context a comparator works in.
type Section struct {
	Name           string
	MatchKey       string
	LabelKey       string
	Fields         []schema.Field
	IncludeMatches bool
	Thresholds     Thresholds
}

// NewSection builds the comparison context from a resolved section.
func NewSection(sec *schema.Section) *Section {
	return &Section{
		Name:           sec.Name,
		MatchKey:       sec.Component.MatchKey,
		LabelKey:       sec.Component.LabelKey(),
		Fields:         sec.Data.RecordSchema.Fields,
		IncludeMatches: sec.Component.IncludeMatches,
		Thresholds: Thresholds{
			Ratio: sec.Component.ThresholdRatio,
			Count: sec.Component.ThresholdCount,
		},
	}
}

// Verdict is what a comparator reports for one pair.
type Verdict struct {
	Diffs     []report.DiffEntry
	Matches   []report.MatchEntry
	Stats     report.Stats
	ChartRows []report.ChartRow
}

// Merge appends o to v.
func (v *Verdict) Merge(o Verdict) {
	v.Diffs = append(v.Diffs, o.Diffs...)
	v.Matches = append(v.Matches, o.Matches...)
	v.Stats.Add(o.Stats)
	v.ChartRows = append(v.ChartRows, o.ChartRows...)
}

// Comparator compares one pair of records. Pairs with a missing side are
// passed too, so a comparator decides how presence differences look.
// Implementations must not retain or modify the records.
type Comparator interface {
	Name() string
	Compare(pair match.Pair, sec *Section) Verdict
}

// Classifier is implemented by comparators that grade a whole section from
// its totals in addition to the per-entry severities.
type Classifier interface {
	Classify(stats report.Stats, th Thresholds) report.Severity
}

// FieldChecker is implemented by comparators whose target settings name
// record fields. CheckFields returns a *TargetError for the first setting
// naming a field the section's record_schema does not declare.
type FieldChecker interface {
	CheckFields(rs schema.RecordSchema) error
}

// Factory creates a comparator for a section's target configuration.
type Factory func(target *schema.Tree) (Comparator, error)

// Label returns the human-readable label of a pair: the label field of the
// reference record (or the profile record when the reference is absent),
// falling back to the key.
func Label(pair match.Pair, sec *Section) string {
	rec := pair.Ref
	if rec == nil {
		rec = pair.Profile
	}
	v := rec.Get(sec.LabelKey)
	if record.IsNull(v) {
		return pair.Key
	}
	return record.Format(v)
}

// Presence reports a key found on one side only: REMOVED when only the
// reference has it, ADDED when only the profile has it. Both are WARN.
func Presence(pair match.Pair, sec *Section) Verdict {
	label := Label(pair, sec)
	switch {
	case pair.RefOnly():
		return Verdict{
			Stats: report.Stats{OnlyRef: 1},
			Diffs: []report.DiffEntry{{
				Key:       pair.Key,
				ShowLabel: label,
				Status:    report.StatusRemoved,
				Severity:  report.StatusRemoved.DefaultSeverity(),
				Detail:    "present only in reference",
				Field:     report.FieldPresence,
				Ref:       record.Bool(true),
				Op:        report.OpNotEqual,
				Test:      record.Bool(false),
			}},
		}
	case pair.ProfileOnly():
		return Verdict{
			Stats: report.Stats{OnlyTest: 1},
			Diffs: []report.DiffEntry{{
				Key:       pair.Key,
				ShowLabel: label,
				Status:    report.StatusAdded,
				Severity:  report.StatusAdded.DefaultSeverity(),
				Detail:    "present only in profile",
				Field:     report.FieldPresence,
				Ref:       record.Bool(false),
				Op:        report.OpNotEqual,
				Test:      record.Bool(true),
			}},
		}
	}
	return Verdict{}
}

func changed(pair match.Pair, label, field string, ref, test record.Value) report.DiffEntry {
	return report.DiffEntry{
		Key:       pair.Key,
		ShowLabel: label,
		Status:    report.StatusChanged,
		Severity:  report.StatusChanged.DefaultSeverity(),
		Detail:    fmt.Sprintf("%s: %s != %s", field, record.Format(ref), record.Format(test)),
		Field:     field,
		Ref:       orNull(ref),
		Op:        report.OpNotEqual,
		Test:      orNull(test),
	}
}

func matched(pair match.Pair, label, field string, v record.Value) report.MatchEntry {
	return report.MatchEntry{Key: pair.Key, ShowLabel: label, Field: field, Value: orNull(v)}
}

func orNull(v record.Value) record.Value {
	if v == nil {
		return record.Null{}
	}
	return v
}
