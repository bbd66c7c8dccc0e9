package engine

import (
	"fmt"

	"github.com/crocs-muni/scrutiny-viz/internal/compare"
	"github.com/crocs-muni/scrutiny-viz/internal/match"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/validate"
)

// Snapshot sides, as used in issues and warnings.
const (
	SideReference = "reference"
	SideProfile   = "profile"
)

// runStages moves sr through LOADED, VALIDATED, MATCHED, COMPARED and
// AGGREGATED. sr.Stage always holds the last stage reached, so a failure is
// reported against it. Panics are recovered into a PanicError.
func (e *Engine) runStages(sp *SectionPlan, sr *report.SectionResult, ref, profile record.Dataset) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	if sp.BindErr != nil {
		return sp.BindErr
	}
	sec := sp.Context

	refRecs := e.load(sr, sec.Name, SideReference, ref)
	profRecs := e.load(sr, sec.Name, SideProfile, profile)

	rs := sp.Section.Data.RecordSchema
	sr.Issues = append(sr.Issues, tag(validate.Records(refRecs, rs, sec.MatchKey), SideReference)...)
	sr.Issues = append(sr.Issues, tag(validate.Records(profRecs, rs, sec.MatchKey), SideProfile)...)
	sr.Stage = report.StageValidated

	m := match.Match(refRecs, profRecs, sec.MatchKey)
	sr.Stage = report.StageMatched

	var v compare.Verdict
	for _, pair := range m.Ordered() {
		sr.KeyLabels[pair.Key] = compare.Label(pair, sec)
		v.Merge(sp.Comparator.Compare(pair, sec))
	}
	sr.Stage = report.StageCompared

	aggregate(sr, v, sp.Comparator, sec.Thresholds)
	sr.Stage = report.StageAggregated
	return nil
}

// load fetches one side's records. A section the snapshot does not have is
// compared as an empty list and noted as a warning.
func (e *Engine) load(sr *report.SectionResult, section, side string, ds record.Dataset) []record.Record {
	recs, ok := ds.Section(section)
	if !ok {
		msg := fmt.Sprintf("section %q missing from %s snapshot", section, side)
		e.logger.Warn("section missing", "section", section, "side", side)
		sr.Warnings = append(sr.Warnings, msg)
		return nil
	}
	return recs
}

func tag(issues []validate.Issue, side string) []validate.Issue {
	for i := range issues {
		issues[i].Side = side
	}
	return issues
}

// aggregate fills in the section's entries, counts and severity. The
// severity is the highest entry severity, raised by the comparator's own
// classification when it has one.
func aggregate(sr *report.SectionResult, v compare.Verdict, comp compare.Comparator, th compare.Thresholds) {
	if v.Diffs != nil {
		sr.Diffs = v.Diffs
	}
	sr.Matches = v.Matches
	sr.Stats = v.Stats

	sev := report.SeverityOK
	for _, d := range v.Diffs {
		sev = report.MaxSeverity(sev, d.Severity)
	}
	if c, ok := comp.(compare.Classifier); ok {
		sev = report.MaxSeverity(sev, c.Classify(v.Stats, th))
	}
	sr.Severity = sev

	if len(v.ChartRows) > 0 {
		sr.Artifacts = &report.Artifacts{ChartRows: v.ChartRows}
	}
}
