package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
)

// AssertionError is returned when an assertion fails.
// It includes the section's entries to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Section  string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Diffs    []report.DiffEntry
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Section != "" {
		fmt.Fprintf(&buf, " [%s]", e.Section)
	}
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Diffs) > 0 {
		fmt.Fprintf(&buf, "\nSection diffs:\n")
		for i, d := range e.Diffs {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, diffLine(d))
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against doc and returns the
// failure messages in assertion order.
func EvaluateAssertions(doc *report.Document, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(doc, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(doc *report.Document, a Assertion) error {
	if a.Type == AssertOverall {
		return assertOverall(doc, a)
	}

	sr, ok := doc.Sections.Get(a.Section)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Section:  a.Section,
			Expected: "section in result",
			Actual:   fmt.Sprintf("sections are %v", doc.Sections.Names()),
		}
	}

	switch a.Type {
	case AssertSectionStatus:
		return assertSectionStatus(sr, a)
	case AssertSectionSeverity:
		return assertSectionSeverity(sr, a)
	case AssertDiffContains:
		return assertDiffContains(sr, a)
	case AssertDiffCount:
		return assertDiffCount(sr, a)
	case AssertStats:
		return assertStats(sr, a)
	case AssertWarningContains:
		return assertWarningContains(sr, a)
	case AssertIssueCount:
		return assertIssueCount(sr, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertOverall(doc *report.Document, a Assertion) error {
	want, err := report.ParseSeverity(a.Severity)
	if err != nil {
		return err
	}
	if doc.Overall != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: want.String(),
			Actual:   doc.Overall.String(),
		}
	}
	return nil
}

func assertSectionStatus(sr *report.SectionResult, a Assertion) error {
	if string(sr.Status) != a.Status || (a.Stage != "" && string(sr.Stage) != a.Stage) {
		expected := a.Status
		if a.Stage != "" {
			expected += " at " + a.Stage
		}
		actual := fmt.Sprintf("%s at %s", sr.Status, sr.Stage)
		if sr.Error != nil {
			actual += ": " + sr.Error.Message
		}
		return &AssertionError{Type: a.Type, Section: a.Section, Expected: expected, Actual: actual}
	}
	return nil
}

func assertSectionSeverity(sr *report.SectionResult, a Assertion) error {
	want, err := report.ParseSeverity(a.Severity)
	if err != nil {
		return err
	}
	if sr.Severity != want {
		return &AssertionError{
			Type:     a.Type,
			Section:  a.Section,
			Expected: want.String(),
			Actual:   sr.Severity.String(),
			Diffs:    sr.Diffs,
		}
	}
	return nil
}

// assertDiffContains looks for a diff entry with the given key whose status,
// field and severity match where set.
func assertDiffContains(sr *report.SectionResult, a Assertion) error {
	var sev *report.Severity
	if a.Severity != "" {
		s, err := report.ParseSeverity(a.Severity)
		if err != nil {
			return err
		}
		sev = &s
	}

	for _, d := range sr.Diffs {
		if d.Key != a.Key {
			continue
		}
		if a.Status != "" && string(d.Status) != a.Status {
			continue
		}
		if a.Field != "" && d.Field != a.Field {
			continue
		}
		if sev != nil && d.Severity != *sev {
			continue
		}
		return nil
	}

	return &AssertionError{
		Type:     a.Type,
		Section:  a.Section,
		Expected: describeDiff(a),
		Actual:   "not found in section diffs",
		Diffs:    sr.Diffs,
	}
}

func describeDiff(a Assertion) string {
	parts := []string{"key=" + a.Key}
	if a.Status != "" {
		parts = append(parts, "status="+a.Status)
	}
	if a.Field != "" {
		parts = append(parts, "field="+a.Field)
	}
	if a.Severity != "" {
		parts = append(parts, "severity="+strings.ToUpper(a.Severity))
	}
	return "diff " + strings.Join(parts, " ")
}

func assertDiffCount(sr *report.SectionResult, a Assertion) error {
	got := len(sr.Diffs)
	if a.Status != "" {
		got = sr.CountStatus(report.Status(a.Status))
	}
	if got != *a.Count {
		what := "diffs"
		if a.Status != "" {
			what = a.Status + " diffs"
		}
		return &AssertionError{
			Type:     a.Type,
			Section:  a.Section,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d %s", got, what),
			Diffs:    sr.Diffs,
		}
	}
	return nil
}

// assertStats checks a subset of the section counters.
func assertStats(sr *report.SectionResult, a Assertion) error {
	actual := map[string]int{
		"compared":  sr.Stats.Compared,
		"changed":   sr.Stats.Changed,
		"matched":   sr.Stats.Matched,
		"only_ref":  sr.Stats.OnlyRef,
		"only_test": sr.Stats.OnlyTest,
	}

	keys := make([]string, 0, len(a.Stats))
	for k := range a.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		if actual[k] != a.Stats[k] {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %d, got %d", k, a.Stats[k], actual[k]))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     a.Type,
			Section:  a.Section,
			Expected: fmt.Sprintf("stats %v", a.Stats),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

func assertWarningContains(sr *report.SectionResult, a Assertion) error {
	for _, w := range sr.Warnings {
		if strings.Contains(w, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Section:  a.Section,
		Expected: fmt.Sprintf("warning containing %q", a.Text),
		Actual:   fmt.Sprintf("warnings %q", sr.Warnings),
	}
}

func assertIssueCount(sr *report.SectionResult, a Assertion) error {
	if len(sr.Issues) != *a.Count {
		msgs := make([]string, len(sr.Issues))
		for i, is := range sr.Issues {
			msgs[i] = is.Error()
		}
		return &AssertionError{
			Type:     a.Type,
			Section:  a.Section,
			Expected: fmt.Sprintf("%d issues", *a.Count),
			Actual:   fmt.Sprintf("%d issues %q", len(sr.Issues), msgs),
		}
	}
	return nil
}
