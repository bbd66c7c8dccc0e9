package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
)

// Digest renders doc as stable, line-oriented text for golden comparison.
// Severity counts follow report.Severities and sections keep document order,
// so equal documents always give equal digests.
func Digest(name string, doc *report.Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "reference: %s\n", doc.ReferenceName)
	fmt.Fprintf(&b, "profile: %s\n", doc.ProfileName)
	fmt.Fprintf(&b, "run_id: %s\n", doc.Meta.RunID)
	fmt.Fprintf(&b, "overall: %s\n", doc.Overall)

	counts := make([]string, len(report.Severities))
	for i, sev := range report.Severities {
		counts[i] = fmt.Sprintf("%s=%d", sev, doc.Dashboard.OverallStateCounts[sev.String()])
	}
	fmt.Fprintf(&b, "sections: %s\n", strings.Join(counts, " "))
	for _, w := range doc.Meta.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}

	for _, name := range doc.Sections.Names() {
		sr, _ := doc.Sections.Get(name)
		fmt.Fprintf(&b, "\n[%s] %s %s %s %s\n", name, sr.Comparator, sr.Status, sr.Stage, sr.Severity)
		if sr.Error != nil {
			fmt.Fprintf(&b, "  error: %s\n", sr.Error.Message)
			continue
		}
		s := sr.Stats
		fmt.Fprintf(&b, "  stats: compared=%d changed=%d matched=%d only_ref=%d only_test=%d\n",
			s.Compared, s.Changed, s.Matched, s.OnlyRef, s.OnlyTest)
		for _, w := range sr.Warnings {
			fmt.Fprintf(&b, "  warning: %s\n", w)
		}
		for _, is := range sr.Issues {
			fmt.Fprintf(&b, "  issue: %s\n", is.Error())
		}
		for _, d := range sr.Diffs {
			fmt.Fprintf(&b, "  diff: %s\n", diffLine(d))
		}
		for _, m := range sr.Matches {
			fmt.Fprintf(&b, "  match: %s %s\n", m.Key, m.Field)
		}
		if sr.Artifacts != nil {
			for _, row := range sr.Artifacts.ChartRows {
				fmt.Fprintf(&b, "  chart: %s %s\n", row.Key, row.Status)
			}
		}
	}
	return b.String()
}

func diffLine(d report.DiffEntry) string {
	field := d.Field
	if field == "" {
		field = "-"
	}
	return fmt.Sprintf("%s %s %s %s: %s", d.Key, d.Status, d.Severity, field, d.Detail)
}

// RunWithGolden executes a scenario, fails the test on unmet assertions and
// compares the document digest against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares the digest of an already executed result against
// the golden file for scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, []byte(Digest(scenarioName, result.Document)))
}
