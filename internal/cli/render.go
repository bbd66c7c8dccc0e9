package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
)

// Styles colours severities in text output.
type Styles struct {
	OK         lipgloss.Style
	Warn       lipgloss.Style
	Suspicious lipgloss.Style
	Error      lipgloss.Style
	Muted      lipgloss.Style
	Header     lipgloss.Style
}

// NewStyles returns the standard severity palette for w. Output that is not
// a terminal gets plain text.
func NewStyles(w io.Writer) *Styles {
	r := lipgloss.NewRenderer(w)
	return &Styles{
		OK:         r.NewStyle().Foreground(lipgloss.Color("2")),
		Warn:       r.NewStyle().Foreground(lipgloss.Color("3")),
		Suspicious: r.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		Error:      r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Muted:      r.NewStyle().Foreground(lipgloss.Color("8")),
		Header:     r.NewStyle().Bold(true),
	}
}

func (s *Styles) severity(sev report.Severity) lipgloss.Style {
	switch sev {
	case report.SeverityOK:
		return s.OK
	case report.SeverityWarn:
		return s.Warn
	case report.SeveritySuspicious:
		return s.Suspicious
	case report.SeverityError:
		return s.Error
	default:
		return s.Muted
	}
}

// renderLimits caps the per-section entry listings.
type renderLimits struct {
	Diffs   int
	Matches int
}

// renderDocument prints the comparison summary: a header, one table row per
// section, then up to limits.Diffs differences and limits.Matches matches
// per section.
func renderDocument(w io.Writer, doc *report.Document, limits renderLimits, styles *Styles) {
	fmt.Fprintf(w, "%s %s\n", styles.Header.Render("Reference:"), doc.ReferenceName)
	fmt.Fprintf(w, "%s %s\n", styles.Header.Render("Profile:"), doc.ProfileName)
	fmt.Fprintf(w, "%s %s\n", styles.Header.Render("Overall:"), styles.severity(doc.Overall).Render(doc.Overall.String()))
	if doc.Meta.RunID != "" {
		fmt.Fprintf(w, "%s\n", styles.Muted.Render("run "+doc.Meta.RunID))
	}
	for _, warning := range doc.Meta.Warnings {
		fmt.Fprintf(w, "%s\n", styles.Warn.Render("warning: "+warning))
	}
	fmt.Fprintln(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Section", "Comparator", "Status", "Severity", "Compared", "Changed", "Only ref", "Only profile"})
	for _, row := range doc.Dashboard.BySection {
		t.AppendRow(table.Row{
			row.Section,
			row.Comparator,
			string(row.Status),
			styles.severity(row.Severity).Render(row.Severity.String()),
			row.Compared,
			row.Changed,
			row.OnlyRef,
			row.OnlyTest,
		})
	}
	t.Render()

	if doc.Sections == nil {
		return
	}
	for _, name := range doc.Sections.Names() {
		sr, _ := doc.Sections.Get(name)
		renderSection(w, name, sr, limits, styles)
	}
}

func renderSection(w io.Writer, name string, sr *report.SectionResult, limits renderLimits, styles *Styles) {
	if sr.Error != nil {
		fmt.Fprintf(w, "\n%s %s\n", styles.Header.Render(name+":"),
			styles.Error.Render(fmt.Sprintf("failed at %s: %s", sr.Error.Stage, sr.Error.Message)))
		return
	}

	shown := min(limits.Diffs, len(sr.Diffs))
	matches := min(limits.Matches, len(sr.Matches))
	if shown == 0 && matches == 0 && len(sr.Warnings) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s\n", styles.Header.Render(name+":"))
	for _, warning := range sr.Warnings {
		fmt.Fprintf(w, "  %s\n", styles.Warn.Render("warning: "+warning))
	}
	for _, d := range sr.Diffs[:shown] {
		fmt.Fprintf(w, "  [%s] %s %s: %s\n",
			styles.severity(d.Severity).Render(d.Severity.String()),
			d.Status, displayLabel(d.ShowLabel, d.Key), d.Detail)
	}
	if rest := len(sr.Diffs) - shown; rest > 0 && shown > 0 {
		fmt.Fprintf(w, "  %s\n", styles.Muted.Render(fmt.Sprintf("... and %d more differences", rest)))
	}
	for _, m := range sr.Matches[:matches] {
		fmt.Fprintf(w, "  [%s] %s %s = %s\n",
			styles.OK.Render("MATCH"), displayLabel(m.ShowLabel, m.Key), m.Field, record.Format(m.Value))
	}
	if rest := len(sr.Matches) - matches; rest > 0 && matches > 0 {
		fmt.Fprintf(w, "  %s\n", styles.Muted.Render(fmt.Sprintf("... and %d more matches", rest)))
	}
}

func displayLabel(label, key string) string {
	if label == "" {
		return key
	}
	return label
}
