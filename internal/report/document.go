package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Document is the single artifact written per invocation: the comparison
// result wrapped with run metadata and dashboard counts for the renderer.
type Document struct {
	ReferenceName string    `json:"reference_name"`
	ProfileName   string    `json:"profile_name"`
	Theme         string    `json:"theme"`
	Overall       Severity  `json:"overall"`
	Sections      *Result   `json:"sections"`
	Dashboard     Dashboard `json:"dashboard"`
	Meta          Meta      `json:"meta"`
}

// Dashboard summarises section outcomes.
type Dashboard struct {
	OverallStateCounts map[string]int   `json:"overall_state_counts"`
	BySection          []SectionSummary `json:"by_section"`
}

// SectionSummary is one dashboard row.
type SectionSummary struct {
	Section    string        `json:"section"`
	Comparator string        `json:"comparator"`
	Status     SectionStatus `json:"status"`
	Severity   Severity      `json:"severity"`
	Compared   int           `json:"compared"`
	Changed    int           `json:"changed"`
	OnlyRef    int           `json:"only_ref"`
	OnlyTest   int           `json:"only_test"`
}

// Meta identifies the run that produced a document.
type Meta struct {
	GeneratedBy   string `json:"generated_by"`
	SchemaVersion string `json:"schema_version"`
	RunID         string `json:"run_id,omitempty"`

	// Warnings are run-level findings that belong to no section, such as
	// snapshot sections the schema does not declare.
	Warnings []string `json:"warnings,omitempty"`
}

// DocumentInfo carries the names and metadata Assemble cannot derive.
type DocumentInfo struct {
	ReferenceName string
	ProfileName   string
	Theme         string // empty: first section theme, else light
	Meta          Meta
}

// Assemble wraps res into a Document.
func Assemble(res *Result, info DocumentInfo) *Document {
	doc := &Document{
		ReferenceName: info.ReferenceName,
		ProfileName:   info.ProfileName,
		Theme:         info.Theme,
		Overall:       res.Overall(),
		Sections:      res,
		Meta:          info.Meta,
		Dashboard: Dashboard{
			OverallStateCounts: make(map[string]int, len(Severities)),
			BySection:          make([]SectionSummary, 0, res.Len()),
		},
	}
	for _, sev := range Severities {
		doc.Dashboard.OverallStateCounts[sev.String()] = 0
	}

	for _, name := range res.Names() {
		sr, _ := res.Get(name)
		if doc.Theme == "" && sr.Report.Theme != "" {
			doc.Theme = sr.Report.Theme
		}
		doc.Dashboard.OverallStateCounts[sr.Severity.String()]++
		doc.Dashboard.BySection = append(doc.Dashboard.BySection, SectionSummary{
			Section:    name,
			Comparator: sr.Comparator,
			Status:     sr.Status,
			Severity:   sr.Severity,
			Compared:   sr.Stats.Compared,
			Changed:    sr.Stats.Changed,
			OnlyRef:    sr.Stats.OnlyRef,
			OnlyTest:   sr.Stats.OnlyTest,
		})
	}
	if doc.Theme == "" {
		doc.Theme = "light"
	}
	return doc
}

// Encode writes the document as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// WriteFile writes the document to path.
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := d.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

// ReadDocument loads a document written by WriteFile.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &doc, nil
}
