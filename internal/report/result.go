package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
	"github.com/crocs-muni/scrutiny-viz/internal/validate"
)

// Pseudo field names used by entries that do not concern a single field.
const (
	FieldPresence = "__presence__" // the record exists on one side only
	FieldRecord   = "__record__"   // the record as a whole
)

// Entry operators.
const (
	OpNotEqual = "!="
	OpMoved    = "->" // a set member removed (Ref) or added (Test)
)

// DiffEntry is one reported difference.
type DiffEntry struct {
	Key       string       `json:"key"`
	ShowLabel string       `json:"show_label"`
	Status    Status       `json:"status"`
	Severity  Severity     `json:"severity"`
	Detail    string       `json:"detail"`
	Field     string       `json:"field,omitempty"`
	Ref       record.Value `json:"ref,omitempty"`
	Op        string       `json:"op,omitempty"`
	Test      record.Value `json:"test,omitempty"`
}

// UnmarshalJSON decodes the ref and test values into record values.
func (d *DiffEntry) UnmarshalJSON(data []byte) error {
	type plain DiffEntry
	aux := struct {
		*plain
		Ref  json.RawMessage `json:"ref,omitempty"`
		Test json.RawMessage `json:"test,omitempty"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if d.Ref, err = decodeOptional(aux.Ref); err != nil {
		return fmt.Errorf("diff entry %q ref: %w", d.Key, err)
	}
	if d.Test, err = decodeOptional(aux.Test); err != nil {
		return fmt.Errorf("diff entry %q test: %w", d.Key, err)
	}
	return nil
}

// MatchEntry records a field found equal on both sides.
type MatchEntry struct {
	Key       string       `json:"key"`
	ShowLabel string       `json:"show_label"`
	Field     string       `json:"field"`
	Value     record.Value `json:"value"`
}

// UnmarshalJSON decodes the value into a record value.
func (m *MatchEntry) UnmarshalJSON(data []byte) error {
	type plain MatchEntry
	aux := struct {
		*plain
		Value json.RawMessage `json:"value"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v, err := decodeOptional(aux.Value)
	if err != nil {
		return fmt.Errorf("match entry %q value: %w", m.Key, err)
	}
	if v == nil {
		v = record.Null{}
	}
	m.Value = v
	return nil
}

func decodeOptional(raw json.RawMessage) (record.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return record.Decode(raw)
}

// Stats counts what a comparator looked at.
type Stats struct {
	Compared int `json:"compared"`
	Changed  int `json:"changed"`
	Matched  int `json:"matched"`
	OnlyRef  int `json:"only_ref"`
	OnlyTest int `json:"only_test"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Compared += o.Compared
	s.Changed += o.Changed
	s.Matched += o.Matched
	s.OnlyRef += o.OnlyRef
	s.OnlyTest += o.OnlyTest
}

// Stage is a step of section evaluation.
type Stage string

const (
	StageLoaded     Stage = "LOADED"
	StageValidated  Stage = "VALIDATED"
	StageMatched    Stage = "MATCHED"
	StageCompared   Stage = "COMPARED"
	StageAggregated Stage = "AGGREGATED"
)

// Stages lists the evaluation stages in order.
var Stages = []Stage{StageLoaded, StageValidated, StageMatched, StageCompared, StageAggregated}

// SectionStatus tells whether a section completed.
type SectionStatus string

const (
	SectionCompleted SectionStatus = "COMPLETED"
	SectionError     SectionStatus = "SECTION_ERROR"
)

// Failure describes why a section did not complete.
type Failure struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// ChartRow is one algperf measurement prepared for charting.
type ChartRow struct {
	Key      string   `json:"key"`
	Status   string   `json:"status"`
	RefAvg   *float64 `json:"ref_avg"`
	TestAvg  *float64 `json:"test_avg"`
	DeltaMs  *float64 `json:"delta_ms"`
	DeltaPct *float64 `json:"delta_pct"`
	Note     string   `json:"note,omitempty"`
}

// Artifacts carries comparator-specific extras for the renderer.
type Artifacts struct {
	ChartRows []ChartRow `json:"chart_rows,omitempty"`
}

// SectionResult is the outcome of evaluating one section.
type SectionResult struct {
	Comparator string              `json:"comparator"`
	Status     SectionStatus       `json:"status"`
	Stage      Stage               `json:"stage"`
	Severity   Severity            `json:"severity"`
	Stats      Stats               `json:"stats"`
	KeyLabels  map[string]string   `json:"key_labels"`
	Diffs      []DiffEntry         `json:"diffs"`
	Matches    []MatchEntry        `json:"matches,omitempty"`
	Issues     []validate.Issue    `json:"issues,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
	Artifacts  *Artifacts          `json:"artifacts,omitempty"`
	Report     schema.ReportConfig `json:"report"`
	Error      *Failure            `json:"error,omitempty"`
}

// Failed reports whether the section ended in SECTION_ERROR.
func (s *SectionResult) Failed() bool {
	return s.Status == SectionError
}

// CountStatus returns the number of diff entries with status st.
func (s *SectionResult) CountStatus(st Status) int {
	n := 0
	for _, d := range s.Diffs {
		if d.Status == st {
			n++
		}
	}
	return n
}

// Result is the ordered mapping of section name to SectionResult.
type Result struct {
	names    []string
	sections map[string]*SectionResult
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{sections: make(map[string]*SectionResult)}
}

// Set stores the result for a section. A new name is appended to the order;
// replacing an existing name keeps its position.
func (r *Result) Set(name string, sr *SectionResult) {
	if _, ok := r.sections[name]; !ok {
		r.names = append(r.names, name)
	}
	r.sections[name] = sr
}

// Get returns the result for a section.
func (r *Result) Get(name string) (*SectionResult, bool) {
	sr, ok := r.sections[name]
	return sr, ok
}

// Names returns section names in order.
func (r *Result) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of sections.
func (r *Result) Len() int {
	return len(r.names)
}

// Overall returns the highest section severity, or OK for an empty result.
func (r *Result) Overall() Severity {
	out := SeverityOK
	for _, n := range r.names {
		out = MaxSeverity(out, r.sections[n].Severity)
	}
	return out
}

// MarshalJSON writes sections as an object in declaration order.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.sections[name])
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", name, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads sections back, keeping the document's key order.
func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("result must be a JSON object")
	}

	out := NewResult()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var sr SectionResult
		if err := dec.Decode(&sr); err != nil {
			return fmt.Errorf("section %q: %w", name, err)
		}
		out.Set(name, &sr)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = *out
	return nil
}
