package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
	"github.com/crocs-muni/scrutiny-viz/internal/validate"
)

func ptr(f float64) *float64 { return &f }

func sampleResult() *Result {
	res := NewResult()
	res.Set("zeta", &SectionResult{
		Comparator: "basic",
		Status:     SectionCompleted,
		Stage:      StageAggregated,
		Severity:   SeverityWarn,
		Stats:      Stats{Compared: 3, Changed: 1, Matched: 2, OnlyRef: 1},
		KeyLabels:  map[string]string{"AES": "AES-128", "RSA": "RSA"},
		Diffs: []DiffEntry{
			{Key: "AES", ShowLabel: "AES-128", Status: StatusChanged, Severity: SeverityWarn,
				Detail: "supported: true != false", Field: "supported", Ref: record.Bool(true), Op: OpNotEqual, Test: record.Bool(false)},
			{Key: "DES", ShowLabel: "DES", Status: StatusRemoved, Severity: SeverityWarn,
				Detail: "present only in reference", Field: FieldPresence, Ref: record.Bool(true), Op: OpNotEqual, Test: record.Bool(false)},
			{Key: "RSA", ShowLabel: "RSA", Status: StatusChanged, Severity: SeverityWarn,
				Detail: "note: null != x", Field: "note", Ref: record.Null{}, Op: OpNotEqual, Test: record.String("x")},
		},
		Matches: []MatchEntry{
			{Key: "RSA", ShowLabel: "RSA", Field: "key_len", Value: record.Number(2048)},
			{Key: "RSA", ShowLabel: "RSA", Field: "tags", Value: record.List{record.String("asym")}},
		},
		Issues: []validate.Issue{{Side: "profile", Record: 1, Field: "supported", Code: validate.CodeMissingField, Message: "required field is missing"}},
		Report: schema.ReportConfig{Types: []schema.ReportType{{Type: "table"}}, Theme: "dark"},
	})
	res.Set("alpha", &SectionResult{
		Comparator: "algperf",
		Status:     SectionCompleted,
		Stage:      StageAggregated,
		Severity:   SeveritySuspicious,
		Stats:      Stats{Compared: 1, Changed: 1},
		KeyLabels:  map[string]string{"ECDSA": "ECDSA"},
		Diffs: []DiffEntry{
			{Key: "ECDSA", ShowLabel: "ECDSA", Status: StatusSuspicious, Severity: SeveritySuspicious,
				Detail: "avg_ms: 10 -> 15 (+50.0%)", Field: "avg_ms", Ref: record.Number(10), Op: OpNotEqual, Test: record.Number(15)},
		},
		Artifacts: &Artifacts{ChartRows: []ChartRow{
			{Key: "ECDSA", Status: "SUSPICIOUS", RefAvg: ptr(10), TestAvg: ptr(15), DeltaMs: ptr(5), DeltaPct: ptr(50)},
		}},
	})
	res.Set("broken", &SectionResult{
		Comparator: "basic",
		Status:     SectionError,
		Stage:      StageMatched,
		Severity:   SeverityError,
		KeyLabels:  map[string]string{},
		Diffs:      []DiffEntry{},
		Error:      &Failure{Stage: StageMatched, Message: "boom"},
	})
	return res
}

func TestSeverityOrder(t *testing.T) {
	assert.Less(t, SeverityOK, SeverityWarn)
	assert.Less(t, SeverityWarn, SeveritySuspicious)
	assert.Less(t, SeveritySuspicious, SeverityError)
	assert.Equal(t, SeveritySuspicious, MaxSeverity(SeverityWarn, SeveritySuspicious, SeverityOK))
	assert.Equal(t, SeverityOK, MaxSeverity())
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"ok", SeverityOK, false},
		{"MATCH", SeverityOK, false},
		{"warn", SeverityWarn, false},
		{"Suspicious", SeveritySuspicious, false},
		{" error ", SeverityError, false},
		{"fatal", SeverityOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeverity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(SeveritySuspicious)
	require.NoError(t, err)
	assert.Equal(t, `"SUSPICIOUS"`, string(data))

	var s Severity
	require.NoError(t, json.Unmarshal([]byte(`"WARN"`), &s))
	assert.Equal(t, SeverityWarn, s)
	assert.Error(t, json.Unmarshal([]byte(`"LOUD"`), &s))
}

func TestStatusDefaultSeverity(t *testing.T) {
	assert.Equal(t, SeverityWarn, StatusAdded.DefaultSeverity())
	assert.Equal(t, SeverityWarn, StatusRemoved.DefaultSeverity())
	assert.Equal(t, SeverityWarn, StatusChanged.DefaultSeverity())
	assert.Equal(t, SeverityWarn, StatusWarn.DefaultSeverity())
	assert.Equal(t, SeveritySuspicious, StatusSuspicious.DefaultSeverity())
	assert.Equal(t, SeverityOK, StatusMatch.DefaultSeverity())
}

func TestResultKeepsDeclarationOrder(t *testing.T) {
	res := sampleResult()
	data, err := json.Marshal(res)
	require.NoError(t, err)

	zeta := bytes.Index(data, []byte(`"zeta"`))
	alpha := bytes.Index(data, []byte(`"alpha"`))
	broken := bytes.Index(data, []byte(`"broken"`))
	assert.True(t, zeta < alpha && alpha < broken, "sections out of order: %s", data)
}

func TestResultRoundTrip(t *testing.T) {
	res := sampleResult()

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, res.Names(), back.Names())
	for _, name := range res.Names() {
		want, _ := res.Get(name)
		got, ok := back.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestResultSetReplaceKeepsPosition(t *testing.T) {
	res := NewResult()
	res.Set("a", &SectionResult{Severity: SeverityOK})
	res.Set("b", &SectionResult{Severity: SeverityOK})
	res.Set("a", &SectionResult{Severity: SeverityWarn})

	assert.Equal(t, []string{"a", "b"}, res.Names())
	assert.Equal(t, SeverityWarn, res.Overall())
}

func TestResultUnmarshalRejectsNonObject(t *testing.T) {
	var r Result
	assert.Error(t, json.Unmarshal([]byte(`[]`), &r))
}

func TestDiffEntryOmitsAbsentValues(t *testing.T) {
	data, err := json.Marshal(DiffEntry{Key: "k", ShowLabel: "k", Status: StatusAdded, Severity: SeverityWarn, Detail: "d"})
	require.NoError(t, err)
	assert.Equal(t, `{"key":"k","show_label":"k","status":"ADDED","severity":"WARN","detail":"d"}`, string(data))

	var back DiffEntry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Nil(t, back.Ref)
	assert.Nil(t, back.Test)
}

func TestAssembleDocument(t *testing.T) {
	res := sampleResult()
	doc := Assemble(res, DocumentInfo{
		ReferenceName: "ref.json",
		ProfileName:   "card.json",
		Meta:          Meta{GeneratedBy: "scrutiny test", SchemaVersion: "0.12", RunID: "run-1"},
	})

	assert.Equal(t, SeverityError, doc.Overall)
	assert.Equal(t, "dark", doc.Theme)
	assert.Equal(t, map[string]int{"OK": 0, "WARN": 1, "SUSPICIOUS": 1, "ERROR": 1}, doc.Dashboard.OverallStateCounts)
	require.Len(t, doc.Dashboard.BySection, 3)
	assert.Equal(t, SectionSummary{
		Section: "zeta", Comparator: "basic", Status: SectionCompleted, Severity: SeverityWarn,
		Compared: 3, Changed: 1, OnlyRef: 1,
	}, doc.Dashboard.BySection[0])
	assert.Equal(t, "broken", doc.Dashboard.BySection[2].Section)
}

func TestAssembleDefaultTheme(t *testing.T) {
	doc := Assemble(NewResult(), DocumentInfo{})
	assert.Equal(t, "light", doc.Theme)
	assert.Equal(t, SeverityOK, doc.Overall)
	assert.Empty(t, doc.Dashboard.BySection)
}

func TestDocumentFileRoundTrip(t *testing.T) {
	doc := Assemble(sampleResult(), DocumentInfo{ReferenceName: "r", ProfileName: "p", Meta: Meta{GeneratedBy: "t", SchemaVersion: "0.12"}})
	path := filepath.Join(t.TempDir(), "verification.json")

	require.NoError(t, doc.WriteFile(path))
	back, err := ReadDocument(path)
	require.NoError(t, err)

	assert.Equal(t, doc.Overall, back.Overall)
	assert.Equal(t, doc.Dashboard, back.Dashboard)
	assert.Equal(t, doc.Meta, back.Meta)
	assert.Equal(t, doc.Sections.Names(), back.Sections.Names())
	for _, name := range doc.Sections.Names() {
		want, _ := doc.Sections.Get(name)
		got, _ := back.Sections.Get(name)
		assert.Equal(t, want, got, name)
	}
}
