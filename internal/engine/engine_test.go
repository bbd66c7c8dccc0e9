package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/crocs-muni/scrutiny-viz/internal/compare"
	"github.com/crocs-muni/scrutiny-viz/internal/match"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
	"github.com/crocs-muni/scrutiny-viz/internal/testutil"
	"github.com/crocs-muni/scrutiny-viz/internal/validate"
)

const refSnapshot = `{
  "algorithms": [
    {"name": "AES", "supported": true},
    {"name": "DES", "supported": true},
    {"name": "RSA", "supported": true}
  ],
  "timings": [
    {"name": "AES", "avg_ms": 10},
    {"name": "RSA", "avg_ms": 120}
  ]
}`

const profileSnapshot = `{
  "algorithms": [
    {"name": "AES", "supported": true},
    {"name": "RSA", "supported": false},
    {"name": "SM4", "supported": true}
  ],
  "timings": [
    {"name": "AES", "avg_ms": 13},
    {"name": "RSA", "avg_ms": 125}
  ]
}`

func newTestEngine(opts ...EngineOption) *Engine {
	return New(nil, append([]EngineOption{WithLogger(testutil.DiscardLogger())}, opts...)...)
}

func runAlgorithms(t *testing.T, e *Engine, ref, profile string) *report.Result {
	t.Helper()
	sch := testutil.Schema(t, testutil.AlgorithmSchema)
	res, err := e.Run(context.Background(), sch, testutil.Dataset(t, ref), testutil.Dataset(t, profile))
	require.NoError(t, err)
	return res
}

func section(t *testing.T, res *report.Result, name string) *report.SectionResult {
	t.Helper()
	sr, ok := res.Get(name)
	require.True(t, ok, "section %q missing", name)
	return sr
}

func TestEngine_IdenticalSnapshots(t *testing.T) {
	res := runAlgorithms(t, newTestEngine(), refSnapshot, refSnapshot)

	assert.Equal(t, []string{"algorithms", "timings"}, res.Names())
	for _, name := range res.Names() {
		sr := section(t, res, name)
		assert.Equal(t, report.SectionCompleted, sr.Status, name)
		assert.Equal(t, report.StageAggregated, sr.Stage, name)
		assert.Equal(t, report.SeverityOK, sr.Severity, name)
		assert.Empty(t, sr.Diffs, name)
		assert.NotNil(t, sr.Diffs, name)
	}
	assert.Equal(t, report.SeverityOK, res.Overall())
}

func TestEngine_Differences(t *testing.T) {
	res := runAlgorithms(t, newTestEngine(), refSnapshot, profileSnapshot)

	algs := section(t, res, "algorithms")
	assert.Equal(t, "basic", algs.Comparator)
	assert.Equal(t, report.SeverityWarn, algs.Severity)
	require.Len(t, algs.Diffs, 3)
	assert.Equal(t, []string{"DES", "RSA", "SM4"}, []string{algs.Diffs[0].Key, algs.Diffs[1].Key, algs.Diffs[2].Key})
	assert.Equal(t, report.StatusRemoved, algs.Diffs[0].Status)
	assert.Equal(t, report.StatusChanged, algs.Diffs[1].Status)
	assert.Equal(t, report.StatusAdded, algs.Diffs[2].Status)
	assert.Equal(t, report.Stats{Compared: 2, Changed: 1, Matched: 1, OnlyRef: 1, OnlyTest: 1}, algs.Stats)
	assert.Equal(t, map[string]string{"AES": "AES", "DES": "DES", "RSA": "RSA", "SM4": "SM4"}, algs.KeyLabels)
	assert.Equal(t, 1, algs.CountStatus(report.StatusAdded))

	timings := section(t, res, "timings")
	assert.Equal(t, report.SeverityWarn, timings.Severity)
	require.Len(t, timings.Diffs, 1)
	assert.Equal(t, "AES", timings.Diffs[0].Key)
	assert.Equal(t, report.StatusWarn, timings.Diffs[0].Status)
	require.NotNil(t, timings.Artifacts)
	assert.Len(t, timings.Artifacts.ChartRows, 2)

	assert.Equal(t, report.SeverityWarn, res.Overall())
}

func TestEngine_MissingSectionIsEmpty(t *testing.T) {
	res := runAlgorithms(t, newTestEngine(), refSnapshot, `{"algorithms": []}`)

	timings := section(t, res, "timings")
	assert.Equal(t, report.SectionCompleted, timings.Status)
	assert.Contains(t, timings.Warnings, `section "timings" missing from profile snapshot`)
	assert.Equal(t, 2, timings.Stats.OnlyRef)
	assert.Equal(t, 2, timings.CountStatus(report.StatusRemoved))
}

func TestEngine_MissingRequiredFieldStillCompared(t *testing.T) {
	res := runAlgorithms(t, newTestEngine(),
		`{"algorithms": [{"name": "AES", "supported": true}], "timings": []}`,
		`{"algorithms": [{"name": "AES"}], "timings": []}`,
	)

	algs := section(t, res, "algorithms")
	assert.Equal(t, report.SectionCompleted, algs.Status)
	require.Len(t, algs.Issues, 1)
	assert.Equal(t, validate.Issue{
		Side: SideProfile, Record: 0, Key: "AES", Field: "supported",
		Code: validate.CodeMissingField, Message: "required field is missing",
	}, algs.Issues[0])
	require.Len(t, algs.Diffs, 1)
	assert.Equal(t, "supported", algs.Diffs[0].Field)
}

func TestEngine_DuplicateKeysFirstWins(t *testing.T) {
	res := runAlgorithms(t, newTestEngine(),
		`{"algorithms": [{"name": "AES", "supported": true}, {"name": "AES", "supported": false}], "timings": []}`,
		`{"algorithms": [{"name": "AES", "supported": true}], "timings": []}`,
	)

	algs := section(t, res, "algorithms")
	assert.Empty(t, algs.Diffs)
	require.Len(t, algs.Issues, 1)
	assert.Equal(t, validate.CodeDuplicateKey, algs.Issues[0].Code)
	assert.Equal(t, SideReference, algs.Issues[0].Side)
}

func TestEngine_UnknownComparatorFallsBack(t *testing.T) {
	sch := testutil.Schema(t, `
schema_version: "0.12"
sections:
  caps:
    data:
      type: list
      record_schema: {name: string, value: string}
    component: {comparator: Fuzzy, match_key: name}
`)
	ds := testutil.Dataset(t, `{"caps": [{"name": "a", "value": "1"}]}`)

	res, err := newTestEngine().Run(context.Background(), sch, ds, ds)
	require.NoError(t, err)

	caps := section(t, res, "caps")
	assert.Equal(t, "basic", caps.Comparator)
	assert.Equal(t, report.SectionCompleted, caps.Status)
	require.Len(t, caps.Warnings, 1)
	assert.Contains(t, caps.Warnings[0], `"fuzzy"`)
}

type panicker struct{}

func (panicker) Name() string { return "boom" }

func (panicker) Compare(match.Pair, *compare.Section) compare.Verdict {
	panic("comparator exploded")
}

func TestEngine_SectionFailureIsIsolated(t *testing.T) {
	reg := compare.Default()
	reg.MustRegister("boom", func(*schema.Tree) (compare.Comparator, error) { return panicker{}, nil })

	sch := testutil.Schema(t, `
schema_version: "0.12"
defaults:
  data: {type: list, record_schema: {name: string, v: number}}
  component: {match_key: name}
sections:
  first:
    component: {comparator: boom}
  second:
    component: {comparator: basic}
`)
	ds := testutil.Dataset(t, `{"first": [{"name": "x", "v": 1}], "second": [{"name": "x", "v": 1}]}`)

	e := New(reg, WithLogger(testutil.DiscardLogger()))
	res, err := e.Run(context.Background(), sch, ds, ds)
	require.NoError(t, err)

	first := section(t, res, "first")
	assert.True(t, first.Failed())
	assert.Equal(t, report.SeverityError, first.Severity)
	assert.Equal(t, report.StageMatched, first.Stage)
	require.NotNil(t, first.Error)
	assert.Equal(t, report.StageMatched, first.Error.Stage)
	assert.Contains(t, first.Error.Message, "comparator exploded")
	assert.Empty(t, first.Diffs)

	second := section(t, res, "second")
	assert.Equal(t, report.SectionCompleted, second.Status)
	assert.Equal(t, report.SeverityOK, second.Severity)
	assert.Equal(t, report.SeverityError, res.Overall())
}

func TestEngine_BadTargetFailsAtLoaded(t *testing.T) {
	sch := testutil.Schema(t, `
schema_version: "0.12"
sections:
  perf:
    data:
      type: list
      record_schema: {name: string, avg_ms: number}
    component: {comparator: algperf, match_key: name}
    target: {metrics: 42}
`)
	res, err := newTestEngine().Run(context.Background(), sch, nil, nil)
	require.NoError(t, err)

	perf := section(t, res, "perf")
	assert.Equal(t, report.SectionError, perf.Status)
	assert.Equal(t, report.StageLoaded, perf.Stage)
	assert.Contains(t, perf.Error.Message, "target.metrics")
}

func TestEngine_UndeclaredTargetFieldFailsAtLoaded(t *testing.T) {
	sch := testutil.Schema(t, `
schema_version: "0.12"
sections:
  cplc:
    data:
      type: list
      record_schema: {field: string, value: string}
    component: {comparator: cplc, match_key: field}
    target: {value_field: valu}
  perf:
    data:
      type: list
      record_schema: {name: string, avg_ms: number}
    component: {comparator: algperf, match_key: name}
    target: {metrics: [avg_ms, p99_ms]}
`)
	ref := testutil.Dataset(t, `{"cplc": [{"field": "ic_fabricator", "value": "4790"}], "perf": []}`)
	profile := testutil.Dataset(t, `{"cplc": [{"field": "ic_fabricator", "value": "0000"}], "perf": []}`)

	res, err := newTestEngine().Run(context.Background(), sch, ref, profile)
	require.NoError(t, err)

	tests := []struct {
		section string
		want    string
	}{
		{"cplc", `cplc target.value_field: field "valu" is not declared in record_schema`},
		{"perf", `algperf target.metrics: field "p99_ms" is not declared in record_schema`},
	}
	for _, tt := range tests {
		t.Run(tt.section, func(t *testing.T) {
			sr := section(t, res, tt.section)
			assert.Equal(t, report.SectionError, sr.Status)
			assert.Equal(t, report.StageLoaded, sr.Stage)
			assert.Equal(t, report.SeverityError, sr.Severity)
			require.NotNil(t, sr.Error)
			assert.Contains(t, sr.Error.Message, tt.want)
			assert.Zero(t, sr.Stats.Matched)
		})
	}

	var te *compare.TargetError
	sp := mustPlan(t, sch).Section("cplc")
	require.ErrorAs(t, sp.BindErr, &te)
	assert.Equal(t, "value_field", te.Key)
}

func mustPlan(t *testing.T, sch *schema.Schema) *Plan {
	t.Helper()
	plan, err := newTestEngine().Compile(sch)
	require.NoError(t, err)
	return plan
}

func TestEngine_DefaultErrorFieldMayBeUndeclared(t *testing.T) {
	sch := testutil.Schema(t, `
schema_version: "0.12"
sections:
  perf:
    data:
      type: list
      record_schema: {name: string, avg_ms: number}
    component: {comparator: algperf, match_key: name}
`)
	ds := testutil.Dataset(t, `{"perf": [{"name": "AES", "avg_ms": 10}]}`)
	res, err := newTestEngine().Run(context.Background(), sch, ds, ds)
	require.NoError(t, err)

	perf := section(t, res, "perf")
	assert.Equal(t, report.SectionCompleted, perf.Status)
	assert.Equal(t, report.SeverityOK, perf.Severity)
}

func TestEngine_ExtremeTimingsStillEncode(t *testing.T) {
	res := runAlgorithms(t, newTestEngine(), `{"algorithms": [], "timings": [{"name": "AES", "avg_ms": 1e308}]}`,
		`{"algorithms": [], "timings": [{"name": "AES", "avg_ms": -1e308}]}`)

	timings := section(t, res, "timings")
	require.NotNil(t, timings.Artifacts)
	require.Len(t, timings.Artifacts.ChartRows, 1)
	assert.Nil(t, timings.Artifacts.ChartRows[0].DeltaMs)
	assert.Nil(t, timings.Artifacts.ChartRows[0].DeltaPct)

	_, err := json.Marshal(res)
	require.NoError(t, err)
}

func TestEngine_CompileKeepsBindErrors(t *testing.T) {
	sch := testutil.Schema(t, testutil.AlgorithmSchema)
	plan, err := New(compare.NewRegistry()).Compile(sch)
	require.NoError(t, err)

	require.Len(t, plan.Sections, 2)
	for _, sp := range plan.Sections {
		assert.Error(t, sp.BindErr)
		assert.Nil(t, sp.Comparator)
	}
	assert.Equal(t, "algperf", plan.Section("timings").ComparatorName)
	assert.Nil(t, plan.Section("nope"))
}

func TestEngine_InvalidSchema(t *testing.T) {
	e := newTestEngine()

	_, err := e.Run(context.Background(), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, schema.IsSchemaError(err))

	_, err = e.Run(context.Background(), &schema.Schema{Version: "0.12"}, nil, nil)
	var se *schema.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, schema.ErrCodeNoSections, se.Code)
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sch := testutil.Schema(t, testutil.AlgorithmSchema)
	for _, e := range []*Engine{newTestEngine(), newTestEngine(WithParallelism(4))} {
		_, err := e.Run(ctx, sch, nil, nil)
		assert.True(t, errors.Is(err, context.Canceled))
	}
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	seq := runAlgorithms(t, newTestEngine(), refSnapshot, profileSnapshot)
	par := runAlgorithms(t, newTestEngine(WithParallelism(8)), refSnapshot, profileSnapshot)

	a, err := json.Marshal(seq)
	require.NoError(t, err)
	b, err := json.Marshal(par)
	require.NoError(t, err)
	if diff := cmp.Diff(string(a), string(b)); diff != "" {
		t.Errorf("parallel result differs (-seq +par):\n%s", diff)
	}
}

func TestEngine_EmitMatches(t *testing.T) {
	res := runAlgorithms(t, newTestEngine(WithEmitMatches(true)), refSnapshot, profileSnapshot)

	algs := section(t, res, "algorithms")
	require.Len(t, algs.Matches, 1)
	assert.Equal(t, report.MatchEntry{Key: "AES", ShowLabel: "AES", Field: "supported", Value: record.Bool(true)}, algs.Matches[0])

	plain := runAlgorithms(t, newTestEngine(), refSnapshot, profileSnapshot)
	assert.Nil(t, section(t, plain, "algorithms").Matches)
}

func TestEngine_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetricsWithMeter(mp.Meter("test"))
	require.NoError(t, err)

	// DES loses its supported flag: one CHANGED entry and one profile issue.
	profile := `{
  "algorithms": [
    {"name": "AES", "supported": true},
    {"name": "DES"},
    {"name": "RSA", "supported": true}
  ],
  "timings": [
    {"name": "AES", "avg_ms": 10},
    {"name": "RSA", "avg_ms": 120}
  ]
}`
	res := runAlgorithms(t, newTestEngine(WithMetrics(m)), refSnapshot, profile)
	require.Equal(t, 2, res.Len())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, map[string]int64{
		"basic/COMPLETED/WARN": 1,
		"algperf/COMPLETED/OK": 1,
	}, sumByAttrs(t, rm, "scrutiny.section.count", "comparator", "status", "severity"))
	assert.Equal(t, map[string]int64{
		"basic/COMPLETED/WARN": 1,
	}, sumByAttrs(t, rm, "scrutiny.diff.count", "comparator", "status", "severity"))
	assert.Equal(t, map[string]int64{
		"basic": 1,
	}, sumByAttrs(t, rm, "scrutiny.validation.issue.count", "comparator"))

	hist, ok := findMetric(rm, "scrutiny.section.duration_seconds").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var observations uint64
	for _, dp := range hist.DataPoints {
		observations += dp.Count
	}
	assert.Equal(t, uint64(2), observations)

	_, err = NewMetrics()
	assert.NoError(t, err)
}

func findMetric(rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	return metricdata.Metrics{}
}

// sumByAttrs flattens an int64 counter into "a/b/c" attribute keys.
func sumByAttrs(t *testing.T, rm metricdata.ResourceMetrics, name string, keys ...string) map[string]int64 {
	t.Helper()
	sum, ok := findMetric(rm, name).Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s not recorded as an int64 sum", name)

	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		parts := make([]string, len(keys))
		for i, k := range keys {
			v, _ := dp.Attributes.Value(attribute.Key(k))
			parts[i] = v.AsString()
		}
		out[strings.Join(parts, "/")] += dp.Value
	}
	return out
}

func TestEngine_RoundTripThroughJSON(t *testing.T) {
	res := runAlgorithms(t, newTestEngine(), refSnapshot, profileSnapshot)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var back report.Result
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, res.Names(), back.Names())
	for _, name := range res.Names() {
		want := section(t, res, name)
		got := section(t, &back, name)
		assert.Equal(t, want.Severity, got.Severity, name)
		assert.Equal(t, want.Diffs, got.Diffs, name)
	}
}

func TestSectionError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&SectionError{Section: "s", Stage: report.StageCompared, Err: inner})

	assert.True(t, IsSectionError(err))
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, `section "s" failed at COMPARED: boom`, err.Error())
	assert.False(t, IsSectionError(inner))
}
