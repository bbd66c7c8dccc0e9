package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/testutil"
)

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "card.json", `{
  "algorithms": [{"name": "AES", "supported": true}],
  "timings": [{"name": "AES", "avg_ms": 10.5}],
  "extra": []
}`)
	sch := testutil.Schema(t, testutil.AlgorithmSchema)

	snap, err := Load(path, sch)
	require.NoError(t, err)

	assert.Equal(t, "card.json", snap.Name)
	assert.Equal(t, path, snap.Path)
	recs, ok := snap.Data.Section("timings")
	require.True(t, ok)
	assert.Equal(t, record.Number(10.5), recs[0].Get("avg_ms"))
	assert.Equal(t, []string{`snapshot card.json: section "extra" is not in the schema and is ignored`}, snap.Warnings)
}

func TestLoadYAML(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "ref.yaml", `
algorithms:
  - {name: AES, supported: true, tags: [sym, block]}
timings: []
`)
	snap, err := Load(path, testutil.Schema(t, testutil.AlgorithmSchema), WithName("reference"))
	require.NoError(t, err)

	assert.Equal(t, "reference", snap.Name)
	assert.Empty(t, snap.Warnings)
	recs, _ := snap.Data.Section("algorithms")
	require.Len(t, recs, 1)
	assert.Equal(t, record.Bool(true), recs[0].Get("supported"))
	assert.Equal(t, record.List{record.String("sym"), record.String("block")}, recs[0].Get("tags"))
}

func TestLoadMissingSection(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "p.json", `{"algorithms": []}`)
	sch := testutil.Schema(t, testutil.AlgorithmSchema)

	snap, err := Load(path, sch)
	require.NoError(t, err)
	assert.Empty(t, snap.Warnings, "the engine warns on the section instead")

	_, err = Load(path, sch, WithStrict(true))
	assert.ErrorContains(t, err, `missing section "timings"`)
}

func TestLoadShapeErrors(t *testing.T) {
	tests := map[string]struct {
		name    string
		content string
		want    string
	}{
		"not an object":   {"a.json", `[1, 2]`, "must be a JSON object"},
		"section scalar":  {"b.json", `{"algorithms": 3}`, `section "algorithms" must be a list`},
		"entry scalar":    {"c.json", `{"algorithms": [1]}`, "expected object"},
		"yaml scalar":     {"d.yaml", `algorithms: 3`, `section "algorithms" must be a list`},
		"yaml entry list": {"e.yml", "algorithms:\n  - [1, 2]\n", "expected object"},
		"yaml not a map":  {"f.yaml", "- 1\n", "YAML mapping"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), tt.name, tt.content)
			_, err := Load(path, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadSizeLimit(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "big.json", `{"algorithms": []}`)
	_, err := Load(path, nil, WithMaxSize(4))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.json", nil)
	assert.Error(t, err)
}

func TestFromMap(t *testing.T) {
	ds, err := FromMap(map[string]any{
		"algorithms": []any{
			map[string]any{"name": "AES", "supported": true, "key_len": 128},
		},
		"empty": nil,
	})
	require.NoError(t, err)

	recs, ok := ds.Section("algorithms")
	require.True(t, ok)
	require.Len(t, recs, 1)
	assert.Equal(t, record.String("AES"), recs[0].Get("name"))
	assert.Equal(t, record.Number(128), recs[0].Get("key_len"))

	empty, ok := ds.Section("empty")
	assert.True(t, ok)
	assert.Empty(t, empty)

	_, err = FromMap(map[string]any{"algorithms": []any{"AES"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `section "algorithms" record 0: expected object`)
}
