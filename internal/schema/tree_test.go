package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustYAML(t *testing.T, src string) *Tree {
	t.Helper()
	tree, err := ParseYAML([]byte(src))
	require.NoError(t, err)
	return tree
}

func TestMergeInheritsPerLeafKey(t *testing.T) {
	base := mustYAML(t, `
component:
  comparator: basic
  match_key: name
  include_matches: false
`)
	override := mustYAML(t, `
component:
  match_key: id
`)

	out := Merge(base, override)
	comp, ok := out.Subtree("component")
	require.True(t, ok)

	v, _ := comp.Get("comparator")
	assert.Equal(t, "basic", v)
	v, _ = comp.Get("match_key")
	assert.Equal(t, "id", v)
	v, _ = comp.Get("include_matches")
	assert.Equal(t, false, v)
}

func TestMergeExplicitNullClears(t *testing.T) {
	base := mustYAML(t, `
report:
  theme: dark
  doc: notes.md
`)
	override := mustYAML(t, `
report:
  doc: null
`)

	out := Merge(base, override)
	rep, _ := out.Subtree("report")

	v, ok := rep.Get("doc")
	assert.True(t, ok)
	assert.Nil(t, v)
	v, _ = rep.Get("theme")
	assert.Equal(t, "dark", v)
}

func TestMergeReplacesNonMappings(t *testing.T) {
	base := mustYAML(t, `types: [table, chart]`)
	override := mustYAML(t, `types: radar`)

	out := Merge(base, override)
	v, _ := out.Get("types")
	assert.Equal(t, "radar", v)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := mustYAML(t, `
target:
  value_field: value
`)
	override := mustYAML(t, `
target:
  compare_first_token: false
`)
	baseBefore := base.Clone()
	overrideBefore := override.Clone()

	out := Merge(base, override)
	target, _ := out.Subtree("target")
	target.Set("value_field", "changed")

	assert.True(t, base.Equal(baseBefore))
	assert.True(t, override.Equal(overrideBefore))
}

func TestMergeIdempotent(t *testing.T) {
	base := mustYAML(t, `
data:
  type: list
component:
  comparator: basic
  threshold_ratio: 0.5
`)
	override := mustYAML(t, `
component:
  match_key: name
  threshold_ratio: null
target:
  metrics: [avg_ms]
`)

	once := Merge(base, override)
	twice := Merge(once, override)
	assert.True(t, once.Equal(twice))
}

func TestMergeKeyOrder(t *testing.T) {
	base := mustYAML(t, "b: 1\na: 2\n")
	override := mustYAML(t, "c: 3\nb: 4\n")

	out := Merge(base, override)
	assert.Equal(t, []string{"b", "a", "c"}, out.Keys())
	v, _ := out.Get("b")
	assert.Equal(t, int64(4), v)
}

func TestTreeMarshalJSONKeepsOrder(t *testing.T) {
	tree := mustYAML(t, `
zeta: 1
alpha:
  y: [a, b]
  x: null
`)

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":{"y":["a","b"],"x":null}}`, string(data))
}

func TestFromMapSortsKeys(t *testing.T) {
	tree := FromMap(map[string]any{
		"b": 1,
		"a": map[string]any{"z": true, "y": []any{1, "x"}},
	})

	assert.Equal(t, []string{"a", "b"}, tree.Keys())
	sub, ok := tree.Subtree("a")
	require.True(t, ok)
	assert.Equal(t, []string{"y", "z"}, sub.Keys())
	v, _ := sub.Get("y")
	assert.Equal(t, []any{int64(1), "x"}, v)
	assert.Equal(t, map[string]any{"b": int64(1), "a": map[string]any{"z": true, "y": []any{int64(1), "x"}}}, tree.ToMap())
}

func TestTreeDelete(t *testing.T) {
	tree := mustYAML(t, "a: 1\nb: 2\nc: 3\n")
	tree.Delete("b")
	tree.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, tree.Keys())
	assert.False(t, tree.Has("b"))
}

func TestSubtreeShapes(t *testing.T) {
	tree := mustYAML(t, "m: {a: 1}\ns: text\nn: null\n")

	sub, ok := tree.Subtree("m")
	assert.True(t, ok)
	assert.Equal(t, 1, sub.Len())

	sub, ok = tree.Subtree("s")
	assert.False(t, ok)
	assert.Nil(t, sub)

	sub, ok = tree.Subtree("n")
	assert.True(t, ok)
	assert.Nil(t, sub)

	sub, ok = tree.Subtree("missing")
	assert.True(t, ok)
	assert.Nil(t, sub)
}
