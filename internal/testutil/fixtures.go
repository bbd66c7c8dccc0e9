// Package testutil provides fixture builders shared by tests.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Schema parses and resolves a YAML schema document.
func Schema(t testing.TB, src string) *schema.Schema {
	t.Helper()
	tree, err := schema.ParseYAML([]byte(src))
	require.NoError(t, err, "parse schema")
	sch, err := schema.Resolve(tree, schema.WithLogger(DiscardLogger()))
	require.NoError(t, err, "resolve schema")
	return sch
}

// Dataset decodes a JSON snapshot.
func Dataset(t testing.TB, src string) record.Dataset {
	t.Helper()
	ds, err := record.DecodeDataset([]byte(src))
	require.NoError(t, err, "decode dataset")
	return ds
}

// Records builds records from plain maps.
func Records(rows ...map[string]any) []record.Record {
	out := make([]record.Record, len(rows))
	for i, r := range rows {
		out[i] = record.New(r)
	}
	return out
}

// WriteFile writes content to name inside dir and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// AlgorithmSchema is a small two-section schema used across packages: a
// basic capability list and an algperf timing list.
const AlgorithmSchema = `
schema_version: "0.12"
defaults:
  data:
    type: list
  component:
    match_key: name
  report:
    theme: light
sections:
  algorithms:
    data:
      record_schema:
        name: string
        supported: {dtype: boolean, required: true}
    component:
      comparator: basic
  timings:
    data:
      record_schema:
        name: string
        avg_ms: {dtype: number, category: continuous}
        error: string
    component:
      comparator: algperf
      threshold_ratio: 0.2
      threshold_count: 1
`
