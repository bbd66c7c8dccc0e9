package cli

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/testutil"
)

func verifyFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	cmd := NewRootCommand()
	verifyCmd, _, err := cmd.Find([]string{"verify"})
	require.NoError(t, err)
	flags := verifyCmd.Flags()
	flags.AddFlagSet(cmd.PersistentFlags())
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3, cfg.PrintDiffs)
	assert.Equal(t, 0, cfg.PrintMatches)
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, FailOnNone, cfg.FailOn)
	assert.False(t, cfg.EmitMatches)
	assert.Empty(t, cfg.File)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "scrutiny.yaml", `
schema: schemas/cards.yml
reference: ref.json
print_diffs: 5
print_matches: 2
fail_on: WARN
`)
	t.Setenv("SCRUTINY_PRINT_MATCHES", "7")
	t.Setenv("SCRUTINY_PARALLELISM", "4")

	flags := verifyFlags(t, "--print-diffs", "9", "-p", "card.json")
	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 9, cfg.PrintDiffs, "flag beats file")
	assert.Equal(t, 7, cfg.PrintMatches, "env beats file")
	assert.Equal(t, 4, cfg.Parallelism, "env beats default")
	assert.Equal(t, "WARN", cfg.FailOn, "file beats default")
	assert.Equal(t, filepath.Join(dir, "schemas", "cards.yml"), cfg.Schema, "file paths anchor at the file")
	assert.Equal(t, filepath.Join(dir, "ref.json"), cfg.Reference)
	assert.Equal(t, "card.json", cfg.Profile, "flag paths stay relative to the working directory")
}

func TestLoadConfig_FlagKeyMapping(t *testing.T) {
	flags := verifyFlags(t, "-o", "out.json", "--parallel", "2", "--emit-matches", "--reference-name", "golden card")
	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "out.json", cfg.Output)
	assert.Equal(t, 2, cfg.Parallelism)
	assert.True(t, cfg.EmitMatches)
	assert.Equal(t, "golden card", cfg.ReferenceName)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"format", []string{"--format", "yaml"}, `invalid format "yaml"`},
		{"log format", []string{"--log-format", "xml"}, `invalid log format "xml"`},
		{"fail on", []string{"--fail-on", "sometimes"}, "invalid fail_on"},
		{"print diffs", []string{"--print-diffs=-1"}, "print_diffs must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig("", verifyFlags(t, tt.args...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_FailOnSeverity(t *testing.T) {
	tests := []struct {
		failOn  string
		want    report.Severity
		enabled bool
	}{
		{"", report.SeverityOK, false},
		{"none", report.SeverityOK, false},
		{"NONE", report.SeverityOK, false},
		{"warn", report.SeverityWarn, true},
		{"SUSPICIOUS", report.SeveritySuspicious, true},
		{"ERROR", report.SeverityError, true},
	}
	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			cfg := &Config{FailOn: tt.failOn}
			sev, enabled, err := cfg.FailOnSeverity()
			require.NoError(t, err)
			assert.Equal(t, tt.want, sev)
			assert.Equal(t, tt.enabled, enabled)
		})
	}
}
