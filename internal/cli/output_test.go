package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"overall": "OK"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.RunID)
}

func TestOutputFormatter_SuccessRunCarriesRunID(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.SuccessRun("run-1", []string{"a"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(CodeSchema, "failed to load schema", map[string]string{"path": "s.yml"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E002", resp.Error.Code)
	assert.Equal(t, "failed to load schema", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut, Verbose: true}

	require.NoError(t, formatter.Error(CodeSnapshot, "failed to load reference", "no such file"))

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [E003]: failed to load reference")
	assert.Contains(t, errOut.String(), "Details: no such file")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			formatter.VerboseLog("loading %s", "ref.json")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "loading ref.json")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitCommandError},
		{"exit error", NewExitError(ExitFailure, "fail-on reached"), ExitFailure},
		{"wrapped exit error", fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "bad", errors.New("x"))), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to write output", inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "failed to write output: disk full", err.Error())
}
