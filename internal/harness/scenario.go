package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
)

// Scenario defines one comparison regression test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path of the schema file, relative to the scenario file.
	Schema string `yaml:"schema"`

	Reference Snapshot `yaml:"reference"`
	Profile   Snapshot `yaml:"profile"`

	// EmitMatches forces include_matches on for every section.
	EmitMatches bool `yaml:"emit_matches,omitempty"`

	// Parallelism is passed to the engine. Results must not depend on it.
	Parallelism int `yaml:"parallelism,omitempty"`

	// RunID is the fixed run id of the document. Defaults to DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the resulting document.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultRunID is used when a scenario does not set run_id.
const DefaultRunID = "harness-run"

// Snapshot is one side of a scenario: either a file or inline sections.
type Snapshot struct {
	// Name is the display name. Defaults to the file's base name, or to
	// "reference"/"profile" for inline snapshots.
	Name string `yaml:"name,omitempty"`

	// File is a snapshot path relative to the scenario file.
	File string `yaml:"file,omitempty"`

	// Sections maps section names to lists of records.
	Sections map[string]any `yaml:"sections,omitempty"`
}

// Assertion validates one property of the comparison document.
type Assertion struct {
	Type     string         `yaml:"type"`
	Section  string         `yaml:"section,omitempty"`
	Key      string         `yaml:"key,omitempty"`
	Field    string         `yaml:"field,omitempty"`
	Status   string         `yaml:"status,omitempty"`
	Stage    string         `yaml:"stage,omitempty"`
	Severity string         `yaml:"severity,omitempty"`
	Count    *int           `yaml:"count,omitempty"`
	Text     string         `yaml:"text,omitempty"`
	Stats    map[string]int `yaml:"stats,omitempty"`
}

// Assertion type constants.
const (
	AssertOverall         = "overall"
	AssertSectionStatus   = "section_status"
	AssertSectionSeverity = "section_severity"
	AssertDiffContains    = "diff_contains"
	AssertDiffCount       = "diff_count"
	AssertStats           = "stats"
	AssertWarningContains = "warning_contains"
	AssertIssueCount      = "issue_count"
)

var statsKeys = map[string]bool{
	"compared": true, "changed": true, "matched": true, "only_ref": true, "only_test": true,
}

// LoadScenario reads and parses a scenario YAML file. Relative schema and
// snapshot paths are resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Schema = resolvePath(base, scenario.Schema)
	scenario.Reference.File = resolvePath(base, scenario.Reference.File)
	scenario.Profile.File = resolvePath(base, scenario.Profile.File)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, in lexical order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); err != nil {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}
	if err := validateSnapshot("reference", s.Reference); err != nil {
		return err
	}
	if err := validateSnapshot("profile", s.Profile); err != nil {
		return err
	}
	if s.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateSnapshot(side string, s Snapshot) error {
	switch {
	case s.File != "" && s.Sections != nil:
		return fmt.Errorf("%s: file and sections are mutually exclusive", side)
	case s.File != "":
		if _, err := os.Stat(s.File); err != nil {
			return fmt.Errorf("%s: snapshot file not found: %s", side, s.File)
		}
	case s.Sections == nil:
		return fmt.Errorf("%s: file or sections is required", side)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	needSection := func() error {
		if a.Section == "" {
			return fmt.Errorf("assertions[%d]: section is required for %s", index, a.Type)
		}
		return nil
	}
	needSeverity := func() error {
		if _, err := report.ParseSeverity(a.Severity); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		return nil
	}
	needCount := func() error {
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be set and non-negative for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOverall:
		return needSeverity()
	case AssertSectionStatus:
		if err := needSection(); err != nil {
			return err
		}
		switch report.SectionStatus(a.Status) {
		case report.SectionCompleted, report.SectionError:
		default:
			return fmt.Errorf("assertions[%d]: status must be %s or %s", index, report.SectionCompleted, report.SectionError)
		}
	case AssertSectionSeverity:
		if err := needSection(); err != nil {
			return err
		}
		return needSeverity()
	case AssertDiffContains:
		if err := needSection(); err != nil {
			return err
		}
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for diff_contains", index)
		}
		if a.Severity != "" {
			return needSeverity()
		}
	case AssertDiffCount, AssertIssueCount:
		if err := needSection(); err != nil {
			return err
		}
		return needCount()
	case AssertStats:
		if err := needSection(); err != nil {
			return err
		}
		if len(a.Stats) == 0 {
			return fmt.Errorf("assertions[%d]: stats is required for stats", index)
		}
		for k := range a.Stats {
			if !statsKeys[k] {
				return fmt.Errorf("assertions[%d]: unknown stats counter %q", index, k)
			}
		}
	case AssertWarningContains:
		if err := needSection(); err != nil {
			return err
		}
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for warning_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
