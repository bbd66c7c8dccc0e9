// Package harness runs comparison scenarios as regression tests.
//
// A scenario names a schema, a reference and a profile snapshot, runs the
// engine over them and checks assertions on the resulting document.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: ../schemas/algorithms.yml     # relative to the scenario file
//	run_id: fixed-run-id                  # optional, for golden files
//	emit_matches: false                   # optional
//	reference:
//	  name: ref-card
//	  sections:
//	    algorithms:
//	      - {name: AES, supported: true}
//	profile:
//	  file: card.json                     # or inline sections
//	assertions:
//	  - type: overall
//	    severity: WARN
//	  - type: diff_contains
//	    section: algorithms
//	    key: AES
//	    status: CHANGED
//
// Unknown fields are rejected so typos surface as load errors.
//
// # Assertion Types
//
//   - overall: the document's overall severity
//   - section_status: status and optionally the stage a section ended in
//   - section_severity: a section's severity
//   - diff_contains: a diff entry with the given key and optional status,
//     field and severity
//   - diff_count: the number of diff entries in a section, optionally of
//     one status
//   - stats: a subset of a section's counters
//   - warning_contains: a section warning containing the given text
//   - issue_count: the number of validation issues in a section
//
// # Golden Files
//
// RunWithGolden renders the document as a line-oriented digest and compares
// it with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
