// Package engine runs schema-driven comparisons of two snapshots.
//
// A run has two steps. Compile binds every schema section to a comparator
// from the registry and parses its target settings once. Execute then
// evaluates each section through a fixed sequence of stages:
//
//	LOADED      records fetched from both snapshots (a missing section is empty)
//	VALIDATED   records checked against the record schema, issues recorded
//	MATCHED     records paired by match key
//	COMPARED    every pair handed to the comparator
//	AGGREGATED  entries, counts and severity assembled
//
// A failure or panic at any stage ends that section only. Its result is
// marked SECTION_ERROR with severity ERROR and the stage it reached, and the
// run carries on with the next section. Run itself fails only when the
// schema is unusable or the context is cancelled.
//
// Sections are evaluated in declaration order. WithParallelism evaluates
// several at once; results are still returned in declaration order.
package engine
