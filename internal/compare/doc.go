// Package compare holds the comparator strategies and their registry.
//
// A comparator decides, for one matched pair of records, which fields differ
// and how severe each difference is. Comparators are looked up by name in a
// Registry that is built once at startup and passed to the engine; an unknown
// name falls back to "basic" with a warning instead of failing the run.
//
// Each comparator is created by a Factory from its section's target
// configuration. Factories parse and check the target once, so a malformed
// target is reported when the run is planned, not halfway through a section.
//
// Built-in comparators:
//
//	basic    field-by-field equality over the record schema
//	cplc     one value field, optionally compared by its first token
//	algperf  relative change of timing metrics with ratio/count thresholds
package compare
