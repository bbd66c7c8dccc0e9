// Package report defines the comparison result model and its JSON form.
//
// A Result maps section names to SectionResult values and serialises them as
// a JSON object whose keys follow schema declaration order. The JSON field
// names are a persisted contract read by the renderer and by external
// tooling; they must not change.
//
// Severity is totally ordered: OK < WARN < SUSPICIOUS < ERROR. A section's
// severity is never lower than any of its diff entries.
package report
