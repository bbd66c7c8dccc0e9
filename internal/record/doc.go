// Package record holds the value model for snapshot records.
//
// A snapshot is a mapping from section name to an ordered list of flat
// records. Every field value is one of the sealed Value types: Null, String,
// Number, Bool, List or Object. Records are read once and never mutated.
//
// Key rules:
//   - Absent fields and explicit nulls compare equal
//   - Numbers compare by numeric value, never by their textual form
//   - Match keys are compared by their string form (KeyString), so 1 and "1"
//     address the same record
//   - Strings are NFC-normalised before they are used as keys
package record
