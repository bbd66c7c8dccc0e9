// Package schema provides the comparison schema model for scrutiny.
//
// A schema declares global defaults and an ordered set of sections. Each
// section names its record layout (data), how records are paired and compared
// (component), how the result is presented (report) and free-form comparator
// settings (target). Sections inherit every leaf key they do not set from
// defaults; an explicit null in a section clears the inherited value.
//
// Raw schema documents are first turned into an ordered Tree (from YAML, CUE
// or a plain map), merged with Merge, and then resolved into typed Section
// values with Resolve. Only Resolve reports structural problems, as
// *SchemaError values.
package schema
