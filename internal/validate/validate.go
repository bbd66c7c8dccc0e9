// Package validate checks snapshot records against a section's record schema.
//
// Validation never fails a run. Every problem becomes an Issue, and the
// records are handed on to matching and comparison unchanged.
package validate

import (
	"fmt"
	"math"

	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// Issue codes.
const (
	CodeMissingField = "MISSING_FIELD"  // required field (or match key) absent
	CodeTypeMismatch = "TYPE_MISMATCH"  // value does not satisfy dtype
	CodeDuplicateKey = "DUPLICATE_KEY"  // match key repeated on one side
	CodeUnkeyed      = "UNKEYED_RECORD" // match key present but null or not a scalar
)

// Issue is one validation finding for a record.
type Issue struct {
	Side    string `json:"side,omitempty"` // "reference" or "profile"
	Record  int    `json:"record"`         // index within the section
	Key     string `json:"key,omitempty"`  // match key string form, when known
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) Error() string {
	if i.Side != "" {
		return fmt.Sprintf("[%s] %s record %d: %s: %s", i.Code, i.Side, i.Record, i.Field, i.Message)
	}
	return fmt.Sprintf("[%s] record %d: %s: %s", i.Code, i.Record, i.Field, i.Message)
}

// Records validates records against rs. The match key is always treated as
// required. Type checks are advisory: a mismatch is reported but the record
// is still compared. Duplicate match keys are reported for every occurrence
// after the first.
func Records(records []record.Record, rs schema.RecordSchema, matchKey string) []Issue {
	var issues []Issue
	seen := make(map[string]int)

	for idx, rec := range records {
		key, keyed := record.KeyString(rec.Get(matchKey))

		for _, f := range rs.Fields {
			required := f.Required || f.Name == matchKey
			if !rec.Has(f.Name) {
				if required {
					issues = append(issues, Issue{
						Record:  idx,
						Key:     key,
						Field:   f.Name,
						Code:    CodeMissingField,
						Message: "required field is missing",
					})
				}
				continue
			}
			if msg := checkType(rec.Get(f.Name), f); msg != "" {
				issues = append(issues, Issue{
					Record:  idx,
					Key:     key,
					Field:   f.Name,
					Code:    CodeTypeMismatch,
					Message: msg,
				})
			}
		}

		if !rec.Has(matchKey) {
			continue
		}
		if !keyed {
			issues = append(issues, Issue{
				Record:  idx,
				Field:   matchKey,
				Code:    CodeUnkeyed,
				Message: fmt.Sprintf("match key value %s cannot be used as a key", record.Format(rec.Get(matchKey))),
			})
			continue
		}
		if first, dup := seen[key]; dup {
			issues = append(issues, Issue{
				Record:  idx,
				Key:     key,
				Field:   matchKey,
				Code:    CodeDuplicateKey,
				Message: fmt.Sprintf("duplicate match key %q (first seen at record %d); later occurrence ignored", key, first),
			})
			continue
		}
		seen[key] = idx
	}

	return issues
}

// checkType returns a description of the mismatch, or "" when v satisfies f.
// Null always satisfies. Fields of category "set" hold lists whose elements
// are checked against the dtype.
func checkType(v record.Value, f schema.Field) string {
	if record.IsNull(v) {
		return ""
	}
	if list, ok := v.(record.List); ok && f.Category == schema.CategorySet {
		for i, elem := range list {
			if record.IsNull(elem) {
				continue
			}
			if !matchesDType(elem, f.DType) {
				return fmt.Sprintf("set element %d: expected %s, got %s", i, f.DType, record.TypeName(elem))
			}
		}
		return ""
	}
	if !matchesDType(v, f.DType) {
		return fmt.Sprintf("expected %s, got %s", f.DType, record.TypeName(v))
	}
	return ""
}

func matchesDType(v record.Value, dtype string) bool {
	switch dtype {
	case schema.DTypeString:
		_, ok := v.(record.String)
		return ok
	case schema.DTypeBoolean:
		_, ok := v.(record.Bool)
		return ok
	case schema.DTypeNumber:
		_, ok := v.(record.Number)
		return ok
	case schema.DTypeInteger:
		n, ok := v.(record.Number)
		return ok && float64(n) == math.Trunc(float64(n))
	}
	return true
}
