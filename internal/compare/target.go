package compare

import (
	"fmt"
	"math"

	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// TargetError reports a target setting with the wrong shape.
type TargetError struct {
	Comparator string
	Key        string
	Message    string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s target.%s: %s", e.Comparator, e.Key, e.Message)
}

// targetReader reads typed settings from a target tree. Keys it is not asked
// about are ignored, since defaults.target is shared by all sections. The
// first shape error sticks and later reads return their fallbacks.
type targetReader struct {
	comparator string
	tree       *schema.Tree
	err        error
}

func newTargetReader(comparator string, t *schema.Tree) *targetReader {
	if t == nil {
		t = schema.NewTree()
	}
	return &targetReader{comparator: comparator, tree: t}
}

func (r *targetReader) fail(key, format string, args ...any) {
	if r.err == nil {
		r.err = &TargetError{Comparator: r.comparator, Key: key, Message: fmt.Sprintf(format, args...)}
	}
}

func (r *targetReader) lookup(key string) (any, bool) {
	v, ok := r.tree.Get(key)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Has reports whether key is set to a non-null value.
func (r *targetReader) Has(key string) bool {
	_, ok := r.lookup(key)
	return ok
}

func (r *targetReader) String(key, def string) string {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	s, isStr := v.(string)
	if !isStr || s == "" {
		r.fail(key, "must be a non-empty string, got %T", v)
		return def
	}
	return s
}

func (r *targetReader) Bool(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	b, isBool := v.(bool)
	if !isBool {
		r.fail(key, "must be a boolean, got %T", v)
		return def
	}
	return b
}

func (r *targetReader) Float(key string, def float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	var f float64
	switch n := v.(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		r.fail(key, "must be a number, got %T", v)
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		r.fail(key, "must be a finite non-negative number")
		return def
	}
	return f
}

// Strings accepts a list of strings or a single string.
func (r *targetReader) Strings(key string, def []string) []string {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			r.fail(key, "must not be empty")
			return def
		}
		return []string{val}
	case []any:
		if len(val) == 0 {
			r.fail(key, "must not be empty")
			return def
		}
		out := make([]string, 0, len(val))
		for i, elem := range val {
			s, isStr := elem.(string)
			if !isStr || s == "" {
				r.fail(key, "item %d must be a non-empty string", i)
				return def
			}
			out = append(out, s)
		}
		return out
	}
	r.fail(key, "must be a string or list of strings, got %T", v)
	return def
}

func (r *targetReader) Err() error { return r.err }

// undeclaredField builds the error for a setting naming an unknown field.
func undeclaredField(comparator, key, field string) error {
	return &TargetError{
		Comparator: comparator,
		Key:        key,
		Message:    fmt.Sprintf("field %q is not declared in record_schema", field),
	}
}
