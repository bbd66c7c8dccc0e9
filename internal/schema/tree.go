package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Tree is an ordered mapping used as the canonical intermediate form of a
// schema document. Values are nil, bool, string, int64, float64, []any or
// *Tree. Key order follows the source document.
type Tree struct {
	keys []string
	vals map[string]any
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{vals: make(map[string]any)}
}

// Len returns the number of keys.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns the keys in insertion order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.keys)
}

// Has reports whether key is present, even with a nil value.
func (t *Tree) Has(key string) bool {
	if t == nil {
		return false
	}
	_, ok := t.vals[key]
	return ok
}

// Get returns the value stored under key.
func (t *Tree) Get(key string) (any, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.vals[key]
	return v, ok
}

// Set stores val under key. A new key is appended; an existing key keeps its
// position.
func (t *Tree) Set(key string, val any) {
	if _, ok := t.vals[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.vals[key] = normalizeValue(val)
}

// Delete removes key.
func (t *Tree) Delete(key string) {
	if _, ok := t.vals[key]; !ok {
		return
	}
	delete(t.vals, key)
	t.keys = slices.DeleteFunc(t.keys, func(k string) bool { return k == key })
}

// Subtree returns the mapping stored under key. A missing or null key yields
// (nil, true); a non-mapping value yields (nil, false).
func (t *Tree) Subtree(key string) (*Tree, bool) {
	v, ok := t.Get(key)
	if !ok || v == nil {
		return nil, true
	}
	sub, isTree := v.(*Tree)
	return sub, isTree
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	out := &Tree{keys: slices.Clone(t.keys), vals: make(map[string]any, len(t.vals))}
	for k, v := range t.vals {
		out.vals[k] = cloneValue(v)
	}
	return out
}

// ToMap converts the tree to plain Go maps and slices.
func (t *Tree) ToMap() map[string]any {
	if t == nil {
		return nil
	}
	out := make(map[string]any, len(t.keys))
	for _, k := range t.keys {
		out[k] = plainValue(t.vals[k])
	}
	return out
}

// MarshalJSON writes the tree as a JSON object in key order.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(t.vals[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Equal reports whether two trees hold the same keys, order and values.
func (t *Tree) Equal(other *Tree) bool {
	if t.Len() != other.Len() {
		return false
	}
	if t == nil || other == nil {
		return true
	}
	for i, k := range t.keys {
		if other.keys[i] != k || !valueEqual(t.vals[k], other.vals[k]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case *Tree:
		bv, ok := b.(*Tree)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case *Tree:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

func plainValue(v any) any {
	switch val := v.(type) {
	case *Tree:
		return val.ToMap()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = plainValue(elem)
		}
		return out
	default:
		return v
	}
}

// normalizeValue folds the numeric and container types produced by the
// decoders into the tree's value set.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case map[string]any:
		return FromMap(val)
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	default:
		return v
	}
}

// FromMap builds a tree from a plain map. Go maps carry no order, so keys are
// sorted; use the YAML or CUE loaders when declaration order matters.
func FromMap(m map[string]any) *Tree {
	t := NewTree()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		t.Set(k, m[k])
	}
	return t
}

// Merge returns a new tree with override applied on top of base. Mappings
// present on both sides are merged key by key; any other override value,
// including an explicit nil, replaces the base value. Neither input is
// modified.
func Merge(base, override *Tree) *Tree {
	out := base.Clone()
	if out == nil {
		out = NewTree()
	}
	if override == nil {
		return out
	}
	for _, k := range override.keys {
		ov := override.vals[k]
		if ot, ok := ov.(*Tree); ok {
			if bt, ok := out.vals[k].(*Tree); ok {
				out.Set(k, Merge(bt, ot))
				continue
			}
		}
		out.Set(k, cloneValue(ov))
	}
	return out
}
