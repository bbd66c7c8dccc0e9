package record

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Record is one flat snapshot entry: field name to value.
type Record map[string]Value

// Get returns the value of field, or Null when the field is absent.
func (r Record) Get(field string) Value {
	if v, ok := r[field]; ok && v != nil {
		return v
	}
	return Null{}
}

// Has reports whether field is present, even if its value is null.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Fields returns the record's field names in lexical order.
func (r Record) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MarshalJSON implements json.Marshaler with sorted field order.
func (r Record) MarshalJSON() ([]byte, error) {
	return Object(r).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler. The input must be a JSON object.
func (r *Record) UnmarshalJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Object)
	if !ok {
		return fmt.Errorf("record must be a JSON object, got %s", TypeName(v))
	}
	*r = Record(obj)
	return nil
}

// New builds a Record from plain Go values. It panics on unsupported types
// and is meant for fixtures and tests.
func New(fields map[string]any) Record {
	r := make(Record, len(fields))
	for k, v := range fields {
		val, err := FromAny(v)
		if err != nil {
			panic(fmt.Sprintf("record.New: field %q: %v", k, err))
		}
		r[k] = val
	}
	return r
}

// Dataset maps a section name to its ordered records.
type Dataset map[string][]Record

// Section returns the records for name and whether the section was present.
func (d Dataset) Section(name string) ([]Record, bool) {
	recs, ok := d[name]
	return recs, ok
}

// KeyString returns the string form of a match-key value. Strings are
// NFC-normalised, numbers are written in shortest exact form and booleans as
// true/false. Null, absent, list and object values are not keyable.
func KeyString(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return norm.NFC.String(string(val)), true
	case Number:
		return FormatNumber(float64(val)), true
	case Bool:
		return strconv.FormatBool(bool(val)), true
	}
	return "", false
}

// DecodeDataset parses a snapshot document: a JSON object mapping section
// names to arrays of records.
func DecodeDataset(data []byte) (Dataset, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("snapshot must be a JSON object: %w", err)
	}

	out := make(Dataset, len(raw))
	for name, body := range raw {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("section %q must be a list of records: %w", name, err)
		}
		recs := make([]Record, 0, len(items))
		for i, item := range items {
			v, err := Decode(item)
			if err != nil {
				return nil, fmt.Errorf("section %q record %d: %w", name, i, err)
			}
			obj, ok := v.(Object)
			if !ok {
				return nil, fmt.Errorf("section %q record %d: expected object, got %s", name, i, TypeName(v))
			}
			recs = append(recs, Record(obj))
		}
		out[name] = recs
	}
	return out, nil
}
