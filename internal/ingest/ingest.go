// Package ingest loads reference and profile snapshots from disk.
//
// A snapshot is a document mapping section names to lists of records. JSON
// is the usual format; YAML is accepted for hand-written fixtures. Loading
// checks shape only. Field-level checks belong to the validator, which
// records problems instead of failing.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// DefaultMaxSize bounds the size of a snapshot file.
const DefaultMaxSize = 256 << 20

// ErrTooLarge is returned for snapshots over the size limit.
var ErrTooLarge = errors.New("snapshot exceeds size limit")

// Snapshot is one loaded side of a comparison.
type Snapshot struct {
	Name     string // display name, the file's base name unless overridden
	Path     string
	Data     record.Dataset
	Warnings []string // snapshot-level findings, such as sections the schema ignores
}

type options struct {
	strict  bool
	maxSize int64
	name    string
}

// Option configures Load.
type Option func(*options)

// WithStrict makes a schema section missing from the snapshot an error. By
// default the section is compared as empty and the engine warns on it.
func WithStrict(on bool) Option {
	return func(o *options) { o.strict = on }
}

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(n int64) Option {
	return func(o *options) { o.maxSize = n }
}

// WithName sets the snapshot's display name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Load reads the snapshot at path and checks it against the sections of sch.
// sch may be nil, in which case no section checks are made.
func Load(path string, sch *schema.Schema, opts ...Option) (*Snapshot, error) {
	o := options{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, o.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if int64(len(data)) > o.maxSize {
		return nil, fmt.Errorf("%s: %w (%d bytes)", path, ErrTooLarge, o.maxSize)
	}

	ds, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	snap := &Snapshot{Name: o.name, Path: path, Data: ds}
	if snap.Name == "" {
		snap.Name = filepath.Base(path)
	}
	if sch != nil {
		if err := snap.check(sch, o.strict); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// Decode parses snapshot bytes. ext selects the format: ".yaml" and ".yml"
// are YAML, anything else is JSON.
func Decode(data []byte, ext string) (record.Dataset, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	default:
		return record.DecodeDataset(data)
	}
}

func decodeYAML(data []byte) (record.Dataset, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("snapshot must be a YAML mapping: %w", err)
	}
	return FromMap(raw)
}

// FromMap converts a decoded snapshot document, as produced by a YAML or JSON
// decoder into map[string]any, to a Dataset. A nil section body is kept as a
// present but empty section.
func FromMap(raw map[string]any) (record.Dataset, error) {
	out := make(record.Dataset, len(raw))
	for name, body := range raw {
		if body == nil {
			out[name] = nil
			continue
		}
		items, ok := body.([]any)
		if !ok {
			return nil, fmt.Errorf("section %q must be a list of records, got %T", name, body)
		}
		recs := make([]record.Record, 0, len(items))
		for i, item := range items {
			v, err := record.FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("section %q record %d: %w", name, i, err)
			}
			obj, ok := v.(record.Object)
			if !ok {
				return nil, fmt.Errorf("section %q record %d: expected object, got %s", name, i, record.TypeName(v))
			}
			recs = append(recs, record.Record(obj))
		}
		out[name] = recs
	}
	return out, nil
}

func (s *Snapshot) check(sch *schema.Schema, strict bool) error {
	for _, name := range sch.SectionNames() {
		if _, ok := s.Data[name]; ok {
			continue
		}
		// In lenient mode the engine records the gap on the section itself.
		if strict {
			return fmt.Errorf("snapshot %s: missing section %q", s.Name, name)
		}
	}

	var extra []string
	for name := range s.Data {
		if sch.Section(name) == nil {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		s.Warnings = append(s.Warnings, fmt.Sprintf("snapshot %s: section %q is not in the schema and is ignored", s.Name, name))
	}
	return nil
}
