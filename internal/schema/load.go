package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML document into a Tree, keeping mapping order.
// An empty document yields an empty tree.
func ParseYAML(data []byte) (*Tree, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NewTree(), nil
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return NewTree(), nil
		}
		root = root.Content[0]
	}

	v, err := yamlValue(root)
	if err != nil {
		return nil, err
	}
	switch tv := v.(type) {
	case *Tree:
		return tv, nil
	case nil:
		return NewTree(), nil
	default:
		return nil, fmt.Errorf("schema document must be a mapping, got %T at line %d", v, root.Line)
	}
}

func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		t := NewTree()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind == yaml.ScalarNode && keyNode.Tag == "!!merge" {
				merged, err := yamlValue(valNode)
				if err != nil {
					return nil, err
				}
				if mt, ok := merged.(*Tree); ok {
					for _, k := range mt.Keys() {
						if !t.Has(k) {
							v, _ := mt.Get(k)
							t.Set(k, v)
						}
					}
				}
				continue
			}
			val, err := yamlValue(valNode)
			if err != nil {
				return nil, err
			}
			t.Set(keyNode.Value, val)
		}
		return t, nil

	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil

	case yaml.AliasNode:
		return yamlValue(n.Alias)

	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return normalizeValue(v), nil

	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node kind %v", n.Line, n.Kind)
}

// ParseCUE compiles a CUE document and converts its concrete value into a
// Tree. Struct fields are visited in declaration order.
func ParseCUE(data []byte, filename string) (*Tree, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE value is not concrete: %w", err)
	}

	out, err := cueValue(v)
	if err != nil {
		return nil, err
	}
	t, ok := out.(*Tree)
	if !ok {
		return nil, fmt.Errorf("schema document must be a struct, got %v", v.Kind())
	}
	return t, nil
}

func cueValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StructKind:
		t := NewTree()
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		for iter.Next() {
			val, err := cueValue(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iter.Label(), err)
			}
			t.Set(iter.Label(), val)
		}
		return t, nil

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		var out []any
		for iter.Next() {
			val, err := cueValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		if out == nil {
			out = []any{}
		}
		return out, nil

	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	}
	return nil, fmt.Errorf("unsupported CUE kind %v at %v", v.Kind(), v.Pos())
}

// ParseFile reads a schema document and dispatches on its extension:
// .yaml/.yml are YAML, .cue is CUE, .json is parsed as YAML (a superset).
func ParseFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(data, path)
	case ".yaml", ".yml", ".json":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported schema file extension %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path))
	}
}

// LoadFile parses and resolves a schema file. Relative report.doc paths are
// resolved against the file's directory.
func LoadFile(path string, opts ...ResolveOption) (*Schema, error) {
	tree, err := ParseFile(path)
	if err != nil {
		return nil, &SchemaError{Code: ErrCodeParse, Path: path, Message: err.Error(), Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	opts = append([]ResolveOption{WithBaseDir(filepath.Dir(abs))}, opts...)
	return Resolve(tree, opts...)
}
