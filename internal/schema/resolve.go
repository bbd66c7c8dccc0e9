package schema

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Buckets merged from defaults into each section.
var buckets = []string{"data", "report", "component", "target"}

// MaxDocSize is the largest report.doc file Resolve will read.
const MaxDocSize = 64 * 1024

var docExtensions = []string{".txt", ".md"}

type resolveConfig struct {
	baseDir string
	logger  *slog.Logger
}

// ResolveOption configures Resolve.
type ResolveOption func(*resolveConfig)

// WithBaseDir sets the directory report.doc paths are resolved against.
// Defaults to the working directory.
func WithBaseDir(dir string) ResolveOption {
	return func(c *resolveConfig) {
		c.baseDir = dir
	}
}

// WithLogger sets the logger used for non-fatal findings.
func WithLogger(l *slog.Logger) ResolveOption {
	return func(c *resolveConfig) {
		c.logger = l
	}
}

type resolver struct {
	cfg      resolveConfig
	warnings []string
}

func (r *resolver) warn(section, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if section != "" {
		msg = fmt.Sprintf("section %q: %s", section, msg)
	}
	r.warnings = append(r.warnings, msg)
	r.cfg.logger.Warn("schema warning", "message", msg)
}

// Resolve validates a raw schema tree and produces the effective
// configuration of every section. The input tree is not modified, and
// resolving the same tree twice yields equal results.
func Resolve(tree *Tree, opts ...ResolveOption) (*Schema, error) {
	r := &resolver{cfg: resolveConfig{baseDir: ".", logger: slog.Default()}}
	for _, opt := range opts {
		opt(&r.cfg)
	}
	if r.cfg.logger == nil {
		r.cfg.logger = slog.New(slog.DiscardHandler)
	}

	if tree == nil {
		return nil, schemaErr(ErrCodeNoSections, "", "schema is empty")
	}

	version, err := r.version(tree)
	if err != nil {
		return nil, err
	}

	defaults, ok := tree.Subtree("defaults")
	if !ok {
		return nil, schemaErr(ErrCodeSectionShape, "defaults", "defaults must be a mapping")
	}
	if err := r.checkDefaults(defaults); err != nil {
		return nil, err
	}

	sectionsVal, present := tree.Get("sections")
	sections, isTree := sectionsVal.(*Tree)
	if !present || !isTree || sections.Len() == 0 {
		return nil, schemaErr(ErrCodeNoSections, "sections", "no sections defined")
	}

	out := &Schema{
		Version:  version,
		Defaults: defaults.Clone(),
	}
	for _, name := range sections.Keys() {
		raw, _ := sections.Get(name)
		secTree, ok := raw.(*Tree)
		if !ok {
			return nil, schemaErr(ErrCodeSectionShape, "sections."+name, "section must be a mapping")
		}
		sec, err := r.section(name, defaults, secTree)
		if err != nil {
			return nil, err
		}
		out.Sections = append(out.Sections, sec)
	}
	out.Warnings = r.warnings
	return out, nil
}

func (r *resolver) version(tree *Tree) (string, error) {
	raw, _ := tree.Get("schema_version")
	var version string
	switch v := raw.(type) {
	case string:
		version = strings.TrimSpace(v)
	case float64:
		version = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		version = strconv.FormatInt(v, 10)
	}
	if !slices.Contains(SupportedVersions, version) {
		return "", schemaErr(ErrCodeVersion, "schema_version",
			"unsupported or missing schema_version %q (supported: %s)", version, strings.Join(SupportedVersions, ", "))
	}
	return version, nil
}

func (r *resolver) checkDefaults(defaults *Tree) error {
	for _, b := range buckets {
		if _, ok := defaults.Subtree(b); !ok {
			return schemaErr(ErrCodeSectionShape, "defaults."+b, "must be a mapping")
		}
	}
	data, _ := defaults.Subtree("data")
	if t, ok := data.Get("type"); ok && t != nil && t != "list" {
		return schemaErr(ErrCodeDataType, "defaults.data.type", "must be \"list\" if provided, got %v", t)
	}
	report, _ := defaults.Subtree("report")
	if _, err := theme(report, "defaults.report.theme"); err != nil {
		return err
	}
	return nil
}

// merged returns defaults.<bucket> with section.<bucket> applied on top.
func merged(defaults, section *Tree, bucket, path string) (*Tree, error) {
	base, _ := defaults.Subtree(bucket)
	override, ok := section.Subtree(bucket)
	if !ok {
		return nil, schemaErr(ErrCodeSectionShape, path+"."+bucket, "must be a mapping")
	}
	return Merge(base, override), nil
}

func (r *resolver) section(name string, defaults, raw *Tree) (*Section, error) {
	path := "sections." + name
	eff := make(map[string]*Tree, len(buckets))
	for _, b := range buckets {
		t, err := merged(defaults, raw, b, path)
		if err != nil {
			return nil, err
		}
		eff[b] = t
	}

	data, err := r.data(name, path+".data", eff["data"])
	if err != nil {
		return nil, err
	}
	comp, err := r.component(name, path+".component", eff["component"], data.RecordSchema)
	if err != nil {
		return nil, err
	}
	rep, err := r.report(path+".report", eff["report"])
	if err != nil {
		return nil, err
	}

	return &Section{
		Name:      name,
		Data:      data,
		Component: comp,
		Report:    rep,
		Target:    eff["target"],
	}, nil
}

func (r *resolver) data(section, path string, t *Tree) (DataConfig, error) {
	typ := "list"
	if v, ok := t.Get("type"); ok && v != nil {
		s, isStr := v.(string)
		if !isStr || s != "list" {
			return DataConfig{}, schemaErr(ErrCodeDataType, path+".type", "must be \"list\", got %v", v)
		}
	}

	rs, ok := t.Subtree("record_schema")
	if !ok || rs.Len() == 0 {
		return DataConfig{}, schemaErr(ErrCodeRecordSchema, path+".record_schema", "must be a non-empty mapping")
	}

	var fields []Field
	for _, fname := range rs.Keys() {
		raw, _ := rs.Get(fname)
		fpath := path + ".record_schema." + fname
		var f Field
		switch desc := raw.(type) {
		case nil:
			// cleared by an explicit null
			continue
		case string:
			f = Field{Name: fname, DType: strings.TrimSpace(desc)}
		case *Tree:
			dt, _ := desc.Get("dtype")
			s, isStr := dt.(string)
			if !isStr || strings.TrimSpace(s) == "" {
				return DataConfig{}, schemaErr(ErrCodeFieldDType, fpath, "field requires 'dtype'")
			}
			f = Field{Name: fname, DType: strings.TrimSpace(s)}
			if req, ok := desc.Get("required"); ok && req != nil {
				b, isBool := req.(bool)
				if !isBool {
					return DataConfig{}, schemaErr(ErrCodeRecordSchema, fpath+".required", "must be a boolean")
				}
				f.Required = b
			}
			if cat, ok := desc.Get("category"); ok && cat != nil {
				f.Category = strings.TrimSpace(fmt.Sprint(cat))
				if !validCategories[f.Category] {
					r.warn(section, "field %q has unknown category %q", fname, f.Category)
				}
			}
		default:
			return DataConfig{}, schemaErr(ErrCodeRecordSchema, fpath, "field descriptor must be a string or mapping")
		}
		if !validDTypes[f.DType] {
			return DataConfig{}, schemaErr(ErrCodeFieldDType, fpath, "unknown dtype %q (want string, boolean, integer or number)", f.DType)
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return DataConfig{}, schemaErr(ErrCodeRecordSchema, path+".record_schema", "must declare at least one field")
	}

	return DataConfig{Type: typ, RecordSchema: RecordSchema{Fields: fields}}, nil
}

func (r *resolver) component(section, path string, t *Tree, rs RecordSchema) (ComponentConfig, error) {
	var c ComponentConfig

	comparator, err := optString(t, "comparator", path)
	if err != nil {
		return c, err
	}
	c.Comparator = strings.ToLower(strings.TrimSpace(comparator))
	if c.Comparator == "" {
		return c, schemaErr(ErrCodeComparator, path+".comparator", "component.comparator is mandatory")
	}

	if c.MatchKey, err = optString(t, "match_key", path); err != nil {
		return c, err
	}
	if c.MatchKey == "" {
		return c, schemaErr(ErrCodeMatchKey, path+".match_key", "component.match_key is mandatory")
	}
	if !rs.Has(c.MatchKey) {
		return c, schemaErr(ErrCodeMatchKey, path+".match_key", "match_key %q must exist in data.record_schema", c.MatchKey)
	}

	if c.ShowKey, err = optString(t, "show_key", path); err != nil {
		return c, err
	}
	if c.ShowKey != "" && !rs.Has(c.ShowKey) {
		r.warn(section, "show_key %q not in data.record_schema; falling back to match_key %q", c.ShowKey, c.MatchKey)
		c.ShowKey = ""
	}

	if v, ok := t.Get("include_matches"); ok && v != nil {
		b, isBool := v.(bool)
		if !isBool {
			return c, schemaErr(ErrCodeComponentType, path+".include_matches", "must be a boolean")
		}
		c.IncludeMatches = b
	}

	if v, ok := t.Get("threshold_ratio"); ok && v != nil {
		f, isNum := toFloat(v)
		if !isNum {
			return c, schemaErr(ErrCodeComponentType, path+".threshold_ratio", "must be a number")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return c, schemaErr(ErrCodeComponentType, path+".threshold_ratio", "must be a finite non-negative number, got %v", f)
		}
		c.ThresholdRatio = &f
	}

	if v, ok := t.Get("threshold_count"); ok && v != nil {
		f, isNum := toFloat(v)
		if !isNum || f != math.Trunc(f) {
			return c, schemaErr(ErrCodeComponentType, path+".threshold_count", "must be an integer")
		}
		// Both comparators read the count as a plain int.
		if f < 0 || f > math.MaxInt32 {
			return c, schemaErr(ErrCodeComponentType, path+".threshold_count", "must be between 0 and %d, got %v", math.MaxInt32, f)
		}
		n := int(f)
		c.ThresholdCount = &n
	}

	return c, nil
}

func (r *resolver) report(path string, t *Tree) (ReportConfig, error) {
	var rep ReportConfig

	typesVal, _ := t.Get("types")
	types, err := parseReportTypes(typesVal, path+".types")
	if err != nil {
		return rep, err
	}
	rep.Types = types

	if rep.Theme, err = theme(t, path+".theme"); err != nil {
		return rep, err
	}

	if rep.Doc, err = optString(t, "doc", path); err != nil {
		return rep, err
	}
	rep.Doc = strings.TrimSpace(rep.Doc)
	if rep.Doc != "" {
		text, err := readDoc(r.cfg.baseDir, rep.Doc, path+".doc")
		if err != nil {
			return rep, err
		}
		rep.DocText = text
	}

	labels, ok := t.Subtree("axis_labels")
	if !ok {
		return rep, schemaErr(ErrCodeSectionShape, path+".axis_labels", "must be a mapping")
	}
	if labels.Len() > 0 {
		rep.AxisLabels = make(map[string]string, labels.Len())
		for _, k := range labels.Keys() {
			v, _ := labels.Get(k)
			if v == nil {
				continue
			}
			rep.AxisLabels[k] = fmt.Sprint(v)
		}
	}
	return rep, nil
}

func theme(t *Tree, path string) (string, error) {
	v, ok := t.Get("theme")
	if !ok || v == nil {
		return "", nil
	}
	s := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	if s != ThemeLight && s != ThemeDark {
		return "", schemaErr(ErrCodeTheme, path, "must be %q or %q, got %q", ThemeLight, ThemeDark, s)
	}
	return s, nil
}

// parseReportTypes normalises report.types. Accepted forms: a comma separated
// string, a list of strings or {type, variant} mappings, or a mapping with a
// "types" key holding either of those. Type and variant are lower-cased.
func parseReportTypes(v any, path string) ([]ReportType, error) {
	if t, ok := v.(*Tree); ok {
		v, _ = t.Get("types")
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		var out []ReportType
		for _, part := range strings.Split(val, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, ReportType{Type: part})
			}
		}
		return out, nil
	case []any:
		var out []ReportType
		for i, item := range val {
			switch it := item.(type) {
			case nil:
				continue
			case string:
				s := strings.ToLower(strings.TrimSpace(it))
				if s != "" {
					out = append(out, ReportType{Type: s})
				}
			case *Tree:
				typ, _ := it.Get("type")
				s := ""
				if typ != nil {
					s = strings.ToLower(strings.TrimSpace(fmt.Sprint(typ)))
				}
				if s == "" {
					return nil, schemaErr(ErrCodeReportTypes, fmt.Sprintf("%s[%d]", path, i), "entry missing 'type'")
				}
				rt := ReportType{Type: s}
				if variant, _ := it.Get("variant"); variant != nil {
					rt.Variant = strings.ToLower(strings.TrimSpace(fmt.Sprint(variant)))
				}
				out = append(out, rt)
			default:
				return nil, schemaErr(ErrCodeReportTypes, fmt.Sprintf("%s[%d]", path, i), "entries must be strings or mappings")
			}
		}
		return out, nil
	}
	return nil, schemaErr(ErrCodeReportTypes, path, "must be a string, list or null")
}

// readDoc reads a documentation file that must stay inside baseDir.
func readDoc(baseDir, rel, path string) (string, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", schemaErr(ErrCodeDoc, path, "resolve base directory: %v", err)
	}
	full := filepath.Clean(filepath.Join(base, rel))
	within, err := filepath.Rel(base, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", schemaErr(ErrCodeDoc, path, "doc path must stay within the schema directory: %s", rel)
	}

	if ext := strings.ToLower(filepath.Ext(full)); !slices.Contains(docExtensions, ext) {
		return "", schemaErr(ErrCodeDoc, path, "doc must be a .txt or .md file: %s", rel)
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", schemaErr(ErrCodeDoc, path, "doc file not found: %s", rel)
	}
	if info.Size() > MaxDocSize {
		return "", schemaErr(ErrCodeDoc, path, "doc is too large (>64KB): %s", rel)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", schemaErr(ErrCodeDoc, path, "read doc: %v", err)
	}
	return string(data), nil
}

func optString(t *Tree, key, path string) (string, error) {
	v, ok := t.Get(key)
	if !ok || v == nil {
		return "", nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", schemaErr(ErrCodeComponentType, path+"."+key, "must be a string")
	}
	return s, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
