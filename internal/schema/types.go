package schema

// Supported schema_version values.
var SupportedVersions = []string{"0.11", "0.12"}

// Field data types.
const (
	DTypeString  = "string"
	DTypeBoolean = "boolean"
	DTypeInteger = "integer"
	DTypeNumber  = "number"
)

// Field categories. They guide chart selection in the renderer and are never
// consulted by comparison logic.
const (
	CategoryOrdinal    = "ordinal"
	CategoryNominal    = "nominal"
	CategoryContinuous = "continuous"
	CategoryBinary     = "binary"
	CategorySet        = "set"
)

var validDTypes = map[string]bool{
	DTypeString:  true,
	DTypeBoolean: true,
	DTypeInteger: true,
	DTypeNumber:  true,
}

var validCategories = map[string]bool{
	CategoryOrdinal:    true,
	CategoryNominal:    true,
	CategoryContinuous: true,
	CategoryBinary:     true,
	CategorySet:        true,
}

// Report themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Schema is a resolved comparison schema. It is read-only once returned by
// Resolve and may be shared between goroutines.
type Schema struct {
	Version  string
	Defaults *Tree
	Sections []*Section

	// Warnings lists non-fatal findings made while resolving.
	Warnings []string
}

// Section returns the section called name, or nil.
func (s *Schema) Section(name string) *Section {
	for _, sec := range s.Sections {
		if sec.Name == name {
			return sec
		}
	}
	return nil
}

// SectionNames returns section names in declaration order.
func (s *Schema) SectionNames() []string {
	names := make([]string, len(s.Sections))
	for i, sec := range s.Sections {
		names[i] = sec.Name
	}
	return names
}

// Section is the effective configuration of one section after defaults have
// been merged in.
type Section struct {
	Name      string          `json:"name"`
	Data      DataConfig      `json:"data"`
	Component ComponentConfig `json:"component"`
	Report    ReportConfig    `json:"report"`
	Target    *Tree           `json:"target"`
}

// DataConfig describes the record layout of a section.
type DataConfig struct {
	Type         string       `json:"type"`
	RecordSchema RecordSchema `json:"record_schema"`
}

// RecordSchema is the ordered list of field descriptors.
type RecordSchema struct {
	Fields []Field `json:"fields"`
}

// Field returns the descriptor for name.
func (rs RecordSchema) Field(name string) (Field, bool) {
	for _, f := range rs.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether name is declared.
func (rs RecordSchema) Has(name string) bool {
	_, ok := rs.Field(name)
	return ok
}

// Names returns the declared field names in order.
func (rs RecordSchema) Names() []string {
	out := make([]string, len(rs.Fields))
	for i, f := range rs.Fields {
		out[i] = f.Name
	}
	return out
}

// Field describes one record field.
type Field struct {
	Name     string `json:"name"`
	DType    string `json:"dtype"`
	Required bool   `json:"required,omitempty"`
	Category string `json:"category,omitempty"`
}

// ComponentConfig selects and tunes the comparator of a section.
type ComponentConfig struct {
	Comparator     string   `json:"comparator"`
	MatchKey       string   `json:"match_key"`
	ShowKey        string   `json:"show_key,omitempty"`
	IncludeMatches bool     `json:"include_matches"`
	ThresholdRatio *float64 `json:"threshold_ratio,omitempty"`
	ThresholdCount *int     `json:"threshold_count,omitempty"`
}

// LabelKey returns the field used for human-readable labels: show_key when
// set, otherwise match_key.
func (c ComponentConfig) LabelKey() string {
	if c.ShowKey != "" {
		return c.ShowKey
	}
	return c.MatchKey
}

// ReportType is one requested visualisation.
type ReportType struct {
	Type    string `json:"type"`
	Variant string `json:"variant,omitempty"`
}

// ReportConfig holds presentation directives. The engine passes them through
// untouched.
type ReportConfig struct {
	Types      []ReportType      `json:"types,omitempty"`
	Theme      string            `json:"theme,omitempty"`
	Doc        string            `json:"doc,omitempty"`
	DocText    string            `json:"doc_text,omitempty"`
	AxisLabels map[string]string `json:"axis_labels,omitempty"`
}
