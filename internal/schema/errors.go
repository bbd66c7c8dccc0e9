package schema

import (
	"errors"
	"fmt"
)

// SchemaError reports a malformed or unsupported schema. It is the only error
// that aborts a comparison run.
type SchemaError struct {
	Code    string // "S001", "S002", ...
	Path    string // dotted location, e.g. "sections.algs.component.match_key"
	Message string
	Err     error
}

// Schema error codes.
const (
	ErrCodeVersion       = "S001" // Unsupported or missing schema_version
	ErrCodeNoSections    = "S002" // sections missing, empty or not a mapping
	ErrCodeSectionShape  = "S003" // section or bucket is not a mapping
	ErrCodeDataType      = "S004" // data.type is not "list"
	ErrCodeRecordSchema  = "S005" // record_schema missing, empty or malformed
	ErrCodeFieldDType    = "S006" // field descriptor without a valid dtype
	ErrCodeComparator    = "S007" // component.comparator missing
	ErrCodeMatchKey      = "S008" // component.match_key missing or not declared
	ErrCodeComponentType = "S009" // component value of the wrong type
	ErrCodeTheme         = "S010" // report.theme not light or dark
	ErrCodeReportTypes   = "S011" // report.types malformed
	ErrCodeDoc           = "S012" // report.doc unreadable or unsafe
	ErrCodeParse         = "S013" // schema document could not be read or parsed
)

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError reports whether err is, or wraps, a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func schemaErr(code, path, format string, args ...any) *SchemaError {
	return &SchemaError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}
