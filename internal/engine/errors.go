package engine

import (
	"errors"
	"fmt"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
)

// SectionError is a failure that aborted one section. It never escapes Run;
// the engine renders it into the section's result and moves on.
type SectionError struct {
	// Section is the name of the failed section.
	Section string

	// Stage is the last stage the section reached.
	Stage report.Stage

	// Err is the underlying failure. A recovered panic is wrapped in a
	// PanicError.
	Err error
}

// Error implements the error interface.
func (e *SectionError) Error() string {
	return fmt.Sprintf("section %q failed at %s: %v", e.Section, e.Stage, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

// IsSectionError reports whether err is, or wraps, a *SectionError.
func IsSectionError(err error) bool {
	var se *SectionError
	return errors.As(err, &se)
}

// PanicError carries a value recovered from a panicking comparator.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// failure renders err into the section result.
func (e *SectionError) failure() *report.Failure {
	return &report.Failure{Stage: e.Stage, Message: e.Err.Error()}
}
