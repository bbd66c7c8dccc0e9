package engine

import (
	"fmt"

	"github.com/crocs-muni/scrutiny-viz/internal/compare"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// Plan is a schema with every section bound to its comparator. A plan is
// read-only and can be executed any number of times.
type Plan struct {
	Schema   *schema.Schema
	Sections []*SectionPlan
}

// SectionPlan is one bound section.
type SectionPlan struct {
	Section        *schema.Section
	Context        *compare.Section
	ComparatorName string
	Comparator     compare.Comparator

	// Warnings found while binding, such as a comparator fallback.
	Warnings []string

	// BindErr is set when no comparator could be created. The section is
	// then reported as failed at LOADED when the plan runs.
	BindErr error
}

// Compile binds each section of sch to a comparator and parses its target
// settings. Only an unusable schema is an error; a section that cannot be
// bound is kept with BindErr set.
func (e *Engine) Compile(sch *schema.Schema) (*Plan, error) {
	if sch == nil {
		return nil, &schema.SchemaError{Code: schema.ErrCodeNoSections, Message: "schema is nil"}
	}
	if len(sch.Sections) == 0 {
		return nil, &schema.SchemaError{Code: schema.ErrCodeNoSections, Path: "sections", Message: "schema has no sections"}
	}

	plan := &Plan{Schema: sch, Sections: make([]*SectionPlan, 0, len(sch.Sections))}
	for _, sec := range sch.Sections {
		plan.Sections = append(plan.Sections, e.bind(sec))
	}
	return plan, nil
}

func (e *Engine) bind(sec *schema.Section) *SectionPlan {
	ctx := compare.NewSection(sec)
	if e.emitMatches {
		ctx.IncludeMatches = true
	}
	sp := &SectionPlan{
		Section:        sec,
		Context:        ctx,
		ComparatorName: sec.Component.Comparator,
	}

	res, err := e.registry.Resolve(sec.Component.Comparator)
	if err != nil {
		sp.BindErr = err
		return sp
	}
	sp.ComparatorName = res.Name
	if res.Warning != nil {
		e.logger.Warn("comparator not registered",
			"section", sec.Name,
			"requested", res.Warning.Requested,
			"fallback", res.Warning.Fallback,
		)
		sp.Warnings = append(sp.Warnings, res.Warning.Error())
	}

	comp, err := res.Factory(sec.Target)
	if err != nil {
		sp.BindErr = fmt.Errorf("bind comparator %q: %w", res.Name, err)
		return sp
	}
	// Target settings that name fields must match the record schema, or
	// every pair would compare null with null.
	if fc, ok := comp.(compare.FieldChecker); ok {
		if err := fc.CheckFields(sec.Data.RecordSchema); err != nil {
			sp.BindErr = fmt.Errorf("bind comparator %q: %w", res.Name, err)
			return sp
		}
	}
	sp.Comparator = comp
	return sp
}

// Section returns the plan of the named section, or nil.
func (p *Plan) Section(name string) *SectionPlan {
	for _, sp := range p.Sections {
		if sp.Section.Name == name {
			return sp
		}
	}
	return nil
}
