package compare

import (
	"strings"

	"github.com/crocs-muni/scrutiny-viz/internal/match"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// CPLC compares the single value field of card production life cycle
// records. CPLC values often carry a decoded suffix, as in
// "6155 (2016-06-03)", so by default only the first whitespace-separated
// token is compared. Reported values are the raw ones.
type CPLC struct {
	ValueField string
	FirstToken bool
}

// NewCPLC is the cplc Factory. Target settings:
//
//	value_field          field holding the value (default "value")
//	compare_first_token  compare only the first token (default true)
func NewCPLC(target *schema.Tree) (Comparator, error) {
	r := newTargetReader("cplc", target)
	c := CPLC{
		ValueField: r.String("value_field", "value"),
		FirstToken: r.Bool("compare_first_token", true),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func (CPLC) Name() string { return "cplc" }

func (c CPLC) Compare(pair match.Pair, sec *Section) Verdict {
	if pair.Ref == nil || pair.Profile == nil {
		return Presence(pair, sec)
	}
	label := Label(pair, sec)
	rv, pv := pair.Ref.Get(c.ValueField), pair.Profile.Get(c.ValueField)

	v := Verdict{Stats: report.Stats{Compared: 1}}
	if record.Equal(c.normalize(rv), c.normalize(pv)) {
		v.Stats.Matched = 1
		if sec.IncludeMatches {
			v.Matches = append(v.Matches, matched(pair, label, c.ValueField, pv))
		}
		return v
	}
	v.Stats.Changed = 1
	v.Diffs = append(v.Diffs, changed(pair, label, c.ValueField, rv, pv))
	return v
}

func (CPLC) Classify(stats report.Stats, th Thresholds) report.Severity {
	return classifyByThresholds(stats, th)
}

// CheckFields requires value_field to be declared.
func (c CPLC) CheckFields(rs schema.RecordSchema) error {
	if !rs.Has(c.ValueField) {
		return undeclaredField("cplc", "value_field", c.ValueField)
	}
	return nil
}

func (c CPLC) normalize(v record.Value) record.Value {
	s, ok := v.(record.String)
	if !ok || !c.FirstToken {
		return v
	}
	return record.String(FirstToken(string(s)))
}

// FirstToken returns the first whitespace-separated token of s, or "" when s
// is blank.
func FirstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
