package compare

import (
	"github.com/crocs-muni/scrutiny-viz/internal/match"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }

func pairOf(key string, ref, profile map[string]any) match.Pair {
	p := match.Pair{Key: key, RefIndex: -1, ProfileIndex: -1}
	if ref != nil {
		p.Ref, p.RefIndex = record.New(ref), 0
	}
	if profile != nil {
		p.Profile, p.ProfileIndex = record.New(profile), 0
	}
	return p
}

func section(matchKey string, fields ...string) *Section {
	sec := &Section{Name: "test", MatchKey: matchKey, LabelKey: matchKey}
	for _, f := range fields {
		sec.Fields = append(sec.Fields, schema.Field{Name: f, DType: schema.DTypeString})
	}
	return sec
}
