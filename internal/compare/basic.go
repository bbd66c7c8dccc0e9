package compare

import (
	"fmt"

	"github.com/crocs-muni/scrutiny-viz/internal/match"
	"github.com/crocs-muni/scrutiny-viz/internal/record"
	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// Basic compares every record-schema field except the match key. Scalars
// and objects are compared for equality; a list on either side is compared
// as a set and each removed or added member is reported on its own.
type Basic struct{}

// NewBasic is the basic Factory. Basic takes no target settings.
func NewBasic(*schema.Tree) (Comparator, error) {
	return Basic{}, nil
}

func (Basic) Name() string { return "basic" }

func (Basic) Compare(pair match.Pair, sec *Section) Verdict {
	if pair.Ref == nil || pair.Profile == nil {
		return Presence(pair, sec)
	}
	label := Label(pair, sec)

	var v Verdict
	for _, f := range sec.Fields {
		if f.Name == sec.MatchKey {
			continue
		}
		rv, pv := pair.Ref.Get(f.Name), pair.Profile.Get(f.Name)
		v.Stats.Compared++

		if isList(rv) || isList(pv) {
			removed, added := setDiff(members(rv), members(pv))
			if len(removed) == 0 && len(added) == 0 {
				v.Stats.Matched++
				if sec.IncludeMatches {
					v.Matches = append(v.Matches, matched(pair, label, f.Name, pv))
				}
				continue
			}
			v.Stats.Changed++
			for _, m := range removed {
				v.Diffs = append(v.Diffs, moved(pair, label, f.Name, m, nil))
			}
			for _, m := range added {
				v.Diffs = append(v.Diffs, moved(pair, label, f.Name, nil, m))
			}
			continue
		}

		if record.Equal(rv, pv) {
			v.Stats.Matched++
			if sec.IncludeMatches {
				v.Matches = append(v.Matches, matched(pair, label, f.Name, pv))
			}
			continue
		}
		v.Stats.Changed++
		v.Diffs = append(v.Diffs, changed(pair, label, f.Name, rv, pv))
	}
	return v
}

func (Basic) Classify(stats report.Stats, th Thresholds) report.Severity {
	return classifyByThresholds(stats, th)
}

func isList(v record.Value) bool {
	_, ok := v.(record.List)
	return ok
}

// members turns a field value into set members: a list gives its items, null
// gives none, any other value is a set of one.
func members(v record.Value) []record.Value {
	switch val := v.(type) {
	case record.List:
		return val
	case nil, record.Null:
		return nil
	default:
		return []record.Value{val}
	}
}

// setDiff returns the members only in ref and only in profile, each in its
// own side's order without repeats.
func setDiff(ref, profile []record.Value) (removed, added []record.Value) {
	refSet := memberSet(ref)
	profSet := memberSet(profile)

	seen := make(map[string]bool)
	for _, m := range ref {
		k := memberKey(m)
		if !profSet[k] && !seen[k] {
			removed = append(removed, m)
		}
		seen[k] = true
	}
	clear(seen)
	for _, m := range profile {
		k := memberKey(m)
		if !refSet[k] && !seen[k] {
			added = append(added, m)
		}
		seen[k] = true
	}
	return removed, added
}

func memberSet(items []record.Value) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, m := range items {
		out[memberKey(m)] = true
	}
	return out
}

// memberKey is the canonical JSON of a member. Objects marshal with sorted
// keys, so equal members share a key.
func memberKey(v record.Value) string {
	b, err := record.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

func moved(pair match.Pair, label, field string, gone, came record.Value) report.DiffEntry {
	d := report.DiffEntry{
		Key:       pair.Key,
		ShowLabel: label,
		Status:    report.StatusChanged,
		Severity:  report.StatusChanged.DefaultSeverity(),
		Field:     field,
		Op:        report.OpMoved,
	}
	if gone != nil {
		d.Ref = gone
		d.Detail = fmt.Sprintf("%s: removed %s", field, record.Format(gone))
	} else {
		d.Test = came
		d.Detail = fmt.Sprintf("%s: added %s", field, record.Format(came))
	}
	return d
}
