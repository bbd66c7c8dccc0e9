// Package match pairs reference and profile records by their match key.
package match

import (
	"github.com/crocs-muni/scrutiny-viz/internal/record"
)

// Pair is a reference record and its profile counterpart. Either side is nil
// for records present on one side only.
type Pair struct {
	Key          string
	Ref          record.Record
	Profile      record.Record
	RefIndex     int // -1 when Ref is nil
	ProfileIndex int // -1 when Profile is nil
}

// RefOnly reports whether the key exists only in the reference.
func (p Pair) RefOnly() bool {
	return p.Ref != nil && p.Profile == nil
}

// ProfileOnly reports whether the key exists only in the profile.
func (p Pair) ProfileOnly() bool {
	return p.Ref == nil && p.Profile != nil
}

// Dropped is a record the matcher could not place: a later duplicate of a key
// already seen on the same side, or a record without a usable key.
type Dropped struct {
	Side  string // SideReference or SideProfile
	Index int
	Key   string
}

// Sides.
const (
	SideReference = "reference"
	SideProfile   = "profile"
)

// Result is the outcome of matching one section.
//
// Every input record appears in exactly one of Pairs (as Ref or Profile),
// ReferenceOnly, ProfileOnly, Duplicates or Unkeyed, and no key appears twice
// across Pairs, ReferenceOnly and ProfileOnly.
type Result struct {
	Pairs         []Pair // keys on both sides, reference order
	ReferenceOnly []Pair // keys only in the reference, reference order
	ProfileOnly   []Pair // keys only in the profile, profile order
	Duplicates    []Dropped
	Unkeyed       []Dropped

	order []Pair
}

// Ordered returns every pair in evaluation order: reference order (matched and
// reference-only keys interleaved as they appear in the reference), then
// profile-only keys in profile order.
func (r *Result) Ordered() []Pair {
	return r.order
}

type entry struct {
	rec record.Record
	idx int
}

// Match indexes both sides by the string form of matchKey and pairs them.
// The first occurrence of a key wins; later duplicates are returned in
// Result.Duplicates rather than silently merged.
func Match(ref, profile []record.Record, matchKey string) *Result {
	res := &Result{}

	refKeys, refIdx := index(ref, matchKey, SideReference, res)
	_, profIdx := index(profile, matchKey, SideProfile, res)

	for _, key := range refKeys {
		r := refIdx[key]
		p := Pair{Key: key, Ref: r.rec, RefIndex: r.idx, ProfileIndex: -1}
		if pe, ok := profIdx[key]; ok {
			p.Profile = pe.rec
			p.ProfileIndex = pe.idx
			res.Pairs = append(res.Pairs, p)
		} else {
			res.ReferenceOnly = append(res.ReferenceOnly, p)
		}
		res.order = append(res.order, p)
	}

	for i, rec := range profile {
		key, ok := record.KeyString(rec.Get(matchKey))
		if !ok {
			continue
		}
		if profIdx[key].idx != i {
			continue
		}
		if _, inRef := refIdx[key]; inRef {
			continue
		}
		p := Pair{Key: key, Profile: rec, RefIndex: -1, ProfileIndex: i}
		res.ProfileOnly = append(res.ProfileOnly, p)
		res.order = append(res.order, p)
	}

	return res
}

// index returns first-occurrence keys in input order and the key index.
func index(recs []record.Record, matchKey, side string, res *Result) ([]string, map[string]entry) {
	keys := make([]string, 0, len(recs))
	idx := make(map[string]entry, len(recs))
	for i, rec := range recs {
		key, ok := record.KeyString(rec.Get(matchKey))
		if !ok {
			res.Unkeyed = append(res.Unkeyed, Dropped{Side: side, Index: i})
			continue
		}
		if _, dup := idx[key]; dup {
			res.Duplicates = append(res.Duplicates, Dropped{Side: side, Index: i, Key: key})
			continue
		}
		idx[key] = entry{rec: rec, idx: i}
		keys = append(keys, key)
	}
	return keys, idx
}
