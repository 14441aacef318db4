// Package mediable implements many-to-many associations between host entities
// and media records. Each association carries free-form tags describing the
// media's role for its host ("avatar", "gallery", ...). The package provides
// tag-filtered queries with match-any and match-all semantics, a session-scoped
// cache kept consistent through dirty-tag tracking and rehydration, and the
// cascade policy that cleans up media when a host entity is deleted.
//
// Persistence lives behind the AssociationStore interface; this package never
// talks to a database directly.
package mediable

import (
	"encoding/json"
	"sort"
)

// TagSet is an unordered collection of unique, non-empty tags. Comparison is
// exact string equality, case-sensitive; callers that want case folding or
// whitespace trimming must do it before tags reach the set.
//
// The zero value is not usable; construct with NewTagSet.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from the given tags, dropping empty strings and
// duplicates.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	s.Add(tags...)
	return s
}

// Add inserts the given tags, ignoring empty strings.
func (s TagSet) Add(tags ...string) {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		s[tag] = struct{}{}
	}
}

// Remove deletes the given tags. Tags not in the set are ignored.
func (s TagSet) Remove(tags ...string) {
	for _, tag := range tags {
		delete(s, tag)
	}
}

// Contains reports whether tag is in the set.
func (s TagSet) Contains(tag string) bool {
	_, ok := s[tag]
	return ok
}

// MatchesAny reports whether the set shares at least one tag with requested.
// An empty requested list matches nothing; the "no filter means everything"
// case is resolved by callers before the predicate is consulted.
func (s TagSet) MatchesAny(requested ...string) bool {
	for _, tag := range requested {
		if s.Contains(tag) {
			return true
		}
	}
	return false
}

// MatchesAll reports whether every requested tag is in the set. An empty
// requested list is vacuously true.
func (s TagSet) MatchesAll(requested ...string) bool {
	for _, tag := range requested {
		if !s.Contains(tag) {
			return false
		}
	}
	return true
}

// Union returns a new set containing the tags of both sets.
func (s TagSet) Union(other TagSet) TagSet {
	out := make(TagSet, len(s)+len(other))
	for tag := range s {
		out[tag] = struct{}{}
	}
	for tag := range other {
		out[tag] = struct{}{}
	}
	return out
}

// Clone returns an independent copy of the set.
func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	for tag := range s {
		out[tag] = struct{}{}
	}
	return out
}

// Len returns the number of tags in the set.
func (s TagSet) Len() int {
	return len(s)
}

// IsEmpty reports whether the set has no tags.
func (s TagSet) IsEmpty() bool {
	return len(s) == 0
}

// Values returns the tags sorted lexicographically. The deterministic order
// makes the set usable as a SQL array parameter and in wire formats.
func (s TagSet) Values() []string {
	out := make([]string, 0, len(s))
	for tag := range s {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted string array.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON decodes the set from a string array.
func (s *TagSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}
