package readstate

import "sort"

// ReadSet is the set of content IDs a member has opened.
type ReadSet map[string]struct{}

func NewReadSet(ids ...string) ReadSet {
	s := make(ReadSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ReadSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether the set changed.
func (s ReadSet) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Union adds every member of other to s.
func (s ReadSet) Union(other ReadSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

func (s ReadSet) Clone() ReadSet {
	c := make(ReadSet, len(s))
	c.Union(s)
	return c
}

// IDs returns the members sorted, so encoded sets are stable.
func (s ReadSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
