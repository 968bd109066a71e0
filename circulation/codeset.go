package circulation

import (
	"sort"
	"strings"
)

// CodeSet is the set of physical-copy codes of one title.
type CodeSet map[string]struct{}

// NewCodeSet builds a set from codes, trimming blanks and dropping duplicates.
// Empty codes are skipped.
func NewCodeSet(codes ...string) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			s[c] = struct{}{}
		}
	}
	return s
}

// Add inserts code. It reports false when code is empty or already present.
func (s CodeSet) Add(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	if _, ok := s[code]; ok {
		return false
	}
	s[code] = struct{}{}
	return true
}

// Remove deletes code and reports whether it was present.
func (s CodeSet) Remove(code string) bool {
	if _, ok := s[code]; !ok {
		return false
	}
	delete(s, code)
	return true
}

func (s CodeSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

func (s CodeSet) Len() int { return len(s) }

// Minus returns the codes of s that are not in other.
func (s CodeSet) Minus(other CodeSet) CodeSet {
	out := make(CodeSet, len(s))
	for c := range s {
		if _, held := other[c]; !held {
			out[c] = struct{}{}
		}
	}
	return out
}

// Sorted returns the codes in lexicographic order.
func (s CodeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// First returns the lexicographically smallest code.
func (s CodeSet) First() (string, bool) {
	first, ok := "", false
	for c := range s {
		if !ok || c < first {
			first, ok = c, true
		}
	}
	return first, ok
}

func (s CodeSet) Clone() CodeSet {
	out := make(CodeSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}
