package backend

import "strings"

// Set is a case-insensitive membership set of string tokens.
type Set struct {
	tokens map[string]struct{}
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{tokens: make(map[string]struct{})}
}

func (s *Set) Kind() Kind { return KindSet }

func (s *Set) Len() int { return len(s.tokens) }

// Insert adds a token. Duplicates are idempotent.
func (s *Set) Insert(token string) {
	s.tokens[strings.ToLower(token)] = struct{}{}
}

// Contains reports case-insensitive membership.
func (s *Set) Contains(token string) bool {
	_, ok := s.tokens[strings.ToLower(token)]
	return ok
}

// ParseSet builds a set from line-oriented text: one token per line.
func ParseSet(data []byte) (*Set, ParseStats) {
	s := NewSet()
	var st ParseStats
	forEachLine(data, func(line string) {
		s.Insert(line)
		st.Records++
	})
	return s, st
}
