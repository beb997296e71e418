// Package backend holds the closed set of map backend variants: a compressed
// prefix trie for CIDR containment, a case-insensitive string set, a
// case-insensitive key/value table, and an opaque callback payload. The set
// is fixed; the maps package dispatches over it with a type switch.
package backend

import (
	"bytes"
	"strings"
)

// Kind tags the four backend variants.
type Kind int

const (
	KindTrie Kind = iota
	KindSet
	KindTable
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindTrie:
		return "trie"
	case KindSet:
		return "set"
	case KindTable:
		return "kv"
	case KindCallback:
		return "callback"
	}
	return "unknown"
}

// Backend is one committed map dataset. Implementations are immutable once
// built by their parse constructor; readers never observe partial state.
type Backend interface {
	Kind() Kind
	// Len returns the number of records held (raw byte count for callback).
	Len() int
}

// ParseStats counts the outcome of parsing one full buffer. Malformed
// records are skipped, not fatal; the caller logs the counts.
type ParseStats struct {
	Records int
	Skipped int
}

// forEachLine invokes fn for every non-empty, non-comment line of data.
// Lines are trimmed of surrounding space (including trailing CR).
func forEachLine(data []byte, fn func(line string)) {
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		s := strings.TrimSpace(string(line))
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		fn(s)
	}
}
