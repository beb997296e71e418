package backend

import "strings"

// Table is a case-insensitive string→string mapping.
type Table struct {
	entries map[string]string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]string)}
}

func (t *Table) Kind() Kind { return KindTable }

func (t *Table) Len() int { return len(t.entries) }

// Insert adds or replaces a pair. The key is case-folded.
func (t *Table) Insert(key, value string) {
	t.entries[strings.ToLower(key)] = value
}

// Get returns the value for a key, case-insensitively.
func (t *Table) Get(key string) (string, bool) {
	v, ok := t.entries[strings.ToLower(key)]
	return v, ok
}

// ParseTable builds a table from line-oriented text. Each line is a key, the
// first whitespace run, and the value (remainder, trimmed). A key with no
// value maps to the empty string.
func ParseTable(data []byte) (*Table, ParseStats) {
	t := NewTable()
	var st ParseStats
	forEachLine(data, func(line string) {
		key, value := splitPair(line)
		t.Insert(key, value)
		st.Records++
	})
	return t, st
}

func splitPair(line string) (key, value string) {
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i], strings.TrimSpace(line[i:])
	}
	return line, ""
}
