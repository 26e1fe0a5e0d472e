package csv

import (
	"fmt"
	"sort"
)

// HeaderIndex maps column names to field positions. It is built once per
// header and consulted on every projection.
//
// When a name occurs more than once in the header, the rightmost occurrence
// wins.
type HeaderIndex struct {
	header Record
	pos    map[string]int
}

// NewHeaderIndex builds the name lookup for header.
func NewHeaderIndex(header Record) *HeaderIndex {
	idx := &HeaderIndex{
		header: header.Clone(),
		pos:    make(map[string]int, len(header)),
	}
	for i, name := range header {
		idx.pos[name] = i
	}
	return idx
}

// Position returns the field position read for name.
func (h *HeaderIndex) Position(name string) (int, bool) {
	i, ok := h.pos[name]
	return i, ok
}

// Width returns the number of header fields, counting duplicates.
func (h *HeaderIndex) Width() int {
	return len(h.header)
}

// Names returns the distinct column names in header order, each at the
// position of its first occurrence.
func (h *HeaderIndex) Names() []string {
	seen := make(map[string]bool, len(h.pos))
	names := make([]string, 0, len(h.pos))
	for _, name := range h.header {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Project returns a name-keyed view of rec. rec must have exactly as many
// fields as the header.
func (h *HeaderIndex) Project(rec Record) (Row, error) {
	if len(rec) != len(h.header) {
		return Row{}, &Error{Op: "project", Expected: len(h.header), Actual: len(rec), Err: ErrMalformedRow}
	}
	return Row{index: h, rec: rec}, nil
}

// Project is a convenience for NewHeaderIndex(header).Project(rec). Prefer
// building the index once when projecting many records.
func Project(rec Record, header Record) (Row, error) {
	return NewHeaderIndex(header).Project(rec)
}

// Row is a read-only, name-keyed view of a record. It never modifies the
// record it was built from.
type Row struct {
	index *HeaderIndex
	rec   Record
}

// Get returns the value of the named column.
func (r Row) Get(name string) (string, bool) {
	if r.index == nil {
		return "", false
	}
	i, ok := r.index.pos[name]
	if !ok {
		return "", false
	}
	return r.rec[i], true
}

// Lookup is Get with an explicit ErrUnknownColumn for missing names.
func (r Row) Lookup(name string) (string, error) {
	v, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return v, nil
}

// Map returns the projection as a fresh map.
func (r Row) Map() map[string]string {
	if r.index == nil {
		return map[string]string{}
	}
	m := make(map[string]string, len(r.index.pos))
	for name, i := range r.index.pos {
		m[name] = r.rec[i]
	}
	return m
}

// Record returns a copy of the underlying record.
func (r Row) Record() Record {
	return r.rec.Clone()
}

// Rows projects every record of a header-bearing table.
func (t *Table) Rows() ([]Row, error) {
	if !t.HasHeader() {
		return nil, ErrNoHeader
	}
	idx := NewHeaderIndex(t.Header)
	rows := make([]Row, len(t.Records))
	for i, rec := range t.Records {
		row, err := idx.Project(rec)
		if err != nil {
			err.(*Error).Record = i + 1
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// FromMaps builds a header-bearing table from name-keyed rows. Every row must
// supply exactly the header's names: a missing name or an extra key is
// ErrMalformedRow, nothing is filled with defaults.
func FromMaps(header Record, rows []map[string]string) (*Table, error) {
	if len(header) == 0 {
		return nil, &Error{Op: "build", Detail: "header has no fields", Err: ErrMalformedRow}
	}
	idx := NewHeaderIndex(header)

	t := &Table{Header: header.Clone(), Records: make([]Record, 0, len(rows))}
	for i, m := range rows {
		rec := make(Record, len(header))
		for j, name := range header {
			v, ok := m[name]
			if !ok {
				return nil, &Error{Op: "build", Record: i + 1, Field: j + 1,
					Detail: fmt.Sprintf("missing value for column %q", name), Err: ErrMalformedRow}
			}
			rec[j] = v
		}

		var extra []string
		for name := range m {
			if _, ok := idx.pos[name]; !ok {
				extra = append(extra, name)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			return nil, &Error{Op: "build", Record: i + 1,
				Detail: fmt.Sprintf("columns not in header: %q", extra), Err: ErrMalformedRow}
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}
