package csv

// Record is one line of tabular data: an ordered sequence of fields.
type Record []string

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// Table is the unit exchanged with callers: records in order, optionally
// preceded by a header naming the columns.
//
// A nil Header means the table has no header. All records and the header
// have the same number of fields.
type Table struct {
	Header  Record
	Records []Record

	// numbers holds coerced values of unquoted data fields, keyed by
	// 0-based record and field position. Nil unless the table was parsed
	// with NumericCoercion.
	numbers map[cellPos]float64
}

type cellPos struct {
	record, field int
}

// HasHeader reports whether the table carries a header.
func (t *Table) HasHeader() bool {
	return t != nil && t.Header != nil
}

// Width returns the number of fields per record, or 0 for an empty table.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	if t.Header != nil {
		return len(t.Header)
	}
	if len(t.Records) > 0 {
		return len(t.Records[0])
	}
	return 0
}

// Len returns the number of data records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Number returns the coerced value of a data field. record and field are
// 0-based indexes into Records. ok is false when the table was not parsed
// with NumericCoercion or the field was quoted (and therefore kept as text).
func (t *Table) Number(record, field int) (v float64, ok bool) {
	if t == nil || t.numbers == nil {
		return 0, false
	}
	v, ok = t.numbers[cellPos{record, field}]
	return v, ok
}

// Coerced reports whether the table was parsed with NumericCoercion.
func (t *Table) Coerced() bool {
	return t != nil && t.numbers != nil
}

// Equal reports whether both tables hold the same header and records.
// Coerced numeric values are derived from the text and are not compared.
func (t *Table) Equal(other *Table) bool {
	if t.HasHeader() != other.HasHeader() {
		return false
	}
	if t.HasHeader() && !equalRecord(t.Header, other.Header) {
		return false
	}
	if t.Len() != other.Len() {
		return false
	}
	for i := 0; i < t.Len(); i++ {
		if !equalRecord(t.Records[i], other.Records[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{Header: t.Header.Clone()}
	if t.Records != nil {
		out.Records = make([]Record, len(t.Records))
		for i, rec := range t.Records {
			out.Records[i] = rec.Clone()
		}
	}
	if t.numbers != nil {
		out.numbers = make(map[cellPos]float64, len(t.numbers))
		for k, v := range t.numbers {
			out.numbers[k] = v
		}
	}
	return out
}

// Column returns the values of the named column in record order.
// Duplicate header names resolve to the rightmost column.
func (t *Table) Column(name string) ([]string, error) {
	if !t.HasHeader() {
		return nil, ErrNoHeader
	}
	idx := NewHeaderIndex(t.Header)
	pos, ok := idx.Position(name)
	if !ok {
		return nil, ErrUnknownColumn
	}
	out := make([]string, len(t.Records))
	for i, rec := range t.Records {
		if len(rec) != len(t.Header) {
			return nil, &Error{Op: "project", Record: i + 1, Expected: len(t.Header), Actual: len(rec), Err: ErrMalformedRow}
		}
		out[i] = rec[pos]
	}
	return out, nil
}

func equalRecord(a, b Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
