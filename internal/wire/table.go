package wire

import "github.com/JonMunkholm/csvkit/internal/csv"

// TableData is the transport shape of a table.
type TableData struct {
	HasHeader bool       `json:"has_header" msgpack:"has_header" cbor:"has_header"`
	Header    []string   `json:"header,omitempty" msgpack:"header,omitempty" cbor:"header,omitempty"`
	Rows      [][]string `json:"rows" msgpack:"rows" cbor:"rows"`
}

// FromTable copies t into a TableData. Rows is never nil.
func FromTable(t *csv.Table) TableData {
	d := TableData{Rows: [][]string{}}
	if t == nil {
		return d
	}
	if t.HasHeader() {
		d.HasHeader = true
		d.Header = append([]string{}, t.Header...)
	}
	for _, rec := range t.Records {
		d.Rows = append(d.Rows, append([]string{}, rec...))
	}
	return d
}

// Table converts d back to a codec table. A header-less TableData yields a
// table with a nil Header even when Header holds names.
func (d TableData) Table() *csv.Table {
	t := &csv.Table{}
	if d.HasHeader {
		t.Header = csv.Record(append([]string{}, d.Header...))
	}
	if len(d.Rows) > 0 {
		t.Records = make([]csv.Record, len(d.Rows))
		for i, row := range d.Rows {
			t.Records[i] = csv.Record(append([]string{}, row...))
		}
	}
	return t
}
