package wire

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/JonMunkholm/csvkit/internal/csv"
)

// ArrowSchema describes t as Arrow fields. Columns are named after the
// header, or col1..colN without one. A column is float64 when the table was
// parsed with numeric coercion and every data value in it was coerced;
// otherwise it is utf8.
func ArrowSchema(t *csv.Table) *arrow.Schema {
	width := t.Width()
	fields := make([]arrow.Field, width)
	for i := 0; i < width; i++ {
		name := "col" + strconv.Itoa(i+1)
		if t.HasHeader() {
			name = t.Header[i]
		}
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if numericColumn(t, i) {
			typ = arrow.PrimitiveTypes.Float64
		}
		fields[i] = arrow.Field{Name: name, Type: typ}
	}
	return arrow.NewSchema(fields, nil)
}

func numericColumn(t *csv.Table, field int) bool {
	if !t.Coerced() || t.Len() == 0 {
		return false
	}
	for r := 0; r < t.Len(); r++ {
		if _, ok := t.Number(r, field); !ok {
			return false
		}
	}
	return true
}

// WriteArrowIPC writes t to w as an Arrow IPC stream holding one record
// batch. Ragged tables are rejected.
func WriteArrowIPC(w io.Writer, t *csv.Table) error {
	if t == nil {
		t = &csv.Table{}
	}
	width := t.Width()
	for i, rec := range t.Records {
		if len(rec) != width {
			return &csv.Error{Op: "export", Record: i + 1, Expected: width, Actual: len(rec), Err: csv.ErrMalformedRow}
		}
	}

	pool := memory.NewGoAllocator()
	schema := ArrowSchema(t)

	bldr := array.NewRecordBuilder(pool, schema)
	defer bldr.Release()

	for i, field := range schema.Fields() {
		switch b := bldr.Field(i).(type) {
		case *array.Float64Builder:
			b.Reserve(t.Len())
			for r := 0; r < t.Len(); r++ {
				v, _ := t.Number(r, i)
				b.Append(v)
			}
		case *array.StringBuilder:
			b.Reserve(t.Len())
			for _, rec := range t.Records {
				b.Append(rec[i])
			}
		default:
			return fmt.Errorf("arrow export: unexpected builder for column %q", field.Name)
		}
	}

	rec := bldr.NewRecord()
	defer rec.Release()

	wr := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return fmt.Errorf("arrow export: %w", err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("arrow export: %w", err)
	}
	return nil
}
