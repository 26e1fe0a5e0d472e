package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeDB records statements and answers from canned rows.
type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	execTag  pgconn.CommandTag
	execErr  error

	rowValues []any
	rowErr    error
	queryArgs []any

	listRows [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	f.queryArgs = args
	return &fakeRows{rows: f.listRows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.queryArgs = args
	return fakeRow{values: f.rowValues, err: f.rowErr}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.pos++; return r.pos < len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error                       { return assign(r.rows[r.pos], dest) }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *pgtype.UUID:
			*d = v.(pgtype.UUID)
		case *pgtype.Timestamptz:
			*d = v.(pgtype.Timestamptz)
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *int32:
			*d = v.(int32)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

func datasetRow(id uuid.UUID, name string, created time.Time) []any {
	return []any{
		pgtype.UUID{Bytes: id, Valid: true},
		name, ";", "'", true, "a;b\n1;2\n", int32(1),
		pgtype.Timestamptz{Time: created, Valid: true},
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := New(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS csv_datasets") {
		t.Errorf("EnsureSchema() executed %q", db.execSQL)
	}
}

func TestSave(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{}
	s := New(db)

	in := Dataset{ID: uuid.New(), Name: "sales", Delimiter: ';', Quote: '\'', HasHeader: true, Body: "a;b\n1;2\n", Records: 1}
	db.rowValues = datasetRow(in.ID, in.Name, created)

	saved, err := s.Save(context.Background(), in)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if saved.Name != "sales" || saved.Delimiter != ';' || saved.Quote != '\'' || !saved.HasHeader {
		t.Errorf("Save() = %+v", saved)
	}
	if !saved.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", saved.CreatedAt, created)
	}
	if got := db.queryArgs[2]; got != ";" {
		t.Errorf("delimiter arg = %v, want \";\"", got)
	}
	if got := db.queryArgs[6]; got != int32(1) {
		t.Errorf("records arg = %v, want 1", got)
	}

	dialect := saved.Dialect()
	if dialect.Delimiter != ';' || dialect.Quote != '\'' || !dialect.HasHeader {
		t.Errorf("Dialect() = %+v", dialect)
	}
}

func TestSave_GeneratesID(t *testing.T) {
	db := &fakeDB{rowValues: datasetRow(uuid.New(), "x", time.Now())}
	if _, err := New(db).Save(context.Background(), Dataset{Name: "x", Delimiter: ',', Quote: '"'}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	id, ok := db.queryArgs[0].(pgtype.UUID)
	if !ok || !id.Valid || uuid.UUID(id.Bytes) == uuid.Nil {
		t.Errorf("id arg = %#v, want a generated uuid", db.queryArgs[0])
	}
}

func TestGet(t *testing.T) {
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		db := &fakeDB{rowValues: datasetRow(id, "orders", time.Now())}
		d, err := New(db).Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if d.ID != id || d.Name != "orders" || d.Body != "a;b\n1;2\n" {
			t.Errorf("Get() = %+v", d)
		}
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		db := &fakeDB{rowErr: pgx.ErrNoRows}
		_, err := New(db).Get(context.Background(), id)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("connection reset")
		db := &fakeDB{rowErr: boom}
		_, err := New(db).Get(context.Background(), id)
		if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v", err)
		}
	})
}

func TestList(t *testing.T) {
	now := time.Now()
	db := &fakeDB{listRows: [][]any{
		datasetRow(uuid.New(), "first", now),
		datasetRow(uuid.New(), "second", now.Add(-time.Hour)),
	}}

	got, err := New(db).List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "first" || got[1].Name != "second" {
		t.Errorf("List() = %+v", got)
	}
	if db.queryArgs[0] != DefaultListLimit {
		t.Errorf("limit arg = %v, want %d", db.queryArgs[0], DefaultListLimit)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		wantErr error
	}{
		{"deleted", "DELETE 1", nil},
		{"unknown id", "DELETE 0", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{execTag: pgconn.NewCommandTag(tt.tag)}
			err := New(db).Delete(context.Background(), uuid.New())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Delete() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPurge(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 3")}

	n, err := New(db).Purge(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Purge() = %d, want 3", n)
	}
	ts, ok := db.execArgs[0][0].(pgtype.Timestamptz)
	if !ok || !ts.Time.Equal(cutoff) {
		t.Errorf("cutoff arg = %v, want %v", db.execArgs[0][0], cutoff)
	}

	db = &fakeDB{execErr: errors.New("conn closed")}
	if _, err := New(db).Purge(context.Background(), cutoff); err == nil {
		t.Error("Purge() error = nil on exec failure")
	}
}
