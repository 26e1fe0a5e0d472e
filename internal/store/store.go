// Package store persists parsed CSV datasets in PostgreSQL.
//
// A dataset is stored as canonical CSV text together with the dialect it was
// written in, so loading it is a plain parse with the stored dialect.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/csvkit/internal/csv"
)

// ErrNotFound is returned when no dataset has the requested id.
var ErrNotFound = errors.New("dataset not found")

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 100

const schemaSQL = `
CREATE TABLE IF NOT EXISTS csv_datasets (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	delimiter  text NOT NULL,
	quote      text NOT NULL,
	has_header boolean NOT NULL,
	body       text NOT NULL,
	records    integer NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
)`

const datasetColumns = `id, name, delimiter, quote, has_header, body, records, created_at`

// Dataset is one stored table.
type Dataset struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Delimiter rune      `json:"-"`
	Quote     rune      `json:"-"`
	HasHeader bool      `json:"has_header"`
	Body      string    `json:"-"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// Dialect returns the configuration the body was written with.
func (d Dataset) Dialect() csv.Config {
	return csv.Config{
		Delimiter: d.Delimiter,
		Quote:     d.Quote,
		HasHeader: d.HasHeader,
	}
}

// Store reads and writes datasets.
type Store struct {
	db DBTX
}

// New returns a Store backed by db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the datasets table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save inserts d. A zero ID is replaced with a new random one and the
// stored row, including created_at, is returned.
func (s *Store) Save(ctx context.Context, d Dataset) (Dataset, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO csv_datasets (id, name, delimiter, quote, has_header, body, records)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+datasetColumns,
		toPgUUID(d.ID), d.Name, string(d.Delimiter), string(d.Quote), d.HasHeader, d.Body, int32(d.Records),
	)
	saved, err := scanDataset(row)
	if err != nil {
		return Dataset{}, fmt.Errorf("save dataset %q: %w", d.Name, err)
	}
	return saved, nil
}

// Get loads one dataset by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Dataset, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+datasetColumns+` FROM csv_datasets WHERE id = $1`,
		toPgUUID(id),
	)
	d, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Dataset{}, fmt.Errorf("get dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("get dataset %s: %w", id, err)
	}
	return d, nil
}

// List returns the most recent datasets first, without their bodies.
func (s *Store) List(ctx context.Context, limit int) ([]Dataset, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, name, delimiter, quote, has_header, '' AS body, records, created_at
		 FROM csv_datasets ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Dataset, error) {
		return scanDataset(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return out, nil
}

// Delete removes a dataset. Deleting an unknown id fails with ErrNotFound.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM csv_datasets WHERE id = $1`, toPgUUID(id))
	if err != nil {
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete dataset %s: %w", id, ErrNotFound)
	}
	return nil
}

// Purge deletes datasets created before cutoff and returns how many went.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM csv_datasets WHERE created_at < $1`,
		pgtype.Timestamptz{Time: cutoff, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("purge datasets: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDataset(row pgx.Row) (Dataset, error) {
	var (
		id        pgtype.UUID
		name      string
		delimiter string
		quote     string
		hasHeader bool
		body      string
		records   int32
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &name, &delimiter, &quote, &hasHeader, &body, &records, &createdAt); err != nil {
		return Dataset{}, err
	}

	d := Dataset{
		ID:        uuid.UUID(id.Bytes),
		Name:      name,
		Delimiter: firstRune(delimiter),
		Quote:     firstRune(quote),
		HasHeader: hasHeader,
		Body:      body,
		Records:   int(records),
	}
	if createdAt.Valid {
		d.CreatedAt = createdAt.Time
	}
	return d, nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: id != uuid.Nil}
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}
