package csv

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every error returned by this package wraps exactly one
// of them, so callers can branch with errors.Is.
var (
	// ErrMalformedRow reports a record whose field count differs from the
	// header or from the first record.
	ErrMalformedRow = errors.New("malformed row")

	// ErrMalformedField reports bad field content: an unterminated quoted
	// field, a stray quote in an unquoted field, text after a closing quote,
	// or a failed numeric coercion.
	ErrMalformedField = errors.New("malformed field")

	// ErrConfiguration reports an unusable dialect.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnknownColumn is returned by name lookups on a projected row.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrNoHeader is returned when a header-keyed operation runs on a table
	// without a header.
	ErrNoHeader = errors.New("no header")
)

// Error locates a failure inside the input.
//
// Record, Field and Line are 1-based; zero means "not applicable". For
// parsing, Record counts the header as record 1. Expected and Actual are set
// for ErrMalformedRow.
type Error struct {
	Op       string // "parse", "serialize", "project" or "build"
	Record   int
	Field    int
	Line     int
	Expected int
	Actual   int
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("csv ")
	b.WriteString(e.Op)
	b.WriteString(": ")

	var pos []string
	if e.Record > 0 {
		pos = append(pos, fmt.Sprintf("record %d", e.Record))
	}
	if e.Field > 0 {
		pos = append(pos, fmt.Sprintf("field %d", e.Field))
	}
	if len(pos) > 0 {
		b.WriteString(strings.Join(pos, ", "))
		if e.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", e.Line)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Err.Error())
	if errors.Is(e.Err, ErrMalformedRow) && (e.Expected > 0 || e.Actual > 0) {
		fmt.Fprintf(&b, ": expected %d fields, got %d", e.Expected, e.Actual)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigError describes why a Config was rejected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("csv: %s: %s %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}
