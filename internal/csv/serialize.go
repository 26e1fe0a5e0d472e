package csv

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Serialize converts a Table into CSV text, the inverse of Parse: for every
// valid table T, Parse(Serialize(T, cfg), cfg) yields a table equal to T.
//
// Quoting is minimal. A field is quoted only when it contains the delimiter,
// the quote character, "\r" or "\n", has leading or trailing whitespace, or
// is the single empty field of its record. With NumericCoercion every data
// field that is not a number is quoted as well, so it reads back as text.
// For a table parsed with coercion, "a number" means a field that has a
// Number; a field that was quoted in the source stays quoted.
//
// cfg.HasHeader must agree with t: a table with a Header needs HasHeader,
// and a header-less table with records must not set it. Otherwise the
// output would not parse back to t, and ErrConfiguration is returned.
//
// Every record, including the last, is terminated by "\n" (or "\r\n" with
// CRLF). A nil or empty table serializes to the empty string.
func Serialize(t *Table, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	cfg = cfg.WithDefaults()
	if t == nil {
		return "", nil
	}

	if t.Header != nil && !cfg.HasHeader {
		return "", &ConfigError{Field: "HasHeader", Reason: "is false but the table has a header"}
	}
	if t.Header == nil && cfg.HasHeader && len(t.Records) > 0 {
		return "", &ConfigError{Field: "HasHeader", Reason: "is true but the table has no header"}
	}

	if err := checkShape(t); err != nil {
		return "", err
	}

	w := writer{cfg: cfg}
	if t.Header != nil {
		w.writeRecord(t.Header, nil)
	}
	for i, rec := range t.Records {
		w.writeRecord(rec, numberCheck(t, i, cfg))
	}
	return w.b.String(), nil
}

// numberCheck reports which fields of record i may be written unquoted
// under coercion. It is nil when coercion is off.
func numberCheck(t *Table, i int, cfg Config) func(field int, value string) bool {
	switch {
	case !cfg.NumericCoercion:
		return nil
	case t.Coerced():
		return func(field int, _ string) bool {
			_, ok := t.Number(i, field)
			return ok
		}
	}
	return isNumber
}

func isNumber(_ int, value string) bool {
	_, err := parseNumber(value)
	return err == nil
}

// SerializeRecord writes a single record, terminated like every record
// written by Serialize. Header records should be written with
// cfg.NumericCoercion off.
func SerializeRecord(rec Record, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	cfg = cfg.WithDefaults()
	if len(rec) == 0 {
		return "", &Error{Op: "serialize", Record: 1, Detail: "record has no fields", Err: ErrMalformedRow}
	}

	var number func(int, string) bool
	if cfg.NumericCoercion {
		number = isNumber
	}
	w := writer{cfg: cfg}
	w.writeRecord(rec, number)
	return w.b.String(), nil
}

// checkShape verifies rectangularity before anything is written so that a
// failure never leaves partial output behind.
func checkShape(t *Table) error {
	expected := -1
	index := 0

	check := func(rec Record) error {
		index++
		if len(rec) == 0 {
			return &Error{Op: "serialize", Record: index, Detail: "record has no fields", Err: ErrMalformedRow}
		}
		if expected < 0 {
			expected = len(rec)
			return nil
		}
		if len(rec) != expected {
			return &Error{Op: "serialize", Record: index, Expected: expected, Actual: len(rec), Err: ErrMalformedRow}
		}
		return nil
	}

	if t.Header != nil {
		if err := check(t.Header); err != nil {
			return err
		}
	}
	for _, rec := range t.Records {
		if err := check(rec); err != nil {
			return err
		}
	}
	return nil
}

type writer struct {
	cfg Config
	b   strings.Builder
}

// writeRecord writes one record. number is nil unless coercion applies, in
// which case fields it rejects are quoted.
func (w *writer) writeRecord(rec Record, number func(field int, value string) bool) {
	for i, field := range rec {
		if i > 0 {
			w.b.WriteRune(w.cfg.Delimiter)
		}
		coerce := number != nil
		if w.needsQuotes(field, len(rec) == 1, coerce) || (coerce && !number(i, field)) {
			w.writeQuoted(field)
		} else {
			w.b.WriteString(field)
		}
	}
	if w.cfg.CRLF {
		w.b.WriteString("\r\n")
	} else {
		w.b.WriteByte('\n')
	}
}

func (w *writer) writeQuoted(field string) {
	q := string(w.cfg.Quote)
	w.b.WriteString(q)
	w.b.WriteString(strings.ReplaceAll(field, q, q+q))
	w.b.WriteString(q)
}

func (w *writer) needsQuotes(field string, only, coerce bool) bool {
	if field == "" {
		// An unquoted lone empty field would be a blank line, and an empty
		// unquoted field never coerces to a number.
		return only || coerce
	}
	if strings.ContainsRune(field, w.cfg.Delimiter) ||
		strings.ContainsRune(field, w.cfg.Quote) ||
		strings.ContainsAny(field, "\r\n") {
		return true
	}

	first, _ := utf8.DecodeRuneInString(field)
	last, _ := utf8.DecodeLastRuneInString(field)
	if unicode.IsSpace(first) || unicode.IsSpace(last) {
		return true
	}
	return false
}
