package csv

import (
	"unicode/utf8"
)

// Default dialect characters.
const (
	DefaultDelimiter = ','
	DefaultQuote     = '"'
)

// Config controls the dialect used by Parse and Serialize.
//
// The zero value is usable: a zero Delimiter or Quote falls back to
// DefaultDelimiter and DefaultQuote.
type Config struct {
	// Delimiter separates fields within a record (default: ',').
	Delimiter rune

	// Quote wraps fields that contain special characters (default: '"').
	// Inside a quoted field a doubled Quote stands for one literal Quote.
	Quote rune

	// HasHeader makes the first record the table's Header (default: false).
	HasHeader bool

	// NumericCoercion requires every unquoted data field to parse as a
	// float64 (default: false). Header names are never coerced.
	NumericCoercion bool

	// CRLF terminates serialized records with "\r\n" instead of "\n".
	// The parser accepts both regardless of this setting.
	CRLF bool
}

// DefaultConfig returns the RFC 4180 style dialect: comma, double quote,
// no header, no numeric coercion.
func DefaultConfig() Config {
	return Config{Delimiter: DefaultDelimiter, Quote: DefaultQuote}
}

// WithDefaults returns c with zero dialect characters replaced by the defaults.
func (c Config) WithDefaults() Config {
	if c.Delimiter == 0 {
		c.Delimiter = DefaultDelimiter
	}
	if c.Quote == 0 {
		c.Quote = DefaultQuote
	}
	return c
}

// Validate reports a *ConfigError when the dialect cannot be parsed
// unambiguously.
func (c Config) Validate() error {
	c = c.WithDefaults()

	if err := validDialectRune("delimiter", c.Delimiter); err != nil {
		return err
	}
	if err := validDialectRune("quote", c.Quote); err != nil {
		return err
	}
	if c.Delimiter == c.Quote {
		return &ConfigError{Field: "delimiter", Reason: "must differ from the quote character"}
	}
	return nil
}

func validDialectRune(field string, r rune) error {
	switch {
	case r == '\n' || r == '\r':
		return &ConfigError{Field: field, Reason: "cannot be a record separator character"}
	case r == utf8.RuneError || !utf8.ValidRune(r):
		return &ConfigError{Field: field, Reason: "is not a valid character"}
	}
	return nil
}
