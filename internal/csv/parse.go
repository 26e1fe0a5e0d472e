package csv

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Parse converts CSV text into a Table.
//
// Records are separated by "\n" (a preceding "\r" is accepted and dropped).
// A separator inside a quoted field is content. A trailing separator at the
// end of the input does not produce an extra empty record, so "a,b\n1,2\n"
// and "a,b\n1,2" parse identically.
//
// Parse either returns a complete Table or an error; it never returns a
// partially populated Table. Errors wrap ErrConfiguration, ErrMalformedRow
// or ErrMalformedField.
func Parse(text string, cfg Config) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	p := &parser{text: text, cfg: cfg, line: 1}
	t := &Table{}
	if cfg.NumericCoercion {
		t.numbers = make(map[cellPos]float64)
	}

	expected := -1
	for p.pos < len(p.text) {
		p.record++
		startLine := p.line

		rec, quoted, err := p.readRecord()
		if err != nil {
			return nil, err
		}

		if expected < 0 {
			expected = len(rec)
		} else if len(rec) != expected {
			return nil, &Error{
				Op:       "parse",
				Record:   p.record,
				Line:     startLine,
				Expected: expected,
				Actual:   len(rec),
				Err:      ErrMalformedRow,
			}
		}

		if cfg.HasHeader && t.Header == nil {
			t.Header = rec
			continue
		}

		if cfg.NumericCoercion {
			row := len(t.Records)
			for i, field := range rec {
				if quoted[i] {
					continue
				}
				v, err := parseNumber(field)
				if err != nil {
					return nil, &Error{
						Op:     "parse",
						Record: p.record,
						Field:  i + 1,
						Line:   startLine,
						Detail: fmt.Sprintf("cannot coerce %q to a number", field),
						Err:    ErrMalformedField,
					}
				}
				t.numbers[cellPos{row, i}] = v
			}
		}
		t.Records = append(t.Records, rec)
	}

	return t, nil
}

// ParseRecord parses text that holds exactly one record.
func ParseRecord(text string, cfg Config) (Record, error) {
	cfg.HasHeader = false
	t, err := Parse(text, cfg)
	if err != nil {
		return nil, err
	}
	if t.Len() != 1 {
		return nil, &Error{Op: "parse", Detail: fmt.Sprintf("expected one record, found %d", t.Len()), Err: ErrMalformedRow}
	}
	return t.Records[0], nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// parser walks the input one rune at a time, tracking the quote state so
// that separators inside quoted fields are kept as content.
type parser struct {
	text string
	pos  int
	cfg  Config

	record int // 1-based index of the record being read
	field  int // 1-based index of the field being read
	line   int // 1-based line at pos
}

func (p *parser) peek() (rune, int) {
	if p.pos >= len(p.text) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(p.text[p.pos:])
}

// atSeparator reports the byte length of a record separator at pos, or 0.
func (p *parser) atSeparator() int {
	if p.pos >= len(p.text) {
		return 0
	}
	switch p.text[p.pos] {
	case '\n':
		return 1
	case '\r':
		if p.pos+1 < len(p.text) && p.text[p.pos+1] == '\n' {
			return 2
		}
	}
	return 0
}

// readRecord reads fields until a record separator or the end of input and
// consumes the separator. quoted[i] reports whether field i was quoted.
func (p *parser) readRecord() (Record, []bool, error) {
	var (
		rec    Record
		quoted []bool
	)
	for {
		p.field = len(rec) + 1

		value, q, err := p.readField()
		if err != nil {
			return nil, nil, err
		}
		rec = append(rec, value)
		quoted = append(quoted, q)

		if p.pos >= len(p.text) {
			return rec, quoted, nil
		}
		if n := p.atSeparator(); n > 0 {
			p.pos += n
			p.line++
			return rec, quoted, nil
		}

		// readField only stops early on a delimiter.
		_, size := p.peek()
		p.pos += size
	}
}

func (p *parser) readField() (string, bool, error) {
	if r, size := p.peek(); size > 0 && r == p.cfg.Quote {
		p.pos += size
		value, err := p.readQuoted()
		return value, true, err
	}

	start := p.pos
	for p.pos < len(p.text) {
		if p.atSeparator() > 0 {
			break
		}
		r, size := p.peek()
		if r == p.cfg.Delimiter {
			break
		}
		if r == p.cfg.Quote {
			return "", false, p.fieldError("stray quote character in unquoted field")
		}
		p.pos += size
	}
	return strings.Clone(p.text[start:p.pos]), false, nil
}

// readQuoted reads the body of a quoted field; the opening quote has been
// consumed.
func (p *parser) readQuoted() (string, error) {
	var b strings.Builder
	startLine := p.line

	for p.pos < len(p.text) {
		r, size := p.peek()
		if r != p.cfg.Quote {
			if r == '\n' {
				p.line++
			}
			b.WriteString(p.text[p.pos : p.pos+size])
			p.pos += size
			continue
		}

		p.pos += size
		if next, nsize := p.peek(); nsize > 0 && next == p.cfg.Quote {
			b.WriteRune(p.cfg.Quote)
			p.pos += nsize
			continue
		}

		// Closing quote: only a delimiter, a separator or the end may follow.
		if p.pos >= len(p.text) || p.atSeparator() > 0 {
			return b.String(), nil
		}
		if next, _ := p.peek(); next == p.cfg.Delimiter {
			return b.String(), nil
		}
		return "", p.fieldError("unexpected character after closing quote")
	}

	err := p.fieldError("unterminated quoted field")
	err.Line = startLine
	return "", err
}

func (p *parser) fieldError(detail string) *Error {
	return &Error{
		Op:     "parse",
		Record: p.record,
		Field:  p.field,
		Line:   p.line,
		Detail: detail,
		Err:    ErrMalformedField,
	}
}
