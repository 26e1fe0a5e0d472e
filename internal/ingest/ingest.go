// Package ingest turns raw uploaded bytes into text the codec can parse.
//
// Uploaded CSV files often come from spreadsheet exports and carry a byte
// order mark, UTF-16 encoding or stray invalid bytes. The readers here fix
// those on the fly:
//
//   - Decode strips a UTF-8 BOM, switches to UTF-16 when a UTF-16 BOM is
//     present, and replaces invalid UTF-8 with U+FFFD
//   - CountingReader tracks raw bytes read for logging and progress
//   - ReadText combines both with a size limit
//   - ReadBytes applies only the size limit, for binary bodies
package ingest

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrInputTooLarge is returned by ReadText and ReadBytes when the input
// exceeds its limit.
var ErrInputTooLarge = errors.New("input too large")

// Decode wraps r so that it yields valid UTF-8 without a byte order mark.
func Decode(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 if unknown
}

// NewCountingReader creates a counting reader with an optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100), or 0 when the
// total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	p := int(r.BytesRead * 100 / r.Total)
	if p > 100 {
		p = 100
	}
	return p
}

// ReadText reads all of r as decoded text. A positive limit caps the number
// of raw bytes accepted; anything larger fails with ErrInputTooLarge before
// the excess is read. It returns the text and the raw byte count.
func ReadText(r io.Reader, limit int64) (string, int64, error) {
	data, n, err := readLimited(r, limit, Decode)
	if err != nil {
		return "", n, err
	}
	return string(data), n, nil
}

// ReadBytes reads all of r unchanged under the same limit as ReadText.
// Use it for binary bodies such as msgpack or CBOR, which text decoding
// would corrupt.
func ReadBytes(r io.Reader, limit int64) ([]byte, int64, error) {
	return readLimited(r, limit, nil)
}

func readLimited(r io.Reader, limit int64, wrap func(io.Reader) io.Reader) ([]byte, int64, error) {
	counter := NewCountingReader(r, 0)

	var src io.Reader = counter
	if limit > 0 {
		src = io.LimitReader(counter, limit+1)
	}
	if wrap != nil {
		src = wrap(src)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, counter.BytesRead, fmt.Errorf("read input: %w", err)
	}
	if limit > 0 && counter.BytesRead > limit {
		return nil, counter.BytesRead, fmt.Errorf("%w: exceeds %d bytes", ErrInputTooLarge, limit)
	}
	return data, counter.BytesRead, nil
}
