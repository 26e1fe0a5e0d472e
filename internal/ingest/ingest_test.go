package ingest

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "invalid byte replaced",
			input:    []byte{'h', 'e', 0x80, 'l', 'o'},
			expected: "he\uFFFDlo",
		},
		{
			name:     "multibyte kept",
			input:    []byte("naïve,café"),
			expected: "naïve,café",
		},
		{
			name:     "utf-16 little endian with BOM",
			input:    []byte{0xFF, 0xFE, 'a', 0, ',', 0, 'b', 0},
			expected: "a,b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(Decode(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	reader := NewCountingReader(strings.NewReader(input), int64(len(input)))

	buf := make([]byte, 100)
	totalRead := 0
	for {
		n, err := reader.Read(buf)
		totalRead += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if totalRead != len(input) {
		t.Errorf("total read = %d, want %d", totalRead, len(input))
	}
	if reader.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(input))
	}
	if reader.Progress() != 100 {
		t.Errorf("Progress = %d, want 100", reader.Progress())
	}
}

func TestCountingReader_UnknownTotal(t *testing.T) {
	reader := NewCountingReader(strings.NewReader("abc"), 0)
	io.ReadAll(reader)
	if reader.Progress() != 0 {
		t.Errorf("Progress = %d, want 0", reader.Progress())
	}
}

func TestReadText(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n")...)

	text, n, err := ReadText(bytes.NewReader(input), 1024)
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if text != "a,b\n1,2\n" {
		t.Errorf("ReadText() = %q", text)
	}
	if n != int64(len(input)) {
		t.Errorf("bytes read = %d, want %d", n, len(input))
	}
}

func TestReadText_Limit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		limit   int64
		wantErr bool
	}{
		{"under limit", 10, 20, false},
		{"exactly at limit", 20, 20, false},
		{"over limit", 21, 20, true},
		{"no limit", 5000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadText(strings.NewReader(strings.Repeat("x", tt.size)), tt.limit)
			if tt.wantErr {
				if !errors.Is(err, ErrInputTooLarge) {
					t.Errorf("ReadText() error = %v, want ErrInputTooLarge", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ReadText() error = %v", err)
			}
		})
	}
}

func TestReadBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		limit   int64
		wantErr bool
	}{
		{"msgpack map header kept", []byte{0x83, 0xa1, 'a', 0x01}, 16, false},
		{"cbor map header kept", []byte{0xa3, 0x61, 'a', 0xf5}, 16, false},
		{"bom kept", []byte{0xEF, 0xBB, 0xBF, 'x'}, 0, false},
		{"invalid utf-8 kept", []byte{'a', 0xff, 'b'}, 3, false},
		{"over limit", bytes.Repeat([]byte{0x90}, 5), 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := ReadBytes(bytes.NewReader(tt.input), tt.limit)
			if tt.wantErr {
				if !errors.Is(err, ErrInputTooLarge) {
					t.Errorf("ReadBytes() error = %v, want ErrInputTooLarge", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadBytes() error = %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Errorf("ReadBytes() = % x, want % x", got, tt.input)
			}
			if n != int64(len(tt.input)) {
				t.Errorf("ReadBytes() count = %d, want %d", n, len(tt.input))
			}
		})
	}
}
