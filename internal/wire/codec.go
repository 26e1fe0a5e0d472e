// Package wire encodes tables for transport.
//
// A table travels as TableData in JSON, msgpack or CBOR, picked by media
// type. WriteArrowIPC exports a table as an Arrow IPC stream instead.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Media types understood by ForContentType and Negotiate.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
	ContentTypeCBOR    = "application/cbor"
	ContentTypeArrow   = "application/vnd.apache.arrow.stream"
	ContentTypeCSV     = "text/csv"
)

// ErrInvalidBody reports an unusable request body or content type.
var ErrInvalidBody = errors.New("invalid request body")

// Codec encodes and decodes values of type V.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// JSON encodes with encoding/json.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// Msgpack encodes with vmihailenco/msgpack. The zero value is ready to use.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(v) }
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}

// CBOR encodes with fxamacker/cbor using deterministic core encoding, so
// equal tables produce equal bytes. Construct with NewCBOR.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR builds a CBOR codec.
func NewCBOR[V any]() (CBOR[V], error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }
func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

var tableCBOR = func() CBOR[TableData] {
	c, err := NewCBOR[TableData]()
	if err != nil {
		panic(err)
	}
	return c
}()

// ForContentType returns the TableData codec for a media type. Parameters
// such as charset are ignored.
func ForContentType(ct string) (Codec[TableData], error) {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, fmt.Errorf("%w: content type %q: %v", ErrInvalidBody, ct, err)
	}
	switch mt {
	case ContentTypeJSON:
		return JSON[TableData]{}, nil
	case ContentTypeMsgpack, "application/x-msgpack", "application/vnd.msgpack":
		return Msgpack[TableData]{}, nil
	case ContentTypeCBOR:
		return tableCBOR, nil
	}
	return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidBody, mt)
}

// Negotiate picks a response media type from an Accept header. It returns
// the first listed type this package can produce and falls back to JSON.
func Negotiate(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case ContentTypeArrow, ContentTypeCSV:
			return mt
		case "*/*", "application/*":
			return ContentTypeJSON
		}
		if _, err := ForContentType(mt); err == nil {
			if mt == "application/x-msgpack" || mt == "application/vnd.msgpack" {
				return ContentTypeMsgpack
			}
			return mt
		}
	}
	return ContentTypeJSON
}
