package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/csvkit/internal/csv"
	"github.com/JonMunkholm/csvkit/internal/ingest"
	"github.com/JonMunkholm/csvkit/internal/wire"
)

// handleParse decodes a CSV body and responds in the negotiated format.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	cfg, err := dialectFromQuery(r, s.service.Dialect())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.ParseReader(r.Context(), r.Body, cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.writeTable(w, r, t, cfg)
}

// handleSerialize encodes a TableData body as CSV text. The body format
// follows Content-Type and defaults to JSON.
func (s *Server) handleSerialize(w http.ResponseWriter, r *http.Request) {
	cfg, err := dialectFromQuery(r, s.service.Dialect())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	data, err := s.decodeTable(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	cfg.HasHeader = data.HasHeader

	out, err := s.service.Serialize(r.Context(), data.Table(), cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", wire.ContentTypeCSV+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

// handleProject parses a CSV body with a header and returns one object per
// record, keyed by column name.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	cfg, err := dialectFromQuery(r, s.service.Dialect())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	cfg.HasHeader = true

	t, err := s.service.ParseReader(r.Context(), r.Body, cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rows, err := s.service.Project(r.Context(), t)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns": t.Header,
		"rows":    rows,
	})
}

func (s *Server) decodeTable(r *http.Request) (wire.TableData, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = wire.ContentTypeJSON
	}
	codec, err := wire.ForContentType(ct)
	if err != nil {
		return wire.TableData{}, err
	}

	// msgpack and CBOR are binary, so the body is read without text decoding.
	body, _, err := ingest.ReadBytes(r.Body, s.service.MaxInputSize())
	if err != nil {
		return wire.TableData{}, err
	}
	data, err := codec.Decode(body)
	if err != nil {
		return wire.TableData{}, fmt.Errorf("%w: %v", wire.ErrInvalidBody, err)
	}
	return data, nil
}

// writeTable encodes t in the format picked from the Accept header. The
// body is fully built before the status is written so failures still get
// an error response.
func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, t *csv.Table, cfg csv.Config) {
	ct := wire.Negotiate(r.Header.Get("Accept"))

	var body []byte
	switch ct {
	case wire.ContentTypeArrow:
		var buf bytes.Buffer
		if err := wire.WriteArrowIPC(&buf, t); err != nil {
			s.respondError(w, r, err)
			return
		}
		body = buf.Bytes()

	case wire.ContentTypeCSV:
		out, err := s.service.Serialize(r.Context(), t, cfg)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		body = []byte(out)
		ct += "; charset=utf-8"

	default:
		codec, err := wire.ForContentType(ct)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		body, err = codec.Encode(wire.FromTable(t))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Record-Count", fmt.Sprint(t.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
