package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvkit/internal/ingest"
	"github.com/JonMunkholm/csvkit/internal/web/templates"
)

// previewRows caps the records rendered on the preview page.
const previewRows = 200

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	renderHTML(w, r, http.StatusOK, templates.IndexPage(templates.NewIndexParams(s.service.Dialect())))
}

// handlePreview parses CSV pasted into the index form, or sent as a raw
// body, and renders it as an HTML table.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	cfg := s.service.Dialect()
	var text string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		limit := s.service.MaxInputSize() + 4096
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseForm(); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = fmt.Errorf("%w: exceeds %d bytes", ingest.ErrInputTooLarge, limit)
			} else {
				err = fmt.Errorf("%w: %v", errBadRequest, err)
			}
			s.respondError(w, r, err)
			return
		}
		// Unchecked checkboxes are not submitted.
		cfg.HasHeader = false
		cfg.NumericCoercion = false

		var err error
		if cfg, err = dialectFromValues(r.PostForm, cfg); err != nil {
			s.respondError(w, r, err)
			return
		}
		text = r.PostForm.Get("csv")
	} else {
		var err error
		if cfg, err = dialectFromQuery(r, cfg); err != nil {
			s.respondError(w, r, err)
			return
		}
		if text, err = s.readText(r); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	t, err := s.service.Parse(r.Context(), text, cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	renderHTML(w, r, http.StatusOK, templates.PreviewPage(templates.NewPreviewParams(t, previewRows)))
}

// renderHTML buffers the page so a render failure can still become a 500.
func renderHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		requestLogger(r).Error("render failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		requestLogger(r).Warn("write page failed", "error", err)
	}
}
