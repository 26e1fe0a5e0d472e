package web

// This file contains request parsing helpers shared across handlers.

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvkit/internal/config"
	"github.com/JonMunkholm/csvkit/internal/csv"
	"github.com/JonMunkholm/csvkit/internal/ingest"
	"github.com/JonMunkholm/csvkit/internal/logging"
	mw "github.com/JonMunkholm/csvkit/internal/web/middleware"
)

// requestLogger returns the request-scoped logger with client details.
func requestLogger(r *http.Request) *slog.Logger {
	return logging.WithFields(r.Context(),
		"ip", mw.ClientIP(r),
		"user_agent", r.UserAgent(),
	)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// dialectFromQuery overrides base with the delimiter, quote, header,
// numeric and crlf query parameters. Absent parameters keep base values.
func dialectFromQuery(r *http.Request, base csv.Config) (csv.Config, error) {
	return dialectFromValues(r.URL.Query(), base)
}

func dialectFromValues(q url.Values, base csv.Config) (csv.Config, error) {
	cfg := base

	if v := q.Get("delimiter"); v != "" {
		c, err := config.ParseDialectChar(v)
		if err != nil {
			return csv.Config{}, &csv.ConfigError{Field: "delimiter", Reason: err.Error()}
		}
		cfg.Delimiter = c
	}
	if v := q.Get("quote"); v != "" {
		c, err := config.ParseDialectChar(v)
		if err != nil {
			return csv.Config{}, &csv.ConfigError{Field: "quote", Reason: err.Error()}
		}
		cfg.Quote = c
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"header", &cfg.HasHeader},
		{"numeric", &cfg.NumericCoercion},
		{"crlf", &cfg.CRLF},
	}
	for _, f := range flags {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return csv.Config{}, &csv.ConfigError{Field: f.name, Reason: fmt.Sprintf("%q is not a boolean", v)}
		}
		*f.dst = b
	}

	if err := cfg.Validate(); err != nil {
		return csv.Config{}, err
	}
	return cfg, nil
}

// datasetID parses the {id} URL parameter.
func datasetID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", errInvalidID, raw)
	}
	return id, nil
}

// readText reads the decoded request body under the input size limit.
func (s *Server) readText(r *http.Request) (string, error) {
	text, _, err := ingest.ReadText(r.Body, s.service.MaxInputSize())
	return text, err
}
