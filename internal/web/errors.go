package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request ID, mapped through
// core.MapError, and rendered as JSON under /api/ or as an HTML page
// elsewhere. Codec errors also report where in the input they happened.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvkit/internal/core"
	"github.com/JonMunkholm/csvkit/internal/csv"
	"github.com/JonMunkholm/csvkit/internal/ingest"
	"github.com/JonMunkholm/csvkit/internal/store"
	"github.com/JonMunkholm/csvkit/internal/web/templates"
	"github.com/JonMunkholm/csvkit/internal/wire"
)

var (
	errBadRequest  = wire.ErrInvalidBody
	errInvalidID   = errors.New("invalid dataset id")
	errRateLimited = errors.New("rate limit exceeded")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error    string    `json:"error"`
	Message  string    `json:"message"`
	Action   string    `json:"action,omitempty"`
	Code     string    `json:"code"`
	Detail   string    `json:"detail,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// Position locates a codec error. Fields are 1-based, zero when unknown.
type Position struct {
	Record   int `json:"record,omitempty"`
	Field    int `json:"field,omitempty"`
	Line     int `json:"line,omitempty"`
	Expected int `json:"expected,omitempty"`
	Actual   int `json:"actual,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, csv.ErrMalformedRow),
		errors.Is(err, csv.ErrMalformedField),
		errors.Is(err, csv.ErrConfiguration),
		errors.Is(err, csv.ErrUnknownColumn),
		errors.Is(err, csv.ErrNoHeader):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest), errors.Is(err, errInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrStoreDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := requestLogger(r)
	if status >= 500 {
		logger.Error("request error", "path", r.URL.Path, "status", status, "error", err, "code", userMsg.Code)
	} else {
		logger.Info("request rejected", "path", r.URL.Path, "status", status, "error", err, "code", userMsg.Code)
	}

	if !strings.HasPrefix(r.URL.Path, "/api/") {
		respondErrorHTML(w, r, userMsg, status)
		return
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	if core.IsUserFacing(err) {
		resp.Detail = err.Error()
	}
	var cerr *csv.Error
	if errors.As(err, &cerr) {
		resp.Position = &Position{
			Record:   cerr.Record,
			Field:    cerr.Field,
			Line:     cerr.Line,
			Expected: cerr.Expected,
			Actual:   cerr.Actual,
		}
	}
	writeJSON(w, status, resp)
}

func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	renderHTML(w, r, status, templates.ErrorPage(msg))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, errRateLimited)
}
