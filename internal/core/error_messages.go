package core

// # Error Codes Reference
//
// Technical errors are mapped to user-friendly messages with a code that
// users can quote to support staff.
//
// # Codec Errors (CSV001-CSV099)
//
//	CSV001 - Malformed row: A record has the wrong number of fields
//	         Action: Make every line have as many fields as the first one
//	         Patterns: "malformed row"
//
//	CSV002 - Malformed field: A field breaks the quoting rules
//	         Action: Close every quoted field and double quotes inside it
//	         Patterns: "malformed field"
//
//	CSV003 - Invalid configuration: The delimiter or quote setting is unusable
//	         Action: Use two different single characters that are not line breaks
//	         Patterns: "invalid configuration"
//
//	CSV004 - Unknown column: A column name is not in the header
//	         Action: Check the header spelling
//	         Patterns: "unknown column"
//
//	CSV005 - No header: The operation needs a header row
//	         Action: Send the data with header=true
//	         Patterns: "no header"
//
// # Input Errors (INP001-INP099)
//
//	INP001 - Input too large: The body exceeds the configured size limit
//	         Action: Split the file into smaller chunks
//	         Patterns: "input too large"
//
//	INP002 - Invalid body: The request body could not be decoded
//	         Action: Check the Content-Type and body format
//	         Patterns: "invalid request body"
//
//	INP003 - Invalid dataset id: The id is not a UUID
//	         Action: Use the id returned when the dataset was saved
//	         Patterns: "invalid dataset id"
//
// # Server Errors (SRV001-SRV099)
//
//	SRV001 - System busy: Every parse slot is in use
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent requests"
//
//	SRV002 - Request timeout: The request was cancelled or timed out
//	         Action: Try a smaller input or check your connection
//	         Patterns: "context deadline exceeded", "context canceled"
//
//	SRV003 - Rate limited: This client sent too many requests
//	         Action: Please wait a moment before trying again
//	         Patterns: "rate limit"
//
// # Dataset Errors (DS001-DS099)
//
//	DS001 - Dataset not found: No dataset has this id
//	        Action: List datasets to find the right id
//	        Patterns: "dataset not found"
//
//	DS002 - Storage disabled: The server runs without a database
//	        Action: Set DATABASE_URL to enable dataset storage
//	        Patterns: "dataset storage disabled"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Codec
	{"malformed row", UserMessage{
		Message: "A record has the wrong number of fields",
		Action:  "Make every line have as many fields as the first one",
		Code:    "CSV001",
	}},
	{"malformed field", UserMessage{
		Message: "A field breaks the quoting rules",
		Action:  "Close every quoted field and double any quote inside it",
		Code:    "CSV002",
	}},
	{"invalid configuration", UserMessage{
		Message: "The delimiter or quote setting is unusable",
		Action:  "Use two different single characters that are not line breaks",
		Code:    "CSV003",
	}},
	{"unknown column", UserMessage{
		Message: "A column name is not in the header",
		Action:  "Check the header spelling",
		Code:    "CSV004",
	}},
	{"no header", UserMessage{
		Message: "This operation needs a header row",
		Action:  "Send the data with header=true",
		Code:    "CSV005",
	}},

	// Input
	{"input too large", UserMessage{
		Message: "The input exceeds the size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "INP001",
	}},
	{"invalid request body", UserMessage{
		Message: "The request body could not be decoded",
		Action:  "Check the Content-Type and body format",
		Code:    "INP002",
	}},
	{"invalid dataset id", UserMessage{
		Message: "The dataset id is not valid",
		Action:  "Use the id returned when the dataset was saved",
		Code:    "INP003",
	}},

	// Server
	{"too many concurrent requests", UserMessage{
		Message: "The system is busy with other requests",
		Action:  "Please wait a moment and try again",
		Code:    "SRV001",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller input or check your connection",
		Code:    "SRV002",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "SRV002",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "SRV003",
	}},

	// Datasets
	{"dataset not found", UserMessage{
		Message: "Dataset not found",
		Action:  "List datasets to find the right id",
		Code:    "DS001",
	}},
	{"dataset storage disabled", UserMessage{
		Message: "Dataset storage is not enabled on this server",
		Action:  "Set DATABASE_URL to enable dataset storage",
		Code:    "DS002",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Unknown errors map to ERR000; a nil error maps to the zero UserMessage.
//
//	msg := MapError(err)
//	// msg.Code == "CSV001" for a ragged record
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern, meaning its
// text is safe and useful to show to the client.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
