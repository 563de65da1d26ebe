// Package errors provides the application's error kinds and secure HTTP error handling
package errors

import (
	stderrors "errors"
)

// Error types shared by the ingestion and question-answering pipeline
const (
	TypeIngest      = "INGEST_ERROR"
	TypeEmbedding   = "EMBEDDING_ERROR"
	TypeSynthesis   = "SYNTHESIS_ERROR"
	TypeIndex       = "INDEX_ERROR"
	TypeNoIndex     = "NO_INDEX"
	TypeSessionBusy = "SESSION_BUSY"
	TypeUserExists  = "USER_EXISTS"
	TypeAuth        = "AUTH_INVALID_CREDENTIALS"
	TypeAuthMissing = "AUTH_MISSING_HEADER"
	TypeAuthHeader  = "AUTH_INVALID_HEADER"
	TypeAuthToken   = "AUTH_INVALID_TOKEN"
	TypeValidation  = "VALIDATION_ERROR"
)

// ErrIngest indicates the uploaded document could not be parsed or has no text
var ErrIngest = &StandardError{
	Type:    TypeIngest,
	Message: "Document could not be read",
}

// ErrEmbedding indicates the embedding service failed or returned a malformed vector
var ErrEmbedding = &StandardError{
	Type:    TypeEmbedding,
	Message: "Embedding service failed",
}

// ErrSynthesis indicates a language model call failed during expansion or synthesis
var ErrSynthesis = &StandardError{
	Type:    TypeSynthesis,
	Message: "Language model call failed",
}

// ErrIndex indicates the vector index storage failed
var ErrIndex = &StandardError{
	Type:    TypeIndex,
	Message: "Index storage failed",
}

// ErrNoIndex indicates there is no index to query or delete
var ErrNoIndex = &StandardError{
	Type:    TypeNoIndex,
	Message: "No document index found",
}

// ErrSessionBusy indicates a document is already loaded in the session
var ErrSessionBusy = &StandardError{
	Type:    TypeSessionBusy,
	Message: "A document is already loaded; delete the collection first",
}

// ErrUserExists indicates a registration for a taken username
var ErrUserExists = &StandardError{
	Type:    TypeUserExists,
	Message: "Username already exists",
}

// ErrInvalidCredentials indicates a failed login
var ErrInvalidCredentials = &StandardError{
	Type:    TypeAuth,
	Message: "Invalid username or password",
}

// ErrInvalidAuthHeader indicates malformed authorization header
var ErrInvalidAuthHeader = &StandardError{
	Type:    TypeAuthHeader,
	Message: "Invalid authorization header format",
}

// ErrMissingAuthHeader indicates missing authorization header
var ErrMissingAuthHeader = &StandardError{
	Type:    TypeAuthMissing,
	Message: "Missing authorization header",
}

// ErrInvalidToken indicates an unknown or expired session token
var ErrInvalidToken = &StandardError{
	Type:    TypeAuthToken,
	Message: "Invalid token",
}

// ErrValidation indicates invalid request input
var ErrValidation = &StandardError{
	Type:    TypeValidation,
	Message: "Invalid request",
}

// StandardError represents a standard application error
type StandardError struct {
	Type    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a StandardError of the same type, so
// errors.Is(err, ErrEmbedding) matches any embedding failure.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithCause adds a cause to the error
func (e *StandardError) WithCause(cause error) *StandardError {
	return &StandardError{
		Type:    e.Type,
		Message: e.Message,
		Cause:   cause,
	}
}

// WithMessage returns a copy of the error with a more specific message
func (e *StandardError) WithMessage(msg string) *StandardError {
	return &StandardError{
		Type:    e.Type,
		Message: msg,
		Cause:   e.Cause,
	}
}

// TypeOf returns the type of the first StandardError in err's chain, or "".
func TypeOf(err error) string {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// MessageOf returns a user-facing message for err without internal causes.
func MessageOf(err error) string {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Message
	}
	return "An internal error occurred"
}
