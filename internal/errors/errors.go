package errors

import "fmt"

// ErrorCode represents a Souq error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"             // 404
	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"        // 404
	ErrEmptyInput          ErrorCode = "EMPTY_INPUT"           // 422
	ErrNoMatches           ErrorCode = "NO_MATCHES"            // 422
	ErrNoVocabularyOverlap ErrorCode = "NO_VOCABULARY_OVERLAP" // 422
	ErrMalformedRecord     ErrorCode = "MALFORMED_RECORD"      // 422
	ErrCancelled           ErrorCode = "CANCELLED"             // 499
	ErrInternal            ErrorCode = "INTERNAL"              // 500
)

// userMessages holds the fixed user-facing message for each pipeline condition.
var userMessages = map[ErrorCode]string{
	ErrEmptyInput:          "no records found in the source data",
	ErrNoMatches:           "no matches found",
	ErrNoVocabularyOverlap: "matched posts contain no vocabulary terms",
	ErrMalformedRecord:     "record skipped: unparseable timestamp",
	ErrCancelled:           "operation cancelled",
	ErrInternal:            "an internal error occurred",
}

// UserMessage returns the user-facing message for a code.
// Codes without a fixed message return the empty string.
func UserMessage(code ErrorCode) string {
	return userMessages[code]
}

// SouqError represents a structured error with code, status, and details.
type SouqError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *SouqError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SouqError {
	return &SouqError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing run, category or selection.
func NewNotFound(identifier string) *SouqError {
	return &SouqError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *SouqError {
	return &SouqError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewEmptyInput creates a 422 error for a source with no usable records.
func NewEmptyInput(source string) *SouqError {
	e := &SouqError{
		Code:    ErrEmptyInput,
		Status:  422,
		Message: UserMessage(ErrEmptyInput),
	}
	if source != "" {
		e.Details = map[string]any{"source": source}
	}
	return e
}

// NewNoMatches creates a 422 error for a category whose rule matched nothing.
func NewNoMatches(category string) *SouqError {
	return &SouqError{
		Code:    ErrNoMatches,
		Status:  422,
		Message: fmt.Sprintf("%s for category %q", UserMessage(ErrNoMatches), category),
		Details: map[string]any{"category": category},
	}
}

// NewNoVocabularyOverlap creates a 422 error when no day had a vocabulary term.
func NewNoVocabularyOverlap(records int) *SouqError {
	return &SouqError{
		Code:    ErrNoVocabularyOverlap,
		Status:  422,
		Message: UserMessage(ErrNoVocabularyOverlap),
		Details: map[string]any{"records": records},
	}
}

// NewMalformedRecord creates a 422 error for a record that could not be parsed.
// The loader counts these instead of failing; the error is used for reporting.
func NewMalformedRecord(line int, value string) *SouqError {
	return &SouqError{
		Code:    ErrMalformedRecord,
		Status:  422,
		Message: fmt.Sprintf("line %d: unparseable timestamp %q", line, value),
		Details: map[string]any{"line": line, "value": value},
	}
}

// NewCancelled creates a 499 error for an interrupted operation.
func NewCancelled(op string) *SouqError {
	return &SouqError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *SouqError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SouqError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a SouqError with the given code.
func Is(err error, code ErrorCode) bool {
	if sErr, ok := err.(*SouqError); ok {
		return sErr.Code == code
	}
	return false
}

// CodeOf returns the code of a SouqError, or ErrInternal for any other error.
func CodeOf(err error) ErrorCode {
	if sErr, ok := err.(*SouqError); ok {
		return sErr.Code
	}
	return ErrInternal
}
