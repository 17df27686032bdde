package invoice

import (
	"errors"
	"fmt"
)

// The four per-file fatal error kinds. Each aborts the current file's
// pipeline; the batch loop records it and moves on. Validation flags are
// deliberately not errors.

// FileError means the source file is missing, unreadable, oversized, or
// in an unsupported format.
type FileError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("file error: %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("file error: %s: %s", e.Path, e.Reason)
}

func (e *FileError) Unwrap() error { return e.Err }

// APIError means the external model call failed or returned empty content.
type APIError struct {
	Reason string
	Err    error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error: %s: %v", e.Reason, e.Err)
	}
	return "api error: " + e.Reason
}

func (e *APIError) Unwrap() error { return e.Err }

// MalformedResponseError means the model's response text could not be
// decoded into any candidate structure, even after fallback extraction.
type MalformedResponseError struct {
	Snippet string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %v (content: %s)", e.Err, e.Snippet)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// SchemaViolationError means the candidate structure lacks required fields
// or has fundamentally wrong types, so no meaningful record can be built.
type SchemaViolationError struct {
	Vendor Vendor
	Detail string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation (%s): %s", e.Vendor, e.Detail)
}

// ErrorKind returns a short label for a per-file error, for summaries
// and logs.
func ErrorKind(err error) string {
	var (
		fileErr      *FileError
		apiErr       *APIError
		malformedErr *MalformedResponseError
		schemaErr    *SchemaViolationError
	)
	switch {
	case errors.As(err, &fileErr):
		return "file_error"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.As(err, &malformedErr):
		return "malformed_response"
	case errors.As(err, &schemaErr):
		return "schema_violation"
	default:
		return "error"
	}
}
