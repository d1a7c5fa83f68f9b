package service

import (
	"fmt"
	"net/http"
)

// UnsupportedFormatError is returned at submission for anything that is not a PDF.
type UnsupportedFormatError struct {
	ContentType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q: only application/pdf is accepted", e.ContentType)
}

// InvalidFormTypeError is returned at submission for a form type without a schema.
type InvalidFormTypeError struct {
	FormType string
}

func (e *InvalidFormTypeError) Error() string {
	return fmt.Sprintf("unsupported form type %q", e.FormType)
}

// EmptyDocumentError means the decision PDF has no extractable text.
type EmptyDocumentError struct{}

func (e *EmptyDocumentError) Error() string {
	return "document has no extractable text"
}

type BackendErrorKind string

const (
	BackendErrorTransport BackendErrorKind = "transport"
	BackendErrorTimeout   BackendErrorKind = "timeout"
	BackendErrorStatus    BackendErrorKind = "status"
	BackendErrorMalformed BackendErrorKind = "malformed"
)

// BackendError is a failure of the generation backend call itself.
type BackendError struct {
	Backend    string
	Kind       BackendErrorKind
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.Kind == BackendErrorStatus {
		return fmt.Sprintf("%s backend returned status %d: %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s backend %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could succeed.
func (e *BackendError) retryable() bool {
	switch e.Kind {
	case BackendErrorTransport:
		return true
	case BackendErrorStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// SchemaViolationError means the backend answered but not with the requested JSON object.
type SchemaViolationError struct {
	Reason string
	Err    error
}

func (e *SchemaViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation output violates schema: %s: %v", e.Reason, e.Err)
	}
	return "generation output violates schema: " + e.Reason
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type JobNotReadyError struct {
	JobID  string
	Status string
}

func (e *JobNotReadyError) Error() string {
	return fmt.Sprintf("job %s is not ready for generation (status %s)", e.JobID, e.Status)
}

// RenderingError carries the HTTP-equivalent status of a rendering collaborator failure.
type RenderingError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *RenderingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document rendering failed (%d): %s: %v", e.StatusCode, e.Detail, e.Err)
	}
	return fmt.Sprintf("document rendering failed (%d): %s", e.StatusCode, e.Detail)
}

func (e *RenderingError) Unwrap() error { return e.Err }

// FeedbackWriteError is non-fatal: finalize logs it and carries on.
type FeedbackWriteError struct {
	Err error
}

func (e *FeedbackWriteError) Error() string {
	return fmt.Sprintf("failed to record feedback: %v", e.Err)
}

func (e *FeedbackWriteError) Unwrap() error { return e.Err }

// IndexBuildError is a failure to load or build the policy index.
type IndexBuildError struct {
	Stage string
	Err   error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("policy index %s: %v", e.Stage, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }
