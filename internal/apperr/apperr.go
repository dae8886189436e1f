// Package apperr defines the error taxonomy shared across the orchestrator,
// stores, and the thin HTTP surface. Each kind maps to a stable HTTP status
// so handlers never hand-roll status codes from error strings.
package apperr

import "fmt"

// Kind is one of the taxonomy categories from the error handling design.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict"
	KindExternalService    Kind = "external_service"
	KindRateLimit          Kind = "rate_limit"
	KindUnsupportedFile    Kind = "unsupported_file_type"
	KindExtraction         Kind = "extraction"
	KindVectorstore        Kind = "vectorstore"
)

// statusByKind mirrors the propagation policy in the error handling design:
// database errors are not listed here because they propagate unwrapped as 500.
var statusByKind = map[Kind]int{
	KindConfiguration:   500,
	KindValidation:      400,
	KindNotFound:        404,
	KindUnauthorized:    401,
	KindForbidden:       403,
	KindConflict:        409,
	KindExternalService: 502,
	KindRateLimit:       429,
	KindUnsupportedFile: 400,
	KindExtraction:      422,
	KindVectorstore:     502,
}

// Error is a typed application error carrying an HTTP status and a cause chain.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status code associated with this error's kind.
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return 500
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// StatusOf returns the HTTP status for any error, falling back to 500 for
// errors that are not a *Error (e.g. a raw database error, which propagates
// per the error handling design's "database errors: propagate" rule).
func StatusOf(err error) int {
	var appErr *Error
	if As(err, &appErr) {
		return appErr.Status()
	}
	return 500
}

// As is a narrow local alias of errors.As so callers don't need a second import.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
