package invoke

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/abdul-hamid-achik/hitlambda/packages/transform"
)

var (
	// ErrInvalidDeclaration is returned for unknown or duplicated declaration
	// children, a malformed URL, or a content header on a bodiless verb.
	ErrInvalidDeclaration = errors.New("invalid declaration")
	// ErrUnexpectedPayload is returned when a GET or DELETE carries [payload] or [filename].
	ErrUnexpectedPayload = errors.New("unexpected payload")
	// ErrMissingPayload is returned when a body verb has nothing to send.
	ErrMissingPayload = errors.New("missing payload")
	// ErrUnsupportedContentType is returned when no request transformer exists
	// for the Content-Type of a structured payload.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrHTTPStatus is matched by *StatusError. It is only returned when the
	// invoker was built WithStatusErrors(true).
	ErrHTTPStatus = errors.New("http error status")
)

// Re-export errors raised by collaborators so callers compare against a single package.
var (
	ErrAmbiguousReference  = node.ErrAmbiguousReference
	ErrUnresolvedReference = node.ErrUnresolvedReference
	ErrNestedFormField     = transform.ErrNestedFormField
	ErrFileNotFound        = transform.ErrFileNotFound
)

// StatusError carries a 4xx or 5xx status. The Result has already been
// populated when it is returned.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("[%s] responded with status %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// IsStatusError reports whether err is a status error and returns it.
func IsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsInvalidDeclaration reports whether err was caused by a malformed declaration.
func IsInvalidDeclaration(err error) bool { return errors.Is(err, ErrInvalidDeclaration) }
