package tools

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrFailedUnmarshalInput is returned when the input does not match the JSON schema of the tool.
var ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")

// ErrorKind classifies tool failures.
type ErrorKind string

const (
	// KindValidation is returned when the input fails schema constraints,
	// before any network call.
	KindValidation ErrorKind = "validation"
	// KindTransport is returned for non-success upstream responses and network errors.
	KindTransport ErrorKind = "transport"
	// KindParse is returned when the upstream response is not the expected JSON.
	KindParse ErrorKind = "parse"
	// KindInvalidAction is returned for unsupported actions or missing conditional fields.
	KindInvalidAction ErrorKind = "invalid_action"
	// KindAborted is returned when the caller canceled the request.
	KindAborted ErrorKind = "aborted"
)

// Error is the failure returned by a tool call.
// Causes is never empty.
type Error struct {
	Kind    ErrorKind
	Message string
	Causes  []error
}

// NewError returns a tool error with the given causes.
// If no cause is provided, the message is used as the cause.
func NewError(kind ErrorKind, message string, causes ...error) *Error {
	var list []error
	for _, c := range causes {
		if c != nil {
			list = append(list, c)
		}
	}
	if len(list) == 0 {
		list = append(list, errors.New(message))
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Causes:  list,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the causes, so errors.Is and errors.As can inspect them.
func (e *Error) Unwrap() []error {
	return e.Causes
}

// Explain returns the message with all causes.
func (e *Error) Explain() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, c := range e.Causes {
		b.WriteString("\n  ")
		b.WriteString(c.Error())
	}
	return b.String()
}

// KindOf returns the kind of the tool error,
// or empty string if err is not a tool error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsKind returns true if err is a tool error of the kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// TransportError maps a failed request into a tool error.
// If the context was canceled or expired, the error is KindAborted.
func TransportError(ctx context.Context, message string, err error) *Error {
	if cerr := ctx.Err(); cerr != nil {
		return NewError(KindAborted, "Request has been aborted!", cerr, err)
	}
	return NewError(KindTransport, message, err)
}
