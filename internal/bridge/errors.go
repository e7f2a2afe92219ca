package bridge

import (
	"fmt"

	"github.com/pkg/errors"
)

// Failure kinds. Match them with errors.Is; the transport cause stays
// reachable through errors.Cause or errors.As.
var (
	ErrTimeout         = errors.New("authority request timed out")
	ErrTransport       = errors.New("authority transport failure")
	ErrProtocol        = errors.New("authority response undecodable")
	ErrInvalidResponse = errors.New("authority response not verified")
)

// Error describes a failed Validate call.
type Error struct {
	Kind      error
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.RequestID, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.RequestID, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Cause implements the github.com/pkg/errors causer interface.
func (e *Error) Cause() error {
	if e.Err == nil {
		return e.Kind
	}
	return e.Err
}

func fail(kind error, id string, cause error) error {
	return &Error{Kind: kind, RequestID: id, Err: cause}
}

// Outcome returns the metric label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	default:
		return "transport"
	}
}
