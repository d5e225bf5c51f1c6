package change

import (
	"errors"
	"fmt"
)

// Kind tags an Error with one of the taxonomy entries from the
// workflow's error handling design. Callers switch on Kind, not on the
// wrapped message, to decide propagation policy.
type Kind int

const (
	// KindUnresolvableRevision: a ref did not resolve in the VCS.
	KindUnresolvableRevision Kind = iota
	// KindEmptyChange: computation produced no change to write.
	KindEmptyChange
	// KindChangeRejected: the user declined an interactive prompt.
	KindChangeRejected
	// KindValidation: configuration or state prohibits the operation.
	KindValidation
	// KindRepo: external VCS / network / I/O failure.
	KindRepo
	// KindCancelled: cooperative cancellation observed.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindUnresolvableRevision:
		return "unresolvable-revision"
	case KindEmptyChange:
		return "empty-change"
	case KindChangeRejected:
		return "change-rejected"
	case KindValidation:
		return "validation-error"
	case KindRepo:
		return "repo-error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown-error"
	}
}

// Error is a workflow-kind-tagged error. It wraps an underlying cause
// like fmt.Errorf("...: %w", err) would, but carries a Kind so callers
// can make propagation decisions without string-matching messages.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a Kind-tagged error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap builds a Kind-tagged error that wraps cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, msg: msg, cause: cause}
}

// Is reports whether err is a workflow Error of the given kind,
// unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
