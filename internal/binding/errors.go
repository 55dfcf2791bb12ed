package binding

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition matches every *PreconditionError.
	ErrPrecondition = errors.New("binding precondition violated")
	// ErrNotBound is returned by Get for a value with no node.
	ErrNotBound = errors.New("value is not bound to a node")
)

// PreconditionError reports a call that violates the binding contract. It
// signals a bug in the calling trace logic and is not meant to be retried.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is makes errors.Is(err, ErrPrecondition) hold for any PreconditionError.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

func preconditionf(op, format string, args ...any) error {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
