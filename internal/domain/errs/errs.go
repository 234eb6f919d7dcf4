// Package errs defines the error kinds shared by the engine, the stores and
// the HTTP adapter.
//
// Every error leaving a component is an *Error carrying the operation that
// failed and one of the sentinel kinds below. errors.Is matches both the
// kind and the wrapped cause.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage failure")
	ErrConflict   = errors.New("concurrent update conflict")
	ErrDuplicate  = errors.New("duplicate request")
)

// ErrCommitted marks a failure that happened after a write was durably
// applied. It is not a kind: KindOf still reports the underlying cause.
var ErrCommitted = errors.New("write already committed")

// Error is an operation-scoped error with a kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New returns an error of the given kind for op.
func New(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Newf returns an error of the given kind with a formatted detail message.
func Newf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap annotates err with op, keeping whatever kind it already carries.
// A nil err yields nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind annotates err with op and kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Committed annotates err, raised after a write landed, with op and
// ErrCommitted. A nil err yields nil.
func Committed(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: ErrCommitted, Err: err}
}

// KindOf reports the first known kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrDuplicate, ErrStorage} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
