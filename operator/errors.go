package operator

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of recoverable operator errors
type ErrorType int

const (
	// Invalid construction or setter arguments, shape mismatches
	ErrTypeConfig ErrorType = iota
	// Operation not provided by the operator
	ErrTypeUnsupported
	// Failed transfer or kernel dispatch surfaced by the device policy
	ErrTypeExecution
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeConfig:
		return "Config"
	case ErrTypeUnsupported:
		return "Unsupported"
	case ErrTypeExecution:
		return "Execution"
	default:
		return "Unknown"
	}
}

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrFreed          = errors.New("operator has been freed")
)

// Error is a structured operator error
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error in %s: %s (caused by: %v)", e.Type, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %s", e.Type, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigError reports invalid configuration
func NewConfigError(op, format string, args ...interface{}) error {
	return &Error{Type: ErrTypeConfig, Op: op, Message: fmt.Sprintf(format, args...)}
}

func newUnsupportedError(op string) error {
	return &Error{Type: ErrTypeUnsupported, Op: op, Message: "operation not provided by this operator", Err: ErrNotImplemented}
}

func newExecutionError(op string, err error) error {
	return &Error{Type: ErrTypeExecution, Op: op, Message: "device work failed", Err: err}
}

func errorType(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

func IsConfigError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeConfig
}

func IsUnsupported(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeUnsupported
}

func IsExecutionError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeExecution
}

// DotTestError reports an adjointness check over tolerance. Add tells
// whether the accumulate path failed.
type DotTestError struct {
	Add       bool
	RelErr    float64
	Tolerance float64
}

func (e *DotTestError) Error() string {
	return fmt.Sprintf("dot test failed (add=%t): relative error %g exceeds tolerance %g",
		e.Add, e.RelErr, e.Tolerance)
}
