package device

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
)

// DeviceError reports a failed device call together with the call site
type DeviceError struct {
	Op   string
	File string
	Line int
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error in %s at %s:%d: %v", e.Op, filepath.Base(e.File), e.Line, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// FailurePolicy decides what happens after a device error. A policy that
// returns lets the error propagate to the caller.
type FailurePolicy func(*DeviceError)

// Abort is the default policy: report and terminate the process
func Abort(e *DeviceError) {
	slog.Error("fatal device error", "op", e.Op, "file", e.File, "line", e.Line, "err", e.Err)
	os.Exit(1)
}

var policy atomic.Pointer[FailurePolicy]

func init() {
	p := FailurePolicy(Abort)
	policy.Store(&p)
}

// SetFailurePolicy installs p and returns the previous policy
func SetFailurePolicy(p FailurePolicy) FailurePolicy {
	if p == nil {
		p = Abort
	}
	return *policy.Swap(&p)
}

// Check wraps a failed device call with its caller's file and line and
// invokes the failure policy. It returns nil when err is nil.
func Check(op string, err error) error {
	if err == nil {
		return nil
	}
	file, line := "unknown", 0
	// Skip Check and the Device method that called it
	if _, f, l, ok := runtime.Caller(2); ok {
		file, line = f, l
	}
	de := &DeviceError{Op: op, File: file, Line: line, Err: err}
	(*policy.Load())(de)
	return de
}
