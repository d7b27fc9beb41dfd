package gcrt

import (
	"errors"
	"fmt"
	"os"
)

// Sentinel errors for the fatal conditions named in §6. None of these
// are meant to be recovered from by ordinary control flow: a program
// that hits one has violated an invariant the collector depends on,
// and fatal() logs and exits rather than returning the error up a call
// stack that assumed success.
var (
	ErrTypesAlreadyConfigured = errors.New("gcrt: types already configured")
	ErrUnknownType            = errors.New("gcrt: unknown type")
	ErrUnbalancedSafepoint    = errors.New("gcrt: unbalanced Enter/Exit or entered depth not back at 1 at thread exit")
	ErrAllocationExhausted    = errors.New("gcrt: allocation request could not be satisfied")
	ErrDoubleFree             = errors.New("gcrt: object freed twice")
)

// fatal logs err with the given context and terminates the process. It
// is the only response to the fatal conditions in §6 — the runtime
// never tries to keep running with a corrupted heap.
func (rt *Runtime) fatal(err error, format string, args ...interface{}) {
	rt.logger.Errorw("fatal runtime error", "error", err, "detail", fmt.Sprintf(format, args...))
	os.Exit(2)
}
