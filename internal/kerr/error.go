// Package kerr provides the small, allocation-free error types and the
// fatal-error hook used by the segtab package.
package kerr

import "log"

// Error describes an error raised by the directory manager. Instances are
// typically held as package-level *Error sentinels so that equality checks
// (err == ErrXxx) work the way they do for the standard library's sentinel
// errors.
type Error struct {
	// Module names the package that raised the error.
	Module string

	// Message is a short, human readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}

// Sentinel is a string-based error for cases that don't need a Module tag,
// such as invariant-violation messages composed at the call site.
type Sentinel string

// Error implements the error interface.
func (s Sentinel) Error() string {
	return string(s)
}

// FatalFn aborts the process after logging msg. It is a package-level var so
// tests can intercept calls that would otherwise terminate the test binary.
//
// FatalFn is the single choke point the rest of the module calls through
// for invariant violations. Allocation exhaustion is not routed here:
// without CanFail, segtab's Reserve blocks in the page source until a page
// is available and returns an error only when its context ends.
var FatalFn = func(module, msg string) {
	log.Fatalf("%s: %s", module, msg)
}

// Fatal invokes FatalFn. It never returns under the default FatalFn.
func Fatal(module, msg string) {
	FatalFn(module, msg)
}
