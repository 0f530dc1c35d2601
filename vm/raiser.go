package vm

import (
	"fmt"

	"github.com/go-stack/stack"
)

// ErrorSource identifies which stage of the pipeline raised an error, so
// the CLI/embedding API can format the report appropriately (a lex/parse
// error never has a Lily-level traceback; a vm error always does).
type ErrorSource int

const (
	ErrorFromLexer ErrorSource = iota
	ErrorFromParser
	ErrorFromEmitter
	ErrorFromVM
	ErrorRaw
)

func (s ErrorSource) String() string {
	switch s {
	case ErrorFromLexer:
		return "SyntaxError"
	case ErrorFromParser:
		return "SyntaxError"
	case ErrorFromEmitter:
		return "SyntaxError"
	case ErrorFromVM:
		return "RuntimeError"
	default:
		return "Error"
	}
}

// TraceLine is one entry of a LilyError's traceback: the function that was
// executing and the line within it.
type TraceLine struct {
	FunctionName string
	Line         int
}

// LilyError is what gets panicked through Go's call stack to implement
// Lily's raise/try/except control flow; it stands in for the original
// interpreter's setjmp/longjmp jump-stack, which Go's panic/recover
// replaces far more idiomatically than a hand-rolled continuation stack
// would.
type LilyError struct {
	Source    ErrorSource
	ClassName string // e.g. "ValueError", "KeyError", "DivisionByZeroError"
	Message   string
	Traceback []TraceLine

	// Payload is the actual exception instance value for a try/except
	// capture clause (`except ValueError as e`); unset for errors raised
	// purely from Go-level faults (out of bounds, division by zero, etc.)
	// that never passed through an in-language `raise` statement. HasPayload
	// distinguishes "Payload is the zero Value" from "Payload was never
	// set" — the zero Value's tag is TagInteger (iota 0), not some
	// recognizably-empty sentinel, so a bool flag is needed rather than
	// trying to infer absence from the tag.
	Payload    Value
	HasPayload bool
}

func (e *LilyError) Error() string {
	return fmt.Sprintf("%s: %s", e.ClassName, e.Message)
}

func newRuntimeError(format string, args ...interface{}) *LilyError {
	return &LilyError{Source: ErrorFromVM, ClassName: "RuntimeError", Message: fmt.Sprintf(format, args...)}
}

func newValueError(format string, args ...interface{}) *LilyError {
	return &LilyError{Source: ErrorFromVM, ClassName: "ValueError", Message: fmt.Sprintf(format, args...)}
}

func newKeyError(format string, args ...interface{}) *LilyError {
	return &LilyError{Source: ErrorFromVM, ClassName: "KeyError", Message: fmt.Sprintf(format, args...)}
}

func newIndexError(format string, args ...interface{}) *LilyError {
	return &LilyError{Source: ErrorFromVM, ClassName: "IndexError", Message: fmt.Sprintf(format, args...)}
}

func newDivisionByZeroError() *LilyError {
	return &LilyError{Source: ErrorFromVM, ClassName: "DivisionByZeroError", Message: "Attempt to divide by zero."}
}

// Raiser holds the error-callback list used by embedders to observe
// raises without unwinding past them (the embedding API's on-error hook).
// The try/except handler stack is not kept here: each callFrame carries
// its own tryStack.
type Raiser struct {
	callbacks []func(*LilyError)
}

// PushErrorCallback registers fn to be notified, most-recently-registered
// first, whenever raise() fires — LIFO, so an inner scope's handler always
// sees the error before an outer one.
func (r *Raiser) PushErrorCallback(fn func(*LilyError)) {
	r.callbacks = append(r.callbacks, fn)
}

func (r *Raiser) PopErrorCallback() {
	if len(r.callbacks) > 0 {
		r.callbacks = r.callbacks[:len(r.callbacks)-1]
	}
}

func (r *Raiser) notify(err *LilyError) {
	for i := len(r.callbacks) - 1; i >= 0; i-- {
		r.callbacks[i](err)
	}
}

// raise panics with err after building its traceback from the current
// call-frame stack and notifying any registered callbacks. Foreign
// functions' Raise* helpers and Yield panic without going through here;
// safeStep fills in the traceback and notifies callbacks for those.
func (interp *Interpreter) raise(err *LilyError) {
	if err.Traceback == nil {
		for i := len(interp.frames) - 1; i >= 0; i-- {
			f := interp.frames[i]
			err.Traceback = append(err.Traceback, TraceLine{FunctionName: f.fn.Name, Line: f.currentLine})
		}
	}
	interp.raiser.notify(err)
	panic(err)
}

// recoverUnexpected turns any non-*LilyError panic (a genuine Go-level
// bug reachable from a foreign function, say) into a RuntimeError instead
// of letting it escape as a raw Go panic, attaching a Go stack trace via
// go-stack/stack for diagnostics instead of a Lily traceback.
func recoverUnexpected(r interface{}) *LilyError {
	if le, ok := r.(*LilyError); ok {
		return le
	}
	trace := stack.Trace().TrimRuntime()
	return &LilyError{
		Source:    ErrorFromVM,
		ClassName: "RuntimeError",
		Message:   fmt.Sprintf("internal error: %v\n%s", r, trace),
	}
}
