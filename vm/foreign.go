package vm

import "fmt"

// ForeignFunc is the signature every Go-backed stdlib function implements:
// given the interpreter (for nested calls, GC tagging, raising) and its
// already-copied argument values, produce a result value. Ownership of
// args passes to the callee, matching the native call convention in
// interpreter.go's execCallNative.
type ForeignFunc func(i *Interpreter, args []Value) Value

// Arg fetches argument idx, panicking with a RuntimeError if the index is
// out of range — a foreign function author error, not a Lily program
// error, so it is still reported through the same raise path for a
// consistent traceback.
func Arg(args []Value, idx int) Value {
	if idx < 0 || idx >= len(args) {
		panic(newRuntimeError("internal error: foreign function requested argument %d of %d", idx, len(args)))
	}
	return args[idx]
}

// RaiseValueError, RaiseKeyError, RaiseIndexError, and RaiseRuntimeError
// are the foreign-function equivalents of the emitter's raise opcode,
// letting stdlib code signal a Lily-catchable exception with a plain Go
// panic that Call's safeStep recovers into a normal error return.
func RaiseValueError(format string, args ...interface{}) {
	panic(newValueError(format, args...))
}

func RaiseKeyError(format string, args ...interface{}) {
	panic(newKeyError(format, args...))
}

func RaiseIndexError(format string, args ...interface{}) {
	panic(newIndexError(format, args...))
}

func RaiseRuntimeError(format string, args ...interface{}) {
	panic(newRuntimeError(format, args...))
}

func RaiseIOError(format string, args ...interface{}) {
	panic(&LilyError{Source: ErrorFromVM, ClassName: "IOError", Message: fmt.Sprintf(format, args...)})
}

// RaiseError re-raises an already-built error, for foreign functions (like
// Coroutine::resume) that surface a *LilyError produced elsewhere instead
// of constructing a new one from a format string.
func RaiseError(err *LilyError) {
	panic(err)
}

// Module is a named collection of foreign functions,
// registered with a State before any program using it runs. This mirrors
// the original's module_register/find_function contract: embedders and
// stdlib packages both go through the exact same registration path.
type Module struct {
	Name      string
	Functions map[string]ForeignFunc
	ParamCounts map[string]int
}

// NewModule creates an empty Module named name.
func NewModule(name string) *Module {
	return &Module{Name: name, Functions: make(map[string]ForeignFunc), ParamCounts: make(map[string]int)}
}

// Register adds fn under name to the module, to be looked up by
// FindFunction once the module is installed into a State.
func (m *Module) Register(name string, paramCount int, fn ForeignFunc) {
	m.Functions[name] = fn
	m.ParamCounts[name] = paramCount
}

// FindFunction looks up name within the module, returning the function and
// its parameter count, or (nil, 0, false) if absent — the embedding API's equivalent of lily_find_function.
func (m *Module) FindFunction(name string) (ForeignFunc, int, bool) {
	fn, ok := m.Functions[name]
	if !ok {
		return nil, 0, false
	}
	return fn, m.ParamCounts[name], true
}
