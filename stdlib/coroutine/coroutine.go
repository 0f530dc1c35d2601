// Package coroutine backs Lily's `Coroutine` namespace, wrapping the
// goroutine-backed engine in vm/coroutine.go as the four calls a Lily
// program actually makes: build, resume, yield, and status. Grounded on
// the original's lily_pkg_coroutine.c surface, with the implementation
// underneath swapped for Go's native concurrency primitives per the
// runtime-core design notes.
package coroutine

import "github.com/FascinatedBox/lily/vm"

func Install(state *vm.State) {
	m := vm.NewModule("Coroutine")

	m.Register("build", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		fnVal := vm.Arg(args, 0)
		if fnVal.Tag() != vm.TagFunction {
			vm.RaiseValueError("Coroutine::build requires a function.")
		}
		return vm.NewCoroutine(i, fnVal.FunctionValue())
	})

	m.Register("resume", 2, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		co := vm.Arg(args, 0).CoroutineValue()
		in := vm.Arg(args, 1)
		val, running, err := co.Resume(i, in)
		if err != nil {
			vm.RaiseError(err)
		}
		return vm.NewTuple([]vm.Value{vm.Bool(running), val})
	})

	m.Register("status", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		co := vm.Arg(args, 0).CoroutineValue()
		return vm.NewString(co.Status().String())
	})

	// yield is called from inside a running coroutine's own body, so unlike
	// the other three calls it takes no Coroutine receiver: i is already
	// that coroutine's own Interpreter, which is how Interpreter.Yield knows
	// which channel pair to suspend on.
	m.Register("yield", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		return i.Yield(vm.Arg(args, 0))
	})

	state.RegisterModule(m)
}
