// Package sysmod backs Lily's `Sys` namespace: environment access
// (getenv) and process exit, grounded on the function set
// original_source/src/lily_pkg_sys.c exposes. Named sysmod rather than sys
// to avoid colliding with the standard library's own import path when both
// are imported side by side in cmd/lily.
package sysmod

import (
	"os"

	"github.com/FascinatedBox/lily/vm"
)

func Install(state *vm.State) {
	m := vm.NewModule("Sys")

	m.Register("getenv", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		key := vm.Arg(args, 0).StringValue()
		val, ok := os.LookupEnv(key)
		if !ok {
			return vm.Unit
		}
		return vm.NewString(val)
	})

	m.Register("exit", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		os.Exit(int(vm.Arg(args, 0).AsInt()))
		return vm.Unit
	})

	state.RegisterModule(m)
}

// Argv builds a List of Strings from argv. Install does not register it
// and nothing in this repository calls it, so Lily code has no Sys::argv.
func Argv(state *vm.State, argv []string) vm.Value {
	elems := make([]vm.Value, len(argv))
	for idx, a := range argv {
		elems[idx] = vm.NewString(a)
	}
	return vm.NewList(elems)
}
