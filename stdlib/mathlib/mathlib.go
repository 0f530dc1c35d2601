// Package mathlib is the foreign module backing Lily's `Math` namespace:
// a small set of Double-returning functions grounded on the function set
// original_source/src/lily_pkg_math.c exposes; this module registers sqrt,
// floor, ceil, pow and abs (no min or max). It is registered separately from prelude because, unlike
// push/size/delete, these are free functions called as `Math::sqrt(x)`
// rather than methods on a receiver.
package mathlib

import (
	"math"

	"github.com/FascinatedBox/lily/vm"
)

func Install(state *vm.State) {
	m := vm.NewModule("Math")
	m.Register("sqrt", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		return vm.Double(math.Sqrt(toF(vm.Arg(args, 0))))
	})
	m.Register("floor", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		return vm.Double(math.Floor(toF(vm.Arg(args, 0))))
	})
	m.Register("ceil", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		return vm.Double(math.Ceil(toF(vm.Arg(args, 0))))
	})
	m.Register("pow", 2, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		return vm.Double(math.Pow(toF(vm.Arg(args, 0)), toF(vm.Arg(args, 1))))
	})
	m.Register("abs", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		return vm.Double(math.Abs(toF(vm.Arg(args, 0))))
	})
	state.RegisterModule(m)
}

func toF(v vm.Value) float64 {
	if v.Tag() == vm.TagDouble {
		return v.AsDouble()
	}
	return float64(v.AsInt())
}
