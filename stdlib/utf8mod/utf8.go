// Package utf8mod backs Lily's `Utf8` namespace: codepoint-aware string
// inspection, grounded on original_source/src/lily_pkg_utf8.c. Strings are
// not validated on construction (vm.NewString accepts any bytes); these
// wrap Go's unicode/utf8 package directly, and is_valid reports whether a
// String holds valid UTF-8.
package utf8mod

import (
	"unicode/utf8"

	"github.com/FascinatedBox/lily/vm"
)

func Install(state *vm.State) {
	m := vm.NewModule("Utf8")

	m.Register("length", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		s := vm.Arg(args, 0).StringValue()
		return vm.Int(int64(utf8.RuneCountInString(s)))
	})

	m.Register("code_at", 2, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		s := vm.Arg(args, 0).StringValue()
		idx := int(vm.Arg(args, 1).AsInt())
		pos := 0
		for i, r := range s {
			if pos == idx {
				return vm.Int(int64(r))
			}
			_ = i
			pos++
		}
		vm.RaiseIndexError("Utf8 index %d out of range.", idx)
		return vm.Unit
	})

	m.Register("is_valid", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		s := vm.Arg(args, 0).StringValue()
		return vm.Bool(utf8.ValidString(s))
	})

	state.RegisterModule(m)
}
