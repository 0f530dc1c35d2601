// Package prelude provides the always-available foreign methods for
// Lily's builtin container and string classes (`size`, `push`, `pop`,
// `delete`, `keys`, `has_key`, and friends). It is grounded on the method
// sets lily_cls_list.c, lily_cls_hash.c, and lily_cls_string.c expose in
// the original interpreter, reimplemented against this runtime's foreign
// call interface (vm.ForeignFunc) the same way any other embedder-visible
// stdlib package would be.
package prelude

import (
	"strings"

	"github.com/FascinatedBox/lily/vm"
)

// Install registers every prelude method into state, so the emitter's
// method-call resolution can find them by name.
func Install(state *vm.State) {
	m := vm.NewModule("prelude")

	m.Register("size", 1, fnSize)
	m.Register("push", 2, fnPush)
	m.Register("pop", 1, fnPop)
	m.Register("delete", 2, fnDelete)
	m.Register("has_key", 2, fnHasKey)
	m.Register("keys", 1, fnKeys)
	m.Register("reverse", 1, fnReverse)
	m.Register("to_s", 1, fnToS)
	m.Register("upper", 1, fnUpper)
	m.Register("lower", 1, fnLower)

	state.RegisterModule(m)
}

func fnSize(i *vm.Interpreter, args []vm.Value) vm.Value { return sizeOf(vm.Arg(args, 0)) }

func sizeOf(v vm.Value) vm.Value {
	switch v.Tag() {
	case vm.TagList, vm.TagTuple:
		return vm.Int(int64(v.ContainerValue().Len()))
	case vm.TagHash:
		return vm.Int(int64(v.HashValue().Size()))
	case vm.TagString:
		return vm.Int(int64(len([]rune(v.StringValue()))))
	case vm.TagByteString:
		return vm.Int(int64(len(v.ByteStringValue())))
	default:
		vm.RaiseRuntimeError("Value of type %s has no size.", v.Tag())
		return vm.Unit
	}
}

func fnPush(i *vm.Interpreter, args []vm.Value) vm.Value {
	recv := vm.Arg(args, 0)
	if recv.Tag() != vm.TagList {
		vm.RaiseRuntimeError("push is only defined for List.")
	}
	recv.ContainerValue().Push(vm.Arg(args, 1))
	return vm.Unit
}

func fnPop(i *vm.Interpreter, args []vm.Value) vm.Value {
	recv := vm.Arg(args, 0)
	if recv.Tag() != vm.TagList {
		vm.RaiseRuntimeError("pop is only defined for List.")
	}
	v, ok := recv.ContainerValue().Pop()
	if !ok {
		vm.RaiseIndexError("Cannot pop from an empty list.")
	}
	return v
}

func fnDelete(i *vm.Interpreter, args []vm.Value) vm.Value {
	recv := vm.Arg(args, 0)
	if recv.Tag() != vm.TagHash {
		vm.RaiseRuntimeError("delete is only defined for Hash.")
	}
	if err := recv.HashValue().Delete(vm.Arg(args, 1)); err != nil {
		panic(err)
	}
	return vm.Unit
}

func fnHasKey(i *vm.Interpreter, args []vm.Value) vm.Value {
	recv := vm.Arg(args, 0)
	if recv.Tag() != vm.TagHash {
		vm.RaiseRuntimeError("has_key is only defined for Hash.")
	}
	_, ok := recv.HashValue().Get(vm.Arg(args, 1))
	return vm.Bool(ok)
}

func fnKeys(i *vm.Interpreter, args []vm.Value) vm.Value {
	recv := vm.Arg(args, 0)
	if recv.Tag() != vm.TagHash {
		vm.RaiseRuntimeError("keys is only defined for Hash.")
	}
	h := recv.HashValue()
	h.BeginIter()
	defer h.EndIter()
	var out []vm.Value
	for _, e := range h.Entries() {
		out = append(out, vm.CopyValue(e.Key))
	}
	return vm.NewList(out)
}

func fnReverse(i *vm.Interpreter, args []vm.Value) vm.Value {
	recv := vm.Arg(args, 0)
	if recv.Tag() != vm.TagList {
		vm.RaiseRuntimeError("reverse is only defined for List.")
	}
	c := recv.ContainerValue()
	n := c.Len()
	out := make([]vm.Value, n)
	for i := 0; i < n; i++ {
		out[i] = vm.CopyValue(c.Get(n - 1 - i))
	}
	return vm.NewList(out)
}

func fnToS(i *vm.Interpreter, args []vm.Value) vm.Value {
	return vm.NewString(vm.NewMsgBuf().AddValue(vm.Arg(args, 0)).Flush())
}

func fnUpper(i *vm.Interpreter, args []vm.Value) vm.Value {
	return vm.NewString(strings.ToUpper(vm.Arg(args, 0).StringValue()))
}

func fnLower(i *vm.Interpreter, args []vm.Value) vm.Value {
	return vm.NewString(strings.ToLower(vm.Arg(args, 0).StringValue()))
}
