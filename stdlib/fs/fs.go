// Package fs backs Lily's `Fs` namespace: open/read/write/close over the
// File value defined in vm/container.go. Grounded on the function set
// original_source/src/lily_pkg_fs.c exposes, trimmed to the operations a
// sandboxed embeddable runtime needs (no directory traversal, no
// permission-bit manipulation) per spec §1's scope boundary.
package fs

import (
	"os"

	"github.com/FascinatedBox/lily/vm"
)

func Install(state *vm.State) {
	m := vm.NewModule("Fs")

	m.Register("open", 2, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		path := vm.Arg(args, 0).StringValue()
		mode := vm.Arg(args, 1).StringValue()
		flag, perm := flagsForMode(mode)
		f, err := os.OpenFile(path, flag, perm)
		if err != nil {
			vm.RaiseIOError("Could not open %s: %s", path, err)
		}
		return vm.NewFile(f, mode)
	})

	m.Register("read_line", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		fileVal := vm.Arg(args, 0)
		reader := fileVal.FileLineReader()
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			vm.RaiseIOError("End of file reached.")
		}
		return vm.NewString(line)
	})

	m.Register("write", 2, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		handle, mode := vm.Arg(args, 0).FileValue()
		if mode != "w" && mode != "a" {
			vm.RaiseIOError("File is not open for writing.")
		}
		text := vm.Arg(args, 1).StringValue()
		if _, err := handle.WriteString(text); err != nil {
			vm.RaiseIOError("Write failed: %s", err)
		}
		return vm.Unit
	})

	m.Register("close", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		handle, _ := vm.Arg(args, 0).FileValue()
		handle.Close()
		return vm.Unit
	})

	state.RegisterModule(m)
}

func flagsForMode(mode string) (int, os.FileMode) {
	switch mode {
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, 0644
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, 0644
	default:
		return os.O_RDONLY, 0
	}
}
