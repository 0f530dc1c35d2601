// Package subprocess backs Lily's `Subprocess` namespace, grounded on
// original_source/src/lily_pkg_subprocess.c. It shells a command out
// through os/exec and returns its stdout and stderr combined as a String, mapping a
// non-zero exit status to a RuntimeError the way the original maps a
// failed fork/exec or non-zero wait status.
package subprocess

import (
	"os/exec"

	"github.com/FascinatedBox/lily/vm"
)

func Install(state *vm.State) {
	m := vm.NewModule("Subprocess")

	m.Register("run", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		cmdline := vm.Arg(args, 0).StringValue()
		cmd := exec.Command("/bin/sh", "-c", cmdline)
		out, err := cmd.CombinedOutput()
		if err != nil {
			vm.RaiseRuntimeError("Subprocess failed: %s", err)
		}
		return vm.NewString(string(out))
	})

	m.Register("call", 1, func(i *vm.Interpreter, args []vm.Value) vm.Value {
		cmdline := vm.Arg(args, 0).StringValue()
		cmd := exec.Command("/bin/sh", "-c", cmdline)
		_ = cmd.Run()
		status := int64(0)
		if cmd.ProcessState != nil {
			status = int64(cmd.ProcessState.ExitCode())
		}
		return vm.Int(status)
	})

	state.RegisterModule(m)
}
