// Package coreinit wires every foreign module this distribution ships
// into a freshly created State, the same role the teacher's node assembly
// code plays when it registers every available RPC namespace on startup:
// one place names the complete set so cmd/lily (and embedders in tests)
// don't have to know the individual stdlib package import paths.
package coreinit

import (
	"github.com/FascinatedBox/lily/stdlib/coroutine"
	"github.com/FascinatedBox/lily/stdlib/fs"
	"github.com/FascinatedBox/lily/stdlib/mathlib"
	"github.com/FascinatedBox/lily/stdlib/prelude"
	"github.com/FascinatedBox/lily/stdlib/subprocess"
	"github.com/FascinatedBox/lily/stdlib/sysmod"
	"github.com/FascinatedBox/lily/stdlib/utf8mod"
	"github.com/FascinatedBox/lily/vm"
)

// InstallAll registers prelude (required for method-call resolution) and
// every optional domain module onto state.
func InstallAll(state *vm.State) {
	prelude.Install(state)
	mathlib.Install(state)
	fs.Install(state)
	sysmod.Install(state)
	subprocess.Install(state)
	utf8mod.Install(state)
	coroutine.Install(state)
}
