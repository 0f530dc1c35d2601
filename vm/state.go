package vm

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Config bundles the options an embedder can set before a State starts
// running any code: argv passed to the program, collector tuning, and the
// two hook functions the original embedding API exposes for customizing
// output rendering and import resolution.
type Config struct {
	Argv []string

	GCStart      int
	GCMultiplier int

	RenderFunc func(text string) string
	ImportFunc func(name string) (string, bool)

	SipKey0, SipKey1 uint64

	Data interface{} // opaque embedder context, retrievable by foreign functions
}

// DefaultConfig returns a Config with the same default thresholds the
// collector itself falls back to when none is supplied.
func DefaultConfig() Config {
	return Config{GCStart: defaultGCThreshold, GCMultiplier: defaultGCMultiplier, SipKey0: 0xcafebabedeadbeef, SipKey1: 0x1234567890abcdef}
}

// classRecord names a class for traceback/match_dispatch purposes. Full
// user-defined class declarations (fields, methods, inheritance) are out
// of this runtime's scope per the component list; classIDs here cover the
// builtin exception hierarchy and whatever the emitter assigns to
// `class` declarations it does support.
type classRecord struct {
	name   string
	parent int // -1 for no parent
}

// State is the top-level embedding handle: one State per independently
// loaded Lily program, analogous to lily_state/lily_parse_state in the
// original API surface, reduced to what a Go embedder actually needs to
// call: load code, run it, read back errors.
type State struct {
	config  Config
	globals []Value
	gc      *Collector
	modules map[string]*Module
	classes []classRecord
	main    *Interpreter
	entry   *Function

	lastError *LilyError
}

// NewState creates a fresh State with the given configuration, ready for
// LoadString and Execute.
func NewState(cfg Config) *State {
	if cfg.GCStart == 0 {
		cfg.GCStart = defaultGCThreshold
	}
	if cfg.GCMultiplier == 0 {
		cfg.GCMultiplier = defaultGCMultiplier
	}
	s := &State{
		config:  cfg,
		modules: make(map[string]*Module),
		classes: builtinClasses(),
	}
	s.gc = &Collector{threshold: cfg.GCStart, multiplier: cfg.GCMultiplier}
	s.main = newInterpreter(s)
	return s
}

func builtinClasses() []classRecord {
	return []classRecord{
		{name: "Exception", parent: -1},
		{name: "RuntimeError", parent: 0},
		{name: "ValueError", parent: 0},
		{name: "KeyError", parent: 0},
		{name: "IndexError", parent: 0},
		{name: "DivisionByZeroError", parent: 0},
		{name: "IOError", parent: 0},
	}
}

func (s *State) classNameOf(id int) string {
	if id < 0 || id >= len(s.classes) {
		return "Instance"
	}
	return s.classes[id].name
}

// RegisterClass adds a user class (or exception subclass) and returns its
// id, for use by the emitter's new_instance/raise instructions.
func (s *State) RegisterClass(name string, parent int) int {
	s.classes = append(s.classes, classRecord{name: name, parent: parent})
	return len(s.classes) - 1
}

// RegisterModule installs a foreign module so its functions are reachable
// from compiled code under `ModuleName::function_name`.
func (s *State) RegisterModule(m *Module) { s.modules[m.Name] = m }

// Module looks up a previously registered module by name, for the
// emitter's method-call resolution and for embedders wiring CLI
// introspection commands.
func (s *State) Module(name string) (*Module, bool) {
	m, ok := s.modules[name]
	return m, ok
}

func (s *State) newHashObj() *Hash {
	return &Hash{rc: 1, sipkey: [2]uint64{s.config.SipKey0, s.config.SipKey1}, buckets: make([]*HashEntry, hashInitialBuckets)}
}

// newGCEntry is the single path anything in the interpreter uses to make a
// heap object cycle-collectible: the adaptive threshold is checked first,
// so a sweep can run as part of tagging the very object that pushed the
// live count over threshold, then obj joins the live list.
func (s *State) newGCEntry(obj gcTagged) {
	s.gc.MaybeCollect()
	s.gc.Tag(obj)
}

// Collect forces an immediate mark/sweep pass regardless of the adaptive
// threshold, for an embedder (or a test) that wants a deterministic point
// to reclaim cyclic garbage rather than waiting on the next allocation to
// cross it.
func (s *State) Collect() {
	s.gc.Collect()
}

// LiveObjectCount reports how many heap objects are currently tracked by
// the collector, for embedders and tests that want to observe a sweep's
// effect without reaching into vm-internal state.
func (s *State) LiveObjectCount() int {
	return s.gc.liveCount
}

// AllocGlobal reserves the next global slot, returning its index.
func (s *State) AllocGlobal() int {
	s.globals = append(s.globals, Unit)
	return len(s.globals) - 1
}

// LoadString stages an already-compiled Function as the program's entry
// function; it does no compiling itself. Compilation lives in
// the emitter package; State only needs the already-built Function, which
// is why this takes one directly rather than source text — the CLI glues
// lexer/parser/emitter together before calling it.
func (s *State) LoadString(entry *Function) {
	s.entry = entry
}

// Execute runs the loaded entry function to completion, returning any
// uncaught LilyError. The error (if any) remains available afterward via
// ErrorMessage/ErrorMessageNoTrace, mirroring the original's persistent
// last-error state across calls.
func (s *State) Execute() *LilyError {
	if s.entry == nil {
		return newRuntimeError("No program has been loaded.")
	}
	_, err := s.main.Call(s.entry, nil)
	s.lastError = err
	return err
}

// ErrorMessage renders the last error with its full Lily-level traceback,
// one frame per line, deepest call first.
func (s *State) ErrorMessage() string {
	if s.lastError == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", s.lastError.ClassName, s.lastError.Message)
	b.WriteString("Traceback:\n")
	for _, t := range s.lastError.Traceback {
		fmt.Fprintf(&b, "    from %s:%d\n", t.FunctionName, t.Line)
	}
	return b.String()
}

// ErrorMessageNoTrace renders just the "Class: message" line, for
// embedders that want to format their own traceback presentation.
func (s *State) ErrorMessageNoTrace() string {
	if s.lastError == nil {
		return ""
	}
	return s.lastError.Error()
}

// DumpGlobals writes a human-readable table of every global slot's
// current value to w, rendered with tablewriter.
func (s *State) DumpGlobals(w *os.File) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Index", "Type", "Value"})
	for idx, v := range s.globals {
		table.Append([]string{fmt.Sprintf("%d", idx), v.tag.String(), NewMsgBuf().AddValue(v).Flush()})
	}
	table.Render()
}
