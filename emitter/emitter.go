// Package emitter translates a parsed *ast.Program into a vm.Function the
// interpreter can run directly. It is a single-pass AST-to-bytecode walker
// in the style of the teacher's codegen.Generator: one Compile entry
// point, a growable instruction slice, and a backpatch list for forward
// jump targets. Semantic analysis and type checking are out of scope
// (spec §1) — this package only resolves names to registers/globals and
// shapes calls; it never rejects a program for a type mismatch.
package emitter

import (
	"fmt"

	"github.com/FascinatedBox/lily/ast"
	"github.com/FascinatedBox/lily/vm"
)

// CompileError describes a name-resolution or structural failure caught
// during emission (undefined variable, break outside a loop, and so on).
type CompileError struct {
	Pos     string
	Message string
}

func (e *CompileError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Message) }

// scope is one block's name->register mapping; scopes nest so an inner
// block's locals shadow an outer block's without clobbering them, but are
// discarded (not garbage, just forgotten) once the block ends.
type scope struct {
	vars   map[string]int
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]int), parent: parent}
}

func (s *scope) lookup(name string) (int, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if reg, ok := cur.vars[name]; ok {
			return reg, true
		}
	}
	return 0, false
}

type loopCtx struct {
	// continuePatches holds jump instruction indices emitted for `continue`,
	// patched once the loop knows where "next iteration" actually starts:
	// the condition re-test for a while loop, the increment step for a for
	// loop. Deferred the same way breakPatches defers the exit target,
	// since neither address is known while the body is still compiling.
	continuePatches []int
	breakPatches    []int // indices into code that need their Imm set to the loop's exit
}

// funcBuilder accumulates one function's instructions while it's being
// compiled; Compile creates one per define statement plus one implicit
// builder for top-level code.
type funcBuilder struct {
	name      string
	params    []string
	code      []vm.Instr
	constants []vm.Value
	scope     *scope
	nextReg   int
	loops     []loopCtx
	tryDepth  int
}

func newFuncBuilder(name string, params []string) *funcBuilder {
	fb := &funcBuilder{name: name, params: params, scope: newScope(nil)}
	for _, p := range params {
		fb.scope.vars[p] = fb.allocReg()
	}
	return fb
}

func (fb *funcBuilder) allocReg() int {
	r := fb.nextReg
	fb.nextReg++
	return r
}

func (fb *funcBuilder) emit(in vm.Instr) int {
	fb.code = append(fb.code, in)
	return len(fb.code) - 1
}

func (fb *funcBuilder) addConst(v vm.Value) int {
	fb.constants = append(fb.constants, v)
	return len(fb.constants) - 1
}

func (fb *funcBuilder) enterScope() { fb.scope = newScope(fb.scope) }
func (fb *funcBuilder) exitScope()  { fb.scope = fb.scope.parent }

// Compiler drives emission for a whole program: it owns the target
// vm.State (so define statements can reserve global slots and functions
// can be registered for recursive/forward calls) and the stack of
// funcBuilders currently being compiled (nested only when a define
// appears inside another define's body).
type Compiler struct {
	state    *vm.State
	builders []*funcBuilder
	globals  map[string]int // top-level `var` and `define` names -> global slot
	errors   []error

	builtinMethodCache map[string]int // never initialised or read: builtinMethodConst adds a fresh constant on every call
}

// NewCompiler creates a Compiler that will register globals into state as
// it compiles.
func NewCompiler(state *vm.State) *Compiler {
	return &Compiler{state: state, globals: make(map[string]int)}
}

func (c *Compiler) cur() *funcBuilder { return c.builders[len(c.builders)-1] }

func (c *Compiler) errorf(format string, args ...interface{}) {
	c.errors = append(c.errors, &CompileError{Message: fmt.Sprintf(format, args...)})
}

// Errors returns every error recorded during Compile.
func (c *Compiler) Errors() []error { return c.errors }

// Compile translates prog into the program's entry function. The
// returned Function is ready to hand to vm.State.LoadString/Execute.
func Compile(state *vm.State, prog *ast.Program) (*vm.Function, []error) {
	c := NewCompiler(state)
	c.predeclareFunctions(prog.Statements)

	main := newFuncBuilder("__main__", nil)
	c.builders = append(c.builders, main)
	for _, stmt := range prog.Statements {
		c.compileStmt(stmt)
	}
	main.emit(vm.Instr{Op: vm.OpReturnFromVM})

	fnVal := vm.NewNativeFunction("__main__", 0, main.nextReg, main.code, main.constants).FunctionValue()
	return fnVal, c.errors
}

// predeclareFunctions walks the top level once up front so a call to a
// function defined later in the file (or to itself, for recursion) still
// resolves: every define statement gets its global slot reserved before
// any body is compiled.
func (c *Compiler) predeclareFunctions(stmts []ast.Statement) {
	for _, stmt := range stmts {
		if def, ok := stmt.(*ast.DefineStmt); ok {
			c.globals[def.Name] = c.state.AllocGlobal()
		}
	}
}

// ---- Statements ----------------------------------------------------------

func (c *Compiler) compileStmt(stmt ast.Statement) {
	fb := c.cur()
	switch s := stmt.(type) {
	case *ast.VarStmt:
		reg := fb.allocReg()
		fb.scope.vars[s.Name] = reg
		if s.Value != nil {
			c.compileExprInto(s.Value, reg)
		} else {
			fb.emit(vm.Instr{Op: vm.OpAssign, A: reg, B: c.loadUnit(fb)})
		}

	case *ast.AssignStmt:
		c.compileAssign(s)

	case *ast.ExprStmt:
		tmp := fb.allocReg()
		c.compileExprInto(s.Expr, tmp)

	case *ast.BlockStmt:
		fb.enterScope()
		for _, inner := range s.Statements {
			c.compileStmt(inner)
		}
		fb.exitScope()

	case *ast.IfStmt:
		c.compileIf(s)

	case *ast.WhileStmt:
		c.compileWhile(s)

	case *ast.ForStmt:
		c.compileFor(s)

	case *ast.DefineStmt:
		c.compileDefine(s)

	case *ast.ReturnStmt:
		if s.Value == nil {
			fb.emit(vm.Instr{Op: vm.OpReturnUnit})
			return
		}
		reg := fb.allocReg()
		c.compileExprInto(s.Value, reg)
		fb.emit(vm.Instr{Op: vm.OpReturnVal, A: reg})

	case *ast.BreakStmt:
		if len(fb.loops) == 0 {
			c.errorf("break used outside of a loop")
			return
		}
		idx := fb.emit(vm.Instr{Op: vm.OpJump})
		top := &fb.loops[len(fb.loops)-1]
		top.breakPatches = append(top.breakPatches, idx)

	case *ast.ContinueStmt:
		if len(fb.loops) == 0 {
			c.errorf("continue used outside of a loop")
			return
		}
		idx := fb.emit(vm.Instr{Op: vm.OpJump})
		top := &fb.loops[len(fb.loops)-1]
		top.continuePatches = append(top.continuePatches, idx)

	case *ast.RaiseStmt:
		reg := fb.allocReg()
		c.compileExprInto(s.Value, reg)
		fb.emit(vm.Instr{Op: vm.OpRaise, A: reg})

	case *ast.TryStmt:
		c.compileTry(s)

	default:
		c.errorf("unsupported statement %T", s)
	}
}

func (c *Compiler) loadUnit(fb *funcBuilder) int {
	reg := fb.allocReg()
	idx := fb.addConst(vm.Unit)
	fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: reg, Imm: idx})
	return reg
}

func (c *Compiler) compileAssign(s *ast.AssignStmt) {
	fb := c.cur()
	switch target := s.Target.(type) {
	case *ast.Ident:
		if reg, ok := fb.scope.lookup(target.Name); ok {
			c.compileExprInto(s.Value, reg)
			return
		}
		if gidx, ok := c.globals[target.Name]; ok {
			tmp := fb.allocReg()
			c.compileExprInto(s.Value, tmp)
			fb.emit(vm.Instr{Op: vm.OpSetGlobal, A: tmp, Imm: gidx})
			return
		}
		c.errorf("assignment to undeclared variable %q", target.Name)

	case *ast.IndexExpr:
		recv := fb.allocReg()
		c.compileExprInto(target.Left, recv)
		idx := fb.allocReg()
		c.compileExprInto(target.Index, idx)
		val := fb.allocReg()
		c.compileExprInto(s.Value, val)
		fb.emit(vm.Instr{Op: vm.OpSetItem, A: recv, B: idx, C: val})

	case *ast.PropertyExpr:
		recv := fb.allocReg()
		c.compileExprInto(target.Left, recv)
		val := fb.allocReg()
		c.compileExprInto(s.Value, val)
		fb.emit(vm.Instr{Op: vm.OpSetProperty, A: recv, B: val, Imm: c.propertyIndex(target.Property)})

	default:
		c.errorf("invalid assignment target")
	}
}

// propertyIndex is a placeholder mapping from field name to container
// slot index; without a class/field declaration table (out of scope
// here), fields are addressed in declaration order starting at 0, so this
// always returns 0 for now. Real field offsets would come from the
// (unimplemented) class registry.
func (c *Compiler) propertyIndex(name string) int { return 0 }

func (c *Compiler) compileIf(s *ast.IfStmt) {
	fb := c.cur()
	var endPatches []int
	for _, arm := range s.Arms {
		cond := fb.allocReg()
		c.compileExprInto(arm.Cond, cond)
		skipIdx := fb.emit(vm.Instr{Op: vm.OpJumpIfFalse, A: cond})
		fb.enterScope()
		for _, st := range arm.Body.Statements {
			c.compileStmt(st)
		}
		fb.exitScope()
		endPatches = append(endPatches, fb.emit(vm.Instr{Op: vm.OpJump}))
		fb.code[skipIdx].Imm = len(fb.code)
	}
	if s.Else != nil {
		fb.enterScope()
		for _, st := range s.Else.Statements {
			c.compileStmt(st)
		}
		fb.exitScope()
	}
	for _, idx := range endPatches {
		fb.code[idx].Imm = len(fb.code)
	}
}

func (c *Compiler) compileWhile(s *ast.WhileStmt) {
	fb := c.cur()
	top := len(fb.code)
	cond := fb.allocReg()
	c.compileExprInto(s.Cond, cond)
	exitIdx := fb.emit(vm.Instr{Op: vm.OpJumpIfFalse, A: cond})

	fb.loops = append(fb.loops, loopCtx{})
	fb.enterScope()
	for _, st := range s.Body.Statements {
		c.compileStmt(st)
	}
	fb.exitScope()
	fb.emit(vm.Instr{Op: vm.OpJump, Imm: top})

	loop := fb.loops[len(fb.loops)-1]
	fb.loops = fb.loops[:len(fb.loops)-1]
	end := len(fb.code)
	fb.code[exitIdx].Imm = end
	for _, p := range loop.breakPatches {
		fb.code[p].Imm = end
	}
	for _, p := range loop.continuePatches {
		fb.code[p].Imm = top
	}
}

func (c *Compiler) compileFor(s *ast.ForStmt) {
	fb := c.cur()
	fb.enterScope()
	loopVar := fb.allocReg()
	fb.scope.vars[s.Var] = loopVar
	startReg := fb.allocReg()
	c.compileExprInto(s.Start, startReg)
	stopReg := fb.allocReg()
	c.compileExprInto(s.Stop, stopReg)
	stepReg := fb.allocReg()
	if s.Step != nil {
		c.compileExprInto(s.Step, stepReg)
	} else {
		idx := fb.addConst(vm.Int(1))
		fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: stepReg, Imm: idx})
	}
	fb.emit(vm.Instr{Op: vm.OpForSetup, A: loopVar, B: startReg})

	checkPC := len(fb.code)
	testReg := fb.allocReg()
	// integer_for jumps to bodyStart while continuing; Imm is patched
	// below once the body's start address is known.
	forInstrIdx := fb.emit(vm.Instr{Op: vm.OpIntegerFor, A: loopVar, B: stopReg, C: stepReg})
	exitJumpIdx := fb.emit(vm.Instr{Op: vm.OpJump})
	bodyStart := len(fb.code)
	fb.code[forInstrIdx].Imm = bodyStart
	_ = testReg

	fb.loops = append(fb.loops, loopCtx{})
	for _, st := range s.Body.Statements {
		c.compileStmt(st)
	}
	// Advance the loop variable by step, then re-test. continue jumps here
	// (incrPos), not to checkPC directly, so a `continue`d iteration still
	// advances the loop variable instead of looping forever on the same one.
	incrPos := len(fb.code)
	fb.emit(vm.Instr{Op: vm.OpAdd, A: loopVar, B: loopVar, C: stepReg})
	fb.emit(vm.Instr{Op: vm.OpJump, Imm: checkPC})

	loop := fb.loops[len(fb.loops)-1]
	fb.loops = fb.loops[:len(fb.loops)-1]
	end := len(fb.code)
	fb.code[exitJumpIdx].Imm = end
	for _, p := range loop.breakPatches {
		fb.code[p].Imm = end
	}
	for _, p := range loop.continuePatches {
		fb.code[p].Imm = incrPos
	}
	fb.exitScope()
}

// compileTry emits push_try, the protected body, a jump over the except
// chain on the success path, and one except_dispatch per arm, falling
// through to a final reraise if nothing matches.
func (c *Compiler) compileTry(s *ast.TryStmt) {
	fb := c.cur()
	pushIdx := fb.emit(vm.Instr{Op: vm.OpPushTry})
	fb.enterScope()
	for _, st := range s.Body.Statements {
		c.compileStmt(st)
	}
	fb.exitScope()
	fb.emit(vm.Instr{Op: vm.OpPopTry})
	successJump := fb.emit(vm.Instr{Op: vm.OpJump})

	handlerStart := len(fb.code)
	fb.code[pushIdx].Imm = handlerStart

	var pendingCheckPatch int = -1
	var armEndJumps []int
	for _, arm := range s.Excepts {
		if pendingCheckPatch >= 0 {
			fb.code[pendingCheckPatch].Imm = len(fb.code)
		}

		bindReg := -1
		fb.enterScope()
		if arm.Capture != "" {
			bindReg = fb.allocReg()
			fb.scope.vars[arm.Capture] = bindReg
		}
		dispatchIdx := fb.emit(vm.Instr{Op: vm.OpExceptDispatch, A: bindReg, Str: arm.ClassName})
		pendingCheckPatch = dispatchIdx
		for _, st := range arm.Body.Statements {
			c.compileStmt(st)
		}
		fb.exitScope()
		armEndJumps = append(armEndJumps, fb.emit(vm.Instr{Op: vm.OpJump}))
	}
	if pendingCheckPatch >= 0 {
		fb.code[pendingCheckPatch].Imm = len(fb.code)
	}
	fb.emit(vm.Instr{Op: vm.OpReraise})

	end := len(fb.code)
	fb.code[successJump].Imm = end
	for _, j := range armEndJumps {
		fb.code[j].Imm = end
	}
}

func (c *Compiler) compileDefine(s *ast.DefineStmt) {
	gidx, ok := c.globals[s.Name]
	if !ok {
		gidx = c.state.AllocGlobal()
		c.globals[s.Name] = gidx
	}

	fb := newFuncBuilder(s.Name, s.Params)
	c.builders = append(c.builders, fb)
	for _, st := range s.Body.Statements {
		c.compileStmt(st)
	}
	fb.emit(vm.Instr{Op: vm.OpReturnUnit})
	c.builders = c.builders[:len(c.builders)-1]

	fnVal := vm.NewNativeFunction(s.Name, len(s.Params), fb.nextReg, fb.code, fb.constants)

	outer := c.cur()
	constIdx := outer.addConst(fnVal)
	tmp := outer.allocReg()
	outer.emit(vm.Instr{Op: vm.OpGetReadonly, A: tmp, Imm: constIdx})
	outer.emit(vm.Instr{Op: vm.OpSetGlobal, A: tmp, Imm: gidx})
}
