package emitter

import (
	"strings"

	"github.com/FascinatedBox/lily/ast"
	"github.com/FascinatedBox/lily/vm"
)

var infixOps = map[string]vm.Op{
	"+": vm.OpAdd, "-": vm.OpSub, "*": vm.OpMul, "/": vm.OpDiv, "%": vm.OpModulo,
	"==": vm.OpIsEqual, "!=": vm.OpNotEqual,
	"<": vm.OpLessThan, "<=": vm.OpLessEq, ">": vm.OpGreaterThan, ">=": vm.OpGreaterEq,
}

// compileExprInto compiles expr and ensures its value ends up in reg,
// mirroring the teacher's codegen convention of threading a destination
// register through expression compilation rather than returning a value
// and letting the caller move it.
func (c *Compiler) compileExprInto(expr ast.Expression, reg int) {
	fb := c.cur()
	switch e := expr.(type) {
	case *ast.IntegerLit:
		idx := fb.addConst(vm.Int(e.Value))
		fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: reg, Imm: idx})

	case *ast.DoubleLit:
		idx := fb.addConst(vm.Double(e.Value))
		fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: reg, Imm: idx})

	case *ast.StringLit:
		idx := fb.addConst(vm.NewString(e.Value))
		fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: reg, Imm: idx})

	case *ast.BoolLit:
		idx := fb.addConst(vm.Bool(e.Value))
		fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: reg, Imm: idx})

	case *ast.UnitLit:
		idx := fb.addConst(vm.Unit)
		fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: reg, Imm: idx})

	case *ast.Ident:
		c.compileIdentInto(e, reg)

	case *ast.ListLit:
		regs := c.compileExprList(e.Elements)
		fb.emit(vm.Instr{Op: vm.OpBuildList, A: reg, Targets: regs})

	case *ast.TupleLit:
		regs := c.compileExprList(e.Elements)
		fb.emit(vm.Instr{Op: vm.OpBuildTuple, A: reg, Targets: regs})

	case *ast.HashLit:
		var regs []int
		for _, pair := range e.Pairs {
			kReg := fb.allocReg()
			c.compileExprInto(pair.Key, kReg)
			vReg := fb.allocReg()
			c.compileExprInto(pair.Value, vReg)
			regs = append(regs, kReg, vReg)
		}
		fb.emit(vm.Instr{Op: vm.OpBuildHash, A: reg, Targets: regs})

	case *ast.PrefixExpr:
		rhs := fb.allocReg()
		c.compileExprInto(e.Right, rhs)
		op := vm.OpUnaryMinus
		if e.Operator == "!" {
			op = vm.OpUnaryNot
		}
		fb.emit(vm.Instr{Op: op, A: reg, B: rhs})

	case *ast.InfixExpr:
		c.compileInfixInto(e, reg)

	case *ast.CallExpr:
		c.compileCallInto(e, reg)

	case *ast.IndexExpr:
		recv := fb.allocReg()
		c.compileExprInto(e.Left, recv)
		idx := fb.allocReg()
		c.compileExprInto(e.Index, idx)
		fb.emit(vm.Instr{Op: vm.OpGetItem, A: reg, B: recv, C: idx})

	case *ast.PropertyExpr:
		recv := fb.allocReg()
		c.compileExprInto(e.Left, recv)
		fb.emit(vm.Instr{Op: vm.OpGetProperty, A: reg, B: recv, Imm: c.propertyIndex(e.Property)})

	case *ast.MethodCallExpr:
		c.compileMethodCallInto(e, reg)

	default:
		c.errorf("unsupported expression %T", e)
	}
}

func (c *Compiler) compileIdentInto(e *ast.Ident, reg int) {
	fb := c.cur()
	if modName, fnName, ok := splitQualified(e.Name); ok {
		idx, err := c.foreignFuncConst(modName, fnName)
		if err != nil {
			c.errorf("%s", err)
			return
		}
		fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: reg, Imm: idx})
		return
	}
	if srcReg, ok := fb.scope.lookup(e.Name); ok {
		if srcReg != reg {
			fb.emit(vm.Instr{Op: vm.OpAssign, A: reg, B: srcReg})
		}
		return
	}
	if gidx, ok := c.globals[e.Name]; ok {
		fb.emit(vm.Instr{Op: vm.OpGetGlobal, A: reg, Imm: gidx})
		return
	}
	c.errorf("use of undeclared variable %q", e.Name)
}

// splitQualified splits a "Module::function" ident name produced by the
// parser's "::" handling into its two parts.
func splitQualified(name string) (mod, fn string, ok bool) {
	idx := strings.Index(name, "::")
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+2:], true
}

// foreignFuncConst looks up fnName in the named module and adds the
// wrapped Function value as a new constant of the current builder (one per
// call, not deduplicated), the same approach compileMethodCallInto uses for
// receiver-style method calls.
func (c *Compiler) foreignFuncConst(modName, fnName string) (int, error) {
	mod, ok := c.state.Module(modName)
	if !ok {
		return 0, &CompileError{Message: "unknown module " + modName}
	}
	fn, paramCount, ok := mod.FindFunction(fnName)
	if !ok {
		return 0, &CompileError{Message: "unknown function " + modName + "::" + fnName}
	}
	fnVal := vm.NewForeignFunction(modName+"::"+fnName, paramCount, fn)
	return c.cur().addConst(fnVal), nil
}

// compileLogical implements short-circuit && and ||, since they must not
// evaluate their right operand unless necessary (unlike the arithmetic
// and comparison operators, which are strict binary ops).
func (c *Compiler) compileLogical(e *ast.InfixExpr, reg int) {
	fb := c.cur()
	c.compileExprInto(e.Left, reg)
	var skipIdx int
	if e.Operator == "&&" {
		skipIdx = fb.emit(vm.Instr{Op: vm.OpJumpIfFalse, A: reg})
	} else {
		skipIdx = fb.emit(vm.Instr{Op: vm.OpJumpIfTrue, A: reg})
	}
	c.compileExprInto(e.Right, reg)
	fb.code[skipIdx].Imm = len(fb.code)
}

func (c *Compiler) compileInfixInto(e *ast.InfixExpr, reg int) {
	if e.Operator == "&&" || e.Operator == "||" {
		c.compileLogical(e, reg)
		return
	}
	fb := c.cur()
	lhs := fb.allocReg()
	c.compileExprInto(e.Left, lhs)
	rhs := fb.allocReg()
	c.compileExprInto(e.Right, rhs)
	op, ok := infixOps[e.Operator]
	if !ok {
		c.errorf("unsupported operator %q", e.Operator)
		return
	}
	fb.emit(vm.Instr{Op: op, A: reg, B: lhs, C: rhs})
}

func (c *Compiler) compileExprList(exprs []ast.Expression) []int {
	fb := c.cur()
	regs := make([]int, len(exprs))
	for i, e := range exprs {
		r := fb.allocReg()
		c.compileExprInto(e, r)
		regs[i] = r
	}
	return regs
}

func (c *Compiler) compileCallInto(e *ast.CallExpr, reg int) {
	fb := c.cur()
	ident, ok := e.Fn.(*ast.Ident)
	if !ok {
		c.errorf("call target must be a function name")
		return
	}
	fnReg := fb.allocReg()
	c.compileIdentInto(ident, fnReg)
	argRegs := c.compileExprList(e.Args)
	fb.emit(vm.Instr{Op: vm.OpCallNative, A: reg, B: fnReg, Targets: argRegs})
}

// compileMethodCallInto resolves `recv.method(args)` against the prelude
// module's foreign function table (installed by stdlib/prelude's Install,
// which coreinit runs after NewState), since this runtime has no user-defined class/method
// system. The receiver is always passed as the foreign function's first
// argument.
func (c *Compiler) compileMethodCallInto(e *ast.MethodCallExpr, reg int) {
	fb := c.cur()
	recv := fb.allocReg()
	c.compileExprInto(e.Left, recv)
	argRegs := append([]int{recv}, c.compileExprList(e.Args)...)

	fnReg := fb.allocReg()
	idx, err := c.builtinMethodConst(e.Method)
	if err != nil {
		c.errorf("%s", err)
		return
	}
	fb.emit(vm.Instr{Op: vm.OpGetReadonly, A: fnReg, Imm: idx})
	fb.emit(vm.Instr{Op: vm.OpCallForeign, A: reg, B: fnReg, Targets: argRegs})
}

// builtinMethodConst looks up name in the prelude module and adds the
// resulting wrapped Function value as a new constant of the current
// builder. Nothing is cached: each call site of the same method gets its
// own constant slot.
func (c *Compiler) builtinMethodConst(name string) (int, error) {
	prelude, ok := c.state.Module("prelude")
	if !ok {
		return 0, &CompileError{Message: "no prelude module registered; cannot resolve method " + name}
	}
	fn, paramCount, ok := prelude.FindFunction(name)
	if !ok {
		return 0, &CompileError{Message: "unknown method " + name}
	}
	fnVal := vm.NewForeignFunction(name, paramCount, fn)
	return c.cur().addConst(fnVal), nil
}
