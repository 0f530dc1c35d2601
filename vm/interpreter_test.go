package vm

import "testing"

// buildFn is a small test helper mirroring the teacher's hand-rolled
// bytecode-builder pattern (instr/program helpers in lang/vm/vm_test.go):
// assemble a Function directly from an instruction slice instead of going
// through the lexer/parser/emitter, since this package tests the runtime
// core in isolation from the front end.
func buildFn(name string, regCount int, code []Instr, consts []Value) *Function {
	return NewNativeFunction(name, 0, regCount, code, consts).FunctionValue()
}

func TestInterpreterArithmetic(t *testing.T) {
	// (3 + 4) * 2 == 14
	consts := []Value{Int(3), Int(4), Int(2)}
	code := []Instr{
		{Op: OpGetReadonly, A: 0, Imm: 0},
		{Op: OpGetReadonly, A: 1, Imm: 1},
		{Op: OpAdd, A: 2, B: 0, C: 1},
		{Op: OpGetReadonly, A: 3, Imm: 2},
		{Op: OpMul, A: 4, B: 2, C: 3},
		{Op: OpReturnVal, A: 4},
	}
	fn := buildFn("arith", 5, code, consts)
	state := NewState(DefaultConfig())
	result, err := state.main.Call(fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsInt() != 14 {
		t.Fatalf("expected 14, got %d", result.AsInt())
	}
}

func TestInterpreterDivisionByZeroUncaught(t *testing.T) {
	consts := []Value{Int(1), Int(0)}
	code := []Instr{
		{Op: OpGetReadonly, A: 0, Imm: 0},
		{Op: OpGetReadonly, A: 1, Imm: 1},
		{Op: OpDiv, A: 2, B: 0, C: 1},
		{Op: OpReturnVal, A: 2},
	}
	fn := buildFn("divzero", 3, code, consts)
	state := NewState(DefaultConfig())
	_, err := state.main.Call(fn, nil)
	if err == nil {
		t.Fatalf("expected a DivisionByZeroError")
	}
	if err.ClassName != "DivisionByZeroError" {
		t.Fatalf("expected DivisionByZeroError, got %s", err.ClassName)
	}
}

// TestInterpreterTryExceptCatches builds: push_try; divide by zero;
// pop_try; jump past handler -- handler: except_dispatch(DivisionByZeroError)
// binds the message into a register and returns it, proving the VM resumes
// execution at the handler instead of unwinding to Call's caller.
func TestInterpreterTryExceptCatches(t *testing.T) {
	consts := []Value{Int(1), Int(0)}
	code := []Instr{
		/*0*/ {Op: OpPushTry, Imm: 5}, // handler starts at index 5
		/*1*/ {Op: OpGetReadonly, A: 0, Imm: 0},
		/*2*/ {Op: OpGetReadonly, A: 1, Imm: 1},
		/*3*/ {Op: OpDiv, A: 2, B: 0, C: 1}, // raises here, never reaches pop_try
		/*4*/ {Op: OpPopTry},
		/*5*/ {Op: OpExceptDispatch, A: 3, Str: "DivisionByZeroError", Imm: 7},
		/*6*/ {Op: OpReturnVal, A: 3},
		/*7*/ {Op: OpReraise},
	}
	fn := buildFn("trycatch", 4, code, consts)
	state := NewState(DefaultConfig())
	result, err := state.main.Call(fn, nil)
	if err != nil {
		t.Fatalf("except arm should have caught the error, got %v", err)
	}
	if result.Tag() != TagString {
		t.Fatalf("expected a bound message string, got tag %v", result.Tag())
	}
	if result.StringValue() != "Attempt to divide by zero." {
		t.Fatalf("unexpected caught message: %q", result.StringValue())
	}
}

// TestInterpreterTryExceptMismatchReraises checks that an except arm whose
// class doesn't match the raised exception lets the error propagate past
// the try block instead of silently swallowing it.
func TestInterpreterTryExceptMismatchReraises(t *testing.T) {
	consts := []Value{Int(1), Int(0)}
	code := []Instr{
		{Op: OpPushTry, Imm: 5},
		{Op: OpGetReadonly, A: 0, Imm: 0},
		{Op: OpGetReadonly, A: 1, Imm: 1},
		{Op: OpDiv, A: 2, B: 0, C: 1},
		{Op: OpPopTry},
		{Op: OpExceptDispatch, A: 3, Str: "KeyError", Imm: 7},
		{Op: OpReturnVal, A: 3},
		{Op: OpReraise},
	}
	fn := buildFn("mismatch", 4, code, consts)
	state := NewState(DefaultConfig())
	_, err := state.main.Call(fn, nil)
	if err == nil {
		t.Fatalf("expected the DivisionByZeroError to propagate past the mismatched except arm")
	}
	if err.ClassName != "DivisionByZeroError" {
		t.Fatalf("expected DivisionByZeroError to survive reraise, got %s", err.ClassName)
	}
}

// TestInterpreterCallNative exercises call_native: a function computing
// double(x) = x * 2 is invoked from a caller that passes a literal.
func TestInterpreterCallNative(t *testing.T) {
	doubleConsts := []Value{Int(2)}
	doubleCode := []Instr{
		{Op: OpMul, A: 2, B: 0, C: 1},
		{Op: OpReturnVal, A: 2},
	}
	doubleFn := buildFn("double", 3, doubleCode, doubleConsts)
	// doubleFn's register 1 must hold the constant 2; params occupy the
	// leading registers, so register 0 is the caller-supplied argument and
	// register 1 is loaded from its own constant pool before the call runs.
	doubleFn.Code = append([]Instr{{Op: OpGetReadonly, A: 1, Imm: 0}}, doubleFn.Code...)

	mainConsts := []Value{Int(21), fromObject(TagFunction, doubleFn)}
	mainCode := []Instr{
		{Op: OpGetReadonly, A: 0, Imm: 1}, // load the function value
		{Op: OpGetReadonly, A: 1, Imm: 0}, // load argument 21
		{Op: OpCallNative, A: 2, B: 0, Targets: []int{1}},
		{Op: OpReturnVal, A: 2},
	}
	fn := buildFn("caller", 3, mainCode, mainConsts)
	state := NewState(DefaultConfig())
	result, err := state.main.Call(fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsInt() != 42 {
		t.Fatalf("expected 42, got %d", result.AsInt())
	}
}

// TestInterpreterClosureUpvalue exercises make_function/get_upvalue/
// set_upvalue: a closure captures one register as a cell and mutates it
// across two successive calls, proving the cell's storage persists
// independently of either call's own register window.
func TestInterpreterClosureUpvalue(t *testing.T) {
	innerCode := []Instr{
		{Op: OpGetUpvalue, A: 0, Imm: 0},
		{Op: OpGetReadonly, A: 1, Imm: 0}, // constant 1
		{Op: OpAdd, A: 2, B: 0, C: 1},
		{Op: OpSetUpvalue, A: 2, Imm: 0},
		{Op: OpReturnVal, A: 0},
	}
	innerConsts := []Value{Int(1)}
	innerProto := buildFn("counter", 3, innerCode, innerConsts)

	mainConsts := []Value{Int(10), fromObject(TagFunction, innerProto)}
	mainCode := []Instr{
		{Op: OpGetReadonly, A: 0, Imm: 0},                     // seed register 0 = 10
		{Op: OpGetReadonly, A: 1, Imm: 1},                     // load the prototype constant
		{Op: OpMakeFunction, A: 2, Imm: 1, Targets: []int{0}}, // capture register 0 as upvalue 0
		{Op: OpCallNative, A: 3, B: 2},
		{Op: OpCallNative, A: 4, B: 2},
		{Op: OpBuildTuple, A: 5, Targets: []int{3, 4}},
		{Op: OpReturnVal, A: 5},
	}
	fn := buildFn("closuremain", 6, mainCode, mainConsts)
	state := NewState(DefaultConfig())
	result, err := state.main.Call(fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tup := result.ContainerValue()
	if tup.Get(0).AsInt() != 10 || tup.Get(1).AsInt() != 11 {
		t.Fatalf("expected (10, 11) from two successive calls sharing one cell, got (%d, %d)",
			tup.Get(0).AsInt(), tup.Get(1).AsInt())
	}
}

func TestInterpreterMatchDispatch(t *testing.T) {
	// A variant with tag 1 carrying payload 99 should decompose and
	// return that payload, landing in branch index 1's target.
	variant := NewVariant(0, 1, []Value{Int(99)})
	consts := []Value{variant}
	code := make([]Instr, 12)
	code[0] = Instr{Op: OpGetReadonly, A: 0, Imm: 0}
	code[1] = Instr{Op: OpMatchDispatch, A: 0, Targets: []int{8, 4, 8}}
	// branch for tag 1 starts at index 4: decompose into register 1, return it.
	code[4] = Instr{Op: OpVariantDecompose, B: 0, Targets: []int{1}}
	code[5] = Instr{Op: OpReturnVal, A: 1}
	// branches for tags 0 and 2 (unused here) just return the subject itself.
	code[8] = Instr{Op: OpReturnVal, A: 0}

	fn := buildFn("matchy", 2, code, consts)
	state := NewState(DefaultConfig())
	result, err := state.main.Call(fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsInt() != 99 {
		t.Fatalf("expected the variant's decomposed payload 99, got %d", result.AsInt())
	}
}
