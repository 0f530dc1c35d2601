package vm

// Op identifies one bytecode instruction kind. Unlike the teacher's fixed
// 4-byte [opcode|a|b|c] word, Lily's operands vary wildly in shape (a
// jump needs a full int offset, build_hash needs a variable-length key
// list), so each Op is paired with an Instr struct carrying whichever
// fields it needs rather than a packed machine word — the natural Go
// rendition of the same "one opcode, few operands" register-machine idea.
type Op uint8

const (
	OpAssign Op = iota
	OpRefAssign
	OpGetReadonly // loads a constant into a register

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpModulo
	OpUnaryMinus
	OpUnaryNot

	OpIsEqual
	OpNotEqual
	OpLessThan
	OpLessEq
	OpGreaterThan
	OpGreaterEq

	OpJump
	OpJumpIfTrue
	OpJumpIfFalse

	OpForSetup
	OpIntegerFor

	OpCallNative
	OpCallForeign
	OpReturnVal
	OpReturnUnit

	OpBuildList
	OpBuildTuple
	OpBuildHash
	OpNewInstance

	OpGetItem
	OpSetItem
	OpGetProperty
	OpSetProperty

	OpGetGlobal
	OpSetGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpMakeCell
	OpMakeFunction // builds a closure value, capturing named cells

	OpPushTry
	OpPopTry
	OpExceptDispatch
	OpRaise
	OpReraise

	OpMatchDispatch
	OpVariantDecompose

	OpReturnFromVM // halts interpretation, used for the implicit __main__ return
)

// Instr is one decoded instruction. Fields are interpreted per Op; unused
// fields are simply left zero, which keeps this a flat, cache-friendly
// struct instead of a tagged union of pointers.
type Instr struct {
	Op Op

	A, B, C int // register operands; meaning is Op-specific
	Imm     int // immediate: constant index, jump target, class id, field count...
	Str     string // property/class/exception-class name operand, when needed
	Line    int    // source line, for traceback construction

	Targets []int // match_dispatch jump table keyed by variant tag; element/argument/capture registers for build_*, call_*, make_function; destination registers for variant_decompose
}
