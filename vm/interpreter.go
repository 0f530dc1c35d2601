package vm

// Interpreter runs compiled Function bodies against a shared State (the
// global table, the collector, the raiser). One Interpreter exists per
// logical thread of execution: the main program gets one, and each
// Coroutine gets its own so it can be suspended and resumed independently
// (coroutine.go).
type Interpreter struct {
	state  *State
	frames []*callFrame
	raiser Raiser

	// exceptionInFlight holds the payload of the exception currently being
	// unwound, so an except arm's `as name` binding and the re-raise that
	// follows the last arm when none matched can both find it. A matching
	// arm clears it.
	exceptionInFlight *LilyError

	// currentCoroutine is set only on the Interpreter instance driving a
	// Coroutine's own goroutine, so Yield knows which channel pair to use.
	currentCoroutine *Coroutine

	// foreignDepth counts nested foreign-function invocations currently on
	// the Go call stack for this Interpreter. Coroutine::yield is itself a
	// foreign call, so a legal yield happens at depth 1; any deeper nesting
	// means some other foreign function called yield out from under it,
	// which Resume has no way to unwind through.
	foreignDepth int
}

func newInterpreter(state *State) *Interpreter {
	return &Interpreter{state: state}
}

func (i *Interpreter) currentFrame() *callFrame {
	return i.frames[len(i.frames)-1]
}

// Call invokes fn with args and returns its result, running to completion
// (recursively driving nested native calls) before returning. Foreign
// functions are invoked directly; native functions get pushed as a frame
// and run via the step loop until they return_val/return_unit back past
// the depth they were called at.
func (i *Interpreter) Call(fn *Function, args []Value) (result Value, err *LilyError) {
	if fn.ForeignFn != nil {
		i.foreignDepth++
		defer func() {
			i.foreignDepth--
			if r := recover(); r != nil {
				err = recoverUnexpected(r)
			}
		}()
		return fn.ForeignFn(i, args), nil
	}

	baseDepth := len(i.frames)
	frame := newCallFrame(fn, -1)
	for idx, a := range args {
		frame.setRaw(idx, a)
	}
	i.frames = append(i.frames, frame)

	for len(i.frames) > baseDepth {
		ret, done, lerr := i.safeStep()
		if lerr != nil {
			if i.handleException(lerr, baseDepth) {
				continue
			}
			i.frames = i.frames[:baseDepth]
			return Value{}, lerr
		}
		if done {
			result = ret
		}
	}
	return result, nil
}

// safeStep runs one instruction, converting any panic (a raised LilyError
// or an unexpected Go-level fault) into a returned error instead of
// unwinding the Go call stack, so try/except can resume execution in the
// same frame rather than only in an outer Go defer.
func (i *Interpreter) safeStep() (val Value, done bool, lerr *LilyError) {
	defer func() {
		if r := recover(); r != nil {
			lerr = recoverUnexpected(r)
			// A foreign function that panics via RaiseValueError/etc. never
			// goes through Interpreter.raise, so its traceback is still
			// nil here; backfill it the same way raise() would, so a
			// traceback is always present regardless of which raise path
			// produced the error.
			if lerr.Traceback == nil {
				for idx := len(i.frames) - 1; idx >= 0; idx-- {
					f := i.frames[idx]
					lerr.Traceback = append(lerr.Traceback, TraceLine{FunctionName: f.fn.Name, Line: f.currentLine})
				}
				i.raiser.notify(lerr)
			}
		}
	}()
	val, done = i.step()
	return
}

// handleException looks for the nearest enclosing push_try at or above
// baseDepth and, if found, discards any frames nested inside it and
// resumes at its handler. It returns false when no handler exists in this
// Call's frame range, meaning the error must propagate to the caller.
func (i *Interpreter) handleException(err *LilyError, baseDepth int) bool {
	for idx := len(i.frames) - 1; idx >= baseDepth; idx-- {
		fr := i.frames[idx]
		if len(fr.tryStack) == 0 {
			continue
		}
		te := fr.tryStack[len(fr.tryStack)-1]
		fr.tryStack = fr.tryStack[:len(fr.tryStack)-1]
		i.frames = i.frames[:idx+1]
		fr.pc = te.handlerPC
		i.exceptionInFlight = err
		return true
	}
	return false
}

// step executes exactly one instruction of the topmost frame. It returns
// (value, true) when that instruction popped a frame with no caller
// register to write into (the frame a Call pushed, or the last frame),
// otherwise (zero, false).
func (i *Interpreter) step() (Value, bool) {
	f := i.currentFrame()
	if f.pc >= len(f.fn.Code) {
		i.frames = i.frames[:len(i.frames)-1]
		return Unit, true
	}
	in := f.fn.Code[f.pc]
	f.pc++
	f.currentLine = in.Line

	switch in.Op {
	case OpAssign:
		f.set(in.A, copyValue(f.get(in.B)))

	case OpRefAssign:
		// Rebinds register A to B's value without copying it; no cell is
		// involved.
		f.set(in.A, f.get(in.B))

	case OpGetReadonly:
		f.set(in.A, copyValue(f.fn.Constants[in.Imm]))

	case OpAdd, OpSub, OpMul, OpDiv, OpModulo:
		i.execArith(f, in)

	case OpUnaryMinus:
		l := f.get(in.B)
		if l.tag == TagDouble {
			f.set(in.A, Double(-l.AsDouble()))
		} else {
			f.set(in.A, Int(-l.AsInt()))
		}

	case OpUnaryNot:
		f.set(in.A, Bool(!f.get(in.B).AsBool()))

	case OpIsEqual:
		f.set(in.A, Bool(valueEqual(f.get(in.B), f.get(in.C), 0)))
	case OpNotEqual:
		f.set(in.A, Bool(!valueEqual(f.get(in.B), f.get(in.C), 0)))
	case OpLessThan, OpLessEq, OpGreaterThan, OpGreaterEq:
		i.execCompare(f, in)

	case OpJump:
		f.pc = in.Imm
	case OpJumpIfTrue:
		if f.get(in.A).AsBool() {
			f.pc = in.Imm
		}
	case OpJumpIfFalse:
		if !f.get(in.A).AsBool() {
			f.pc = in.Imm
		}

	case OpForSetup:
		// A = loop var reg, B = start reg: copies the start value into the
		// loop variable. Stop and step are read later by integer_for.
		f.set(in.A, copyValue(f.get(in.B)))

	case OpIntegerFor:
		// A = loop var reg, B = stop reg, C = step reg, Imm = jump target
		// taken while the loop continues.
		cur := f.get(in.A).AsInt()
		stop := f.get(in.B).AsInt()
		step := f.get(in.C).AsInt()
		cont := (step > 0 && cur <= stop) || (step < 0 && cur >= stop)
		if cont {
			f.pc = in.Imm
		}

	case OpCallNative:
		i.execCallNative(f, in)
	case OpCallForeign:
		i.execCallForeign(f, in)

	case OpReturnVal:
		val := copyValue(f.get(in.A))
		return i.doReturn(val)
	case OpReturnUnit:
		return i.doReturn(Unit)
	case OpReturnFromVM:
		i.frames = i.frames[:0]
		return Unit, true

	case OpBuildList:
		i.execBuildContainer(f, in, KindList, -1)
	case OpBuildTuple:
		i.execBuildContainer(f, in, KindTuple, -1)
	case OpNewInstance:
		i.execBuildContainer(f, in, KindInstance, in.Imm)
	case OpBuildHash:
		i.execBuildHash(f, in)

	case OpGetItem:
		i.execGetItem(f, in)
	case OpSetItem:
		i.execSetItem(f, in)
	case OpGetProperty:
		i.execGetProperty(f, in)
	case OpSetProperty:
		i.execSetProperty(f, in)

	case OpGetGlobal:
		f.set(in.A, copyValue(i.state.globals[in.Imm]))
	case OpSetGlobal:
		assign(&i.state.globals[in.Imm], copyValue(f.get(in.A)))

	case OpGetUpvalue:
		cell := f.fn.upvalues[in.Imm]
		f.set(in.A, copyValue(cell.value))
	case OpSetUpvalue:
		cell := f.fn.upvalues[in.Imm]
		assign(&cell.value, copyValue(f.get(in.A)))

	case OpMakeCell:
		// No-op: the emitter never emits it, and locals are not promoted
		// to shared cells here. execMakeFunction builds a fresh Cell per
		// captured register instead.

	case OpMakeFunction:
		i.execMakeFunction(f, in)

	case OpPushTry:
		f.tryStack = append(f.tryStack, tryEntry{handlerPC: in.Imm, regTop: len(f.registers)})
	case OpPopTry:
		if len(f.tryStack) > 0 {
			f.tryStack = f.tryStack[:len(f.tryStack)-1]
		}
	case OpExceptDispatch:
		i.execExceptDispatch(f, in)
	case OpRaise:
		i.execRaise(f, in)
	case OpReraise:
		if i.exceptionInFlight != nil {
			err := i.exceptionInFlight
			i.exceptionInFlight = nil
			i.raise(err)
		}

	case OpMatchDispatch:
		i.execMatchDispatch(f, in)
	case OpVariantDecompose:
		c := f.get(in.B).ContainerValue()
		for idx, target := range in.Targets {
			if idx < c.Len() {
				f.set(target, copyValue(c.Get(idx)))
			}
		}
	}
	return Value{}, false
}

func (i *Interpreter) doReturn(val Value) (Value, bool) {
	done := i.frames[len(i.frames)-1]
	i.frames = i.frames[:len(i.frames)-1]
	if len(i.frames) == 0 || done.returnReg < 0 {
		return val, true
	}
	caller := i.currentFrame()
	if done.returnReg >= 0 {
		caller.set(done.returnReg, val)
	} else {
		destroy(val)
	}
	return Value{}, false
}

func (i *Interpreter) execArith(f *callFrame, in Instr) {
	l, r := f.get(in.B), f.get(in.C)
	if l.tag == TagDouble || r.tag == TagDouble {
		lf, rf := toDouble(l), toDouble(r)
		switch in.Op {
		case OpAdd:
			f.set(in.A, Double(lf+rf))
		case OpSub:
			f.set(in.A, Double(lf-rf))
		case OpMul:
			f.set(in.A, Double(lf*rf))
		case OpDiv:
			if rf == 0 {
				i.raise(newDivisionByZeroError())
			}
			f.set(in.A, Double(lf/rf))
		case OpModulo:
			i.raise(newRuntimeError("Modulo is not defined for Double."))
		}
		return
	}
	li, ri := l.AsInt(), r.AsInt()
	switch in.Op {
	case OpAdd:
		f.set(in.A, Int(li+ri))
	case OpSub:
		f.set(in.A, Int(li-ri))
	case OpMul:
		f.set(in.A, Int(li*ri))
	case OpDiv:
		if ri == 0 {
			i.raise(newDivisionByZeroError())
		}
		f.set(in.A, Int(li/ri))
	case OpModulo:
		if ri == 0 {
			i.raise(newDivisionByZeroError())
		}
		f.set(in.A, Int(li%ri))
	}
}

func toDouble(v Value) float64 {
	if v.tag == TagDouble {
		return v.AsDouble()
	}
	return float64(v.AsInt())
}

func (i *Interpreter) execCompare(f *callFrame, in Instr) {
	l, r := f.get(in.B), f.get(in.C)
	lf, rf := toDouble(l), toDouble(r)
	var res bool
	switch in.Op {
	case OpLessThan:
		res = lf < rf
	case OpLessEq:
		res = lf <= rf
	case OpGreaterThan:
		res = lf > rf
	case OpGreaterEq:
		res = lf >= rf
	}
	f.set(in.A, Bool(res))
}

func (i *Interpreter) execCallNative(f *callFrame, in Instr) {
	fnVal := f.get(in.B)
	fn := fnVal.FunctionValue()
	args := make([]Value, len(in.Targets))
	for idx, reg := range in.Targets {
		args[idx] = copyValue(f.get(reg))
	}
	if fn.ForeignFn != nil {
		i.foreignDepth++
		result := func() Value {
			defer func() { i.foreignDepth-- }()
			return fn.ForeignFn(i, args)
		}()
		if in.A >= 0 {
			f.set(in.A, result)
		} else {
			destroy(result)
		}
		return
	}
	nf := newCallFrame(fn, in.A)
	for idx, a := range args {
		nf.setRaw(idx, a)
	}
	i.frames = append(i.frames, nf)
}

func (i *Interpreter) execCallForeign(f *callFrame, in Instr) {
	i.execCallNative(f, in)
}

func (i *Interpreter) execBuildContainer(f *callFrame, in Instr, kind ContainerKind, classID int) {
	elems := make([]Value, len(in.Targets))
	for idx, reg := range in.Targets {
		elems[idx] = copyValue(f.get(reg))
	}
	c := newContainer(kind, classID, elems)
	i.maybeTag(c)
	var v Value
	switch kind {
	case KindList:
		v = fromObject(TagList, c)
	case KindTuple:
		v = fromObject(TagTuple, c)
	default:
		v = fromObject(TagInstance, c)
	}
	f.set(in.A, v)
}

func (i *Interpreter) execBuildHash(f *callFrame, in Instr) {
	h := i.state.newHashObj()
	for idx := 0; idx+1 < len(in.Targets); idx += 2 {
		k := copyValue(f.get(in.Targets[idx]))
		val := copyValue(f.get(in.Targets[idx+1]))
		h.Set(k, val)
	}
	i.maybeTagHash(h)
	f.set(in.A, fromObject(TagHash, h))
}

func (i *Interpreter) maybeTag(c *Container) {
	for _, v := range c.values {
		if v.flags&IsDerefable != 0 {
			i.state.newGCEntry(c)
			return
		}
	}
}

func (i *Interpreter) maybeTagHash(h *Hash) {
	for _, e := range h.Entries() {
		if e.Key.flags&IsDerefable != 0 || e.Value.flags&IsDerefable != 0 {
			i.state.newGCEntry(h)
			return
		}
	}
}

func (i *Interpreter) execGetItem(f *callFrame, in Instr) {
	recv := f.get(in.B)
	switch recv.tag {
	case TagList, TagTuple:
		c := recv.ContainerValue()
		idx := int(f.get(in.C).AsInt())
		if idx < 0 || idx >= c.Len() {
			i.raise(newIndexError("Subscript index %d is out of range.", idx))
		}
		f.set(in.A, copyValue(c.Get(idx)))
	case TagHash:
		h := recv.HashValue()
		key := f.get(in.C)
		val, ok := h.Get(key)
		if !ok {
			i.raise(newKeyError("Hash does not have the given key."))
		}
		f.set(in.A, copyValue(val))
	case TagByteString:
		bs := recv.ByteStringValue()
		idx := int(f.get(in.C).AsInt())
		if idx < 0 || idx >= len(bs) {
			i.raise(newIndexError("Subscript index %d is out of range.", idx))
		}
		f.set(in.A, Int(int64(bs[idx])))
	default:
		i.raise(newRuntimeError("Value of type %s does not support subscript.", recv.tag))
	}
}

func (i *Interpreter) execSetItem(f *callFrame, in Instr) {
	recv := f.get(in.A)
	switch recv.tag {
	case TagList:
		c := recv.ContainerValue()
		idx := int(f.get(in.B).AsInt())
		if idx < 0 || idx >= c.Len() {
			i.raise(newIndexError("Subscript index %d is out of range.", idx))
		}
		c.Set(idx, copyValue(f.get(in.C)))
		i.maybeTag(c)
	case TagHash:
		h := recv.HashValue()
		key := copyValue(f.get(in.B))
		val := copyValue(f.get(in.C))
		h.Set(key, val)
		i.maybeTagHash(h)
	default:
		i.raise(newRuntimeError("Value of type %s does not support subscript assignment.", recv.tag))
	}
}

func (i *Interpreter) execGetProperty(f *callFrame, in Instr) {
	recv := f.get(in.B)
	c := recv.ContainerValue()
	f.set(in.A, copyValue(c.Get(in.Imm)))
}

func (i *Interpreter) execSetProperty(f *callFrame, in Instr) {
	recv := f.get(in.A)
	c := recv.ContainerValue()
	c.Set(in.Imm, copyValue(f.get(in.B)))
}

func (i *Interpreter) execMakeFunction(f *callFrame, in Instr) {
	proto := f.fn.Constants[in.Imm].FunctionValue()
	clone := &Function{
		rc: 1, Name: proto.Name, ParamCount: proto.ParamCount, RegCount: proto.RegCount,
		Code: proto.Code, Constants: proto.Constants,
	}
	clone.upvalues = make([]*Cell, len(in.Targets))
	for idx, reg := range in.Targets {
		clone.upvalues[idx] = newCell(copyValue(f.get(reg)))
	}
	if len(clone.upvalues) > 0 {
		i.state.newGCEntry(clone)
	}
	f.set(in.A, fromObject(TagFunction, clone))
}

func (i *Interpreter) execRaise(f *callFrame, in Instr) {
	val := f.get(in.A)
	className := in.Str
	if className == "" && val.tag == TagInstance {
		className = i.state.classNameOf(val.ContainerValue().classID)
	}
	msg := ""
	if val.tag == TagInstance && val.ContainerValue().Len() > 0 {
		first := val.ContainerValue().Get(0)
		if first.tag == TagString {
			msg = first.StringValue()
		}
	}
	i.raise(&LilyError{Source: ErrorFromVM, ClassName: className, Message: msg, Payload: copyValue(val), HasPayload: true})
}

// execExceptDispatch implements one `except ClassName as binding` test:
// if the in-flight exception's class is Str or has Str as an ancestor in
// the state's class table (an empty Str matches any class), it is consumed
// and optionally bound into register A; otherwise control falls through to
// the next arm's check at Imm, and eventually to a re-raise if no arm
// matches.
func (i *Interpreter) execExceptDispatch(f *callFrame, in Instr) {
	err := i.exceptionInFlight
	if err == nil {
		return
	}
	matched := in.Str == "" || in.Str == err.ClassName
	for idx := 0; !matched && idx < len(i.state.classes); idx++ {
		if i.state.classes[idx].name != err.ClassName {
			continue
		}
		for p := i.state.classes[idx].parent; p >= 0 && !matched; p = i.state.classes[p].parent {
			matched = i.state.classes[p].name == in.Str
		}
		break
	}
	if matched {
		if in.A >= 0 {
			if err.HasPayload {
				f.set(in.A, copyValue(err.Payload))
			} else {
				f.set(in.A, NewString(err.Message))
			}
		}
		i.exceptionInFlight = nil
		return
	}
	f.pc = in.Imm
}

func (i *Interpreter) execMatchDispatch(f *callFrame, in Instr) {
	v := f.get(in.A)
	tag := 0
	if v.tag == TagVariant {
		tag = v.ContainerValue().variantTag
	}
	if tag < len(in.Targets) {
		f.pc = in.Targets[tag]
	}
}
