package vm

import "testing"

// TestCoroutineYieldSequence builds a coroutine body that yields twice then
// returns a final value, and drives it with three resumes, matching the
// testable property in the spec: resume, resume, ... yields y1, y2, ...,
// then one final value as done, and a further resume is illegal.
func TestCoroutineYieldSequence(t *testing.T) {
	state := NewState(DefaultConfig())

	// body(arg): yield(1); yield(2); return 3
	body := NewForeignFunction("coro-body", 1, func(i *Interpreter, args []Value) Value {
		i.Yield(Int(1))
		i.Yield(Int(2))
		return Int(3)
	}).FunctionValue()

	coVal := NewCoroutine(state.main, body)
	co := coVal.CoroutineValue()

	v1, running1, err := co.Resume(state.main, Unit)
	if err != nil || !running1 || v1.AsInt() != 1 {
		t.Fatalf("first resume: got (%v, %v, %v), want (1, true, nil)", v1, running1, err)
	}
	if co.Status() != CoWaiting {
		t.Fatalf("expected CoWaiting after a yield, got %v", co.Status())
	}

	v2, running2, err := co.Resume(state.main, Unit)
	if err != nil || !running2 || v2.AsInt() != 2 {
		t.Fatalf("second resume: got (%v, %v, %v), want (2, true, nil)", v2, running2, err)
	}

	v3, running3, err := co.Resume(state.main, Unit)
	if err != nil || running3 || v3.AsInt() != 3 {
		t.Fatalf("third resume: got (%v, %v, %v), want (3, false, nil)", v3, running3, err)
	}
	if co.Status() != CoDone {
		t.Fatalf("expected CoDone after the body returns, got %v", co.Status())
	}

	if _, _, err := co.Resume(state.main, Unit); err == nil {
		t.Fatalf("resuming a done coroutine must raise an error")
	} else if err.ClassName != "ValueError" {
		t.Fatalf("expected ValueError resuming a done coroutine, got %s", err.ClassName)
	}
}

// TestCoroutineResumeReportsFailedStatus checks that a coroutine body
// that raises instead of returning transitions to CoFailed, not CoDone,
// and that the raised error is the one Resume hands back to the caller.
func TestCoroutineResumeReportsFailedStatus(t *testing.T) {
	state := NewState(DefaultConfig())
	body := NewForeignFunction("failing-body", 1, func(i *Interpreter, args []Value) Value {
		i.raise(newValueError("boom"))
		return Unit
	}).FunctionValue()

	coVal := NewCoroutine(state.main, body)
	co := coVal.CoroutineValue()

	_, running, err := co.Resume(state.main, Unit)
	if running {
		t.Fatalf("a failed coroutine must not report itself as still running")
	}
	if err == nil || err.Message != "boom" {
		t.Fatalf("expected the body's raised error to surface from Resume, got %v", err)
	}
	if co.Status() != CoFailed {
		t.Fatalf("expected CoFailed after the body raises, got %v", co.Status())
	}
	if co.Status().String() != "failed" {
		t.Fatalf(`expected Status().String() == "failed", got %q`, co.Status().String())
	}

	if _, _, err := co.Resume(state.main, Unit); err == nil {
		t.Fatalf("resuming a failed coroutine must raise an error")
	}
}

// TestCoroutineCannotResumeItself checks the re-entrancy guard: a
// coroutine's own interpreter can never be the one calling Resume on it,
// since there would be nothing left to hand control back to.
func TestCoroutineCannotResumeItself(t *testing.T) {
	state := NewState(DefaultConfig())
	body := NewForeignFunction("self-resume", 1, func(i *Interpreter, args []Value) Value {
		return Unit
	}).FunctionValue()
	coVal := NewCoroutine(state.main, body)
	co := coVal.CoroutineValue()

	if _, _, err := co.Resume(co.interp, Unit); err == nil {
		t.Fatalf("expected an error resuming a coroutine from inside its own interpreter")
	}
}

// TestCoroutineYieldOutsideCoroutinePanics checks that Yield is illegal on
// an Interpreter that isn't driving a coroutine's own goroutine.
func TestCoroutineYieldOutsideCoroutinePanics(t *testing.T) {
	state := NewState(DefaultConfig())
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Yield outside a coroutine to panic")
		}
	}()
	state.main.Yield(Unit)
}
