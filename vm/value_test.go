package vm

import "testing"

func TestScalarConstructors(t *testing.T) {
	if Int(7).AsInt() != 7 {
		t.Fatalf("Int round-trip failed")
	}
	if !Bool(true).AsBool() || Bool(false).AsBool() {
		t.Fatalf("Bool round-trip failed")
	}
	if Double(3.5).AsDouble() != 3.5 {
		t.Fatalf("Double round-trip failed")
	}
	if Unit.Tag() != TagUnit {
		t.Fatalf("Unit has wrong tag: %v", Unit.Tag())
	}
}

func TestCopyValueBumpsRefcount(t *testing.T) {
	s := NewString("hello")
	rc := s.obj.refcount()
	if *rc != 1 {
		t.Fatalf("fresh string should have rc 1, got %d", *rc)
	}
	cp := copyValue(s)
	if *rc != 2 {
		t.Fatalf("copyValue should bump rc to 2, got %d", *rc)
	}
	destroy(cp)
	if *rc != 1 {
		t.Fatalf("destroying the copy should drop rc back to 1, got %d", *rc)
	}
	destroy(s)
	if *rc != 0 {
		t.Fatalf("destroying the last reference should drop rc to 0, got %d", *rc)
	}
}

func TestAssignDestroysPriorOccupant(t *testing.T) {
	a := NewString("a")
	b := NewString("b")
	dest := copyValue(a)

	assign(&dest, copyValue(b))

	if dest.StringValue() != "b" {
		t.Fatalf("assign should replace the destination's value")
	}
	if *a.obj.refcount() != 1 {
		t.Fatalf("assign should have dropped the old reference to a, rc=%d", *a.obj.refcount())
	}
	destroy(a)
	destroy(b)
	destroy(dest)
}

func TestScalarsHaveNoHeapPayload(t *testing.T) {
	v := Int(42)
	if v.IsDerefable() {
		t.Fatalf("Integer values must not be derefable")
	}
	// destroy on a non-derefable value must be a no-op, not a nil dereference.
	destroy(v)
}
