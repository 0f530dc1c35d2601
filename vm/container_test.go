package vm

import "testing"

func TestListPushGetSet(t *testing.T) {
	lst := NewList([]Value{Int(1), Int(2), Int(3)})
	c := lst.ContainerValue()

	if c.Len() != 3 {
		t.Fatalf("expected length 3, got %d", c.Len())
	}
	c.Push(Int(4))
	if c.Len() != 4 || c.Get(3).AsInt() != 4 {
		t.Fatalf("push did not append correctly")
	}

	c.Set(0, Int(99))
	if c.Get(0).AsInt() != 99 {
		t.Fatalf("set did not replace element 0")
	}
}

func TestListPopRoundTrip(t *testing.T) {
	s := NewString("owned")
	lst := NewList([]Value{s})
	c := lst.ContainerValue()

	v, ok := c.Pop()
	if !ok {
		t.Fatalf("pop on a non-empty list should succeed")
	}
	if v.StringValue() != "owned" {
		t.Fatalf("pop returned the wrong value")
	}
	if c.Len() != 0 {
		t.Fatalf("pop should remove the element from the container")
	}

	// The popped value is now solely owned by the caller: destroying it
	// should bring the refcount to zero, not underflow past it.
	destroy(v)

	if _, ok := c.Pop(); ok {
		t.Fatalf("pop on an empty list should report false")
	}
}

func TestTupleIsFixedSize(t *testing.T) {
	tup := NewTuple([]Value{Int(1), Int(2)})
	c := tup.ContainerValue()
	if c.kind != KindTuple {
		t.Fatalf("expected KindTuple")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("Push on a tuple should panic")
		}
	}()
	c.Push(Int(3))
}

func TestContainerSetDestroysPriorOccupant(t *testing.T) {
	old := NewString("old")
	lst := NewList([]Value{old})
	c := lst.ContainerValue()

	c.Set(0, NewString("new"))

	if *old.obj.refcount() != 0 {
		t.Fatalf("Set should destroy the value it replaces")
	}
	if c.Get(0).StringValue() != "new" {
		t.Fatalf("Set should store the new value")
	}
}
