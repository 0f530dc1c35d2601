package vm

import "testing"

func TestEqualScalars(t *testing.T) {
	if !Equal(Int(5), Int(5)) {
		t.Fatalf("equal integers should compare equal")
	}
	if Equal(Int(5), Int(6)) {
		t.Fatalf("unequal integers should not compare equal")
	}
	if Equal(Int(5), Double(5)) {
		t.Fatalf("cross-tag comparison must not coerce")
	}
}

func TestEqualStringsByContent(t *testing.T) {
	a := NewString("same")
	b := NewString("same")
	if !Equal(a, b) {
		t.Fatalf("distinct String objects with equal content should compare equal")
	}
}

func TestEqualListsElementwise(t *testing.T) {
	a := NewList([]Value{Int(1), Int(2), Int(3)})
	b := NewList([]Value{Int(1), Int(2), Int(3)})
	c := NewList([]Value{Int(1), Int(2)})

	if !Equal(a, b) {
		t.Fatalf("lists with equal elements should compare equal")
	}
	if Equal(a, c) {
		t.Fatalf("lists of differing length must not compare equal")
	}
}

func TestEqualHashesByEntries(t *testing.T) {
	a := NewHash(testSipkey()).HashValue()
	a.Set(NewString("k"), Int(1))
	b := NewHash(testSipkey()).HashValue()
	b.Set(NewString("k"), Int(1))

	av := fromObject(TagHash, a)
	bv := fromObject(TagHash, b)

	if !Equal(av, bv) {
		t.Fatalf("hashes with the same entries should compare equal")
	}

	b.Set(NewString("k"), Int(2))
	if Equal(av, bv) {
		t.Fatalf("hashes with differing values should not compare equal")
	}
}

func TestEqualFunctionsByIdentity(t *testing.T) {
	fa := &Function{}
	fb := &Function{}
	va := fromObject(TagFunction, fa)
	vb := fromObject(TagFunction, fb)

	if Equal(va, vb) {
		t.Fatalf("distinct Function objects should not compare equal")
	}
	if !Equal(va, va) {
		t.Fatalf("a Function should compare equal to itself")
	}
}

func TestEqualDepthBoundCatchesCycles(t *testing.T) {
	lst := NewList([]Value{Int(0)})
	c := lst.ContainerValue()
	c.Set(0, copyValue(lst)) // self-reference

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("comparing a cyclic list against itself should panic instead of looping forever")
		}
	}()
	Equal(lst, lst)
}
