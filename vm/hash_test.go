package vm

import "testing"

func testSipkey() [2]uint64 { return [2]uint64{0x1, 0x2} }

func TestHashSetGet(t *testing.T) {
	h := NewHash(testSipkey()).HashValue()

	h.Set(NewString("one"), Int(1))
	h.Set(NewString("two"), Int(2))

	if h.Size() != 2 {
		t.Fatalf("expected size 2, got %d", h.Size())
	}
	v, ok := h.Get(NewString("one"))
	if !ok || v.AsInt() != 1 {
		t.Fatalf("expected one -> 1, got %v, %v", v, ok)
	}
	if _, ok := h.Get(NewString("missing")); ok {
		t.Fatalf("expected missing key lookup to fail")
	}
}

func TestHashSetOverwritesExistingKey(t *testing.T) {
	h := NewHash(testSipkey()).HashValue()

	h.Set(NewString("k"), Int(1))
	h.Set(NewString("k"), Int(2))

	if h.Size() != 1 {
		t.Fatalf("overwriting a key should not grow the size, got %d", h.Size())
	}
	v, _ := h.Get(NewString("k"))
	if v.AsInt() != 2 {
		t.Fatalf("expected the second Set to win, got %d", v.AsInt())
	}
}

func TestHashDelete(t *testing.T) {
	h := NewHash(testSipkey()).HashValue()
	h.Set(NewString("k"), Int(1))

	if err := h.Delete(NewString("k")); err != nil {
		t.Fatalf("unexpected error deleting present key: %v", err)
	}
	if h.Size() != 0 {
		t.Fatalf("expected size 0 after delete, got %d", h.Size())
	}
	if _, ok := h.Get(NewString("k")); ok {
		t.Fatalf("key should be gone after delete")
	}
}

func TestHashDeleteBlockedDuringIteration(t *testing.T) {
	h := NewHash(testSipkey()).HashValue()
	h.Set(NewString("k"), Int(1))

	h.BeginIter()
	if err := h.Delete(NewString("k")); err == nil {
		t.Fatalf("expected delete during iteration to fail")
	}
	h.EndIter()

	if err := h.Delete(NewString("k")); err != nil {
		t.Fatalf("delete after EndIter should succeed, got %v", err)
	}
}

func TestHashGrowPreservesEntries(t *testing.T) {
	h := NewHash(testSipkey()).HashValue()
	const n = 64
	for i := 0; i < n; i++ {
		h.Set(Int(int64(i)), Int(int64(i*i)))
	}
	if h.Size() != n {
		t.Fatalf("expected size %d after growth, got %d", n, h.Size())
	}
	for i := 0; i < n; i++ {
		v, ok := h.Get(Int(int64(i)))
		if !ok || v.AsInt() != int64(i*i) {
			t.Fatalf("entry %d lost across grow: got %v, %v", i, v, ok)
		}
	}
}
