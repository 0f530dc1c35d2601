package vm

// HashEntry is one key/value slot in a Hash's bucket chain (Set prepends
// new keys, so the newest entry comes first). Hash iteration order in Lily is unspecified by design (see
// DESIGN.md's Open Question resolutions), so a simple chained table keyed
// by a siphash of the value's bit pattern is enough; nothing downstream
// depends on bucket order, only on set/get/delete/iteration completeness.
type HashEntry struct {
	Key   Value
	Value Value
	next  *HashEntry
}

// Hash is Lily's associative container. Keys are compared with valueEqual
// (equality.go), not pointer identity, so two different-but-equal String
// keys collide into the same entry.
type Hash struct {
	rc  int
	gcE *gcEntry

	sipkey   [2]uint64
	buckets  []*HashEntry
	size     int
	iterCount int // number of live iterators; blocks key removal while > 0
}

func (h *Hash) Tag() Tag        { return TagHash }
func (h *Hash) refcount() *int  { return &h.rc }
func (h *Hash) entry() *gcEntry { return h.gcE }
func (h *Hash) setEntry(e *gcEntry) { h.gcE = e }

func (h *Hash) children() []Value {
	out := make([]Value, 0, h.size*2)
	for _, b := range h.buckets {
		for e := b; e != nil; e = e.next {
			out = append(out, e.Key, e.Value)
		}
	}
	return out
}

const hashInitialBuckets = 8

// NewHash creates an empty Hash keyed with sipkey (the two 64-bit words
// passed at State construction time, or a process-default pair if the
// embedder did not supply one).
func NewHash(sipkey [2]uint64) Value {
	h := &Hash{rc: 1, sipkey: sipkey, buckets: make([]*HashEntry, hashInitialBuckets)}
	return fromObject(TagHash, h)
}

func (v Value) HashValue() *Hash { return v.obj.(*Hash) }

func (h *Hash) bucketFor(key Value) int {
	sum := siphash24(h.sipkey[0], h.sipkey[1], hashBytes(key))
	return int(sum % uint64(len(h.buckets)))
}

// hashBytes produces a stable byte sequence for siphash input from a
// value's identity: scalar bit pattern for numbers/bools, UTF-8 bytes for
// strings. Non-hashable keys (lists, instances, ...) are a caller error in
// this implementation, same as the source language restricting hash keys
// to Integer/String/Boolean/Double/ByteString.
func hashBytes(v Value) []byte {
	switch v.tag {
	case TagString:
		return []byte(v.StringValue())
	case TagByteString:
		return v.ByteStringValue()
	default:
		b := make([]byte, 8)
		n := uint64(v.num)
		for i := 0; i < 8; i++ {
			b[i] = byte(n >> (8 * i))
		}
		return b
	}
}

// Get looks up key, returning (value, true) if present.
func (h *Hash) Get(key Value) (Value, bool) {
	idx := h.bucketFor(key)
	for e := h.buckets[idx]; e != nil; e = e.next {
		if valueEqual(e.Key, key, 0) {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Set inserts or overwrites key -> value, taking ownership of both.
func (h *Hash) Set(key, value Value) {
	idx := h.bucketFor(key)
	for e := h.buckets[idx]; e != nil; e = e.next {
		if valueEqual(e.Key, key, 0) {
			destroy(key) // the caller's key reference is redundant now
			destroy(e.Value)
			e.Value = value
			return
		}
	}
	h.buckets[idx] = &HashEntry{Key: key, Value: value, next: h.buckets[idx]}
	h.size++
	if h.size > len(h.buckets)*2 {
		h.grow()
	}
}

func (h *Hash) grow() {
	old := h.buckets
	h.buckets = make([]*HashEntry, len(old)*2)
	for _, b := range old {
		for e := b; e != nil; {
			next := e.next
			idx := h.bucketFor(e.Key)
			e.next = h.buckets[idx]
			h.buckets[idx] = e
			e = next
		}
	}
}

// Delete removes key if present; a missing key is not an error, so the
// result does not say whether anything was removed. Per the testable
// property on iteration, a removal attempted while any iterator is live
// raises a RuntimeError instead of corrupting the bucket chain being walked.
func (h *Hash) Delete(key Value) error {
	if h.iterCount > 0 {
		return newRuntimeError("Cannot remove key from hash during iteration.")
	}
	idx := h.bucketFor(key)
	var prev *HashEntry
	for e := h.buckets[idx]; e != nil; e = e.next {
		if valueEqual(e.Key, key, 0) {
			if prev == nil {
				h.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			destroy(e.Key)
			destroy(e.Value)
			h.size--
			return nil
		}
		prev = e
	}
	return nil
}

func (h *Hash) Size() int { return h.size }

// BeginIter/EndIter bracket a foreach-style traversal so Delete can refuse
// concurrent mutation.
func (h *Hash) BeginIter() { h.iterCount++ }
func (h *Hash) EndIter()   { h.iterCount-- }

func (h *Hash) Entries() []*HashEntry {
	out := make([]*HashEntry, 0, h.size)
	for _, b := range h.buckets {
		for e := b; e != nil; e = e.next {
			out = append(out, e)
		}
	}
	return out
}
