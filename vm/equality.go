package vm

// maxEqualityDepth bounds recursive structural comparison so a
// self-referential list or tuple raises a catchable error instead of
// recursing forever. The original interpreter enforces the same kind of
// bound around its own deep-equality walk for container values.
const maxEqualityDepth = 100

// valueEqual performs Lily's `==` structural comparison: scalars compare
// by value, strings/bytestrings by content, containers element-wise,
// everything else (functions, files, coroutines, foreign handles) falls
// back to identity since they have no meaningful structural equality.
func valueEqual(a, b Value, depth int) bool {
	if depth > maxEqualityDepth {
		panic(newRuntimeError("Infinite loop in comparison."))
	}
	if a.tag != b.tag {
		// Integer/Double cross-comparison is not coerced; the emitter is
		// responsible for inserting an explicit conversion where the
		// source program compares across numeric kinds.
		return false
	}
	switch a.tag {
	case TagInteger, TagBoolean:
		return a.num == b.num
	case TagDouble:
		return a.AsDouble() == b.AsDouble()
	case TagUnit:
		return true
	case TagString:
		return a.StringValue() == b.StringValue()
	case TagByteString:
		return string(a.ByteStringValue()) == string(b.ByteStringValue())
	case TagList, TagTuple:
		ca, cb := a.ContainerValue(), b.ContainerValue()
		if ca.Len() != cb.Len() {
			return false
		}
		for i := 0; i < ca.Len(); i++ {
			if !valueEqual(ca.Get(i), cb.Get(i), depth+1) {
				return false
			}
		}
		return true
	case TagInstance, TagVariant:
		ca, cb := a.ContainerValue(), b.ContainerValue()
		if ca.classID != cb.classID || ca.variantTag != cb.variantTag || ca.Len() != cb.Len() {
			return false
		}
		for i := 0; i < ca.Len(); i++ {
			if !valueEqual(ca.Get(i), cb.Get(i), depth+1) {
				return false
			}
		}
		return true
	case TagHash:
		ha, hb := a.HashValue(), b.HashValue()
		if ha.Size() != hb.Size() {
			return false
		}
		for _, e := range ha.Entries() {
			bv, ok := hb.Get(e.Key)
			if !ok || !valueEqual(e.Value, bv, depth+1) {
				return false
			}
		}
		return true
	default:
		return a.obj == b.obj
	}
}

// Equal is the public entry point for foreign functions and embedders; the
// interpreter's is_equal/not_equal opcodes call valueEqual directly.
func Equal(a, b Value) bool { return valueEqual(a, b, 0) }
