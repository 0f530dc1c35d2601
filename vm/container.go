package vm

import (
	"bufio"
	"os"
)

// stringObj and byteStringObj are the two flavors of interned-free text
// payload: Lily strings are UTF-8 and immutable once built, byte strings
// carry raw bytes. Neither needs a gc entry because neither can point back
// into the graph (no cycles through leaf payloads).
type stringObj struct {
	rc   int
	text string
}

func (s *stringObj) Tag() Tag        { return TagString }
func (s *stringObj) refcount() *int  { return &s.rc }

func NewString(text string) Value {
	return fromObject(TagString, &stringObj{rc: 1, text: text})
}

func (v Value) StringValue() string {
	return v.obj.(*stringObj).text
}

type byteStringObj struct {
	rc    int
	bytes []byte
}

func (b *byteStringObj) Tag() Tag       { return TagByteString }
func (b *byteStringObj) refcount() *int { return &b.rc }

func NewByteString(b []byte) Value {
	return fromObject(TagByteString, &byteStringObj{rc: 1, bytes: b})
}

func (v Value) ByteStringValue() []byte {
	return v.obj.(*byteStringObj).bytes
}

// ContainerKind distinguishes the shapes that share the growable-slice
// representation: plain lists, fixed tuples, class instances (whose
// members are addressed positionally by property index), and enum
// variants (whose members are the variant's payload slots).
type ContainerKind uint8

const (
	KindList ContainerKind = iota
	KindTuple
	KindInstance
	KindVariant
)

// Container is the single backing representation for List, Tuple,
// Instance, and Variant values. Lists grow; tuples, instances, and
// variants are fixed-size once built. classID names the instance's class
// (read by raise and by equality); match_dispatch reads variantTag and
// get_property a fixed slot index. ctorProgress is set to the number of
// values at construction and is not read by the collector: a sweep
// destroys every slot in values.
type Container struct {
	rc   int
	gcE  *gcEntry

	kind        ContainerKind
	classID     int
	variantTag  int
	ctorProgress int
	values      []Value
}

func (c *Container) Tag() Tag {
	switch c.kind {
	case KindList:
		return TagList
	case KindTuple:
		return TagTuple
	case KindVariant:
		return TagVariant
	default:
		return TagInstance
	}
}
func (c *Container) refcount() *int    { return &c.rc }
func (c *Container) entry() *gcEntry   { return c.gcE }
func (c *Container) setEntry(e *gcEntry) { c.gcE = e }
func (c *Container) children() []Value { return c.values }

func newContainer(kind ContainerKind, classID int, values []Value) *Container {
	return &Container{rc: 1, kind: kind, classID: classID, values: values, ctorProgress: len(values)}
}

// NewList builds a List value from already-owned elements (callers must
// have bumped refcounts for anything they don't also own elsewhere).
func NewList(elems []Value) Value {
	return fromObject(TagList, newContainer(KindList, -1, elems))
}

func NewTuple(elems []Value) Value {
	return fromObject(TagTuple, newContainer(KindTuple, -1, elems))
}

func NewInstance(classID int, fields []Value) Value {
	return fromObject(TagInstance, newContainer(KindInstance, classID, fields))
}

func NewVariant(classID, variantTag int, members []Value) Value {
	c := newContainer(KindVariant, classID, members)
	c.variantTag = variantTag
	return fromObject(TagVariant, c)
}

func (v Value) ContainerValue() *Container { return v.obj.(*Container) }

// listGrowthInitial and the doubling policy below mirror the original
// allocator: a full list with no capacity grows to 8 slots, otherwise its
// capacity doubles, so amortized append stays O(1) without the caller
// tracking capacity separately from length.
const listGrowthInitial = 8

// Push appends elem to a List container in place, taking ownership of the
// value handed in (the caller must not also destroy it).
func (c *Container) Push(elem Value) {
	if c.kind != KindList {
		panic("vm: Push on non-list container")
	}
	if len(c.values) == cap(c.values) {
		n := cap(c.values)
		if n == 0 {
			n = listGrowthInitial
		}
		for n <= len(c.values) {
			n *= 2
		}
		grown := make([]Value, len(c.values), n)
		copy(grown, c.values)
		c.values = grown
	}
	c.values = append(c.values, elem)
}

// Get returns the element at idx without adjusting its refcount; callers
// that retain the value beyond the container's own lifetime must copyValue
// it first.
func (c *Container) Get(idx int) Value {
	return c.values[idx]
}

// Set replaces the element at idx, destroying whatever was there.
func (c *Container) Set(idx int, val Value) {
	destroy(c.values[idx])
	c.values[idx] = val
}

// Len reports the number of elements/fields/members currently held.
func (c *Container) Len() int { return len(c.values) }

// Pop removes and returns the last element of a List container, handing
// its single reference to the caller rather than copying it — the
// container no longer holds it at all, so there is exactly one owner
// afterward instead of two.
func (c *Container) Pop() (Value, bool) {
	if c.kind != KindList || len(c.values) == 0 {
		return Value{}, false
	}
	n := len(c.values) - 1
	v := c.values[n]
	c.values[n] = Value{}
	c.values = c.values[:n]
	return v, true
}

// fileObj wraps an *os.File for Lily's File class; Non-goal per the spec's
// component list keeps the stdlib file API thin, but the handle still
// needs deterministic close-on-refcount-zero like any other resource.
type fileObj struct {
	rc     int
	handle *os.File
	mode   string
	reader *bufio.Reader
}

func (f *fileObj) Tag() Tag       { return TagFile }
func (f *fileObj) refcount() *int { return &f.rc }

func NewFile(handle *os.File, mode string) Value {
	return fromObject(TagFile, &fileObj{rc: 1, handle: handle, mode: mode})
}

func (v Value) FileValue() (*os.File, string) {
	f := v.obj.(*fileObj)
	return f.handle, f.mode
}

// FileLineReader returns a *bufio.Reader cached on the File object,
// creating it lazily on first use. Foreign code doing line-oriented reads
// must go through this instead of wrapping the raw handle in a new
// bufio.Reader on every call: bufio read-ahead would otherwise swallow
// bytes past the first newline and silently drop them on the next call.
func (v Value) FileLineReader() *bufio.Reader {
	f := v.obj.(*fileObj)
	if f.reader == nil {
		f.reader = bufio.NewReader(f.handle)
	}
	return f.reader
}
