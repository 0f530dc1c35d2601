package vm

import (
	"fmt"
	"strings"
)

// MsgBuf is a growable text buffer used for rendering values as text (the
// prelude's to_s and DumpGlobals), mirroring
// the original's lily_msgbuf: a single reusable strings.Builder-backed type
// rather than allocating a fresh string for every concatenation step.
type MsgBuf struct {
	b strings.Builder
}

func NewMsgBuf() *MsgBuf { return &MsgBuf{} }

func (m *MsgBuf) Add(s string) *MsgBuf {
	m.b.WriteString(s)
	return m
}

func (m *MsgBuf) AddChar(c byte) *MsgBuf {
	m.b.WriteByte(c)
	return m
}

func (m *MsgBuf) AddSlice(s []byte) *MsgBuf {
	m.b.Write(s)
	return m
}

// AddFmt supports the small printf subset the original message buffer
// understood (%s, %d, %f) by delegating straight to fmt.Sprintf, since Go
// already has a complete and idiomatic formatter — reimplementing a
// printf-subset parser by hand here would just be a worse fmt.
func (m *MsgBuf) AddFmt(format string, args ...interface{}) *MsgBuf {
	fmt.Fprintf(&m.b, format, args...)
	return m
}

// AddValue appends a human-readable rendering of v, following containers
// recursively.
func (m *MsgBuf) AddValue(v Value) *MsgBuf {
	switch v.tag {
	case TagInteger:
		m.AddFmt("%d", v.AsInt())
	case TagDouble:
		m.AddFmt("%g", v.AsDouble())
	case TagBoolean:
		if v.AsBool() {
			m.Add("true")
		} else {
			m.Add("false")
		}
	case TagUnit:
		m.Add("unit")
	case TagString:
		m.Add(v.StringValue())
	case TagByteString:
		m.AddFmt("%x", v.ByteStringValue())
	case TagList:
		m.addContainer(v.ContainerValue(), "[", "]")
	case TagTuple:
		m.addContainer(v.ContainerValue(), "<[", "]>")
	case TagHash:
		m.addHash(v.HashValue())
	case TagFunction:
		m.AddFmt("function %s", v.FunctionValue().Name)
	case TagInstance, TagVariant:
		m.addContainer(v.ContainerValue(), "(", ")")
	default:
		m.Add(v.tag.String())
	}
	return m
}

func (m *MsgBuf) addContainer(c *Container, open, close string) {
	m.Add(open)
	for i := 0; i < c.Len(); i++ {
		if i > 0 {
			m.Add(", ")
		}
		m.AddValue(c.Get(i))
	}
	m.Add(close)
}

func (m *MsgBuf) addHash(h *Hash) {
	m.Add("[")
	first := true
	for _, e := range h.Entries() {
		if !first {
			m.Add(", ")
		}
		first = false
		m.AddValue(e.Key)
		m.Add(" => ")
		m.AddValue(e.Value)
	}
	m.Add("]")
}

// HTMLEscape appends s with &, <, >, " escaped, for the render_func hook
// used when embedding Lily in an HTML templating context.
func (m *MsgBuf) HTMLEscape(s string) *MsgBuf {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	m.b.WriteString(replacer.Replace(s))
	return m
}

// Flush returns the buffer's contents and resets it for reuse.
func (m *MsgBuf) Flush() string {
	s := m.b.String()
	m.b.Reset()
	return s
}

// Sprintf is a one-shot convenience wrapper for callers that don't need a
// long-lived buffer.
func Sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
