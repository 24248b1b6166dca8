package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes a readable dump of the method, one block per section.
func Fprint(w io.Writer, m *Method) {
	fmt.Fprintf(w, "method %s(", m.Name)
	for i, p := range m.params {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprintf(w, "%s %s", m.ParameterName(p), m.ctx.String(m.TypeOf(p)))
	}
	fmt.Fprintf(w, ") %s {\n", m.ctx.String(m.ret))
	for _, b := range m.blocks {
		fmt.Fprintf(w, "%s:\n", b)
		for _, v := range b.values {
			fmt.Fprintf(w, "  %s\n", m.describe(v))
		}
	}
	fmt.Fprintln(w, "}")
}

// Sprint returns the dump as a string.
func Sprint(m *Method) string {
	var sb strings.Builder
	Fprint(&sb, m)
	return sb.String()
}

func (m *Method) describe(v Value) string {
	s := m.slotOf(v)
	var sb strings.Builder
	if !s.kind.IsTerminator() && s.kind != KindStore && s.kind != KindBarrier {
		fmt.Fprintf(&sb, "%s = ", v)
	}
	sb.WriteString(s.kind.String())
	switch s.kind {
	case KindConstant:
		fmt.Fprintf(&sb, " <%s> [%#x]", m.ctx.String(s.typ), s.bits)
	case KindStringConst:
		fmt.Fprintf(&sb, " %q", s.text)
	case KindNull, KindUndefined, KindAlloca, KindBuildStruct, KindConvert,
		KindPointerCast, KindAddressSpaceCast, KindViewCast, KindPhi:
		fmt.Fprintf(&sb, " <%s>", m.ctx.String(s.typ))
	case KindParameter:
		fmt.Fprintf(&sb, " %s <%s> [%d]", s.text, m.ctx.String(s.typ), s.index)
	case KindUnaryArith:
		fmt.Fprintf(&sb, ".%s", UnaryOp(s.index))
	case KindBinaryArith:
		fmt.Fprintf(&sb, ".%s", BinaryOp(s.index))
	case KindCompare:
		fmt.Fprintf(&sb, ".%s", CompareOp(s.index))
	case KindGetField:
		fmt.Fprintf(&sb, " [%d:%d]", s.index, s.index+max32(s.span, 1))
	case KindSetField, KindLoadFieldAddress:
		fmt.Fprintf(&sb, " [%d]", s.index)
	case KindShuffle:
		fmt.Fprintf(&sb, ".%s", ShuffleKind(s.span))
	case KindGridIndex, KindGroupIndex, KindGridDim, KindGroupDim:
		fmt.Fprintf(&sb, ".%c", "xyz"[s.index])
	case KindCall:
		fmt.Fprintf(&sb, " %s <%s>", s.text, m.ctx.String(s.typ))
	}
	for _, op := range s.operands {
		fmt.Fprintf(&sb, " %s", op)
	}
	for _, t := range s.targets {
		fmt.Fprintf(&sb, " ->%s", t)
	}
	return sb.String()
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
