package ir

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/types"
)

// TypeOf recomputes a value's type from its operands on demand. Kinds whose
// type is not derivable (constants, allocations, casts with explicit targets)
// carry a declared type in their slot.
func (m *Method) TypeOf(v Value) types.TypeID {
	s := m.slotOf(v)
	switch s.kind {
	case KindConstant, KindStringConst, KindNull, KindUndefined, KindParameter,
		KindAlloca, KindBuildStruct, KindPointerCast, KindAddressSpaceCast,
		KindViewCast, KindConvert, KindNewView, KindCall, KindPhi:
		return s.typ

	case KindUnaryArith, KindBinaryArith, KindBroadcast, KindShuffle, KindSubView, KindSetField:
		return m.TypeOf(s.operands[0])

	case KindSelect:
		return m.TypeOf(s.operands[1])

	case KindCompare:
		return m.ctx.Primitive(types.Bool)

	case KindFloatAsIntCast:
		if m.ctx.IsPrimitive(m.TypeOf(s.operands[0]), types.Float32) {
			return m.ctx.Primitive(types.Int32)
		}
		return m.ctx.Primitive(types.Int64)

	case KindIntAsFloatCast:
		if m.ctx.IsPrimitive(m.TypeOf(s.operands[0]), types.Int32) {
			return m.ctx.Primitive(types.Float32)
		}
		return m.ctx.Primitive(types.Float64)

	case KindLoad:
		t := m.ctx.MustLookup(m.TypeOf(s.operands[0]))
		return t.Elem

	case KindGetField:
		owner := m.TypeOf(s.operands[0])
		fields := m.ctx.Fields(owner)
		idx, span := int(s.index), int(s.span)
		if span <= 1 {
			return fields[idx]
		}
		return m.ctx.Structure(fields[idx : idx+span])

	case KindViewLength:
		return m.ctx.Primitive(types.Int32)

	case KindLoadElementAddress:
		t := m.ctx.MustLookup(m.TypeOf(s.operands[0]))
		// Element address of a view collapses to a pointer into its storage.
		return m.ctx.Pointer(t.Elem, t.Space)

	case KindLoadFieldAddress:
		t := m.ctx.MustLookup(m.TypeOf(s.operands[0]))
		fields := m.ctx.Fields(t.Elem)
		return m.ctx.Pointer(fields[s.index], t.Space)

	case KindGridIndex, KindGroupIndex, KindGridDim, KindGroupDim:
		return m.ctx.Primitive(types.Int32)

	case KindStore, KindBarrier, KindReturn, KindBranch, KindIfBranch, KindSwitchBranch:
		return m.ctx.Void()

	default:
		panic(fmt.Sprintf("ir: TypeOf on %s (%s)", v, s.kind))
	}
}
