package ir

import (
	"math"

	"github.com/76creates/ILGPU/internal/diag"
	"github.com/76creates/ILGPU/internal/source"
	"github.com/76creates/ILGPU/internal/types"
)

// Builder is the single-writer construction API for one method. Every
// operation appends to the block currently open on the builder. Callers must
// not assume a returned handle is a newly allocated value: no-op casts and
// constant deduplication legitimately return pre-existing handles.
type Builder struct {
	m       *Method
	block   *BasicBlock
	pos     int // insertion index within block, -1 appends
	folding bool
	point   source.SeqPoint
	consts  map[constKey]Value
}

type constKey struct {
	typ  types.TypeID
	bits uint64
	text string
}

func newBuilder(m *Method) *Builder {
	return &Builder{
		m:       m,
		pos:     -1,
		folding: true,
		consts:  make(map[constKey]Value, 16),
	}
}

// Method returns the method under construction.
func (b *Builder) Method() *Method {
	return b.m
}

// SetFolding toggles constant folding and deduplication.
func (b *Builder) SetFolding(on bool) {
	b.folding = on
}

// SetBlock points the builder at a block, appending at its end.
func (b *Builder) SetBlock(block *BasicBlock) {
	b.block = block
	b.pos = -1
}

// Block returns the currently open block.
func (b *Builder) Block() *BasicBlock {
	return b.block
}

// SetInsertBefore positions the builder so new values precede v in its block.
func (b *Builder) SetInsertBefore(v Value) {
	block := b.m.BlockOf(v)
	if block == nil {
		panic("ir: insert before a block-less value")
	}
	b.block = block
	b.pos = block.indexOf(v)
}

// SetPoint sets the sequence point attached to subsequently built values.
func (b *Builder) SetPoint(p source.SeqPoint) {
	b.point = p
}

// Point returns the builder's current sequence point.
func (b *Builder) Point() source.SeqPoint {
	return b.point
}

// emit allocates the slot, wires use edges and inserts into the open block.
func (b *Builder) emit(s slot) Value {
	if b.block == nil {
		panic("ir: builder has no open block")
	}
	s.block = b.block
	s.point = b.point
	v := b.m.newSlot(s)
	for _, op := range b.m.slotOf(v).operands {
		opSlot := b.m.slotOf(op)
		opSlot.uses = append(opSlot.uses, v)
	}
	if b.pos < 0 || b.pos >= len(b.block.values) {
		b.block.values = append(b.block.values, v)
	} else {
		b.block.values = append(b.block.values, Nil)
		copy(b.block.values[b.pos+1:], b.block.values[b.pos:])
		b.block.values[b.pos] = v
		b.pos++
	}
	return v
}

func (b *Builder) sealBlock(s slot) (Value, error) {
	if b.block == nil {
		panic("ir: builder has no open block")
	}
	if b.block.HasTerminator() {
		return Nil, diag.Invariantf(diag.InvBlockOpen, b.point,
			"block %s already has a terminator", b.block)
	}
	v := b.emit(s)
	b.block.term = v
	return v, nil
}

// --- Constants ---------------------------------------------------------

// PrimitiveConstant creates (or, when folding, reuses) a constant of the
// given basic kind holding the raw bit pattern.
func (b *Builder) PrimitiveConstant(kind types.BasicKind, bits uint64) Value {
	t := b.m.ctx.Primitive(kind)
	if b.folding {
		key := constKey{typ: t, bits: bits}
		if v, ok := b.consts[key]; ok && b.m.Valid(v) {
			return v
		}
		v := b.emit(slot{kind: KindConstant, typ: t, bits: bits})
		b.consts[key] = v
		return v
	}
	return b.emit(slot{kind: KindConstant, typ: t, bits: bits})
}

func (b *Builder) Bool(v bool) Value {
	bits := uint64(0)
	if v {
		bits = 1
	}
	return b.PrimitiveConstant(types.Bool, bits)
}

func (b *Builder) Int8(v int8) Value {
	return b.PrimitiveConstant(types.Int8, uint64(uint8(v)))
}

func (b *Builder) Int16(v int16) Value {
	return b.PrimitiveConstant(types.Int16, uint64(uint16(v)))
}

func (b *Builder) Int32(v int32) Value {
	return b.PrimitiveConstant(types.Int32, uint64(uint32(v)))
}

func (b *Builder) Int64(v int64) Value {
	return b.PrimitiveConstant(types.Int64, uint64(v))
}

func (b *Builder) UInt8(v uint8) Value {
	return b.PrimitiveConstant(types.UInt8, uint64(v))
}

func (b *Builder) UInt16(v uint16) Value {
	return b.PrimitiveConstant(types.UInt16, uint64(v))
}

func (b *Builder) UInt32(v uint32) Value {
	return b.PrimitiveConstant(types.UInt32, uint64(v))
}

func (b *Builder) UInt64(v uint64) Value {
	return b.PrimitiveConstant(types.UInt64, v)
}

func (b *Builder) Float32(v float32) Value {
	return b.PrimitiveConstant(types.Float32, uint64(math.Float32bits(v)))
}

func (b *Builder) Float64(v float64) Value {
	return b.PrimitiveConstant(types.Float64, math.Float64bits(v))
}

// EnumConstant converts a host enum instance to a constant of its underlying
// integral kind.
func (b *Builder) EnumConstant(underlying types.BasicKind, bits uint64) (Value, error) {
	if !underlying.IsInteger() {
		return Nil, diag.Unsupportedf(diag.UnsupConstKind, b.point,
			"enum underlying kind %s is not integral", underlying)
	}
	return b.PrimitiveConstant(underlying, bits), nil
}

// StringConst creates a string constant (constant-only type: it never
// receives a device layout).
func (b *Builder) StringConst(s string) Value {
	t := b.m.ctx.Primitive(types.String)
	if b.folding {
		key := constKey{typ: t, text: s}
		if v, ok := b.consts[key]; ok && b.m.Valid(v) {
			return v
		}
		v := b.emit(slot{kind: KindStringConst, typ: t, text: s})
		b.consts[key] = v
		return v
	}
	return b.emit(slot{kind: KindStringConst, typ: t, text: s})
}

// Null returns a zero-valued primitive constant for primitive types and a
// distinct null-reference value otherwise.
func (b *Builder) Null(t types.TypeID) Value {
	desc := b.m.ctx.MustLookup(t)
	if desc.Kind == types.KindPrimitive && desc.Basic != types.String {
		return b.PrimitiveConstant(desc.Basic, 0)
	}
	return b.emit(slot{kind: KindNull, typ: t})
}

// Undefined returns an undefined value of the given type.
func (b *Builder) Undefined(t types.TypeID) Value {
	return b.emit(slot{kind: KindUndefined, typ: t})
}

// --- Arithmetic --------------------------------------------------------

func (b *Builder) Unary(op UnaryOp, v Value) Value {
	return b.emit(slot{kind: KindUnaryArith, index: int32(op), operands: []Value{v}})
}

func (b *Builder) Binary(op BinaryOp, lhs, rhs Value) (Value, error) {
	if b.m.TypeOf(lhs) != b.m.TypeOf(rhs) {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point,
			"binary %s on mismatched types %s and %s", op,
			b.m.ctx.String(b.m.TypeOf(lhs)), b.m.ctx.String(b.m.TypeOf(rhs)))
	}
	return b.emit(slot{kind: KindBinaryArith, index: int32(op), operands: []Value{lhs, rhs}}), nil
}

func (b *Builder) Compare(op CompareOp, lhs, rhs Value) (Value, error) {
	if b.m.TypeOf(lhs) != b.m.TypeOf(rhs) {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point,
			"compare %s on mismatched types %s and %s", op,
			b.m.ctx.String(b.m.TypeOf(lhs)), b.m.ctx.String(b.m.TypeOf(rhs)))
	}
	return b.emit(slot{kind: KindCompare, index: int32(op), operands: []Value{lhs, rhs}}), nil
}

func (b *Builder) Select(cond, whenTrue, whenFalse Value) (Value, error) {
	if !b.m.ctx.IsPrimitive(b.m.TypeOf(cond), types.Bool) {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point, "select condition is not bool")
	}
	if b.m.TypeOf(whenTrue) != b.m.TypeOf(whenFalse) {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point, "select arms have different types")
	}
	return b.emit(slot{kind: KindSelect, operands: []Value{cond, whenTrue, whenFalse}}), nil
}

// Convert performs a numeric conversion to the target primitive type.
func (b *Builder) Convert(v Value, to types.TypeID) (Value, error) {
	from := b.m.TypeOf(v)
	if from == to {
		return v, nil
	}
	fromDesc := b.m.ctx.MustLookup(from)
	toDesc := b.m.ctx.MustLookup(to)
	if fromDesc.Kind != types.KindPrimitive || toDesc.Kind != types.KindPrimitive {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point,
			"convert between non-primitive types %s and %s",
			b.m.ctx.String(from), b.m.ctx.String(to))
	}
	return b.emit(slot{kind: KindConvert, typ: to, operands: []Value{v}}), nil
}

// --- Casts -------------------------------------------------------------

// PointerCast reinterprets a pointer as a pointer to another element type.
// A cast to the operand's own type is a no-op; chains collapse so nested
// casts are rebuilt directly against the chain's origin.
func (b *Builder) PointerCast(v Value, target types.TypeID) (Value, error) {
	srcType := b.m.TypeOf(v)
	if b.m.ctx.Kind(srcType) != types.KindPointer {
		return Nil, diag.Invariantf(diag.InvNotAPointer, b.point,
			"pointer cast of non-pointer %s", b.m.ctx.String(srcType))
	}
	if b.m.ctx.Kind(target) != types.KindPointer {
		return Nil, diag.Invariantf(diag.InvCastMismatch, b.point,
			"pointer cast target %s is not a pointer", b.m.ctx.String(target))
	}
	if srcType == target {
		return v, nil
	}
	src := v
	if b.m.KindOf(src) == KindPointerCast {
		src = b.m.Operand(src, 0)
		if b.m.TypeOf(src) == target {
			return src, nil
		}
	}
	return b.emit(slot{kind: KindPointerCast, typ: target, operands: []Value{src}}), nil
}

// AddressSpaceCast moves a pointer or view into another address space.
func (b *Builder) AddressSpaceCast(v Value, space types.AddressSpace) (Value, error) {
	srcType := b.m.TypeOf(v)
	k := b.m.ctx.Kind(srcType)
	if k != types.KindPointer && k != types.KindView {
		return Nil, diag.Invariantf(diag.InvNotAPointer, b.point,
			"address-space cast of %s", b.m.ctx.String(srcType))
	}
	target := b.m.ctx.SpecializeAddressSpace(srcType, space)
	if target == srcType {
		return v, nil
	}
	return b.emit(slot{kind: KindAddressSpaceCast, typ: target, operands: []Value{v}}), nil
}

// ViewCast reinterprets a view's element type.
func (b *Builder) ViewCast(v Value, newElem types.TypeID) (Value, error) {
	srcType := b.m.TypeOf(v)
	desc, ok := b.m.ctx.Lookup(srcType)
	if !ok || desc.Kind != types.KindView {
		return Nil, diag.Invariantf(diag.InvNotAView, b.point,
			"view cast of %s", b.m.ctx.String(srcType))
	}
	target := b.m.ctx.View(newElem, desc.Space)
	if target == srcType {
		return v, nil
	}
	return b.emit(slot{kind: KindViewCast, typ: target, operands: []Value{v}}), nil
}

// FloatAsInt reinterprets float bits as the same-width integer. The bit
// pattern is preserved exactly, NaN payloads included. Only 32- and 64-bit
// operands are supported.
func (b *Builder) FloatAsInt(v Value) (Value, error) {
	t := b.m.ctx.MustLookup(b.m.TypeOf(v))
	if t.Kind != types.KindPrimitive || !t.Basic.IsFloat() {
		return Nil, diag.Unsupportedf(diag.UnsupBitCastWidth, b.point,
			"float-as-int requires a 32- or 64-bit float operand, got %s",
			b.m.ctx.String(b.m.TypeOf(v)))
	}
	intKind := types.Int32
	if t.Basic == types.Float64 {
		intKind = types.Int64
	}
	if b.folding && b.m.KindOf(v) == KindConstant {
		return b.PrimitiveConstant(intKind, b.m.ConstantBits(v)), nil
	}
	return b.emit(slot{kind: KindFloatAsIntCast, operands: []Value{v}}), nil
}

// IntAsFloat reinterprets integer bits as the same-width float.
func (b *Builder) IntAsFloat(v Value) (Value, error) {
	t := b.m.ctx.MustLookup(b.m.TypeOf(v))
	if t.Kind != types.KindPrimitive || (t.Basic != types.Int32 && t.Basic != types.Int64) {
		return Nil, diag.Unsupportedf(diag.UnsupBitCastWidth, b.point,
			"int-as-float requires an int32 or int64 operand, got %s",
			b.m.ctx.String(b.m.TypeOf(v)))
	}
	floatKind := types.Float32
	if t.Basic == types.Int64 {
		floatKind = types.Float64
	}
	if b.folding && b.m.KindOf(v) == KindConstant {
		return b.PrimitiveConstant(floatKind, b.m.ConstantBits(v)), nil
	}
	return b.emit(slot{kind: KindIntAsFloatCast, operands: []Value{v}}), nil
}

// --- Memory ------------------------------------------------------------

// Alloca allocates storage for one element in the given address space and
// yields its pointer.
func (b *Builder) Alloca(elem types.TypeID, space types.AddressSpace) Value {
	return b.emit(slot{kind: KindAlloca, typ: b.m.ctx.Pointer(elem, space)})
}

func (b *Builder) Load(ptr Value) (Value, error) {
	if b.m.ctx.Kind(b.m.TypeOf(ptr)) != types.KindPointer {
		return Nil, diag.Invariantf(diag.InvNotAPointer, b.point,
			"load from %s", b.m.ctx.String(b.m.TypeOf(ptr)))
	}
	return b.emit(slot{kind: KindLoad, operands: []Value{ptr}}), nil
}

func (b *Builder) Store(ptr, value Value) (Value, error) {
	pt, ok := b.m.ctx.Lookup(b.m.TypeOf(ptr))
	if !ok || pt.Kind != types.KindPointer {
		return Nil, diag.Invariantf(diag.InvNotAPointer, b.point,
			"store to %s", b.m.ctx.String(b.m.TypeOf(ptr)))
	}
	if b.m.TypeOf(value) != pt.Elem {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point,
			"store of %s into pointer to %s",
			b.m.ctx.String(b.m.TypeOf(value)), b.m.ctx.String(pt.Elem))
	}
	return b.emit(slot{kind: KindStore, operands: []Value{ptr, value}}), nil
}

// --- Aggregates --------------------------------------------------------

// BuildStruct constructs a structure value from per-field operands.
func (b *Builder) BuildStruct(structType types.TypeID, fields ...Value) (Value, error) {
	want := b.m.ctx.Fields(structType)
	if b.m.ctx.Kind(structType) != types.KindStructure {
		return Nil, diag.Invariantf(diag.InvNotAStructure, b.point,
			"struct build of %s", b.m.ctx.String(structType))
	}
	if len(fields) != len(want) {
		return Nil, diag.Rangef(diag.RangeFieldSpan, b.point,
			"struct build with %d values for %d fields", len(fields), len(want))
	}
	for i, f := range fields {
		if b.m.TypeOf(f) != want[i] {
			return Nil, diag.Invariantf(diag.InvOperandType, b.point,
				"field %d is %s, want %s", i,
				b.m.ctx.String(b.m.TypeOf(f)), b.m.ctx.String(want[i]))
		}
	}
	return b.emit(slot{kind: KindBuildStruct, typ: structType, operands: append([]Value(nil), fields...)}), nil
}

// GetField reads one field of a structure value.
func (b *Builder) GetField(v Value, index int) (Value, error) {
	return b.GetFieldSpan(v, index, 1)
}

// GetFieldSpan reads span consecutive fields; a span wider than one yields a
// sub-structure value.
func (b *Builder) GetFieldSpan(v Value, index, span int) (Value, error) {
	fields := b.m.ctx.Fields(b.m.TypeOf(v))
	if b.m.ctx.Kind(b.m.TypeOf(v)) != types.KindStructure {
		return Nil, diag.Invariantf(diag.InvNotAStructure, b.point,
			"field read on %s", b.m.ctx.String(b.m.TypeOf(v)))
	}
	if span < 1 || index < 0 || index+span > len(fields) {
		return Nil, diag.Rangef(diag.RangeFieldSpan, b.point,
			"field span [%d, %d) outside structure with %d fields", index, index+span, len(fields))
	}
	return b.emit(slot{kind: KindGetField, index: int32(index), span: int32(span), operands: []Value{v}}), nil
}

// SetField yields a copy of the structure value with one field replaced.
func (b *Builder) SetField(v Value, index int, value Value) (Value, error) {
	owner := b.m.TypeOf(v)
	fields := b.m.ctx.Fields(owner)
	if b.m.ctx.Kind(owner) != types.KindStructure {
		return Nil, diag.Invariantf(diag.InvNotAStructure, b.point,
			"field write on %s", b.m.ctx.String(owner))
	}
	if index < 0 || index >= len(fields) {
		return Nil, diag.Rangef(diag.RangeFieldSpan, b.point,
			"field %d outside structure with %d fields", index, len(fields))
	}
	if b.m.TypeOf(value) != fields[index] {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point,
			"writing %s into field of type %s",
			b.m.ctx.String(b.m.TypeOf(value)), b.m.ctx.String(fields[index]))
	}
	return b.emit(slot{kind: KindSetField, index: int32(index), operands: []Value{v, value}}), nil
}

// --- Views and addresses ------------------------------------------------

// NewView wraps a pointer and an element count into a bounds-carrying view.
func (b *Builder) NewView(ptr, length Value) (Value, error) {
	pt, ok := b.m.ctx.Lookup(b.m.TypeOf(ptr))
	if !ok || pt.Kind != types.KindPointer {
		return Nil, diag.Invariantf(diag.InvNotAPointer, b.point,
			"view over %s", b.m.ctx.String(b.m.TypeOf(ptr)))
	}
	return b.emit(slot{
		kind:     KindNewView,
		typ:      b.m.ctx.View(pt.Elem, pt.Space),
		operands: []Value{ptr, length},
	}), nil
}

// SubView narrows a view to [offset, offset+length).
func (b *Builder) SubView(view, offset, length Value) (Value, error) {
	if b.m.ctx.Kind(b.m.TypeOf(view)) != types.KindView {
		return Nil, diag.Invariantf(diag.InvNotAView, b.point,
			"sub-view of %s", b.m.ctx.String(b.m.TypeOf(view)))
	}
	return b.emit(slot{kind: KindSubView, operands: []Value{view, offset, length}}), nil
}

// ViewLength reads a view's element count.
func (b *Builder) ViewLength(view Value) (Value, error) {
	if b.m.ctx.Kind(b.m.TypeOf(view)) != types.KindView {
		return Nil, diag.Invariantf(diag.InvNotAView, b.point,
			"length of %s", b.m.ctx.String(b.m.TypeOf(view)))
	}
	return b.emit(slot{kind: KindViewLength, operands: []Value{view}}), nil
}

// LoadElementAddress computes the address of element index within a pointer
// or view.
func (b *Builder) LoadElementAddress(v, index Value) (Value, error) {
	k := b.m.ctx.Kind(b.m.TypeOf(v))
	if k != types.KindPointer && k != types.KindView {
		return Nil, diag.Invariantf(diag.InvNotAPointer, b.point,
			"element address of %s", b.m.ctx.String(b.m.TypeOf(v)))
	}
	return b.emit(slot{kind: KindLoadElementAddress, operands: []Value{v, index}}), nil
}

// LoadFieldAddress computes the address of a structure field behind a pointer.
func (b *Builder) LoadFieldAddress(ptr Value, field int) (Value, error) {
	pt, ok := b.m.ctx.Lookup(b.m.TypeOf(ptr))
	if !ok || pt.Kind != types.KindPointer {
		return Nil, diag.Invariantf(diag.InvNotAPointer, b.point,
			"field address of %s", b.m.ctx.String(b.m.TypeOf(ptr)))
	}
	fields := b.m.ctx.Fields(pt.Elem)
	if b.m.ctx.Kind(pt.Elem) != types.KindStructure {
		return Nil, diag.Invariantf(diag.InvNotAStructure, b.point,
			"field address into %s", b.m.ctx.String(pt.Elem))
	}
	if field < 0 || field >= len(fields) {
		return Nil, diag.Rangef(diag.RangeFieldSpan, b.point,
			"field %d outside structure with %d fields", field, len(fields))
	}
	return b.emit(slot{kind: KindLoadFieldAddress, index: int32(field), operands: []Value{ptr}}), nil
}

// --- Thread-group primitives --------------------------------------------

func (b *Builder) Barrier(kind BarrierKind) Value {
	return b.emit(slot{kind: KindBarrier, span: int32(kind)})
}

func (b *Builder) Broadcast(v, origin Value) Value {
	return b.emit(slot{kind: KindBroadcast, operands: []Value{v, origin}})
}

func (b *Builder) Shuffle(v, arg Value, kind ShuffleKind) Value {
	return b.emit(slot{kind: KindShuffle, span: int32(kind), operands: []Value{v, arg}})
}

func (b *Builder) gridQuery(kind ValueKind, dim int) (Value, error) {
	if dim < 0 || dim > 2 {
		return Nil, diag.Rangef(diag.RangeDimension, b.point, "grid dimension %d outside [0, 2]", dim)
	}
	return b.emit(slot{kind: kind, index: int32(dim)}), nil
}

func (b *Builder) GridIndex(dim int) (Value, error) {
	return b.gridQuery(KindGridIndex, dim)
}

func (b *Builder) GroupIndex(dim int) (Value, error) {
	return b.gridQuery(KindGroupIndex, dim)
}

func (b *Builder) GridDim(dim int) (Value, error) {
	return b.gridQuery(KindGridDim, dim)
}

func (b *Builder) GroupDim(dim int) (Value, error) {
	return b.gridQuery(KindGroupDim, dim)
}

// --- Calls and merges ----------------------------------------------------

// Call builds a call to a named method with an explicit return type.
func (b *Builder) Call(name string, ret types.TypeID, args ...Value) Value {
	return b.emit(slot{kind: KindCall, typ: ret, text: name, operands: append([]Value(nil), args...)})
}

// Phi merges one value per predecessor, ordered like the block's predecessors.
func (b *Builder) Phi(t types.TypeID, incoming ...Value) Value {
	return b.emit(slot{kind: KindPhi, typ: t, operands: append([]Value(nil), incoming...)})
}

// --- Terminators ---------------------------------------------------------

// Return seals the block with a return; pass Nil for void methods.
func (b *Builder) Return(v Value) (Value, error) {
	if v.IsNil() {
		if b.m.ret != b.m.ctx.Void() {
			return Nil, diag.Invariantf(diag.InvSignature, b.point,
				"empty return from method returning %s", b.m.ctx.String(b.m.ret))
		}
		return b.sealBlock(slot{kind: KindReturn})
	}
	if b.m.TypeOf(v) != b.m.ret {
		return Nil, diag.Invariantf(diag.InvSignature, b.point,
			"returning %s from method returning %s",
			b.m.ctx.String(b.m.TypeOf(v)), b.m.ctx.String(b.m.ret))
	}
	return b.sealBlock(slot{kind: KindReturn, operands: []Value{v}})
}

// Branch seals the block with an unconditional jump.
func (b *Builder) Branch(target *BasicBlock) (Value, error) {
	return b.sealBlock(slot{kind: KindBranch, targets: []*BasicBlock{target}})
}

// IfBranch seals the block with a two-way conditional branch.
func (b *Builder) IfBranch(cond Value, whenTrue, whenFalse *BasicBlock) (Value, error) {
	if !b.m.ctx.IsPrimitive(b.m.TypeOf(cond), types.Bool) {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point,
			"branch condition is %s, want bool", b.m.ctx.String(b.m.TypeOf(cond)))
	}
	return b.sealBlock(slot{kind: KindIfBranch, operands: []Value{cond}, targets: []*BasicBlock{whenTrue, whenFalse}})
}

// SwitchBranch seals the block with a multi-way branch where the selector
// indexes the target list. A two-target switch is canonicalized into an
// if-branch comparing the selector (widened to 32 bits) against zero, with
// targets[0] as the true target; this shrinks the terminator-kind space
// later passes must handle. One-target and wider switches pass through.
func (b *Builder) SwitchBranch(selector Value, targets ...*BasicBlock) (Value, error) {
	if len(targets) == 0 {
		return Nil, diag.Rangef(diag.RangeBlockIndex, b.point, "switch with no targets")
	}
	st := b.m.ctx.MustLookup(b.m.TypeOf(selector))
	if st.Kind != types.KindPrimitive || !st.Basic.IsInteger() {
		return Nil, diag.Invariantf(diag.InvOperandType, b.point,
			"switch selector is %s, want an integer", b.m.ctx.String(b.m.TypeOf(selector)))
	}
	if len(targets) == 2 {
		widened, err := b.widenToInt32(selector, st.Basic)
		if err != nil {
			return Nil, err
		}
		cond, err := b.Compare(CmpEq, widened, b.Int32(0))
		if err != nil {
			return Nil, err
		}
		return b.IfBranch(cond, targets[0], targets[1])
	}
	return b.sealBlock(slot{kind: KindSwitchBranch, operands: []Value{selector}, targets: append([]*BasicBlock(nil), targets...)})
}

func (b *Builder) widenToInt32(v Value, kind types.BasicKind) (Value, error) {
	if kind == types.Int32 {
		return v, nil
	}
	return b.Convert(v, b.m.ctx.Primitive(types.Int32))
}
