package ir

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/source"
	"github.com/76creates/ILGPU/internal/types"
)

// MethodFlags mark methods the backends must not emit bodies for.
type MethodFlags uint8

const (
	// FlagExternal marks methods resolved by the runtime linker.
	FlagExternal MethodFlags = 1 << iota
	// FlagIntrinsic marks methods replaced by backend intrinsics.
	FlagIntrinsic
)

// Method owns one function's parameters, return type and basic-block graph.
// It is single-writer: one goroutine constructs and transforms it at a time.
// The shared type context it references is concurrency-safe on its own.
type Method struct {
	Name  string
	Flags MethodFlags

	ctx     *types.Context
	ret     types.TypeID
	params  []Value
	blocks  []*BasicBlock
	slots   []slot
	nextGen uint32

	builder *Builder
}

// NewMethod creates an empty method with an open entry block.
func NewMethod(ctx *types.Context, name string, ret types.TypeID) *Method {
	m := &Method{
		Name:    name,
		ctx:     ctx,
		ret:     ret,
		slots:   make([]slot, 1, 64), // index 0 reserved
		nextGen: 1,
	}
	m.builder = newBuilder(m)
	entry := m.CreateBlock("entry")
	m.builder.SetBlock(entry)
	return m
}

// TypeContext returns the shared type context.
func (m *Method) TypeContext() *types.Context {
	return m.ctx
}

// ReturnType returns the declared return type.
func (m *Method) ReturnType() types.TypeID {
	return m.ret
}

// SetReturnType updates the declared return type (used by type lowering,
// which converts the signature and body within one pass invocation).
func (m *Method) SetReturnType(t types.TypeID) {
	m.ret = t
}

// Builder returns the method's single-writer builder.
func (m *Method) Builder() *Builder {
	return m.builder
}

// Blocks returns the block list in creation order; Blocks()[0] is the entry.
func (m *Method) Blocks() []*BasicBlock {
	return m.blocks
}

// EntryBlock returns the entry block.
func (m *Method) EntryBlock() *BasicBlock {
	return m.blocks[0]
}

// Params returns the parameter values in declaration order.
func (m *Method) Params() []Value {
	return m.params
}

// CreateBlock appends a new open basic block.
func (m *Method) CreateBlock(name string) *BasicBlock {
	b := &BasicBlock{
		ID:     BlockID(len(m.blocks)),
		Name:   name,
		method: m,
	}
	m.blocks = append(m.blocks, b)
	return b
}

// AddParameter declares a parameter value. Parameters live outside any block.
func (m *Method) AddParameter(name string, t types.TypeID) Value {
	v := m.newSlot(slot{
		kind:  KindParameter,
		typ:   t,
		text:  name,
		index: int32(len(m.params)),
	})
	m.params = append(m.params, v)
	return v
}

// SetParameterType rewrites a declared parameter's type in place (signature
// conversion during type lowering).
func (m *Method) SetParameterType(v Value, t types.TypeID) {
	s := m.slotOf(v)
	if s.kind != KindParameter {
		panic(fmt.Sprintf("ir: %s is not a parameter", v))
	}
	s.typ = t
}

// newSlot allocates an arena slot and returns its handle.
func (m *Method) newSlot(s slot) Value {
	s.gen = m.nextGen
	m.nextGen++
	idx := uint32(len(m.slots))
	m.slots = append(m.slots, s)
	return Value{idx: idx, gen: s.gen}
}

// slotOf resolves a handle, panicking on stale or foreign handles. Stale
// handles indicate a pass kept a reference across a replacement: a bug.
func (m *Method) slotOf(v Value) *slot {
	if v.IsNil() || int(v.idx) >= len(m.slots) {
		panic(fmt.Sprintf("ir: invalid value handle %s in %s", v, m.Name))
	}
	s := &m.slots[v.idx]
	if !s.live(v.gen) {
		panic(fmt.Sprintf("ir: stale value handle %s in %s", v, m.Name))
	}
	return s
}

// Valid reports whether the handle still resolves to a live slot.
func (m *Method) Valid(v Value) bool {
	if v.IsNil() || int(v.idx) >= len(m.slots) {
		return false
	}
	return m.slots[v.idx].live(v.gen)
}

// KindOf returns the value's kind.
func (m *Method) KindOf(v Value) ValueKind {
	return m.slotOf(v).kind
}

// BlockOf returns the block owning v (nil for parameters).
func (m *Method) BlockOf(v Value) *BasicBlock {
	return m.slotOf(v).block
}

// Operands returns v's ordered operand list. Fixed after construction;
// callers must not modify it.
func (m *Method) Operands(v Value) []Value {
	return m.slotOf(v).operands
}

// Operand returns the i-th operand.
func (m *Method) Operand(v Value, i int) Value {
	ops := m.slotOf(v).operands
	if i < 0 || i >= len(ops) {
		panic(fmt.Sprintf("ir: operand %d of %s out of range", i, v))
	}
	return ops[i]
}

// Uses returns the values currently consuming v, one entry per operand edge.
func (m *Method) Uses(v Value) []Value {
	return m.slotOf(v).uses
}

// NumUses returns the number of operand edges referencing v.
func (m *Method) NumUses(v Value) int {
	return len(m.slotOf(v).uses)
}

// ConstantBits returns the raw bit payload of a primitive constant.
func (m *Method) ConstantBits(v Value) uint64 {
	s := m.slotOf(v)
	if s.kind != KindConstant {
		panic(fmt.Sprintf("ir: %s is not a primitive constant", v))
	}
	return s.bits
}

// StringValue returns the text payload of a string constant.
func (m *Method) StringValue(v Value) string {
	s := m.slotOf(v)
	if s.kind != KindStringConst {
		panic(fmt.Sprintf("ir: %s is not a string constant", v))
	}
	return s.text
}

// FieldIndex returns the field payload of getfield/setfield/lfa values and
// the index payload of parameters and grid/group queries.
func (m *Method) FieldIndex(v Value) int {
	return int(m.slotOf(v).index)
}

// FieldSpan returns the span width of a getfield value.
func (m *Method) FieldSpan(v Value) int {
	s := m.slotOf(v)
	if s.kind == KindGetField && s.span > 0 {
		return int(s.span)
	}
	return 1
}

// OpCode returns the operator payload (UnaryOp/BinaryOp/CompareOp as int).
func (m *Method) OpCode(v Value) int {
	return int(m.slotOf(v).index)
}

// AuxKind returns the secondary payload (shuffle/barrier kind).
func (m *Method) AuxKind(v Value) int {
	return int(m.slotOf(v).span)
}

// CalleeName returns the callee payload of a call value.
func (m *Method) CalleeName(v Value) string {
	s := m.slotOf(v)
	if s.kind != KindCall {
		panic(fmt.Sprintf("ir: %s is not a call", v))
	}
	return s.text
}

// ParameterName returns the declared name of a parameter value.
func (m *Method) ParameterName(v Value) string {
	s := m.slotOf(v)
	if s.kind != KindParameter {
		panic(fmt.Sprintf("ir: %s is not a parameter", v))
	}
	return s.text
}

// Targets returns a terminator's successor blocks.
func (m *Method) Targets(v Value) []*BasicBlock {
	return m.slotOf(v).targets
}

// Point returns the sequence point attached to v.
func (m *Method) Point(v Value) source.SeqPoint {
	return m.slotOf(v).point
}

// SetPoint attaches debug metadata to v.
func (m *Method) SetPoint(v Value, p source.SeqPoint) {
	m.slotOf(v).point = p
}

// Replace transactionally redirects every recorded use of old to new, then
// evicts old from its block and invalidates its handle. This is the only
// sanctioned graph mutation.
func (m *Method) Replace(old, new Value) {
	if old == new {
		return
	}
	oldSlot := m.slotOf(old)
	newSlot := m.slotOf(new)

	for _, user := range oldSlot.uses {
		us := m.slotOf(user)
		for i, op := range us.operands {
			if op == old {
				us.operands[i] = new
				newSlot.uses = append(newSlot.uses, user)
			}
		}
	}
	oldSlot.uses = nil

	// Drop old's operand edges so its former operands no longer count it.
	for _, op := range oldSlot.operands {
		m.removeUse(op, old)
	}

	if oldSlot.block != nil {
		oldSlot.block.remove(old)
	}
	oldSlot.gen = 0 // evict: stale handles now trip slotOf
}

// RemoveDead evicts a value with no remaining uses (pure cleanup).
func (m *Method) RemoveDead(v Value) {
	s := m.slotOf(v)
	if len(s.uses) != 0 {
		panic(fmt.Sprintf("ir: removing %s with %d live uses", v, len(s.uses)))
	}
	for _, op := range s.operands {
		m.removeUse(op, v)
	}
	if s.block != nil {
		s.block.remove(v)
	}
	s.gen = 0
}

func (m *Method) removeUse(def, user Value) {
	if !m.Valid(def) {
		return
	}
	s := m.slotOf(def)
	for i, u := range s.uses {
		if u == user {
			s.uses = append(s.uses[:i], s.uses[i+1:]...)
			return
		}
	}
}
