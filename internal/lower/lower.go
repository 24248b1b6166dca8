// Package lower eliminates one structured type category from a method by
// flattening every value whose type transitively contains it. The pass is
// generic over a Converter that names the category and its replacement;
// concrete converters handle views and fixed-size arrays.
package lower

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/transform"
	"github.com/76creates/ILGPU/internal/types"
)

// Converter decides which types a lowering pass eliminates and what each one
// becomes. Convert may return a shallow replacement: the pass keeps lowering
// the result until the category is gone. NumFields is the flattened field
// width a value of the type contributes when spliced into an enclosing
// structure; it must equal the field count of the fully lowered type.
type Converter interface {
	AppliesTo(ctx *types.Context, t types.TypeID) bool
	Convert(ctx *types.Context, t types.TypeID) types.TypeID
	NumFields(ctx *types.Context, t types.TypeID) int
}

// TypeLowering is a rewriting pass that applies one Converter to a method:
// parameter and return types first, then every affected value. It satisfies
// transform.Pass and is idempotent: a lowered method has no affected types
// left, so a second run reports no change.
type TypeLowering struct {
	name string
	ctx  *types.Context
	conv Converter
}

// NewTypeLowering wraps a converter into a named pass.
func NewTypeLowering(name string, ctx *types.Context, conv Converter) *TypeLowering {
	return &TypeLowering{name: name, ctx: ctx, conv: conv}
}

// Name returns the pass name.
func (l *TypeLowering) Name() string {
	return l.name
}

// Apply lowers one method. Candidates are collected against the pre-pass
// type of each value: once rewriting starts, operand edges get rewired and
// the original types are no longer recoverable from the graph.
func (l *TypeLowering) Apply(m *ir.Method) (bool, error) {
	s := &session{
		ctx:     l.ctx,
		conv:    l.conv,
		m:       m,
		cache:   make(map[types.TypeID]types.TypeID, 16),
		reach:   make(map[types.TypeID]bool, 16),
		offsets: make(map[types.TypeID][]int, 8),
	}

	scope := transform.NewScope(m)
	var cands []candidate
	for _, v := range scope.Values() {
		if c, ok := s.match(v); ok {
			cands = append(cands, c)
		}
	}

	sigAffected := s.affected(m.ReturnType())
	for _, p := range m.Params() {
		if s.affected(m.TypeOf(p)) {
			sigAffected = true
		}
	}
	if len(cands) == 0 && !sigAffected {
		return false, nil
	}

	// Signature first, so converted parameters feed the body rewrite.
	for _, p := range m.Params() {
		if t := m.TypeOf(p); s.affected(t) {
			m.SetParameterType(p, s.convert(t))
		}
	}
	if t := m.ReturnType(); s.affected(t) {
		m.SetReturnType(s.convert(t))
	}

	rw := transform.NewRewrite(m)
	for _, c := range cands {
		if !m.Valid(c.v) {
			continue
		}
		if err := s.rewrite(rw, c); err != nil {
			return false, fmt.Errorf("pass %s: %w", l.name, err)
		}
	}
	return true, nil
}

// candidate freezes the pre-pass type facts a rewrite needs.
type candidate struct {
	v     ir.Value
	typ   types.TypeID // declared/result type before the pass
	owner types.TypeID // operand-0 type before the pass
	index int
	span  int
}

type session struct {
	ctx     *types.Context
	conv    Converter
	m       *ir.Method
	cache   map[types.TypeID]types.TypeID
	reach   map[types.TypeID]bool
	offsets map[types.TypeID][]int
}

// affected reports whether t transitively contains a type the converter
// applies to.
func (s *session) affected(t types.TypeID) bool {
	if r, ok := s.reach[t]; ok {
		return r
	}
	r := s.affectedSlow(t)
	s.reach[t] = r
	return r
}

func (s *session) affectedSlow(t types.TypeID) bool {
	if s.conv.AppliesTo(s.ctx, t) {
		return true
	}
	d := s.ctx.MustLookup(t)
	switch d.Kind {
	case types.KindPointer, types.KindView, types.KindArray:
		return s.affected(d.Elem)
	case types.KindStructure:
		for _, f := range s.ctx.Fields(t) {
			if s.affected(f) {
				return true
			}
		}
	}
	return false
}

// convert maps a type into the lowered type space. Structures flatten: a
// field the converter applies to is replaced in place by its lowered
// sub-fields, all other fields keep their position. The cache lives for one
// pass invocation.
func (s *session) convert(t types.TypeID) types.TypeID {
	if r, ok := s.cache[t]; ok {
		return r
	}
	r := s.convertSlow(t)
	s.cache[t] = r
	return r
}

func (s *session) convertSlow(t types.TypeID) types.TypeID {
	if !s.affected(t) {
		return t
	}
	if s.conv.AppliesTo(s.ctx, t) {
		return s.convert(s.conv.Convert(s.ctx, t))
	}
	d := s.ctx.MustLookup(t)
	switch d.Kind {
	case types.KindPointer:
		return s.ctx.Pointer(s.convert(d.Elem), d.Space)
	case types.KindView:
		return s.ctx.View(s.convert(d.Elem), d.Space)
	case types.KindArray:
		return s.ctx.Array(s.convert(d.Elem), d.Dims)
	case types.KindStructure:
		fields := s.ctx.Fields(t)
		out := make([]types.TypeID, 0, len(fields))
		for _, f := range fields {
			if s.conv.AppliesTo(s.ctx, f) {
				lowered := s.convert(f)
				if s.ctx.Kind(lowered) == types.KindStructure {
					out = append(out, s.ctx.Fields(lowered)...)
				} else {
					out = append(out, lowered)
				}
			} else {
				out = append(out, s.convert(f))
			}
		}
		return s.ctx.Structure(out)
	default:
		return t
	}
}

// width is the flattened field count one original field contributes.
func (s *session) width(t types.TypeID) int {
	if s.conv.AppliesTo(s.ctx, t) {
		return s.conv.NumFields(s.ctx, t)
	}
	return 1
}

// fieldOffsets maps original field indices of a structure into the flattened
// index space: entry i is the flattened start of original field i, with one
// trailing entry holding the flattened field count. The mapping is bijective
// and order-preserving.
func (s *session) fieldOffsets(structType types.TypeID) []int {
	if off, ok := s.offsets[structType]; ok {
		return off
	}
	fields := s.ctx.Fields(structType)
	off := make([]int, len(fields)+1)
	for i, f := range fields {
		off[i+1] = off[i] + s.width(f)
	}
	s.offsets[structType] = off
	return off
}

// match classifies a value as a rewrite candidate and records its pre-pass
// types. Values whose type is derived from operands need no rewrite: they
// pick up the lowered type once their operands are replaced.
func (s *session) match(v ir.Value) (candidate, bool) {
	m := s.m
	switch m.KindOf(v) {
	case ir.KindNull, ir.KindUndefined, ir.KindAlloca, ir.KindPointerCast,
		ir.KindPhi, ir.KindBuildStruct, ir.KindNewView, ir.KindViewCast,
		ir.KindAddressSpaceCast:
		t := m.TypeOf(v)
		if !s.affected(t) {
			return candidate{}, false
		}
		c := candidate{v: v, typ: t}
		if len(m.Operands(v)) > 0 {
			c.owner = m.TypeOf(m.Operand(v, 0))
		}
		return c, true

	case ir.KindGetField:
		owner := m.TypeOf(m.Operand(v, 0))
		if !s.affected(owner) {
			return candidate{}, false
		}
		return candidate{v: v, owner: owner, index: m.FieldIndex(v), span: m.FieldSpan(v)}, true

	case ir.KindSetField:
		owner := m.TypeOf(m.Operand(v, 0))
		if !s.affected(owner) {
			return candidate{}, false
		}
		return candidate{v: v, owner: owner, index: m.FieldIndex(v)}, true

	case ir.KindLoadFieldAddress:
		pt := s.ctx.MustLookup(m.TypeOf(m.Operand(v, 0)))
		if !s.affected(pt.Elem) {
			return candidate{}, false
		}
		return candidate{v: v, owner: pt.Elem, index: m.FieldIndex(v)}, true

	case ir.KindSubView, ir.KindViewLength, ir.KindLoadElementAddress:
		owner := m.TypeOf(m.Operand(v, 0))
		if !s.conv.AppliesTo(s.ctx, owner) {
			return candidate{}, false
		}
		return candidate{v: v, owner: owner}, true
	}
	return candidate{}, false
}

func (s *session) rewrite(rw *transform.Rewrite, c candidate) error {
	m := rw.Method()
	b := rw.Builder(c.v)

	switch m.KindOf(c.v) {
	case ir.KindNull:
		rw.Replace(c.v, b.Null(s.convert(c.typ)))
		return nil

	case ir.KindUndefined:
		rw.Replace(c.v, b.Undefined(s.convert(c.typ)))
		return nil

	case ir.KindAlloca:
		d := s.ctx.MustLookup(c.typ)
		rw.Replace(c.v, b.Alloca(s.convert(d.Elem), d.Space))
		return nil

	case ir.KindPointerCast:
		nv, err := b.PointerCast(m.Operand(c.v, 0), s.convert(c.typ))
		if err != nil {
			return err
		}
		rw.Replace(c.v, nv)
		return nil

	case ir.KindPhi:
		rw.Replace(c.v, b.Phi(s.convert(c.typ), m.Operands(c.v)...))
		return nil

	case ir.KindBuildStruct:
		return s.rewriteBuildStruct(rw, b, c)

	case ir.KindGetField:
		return s.rewriteGetField(rw, b, c)

	case ir.KindSetField:
		return s.rewriteSetField(rw, b, c)

	case ir.KindLoadFieldAddress:
		// Addressing a flattened field resolves to its first sub-field.
		off := s.fieldOffsets(c.owner)
		nv, err := b.LoadFieldAddress(m.Operand(c.v, 0), off[c.index])
		if err != nil {
			return err
		}
		rw.Replace(c.v, nv)
		return nil

	case ir.KindNewView:
		return s.rewriteNewView(rw, b, c)

	case ir.KindViewCast:
		return s.rewriteViewCast(rw, b, c)

	case ir.KindAddressSpaceCast:
		return s.rewriteAddressSpaceCast(rw, b, c)

	case ir.KindViewLength:
		// The lowered pair carries the length in its second field.
		nv, err := b.GetField(m.Operand(c.v, 0), 1)
		if err != nil {
			return err
		}
		rw.Replace(c.v, nv)
		return nil

	case ir.KindSubView:
		return s.rewriteSubView(rw, b, c)

	case ir.KindLoadElementAddress:
		ptr, err := b.GetField(m.Operand(c.v, 0), 0)
		if err != nil {
			return err
		}
		nv, err := b.LoadElementAddress(ptr, m.Operand(c.v, 1))
		if err != nil {
			return err
		}
		rw.Replace(c.v, nv)
		return nil
	}
	return nil
}

// rewriteBuildStruct rebuilds the construction against the flattened type,
// decomposing each lowered field operand into its sub-fields in place.
func (s *session) rewriteBuildStruct(rw *transform.Rewrite, b *ir.Builder, c candidate) error {
	m := rw.Method()
	lowered := s.convert(c.typ)
	origFields := s.ctx.Fields(c.typ)

	ops := make([]ir.Value, 0, len(s.ctx.Fields(lowered)))
	for i, ft := range origFields {
		fv := m.Operand(c.v, i)
		if !s.conv.AppliesTo(s.ctx, ft) {
			ops = append(ops, fv)
			continue
		}
		n := s.conv.NumFields(s.ctx, ft)
		for j := 0; j < n; j++ {
			sub, err := b.GetField(fv, j)
			if err != nil {
				return err
			}
			ops = append(ops, sub)
		}
	}
	nv, err := b.BuildStruct(lowered, ops...)
	if err != nil {
		return err
	}
	rw.Replace(c.v, nv)
	return nil
}

// rewriteGetField recomputes the field span into the flattened index space.
// A read covering a lowered field re-materializes as the sub-structure of
// its flattened fields.
func (s *session) rewriteGetField(rw *transform.Rewrite, b *ir.Builder, c candidate) error {
	m := rw.Method()
	off := s.fieldOffsets(c.owner)
	idx := off[c.index]
	span := off[c.index+c.span] - idx

	var nv ir.Value
	var err error
	if span == 1 {
		nv, err = b.GetField(m.Operand(c.v, 0), idx)
	} else {
		nv, err = b.GetFieldSpan(m.Operand(c.v, 0), idx, span)
	}
	if err != nil {
		return err
	}
	rw.Replace(c.v, nv)
	return nil
}

// rewriteSetField decomposes a write of a lowered field into one single-field
// write per flattened sub-field.
func (s *session) rewriteSetField(rw *transform.Rewrite, b *ir.Builder, c candidate) error {
	m := rw.Method()
	off := s.fieldOffsets(c.owner)
	base := off[c.index]
	ft := s.ctx.Fields(c.owner)[c.index]
	value := m.Operand(c.v, 1)

	if !s.conv.AppliesTo(s.ctx, ft) {
		nv, err := b.SetField(m.Operand(c.v, 0), base, value)
		if err != nil {
			return err
		}
		rw.Replace(c.v, nv)
		return nil
	}

	cur := m.Operand(c.v, 0)
	n := s.conv.NumFields(s.ctx, ft)
	for j := 0; j < n; j++ {
		sub, err := b.GetField(value, j)
		if err != nil {
			return err
		}
		cur, err = b.SetField(cur, base+j, sub)
		if err != nil {
			return err
		}
	}
	rw.Replace(c.v, cur)
	return nil
}

func (s *session) rewriteNewView(rw *transform.Rewrite, b *ir.Builder, c candidate) error {
	m := rw.Method()
	ptr, length := m.Operand(c.v, 0), m.Operand(c.v, 1)
	if !s.conv.AppliesTo(s.ctx, c.typ) {
		// The view survives this pass; only its element type changed.
		nv, err := b.NewView(ptr, length)
		if err != nil {
			return err
		}
		rw.Replace(c.v, nv)
		return nil
	}
	nv, err := b.BuildStruct(s.convert(c.typ), ptr, length)
	if err != nil {
		return err
	}
	rw.Replace(c.v, nv)
	return nil
}

func (s *session) rewriteViewCast(rw *transform.Rewrite, b *ir.Builder, c candidate) error {
	m := rw.Method()
	d := s.ctx.MustLookup(c.typ)
	if !s.conv.AppliesTo(s.ctx, c.typ) {
		nv, err := b.ViewCast(m.Operand(c.v, 0), s.convert(d.Elem))
		if err != nil {
			return err
		}
		rw.Replace(c.v, nv)
		return nil
	}
	pair := m.Operand(c.v, 0)
	ptr, err := b.GetField(pair, 0)
	if err != nil {
		return err
	}
	cast, err := b.PointerCast(ptr, s.ctx.Pointer(s.convert(d.Elem), d.Space))
	if err != nil {
		return err
	}
	length, err := b.GetField(pair, 1)
	if err != nil {
		return err
	}
	nv, err := b.BuildStruct(s.convert(c.typ), cast, length)
	if err != nil {
		return err
	}
	rw.Replace(c.v, nv)
	return nil
}

func (s *session) rewriteAddressSpaceCast(rw *transform.Rewrite, b *ir.Builder, c candidate) error {
	m := rw.Method()
	d := s.ctx.MustLookup(c.typ)
	if !s.conv.AppliesTo(s.ctx, c.typ) {
		nv, err := b.AddressSpaceCast(m.Operand(c.v, 0), d.Space)
		if err != nil {
			return err
		}
		rw.Replace(c.v, nv)
		return nil
	}
	pair := m.Operand(c.v, 0)
	ptr, err := b.GetField(pair, 0)
	if err != nil {
		return err
	}
	cast, err := b.AddressSpaceCast(ptr, d.Space)
	if err != nil {
		return err
	}
	length, err := b.GetField(pair, 1)
	if err != nil {
		return err
	}
	nv, err := b.BuildStruct(s.convert(c.typ), cast, length)
	if err != nil {
		return err
	}
	rw.Replace(c.v, nv)
	return nil
}

func (s *session) rewriteSubView(rw *transform.Rewrite, b *ir.Builder, c candidate) error {
	m := rw.Method()
	pair := m.Operand(c.v, 0)
	ptr, err := b.GetField(pair, 0)
	if err != nil {
		return err
	}
	addr, err := b.LoadElementAddress(ptr, m.Operand(c.v, 1))
	if err != nil {
		return err
	}
	nv, err := b.BuildStruct(s.convert(c.owner), addr, m.Operand(c.v, 2))
	if err != nil {
		return err
	}
	rw.Replace(c.v, nv)
	return nil
}
