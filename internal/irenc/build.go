package irenc

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/source"
	"github.com/76creates/ILGPU/internal/types"
)

// BuildMethods reconstructs every method of a module into ctx. Construction
// goes through the builder, so malformed documents surface as the same
// invariant errors a misbehaving front end would get.
func BuildMethods(ctx *types.Context, mod *Module) ([]*ir.Method, error) {
	if mod.Schema != Schema {
		return nil, fmt.Errorf("irenc: module schema %d, this build reads %d", mod.Schema, Schema)
	}
	out := make([]*ir.Method, 0, len(mod.Methods))
	for i := range mod.Methods {
		m, err := BuildMethod(ctx, mod, i)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// BuildMethod reconstructs a single method by index. Safe to call
// concurrently for distinct indices; the type context interns under its own
// lock.
func BuildMethod(ctx *types.Context, mod *Module, i int) (*ir.Method, error) {
	if mod.Schema != Schema {
		return nil, fmt.Errorf("irenc: module schema %d, this build reads %d", mod.Schema, Schema)
	}
	if i < 0 || i >= len(mod.Methods) {
		return nil, fmt.Errorf("irenc: method index %d outside module of %d", i, len(mod.Methods))
	}
	bld := &modBuilder{ctx: ctx, mod: mod, resolved: make([]types.TypeID, len(mod.Types))}
	m, err := bld.method(mod.Methods[i])
	if err != nil {
		return nil, fmt.Errorf("irenc: method %s: %w", mod.Methods[i].Name, err)
	}
	return m, nil
}

type modBuilder struct {
	ctx      *types.Context
	mod      *Module
	resolved []types.TypeID
	seen     []bool
}

func (bld *modBuilder) typeAt(idx int32) (types.TypeID, error) {
	if idx < 0 || int(idx) >= len(bld.mod.Types) {
		return 0, fmt.Errorf("type index %d outside table of %d", idx, len(bld.mod.Types))
	}
	if bld.seen == nil {
		bld.seen = make([]bool, len(bld.mod.Types))
	}
	if bld.seen[idx] {
		return bld.resolved[idx], nil
	}
	wt := bld.mod.Types[idx]
	var t types.TypeID
	switch types.Kind(wt.Kind) {
	case types.KindVoid:
		t = bld.ctx.Void()
	case types.KindPrimitive:
		t = bld.ctx.Primitive(types.BasicKind(wt.Basic))
	case types.KindPointer:
		e, err := bld.typeAt(wt.Elem)
		if err != nil {
			return 0, err
		}
		t = bld.ctx.Pointer(e, types.AddressSpace(wt.Space))
	case types.KindView:
		e, err := bld.typeAt(wt.Elem)
		if err != nil {
			return 0, err
		}
		t = bld.ctx.View(e, types.AddressSpace(wt.Space))
	case types.KindArray:
		e, err := bld.typeAt(wt.Elem)
		if err != nil {
			return 0, err
		}
		t = bld.ctx.Array(e, wt.Dims)
	case types.KindStructure:
		fields := make([]types.TypeID, len(wt.Fields))
		for i, fi := range wt.Fields {
			f, err := bld.typeAt(fi)
			if err != nil {
				return 0, err
			}
			fields[i] = f
		}
		t = bld.ctx.Structure(fields)
	default:
		return 0, fmt.Errorf("type table entry %d has unknown kind %d", idx, wt.Kind)
	}
	bld.resolved[idx] = t
	bld.seen[idx] = true
	return t, nil
}

func (bld *modBuilder) method(md *MethodDesc) (*ir.Method, error) {
	ret, err := bld.typeAt(md.Ret)
	if err != nil {
		return nil, err
	}
	m := ir.NewMethod(bld.ctx, md.Name, ret)
	m.Flags = ir.MethodFlags(md.Flags)

	// Method-wide numbering: parameters first, then block values in order.
	total := len(md.Params)
	for _, bd := range md.Blocks {
		total += len(bd.Values)
	}
	vals := make([]ir.Value, total)
	have := make([]bool, total)
	// Forward references (phi operands on back edges) resolve through
	// placeholders replaced once the referenced value exists.
	pending := make(map[int32]ir.Value)

	next := 0
	for _, pd := range md.Params {
		pt, err := bld.typeAt(pd.Type)
		if err != nil {
			return nil, err
		}
		vals[next] = m.AddParameter(pd.Name, pt)
		have[next] = true
		next++
	}

	if len(md.Blocks) == 0 {
		return nil, fmt.Errorf("no blocks")
	}
	blocks := make([]*ir.BasicBlock, len(md.Blocks))
	blocks[0] = m.EntryBlock()
	blocks[0].Name = md.Blocks[0].Name
	for i := 1; i < len(md.Blocks); i++ {
		blocks[i] = m.CreateBlock(md.Blocks[i].Name)
	}

	b := m.Builder()
	b.SetFolding(false)

	resolve := func(idx int32) (ir.Value, error) {
		if idx < 0 || int(idx) >= total {
			return ir.Nil, fmt.Errorf("operand index %d outside method of %d values", idx, total)
		}
		if have[idx] {
			return vals[idx], nil
		}
		if ph, ok := pending[idx]; ok {
			return ph, nil
		}
		// The placeholder's type comes from the referenced descriptor.
		vd, err := descAt(md, idx)
		if err != nil {
			return ir.Nil, err
		}
		t, err := bld.typeAt(vd.Type)
		if err != nil {
			return ir.Nil, err
		}
		ph := b.Undefined(t)
		pending[idx] = ph
		return ph, nil
	}

	for bi, bd := range md.Blocks {
		b.SetBlock(blocks[bi])
		for _, vd := range bd.Values {
			v, err := bld.emit(b, blocks, vd, resolve)
			if err != nil {
				return nil, err
			}
			vals[next] = v
			have[next] = true
			next++
		}
	}

	for idx, ph := range pending {
		if !have[idx] {
			return nil, fmt.Errorf("operand index %d never defined", idx)
		}
		// Replace rewires every use and evicts the placeholder.
		m.Replace(ph, vals[idx])
	}
	return m, nil
}

// descAt locates a value descriptor by method-wide index. Parameter indexes
// have no descriptor and are always materialized before any use.
func descAt(md *MethodDesc, idx int32) (ValueDesc, error) {
	i := int(idx) - len(md.Params)
	if i < 0 {
		return ValueDesc{}, fmt.Errorf("parameter %d referenced before binding", idx)
	}
	for _, bd := range md.Blocks {
		if i < len(bd.Values) {
			return bd.Values[i], nil
		}
		i -= len(bd.Values)
	}
	return ValueDesc{}, fmt.Errorf("value index %d outside method", idx)
}

func (bld *modBuilder) emit(b *ir.Builder, blocks []*ir.BasicBlock, vd ValueDesc, resolve func(int32) (ir.Value, error)) (ir.Value, error) {
	t, err := bld.typeAt(vd.Type)
	if err != nil {
		return ir.Nil, err
	}
	ops := make([]ir.Value, len(vd.Operands))
	for i, oi := range vd.Operands {
		if ops[i], err = resolve(oi); err != nil {
			return ir.Nil, err
		}
	}
	tgts := make([]*ir.BasicBlock, len(vd.Targets))
	for i, ti := range vd.Targets {
		if ti < 0 || int(ti) >= len(blocks) {
			return ir.Nil, fmt.Errorf("branch target %d outside method of %d blocks", ti, len(blocks))
		}
		tgts[i] = blocks[ti]
	}
	if vd.Point != nil {
		b.SetPoint(source.SeqPoint{
			File:      vd.Point.File,
			Offset:    vd.Point.Offset,
			StartLine: vd.Point.StartLine,
			StartCol:  vd.Point.StartCol,
			EndLine:   vd.Point.EndLine,
			EndCol:    vd.Point.EndCol,
		})
	} else {
		b.SetPoint(source.None)
	}

	op := func(i int) ir.Value {
		if i < len(ops) {
			return ops[i]
		}
		return ir.Nil
	}

	switch ir.ValueKind(vd.Kind) {
	case ir.KindConstant:
		d, ok := bld.ctx.Lookup(t)
		if !ok || d.Kind != types.KindPrimitive {
			return ir.Nil, fmt.Errorf("constant with non-primitive type")
		}
		return b.PrimitiveConstant(d.Basic, vd.Bits), nil
	case ir.KindStringConst:
		return b.StringConst(vd.Text), nil
	case ir.KindNull:
		return b.Null(t), nil
	case ir.KindUndefined:
		return b.Undefined(t), nil
	case ir.KindUnaryArith:
		return b.Unary(ir.UnaryOp(vd.Index), op(0)), nil
	case ir.KindBinaryArith:
		return b.Binary(ir.BinaryOp(vd.Index), op(0), op(1))
	case ir.KindCompare:
		return b.Compare(ir.CompareOp(vd.Index), op(0), op(1))
	case ir.KindSelect:
		return b.Select(op(0), op(1), op(2))
	case ir.KindConvert:
		return b.Convert(op(0), t)
	case ir.KindPointerCast:
		return b.PointerCast(op(0), t)
	case ir.KindAddressSpaceCast:
		d, _ := bld.ctx.Lookup(t)
		return b.AddressSpaceCast(op(0), d.Space)
	case ir.KindViewCast:
		d, _ := bld.ctx.Lookup(t)
		return b.ViewCast(op(0), d.Elem)
	case ir.KindFloatAsIntCast:
		return b.FloatAsInt(op(0))
	case ir.KindIntAsFloatCast:
		return b.IntAsFloat(op(0))
	case ir.KindAlloca:
		d, ok := bld.ctx.Lookup(t)
		if !ok || d.Kind != types.KindPointer {
			return ir.Nil, fmt.Errorf("alloca with non-pointer type")
		}
		return b.Alloca(d.Elem, d.Space), nil
	case ir.KindLoad:
		return b.Load(op(0))
	case ir.KindStore:
		return b.Store(op(0), op(1))
	case ir.KindBuildStruct:
		return b.BuildStruct(t, ops...)
	case ir.KindGetField:
		if vd.Span > 1 {
			return b.GetFieldSpan(op(0), int(vd.Index), int(vd.Span))
		}
		return b.GetField(op(0), int(vd.Index))
	case ir.KindSetField:
		return b.SetField(op(0), int(vd.Index), op(1))
	case ir.KindNewView:
		return b.NewView(op(0), op(1))
	case ir.KindSubView:
		return b.SubView(op(0), op(1), op(2))
	case ir.KindViewLength:
		return b.ViewLength(op(0))
	case ir.KindLoadElementAddress:
		return b.LoadElementAddress(op(0), op(1))
	case ir.KindLoadFieldAddress:
		return b.LoadFieldAddress(op(0), int(vd.Index))
	case ir.KindBarrier:
		return b.Barrier(ir.BarrierKind(vd.Span)), nil
	case ir.KindBroadcast:
		return b.Broadcast(op(0), op(1)), nil
	case ir.KindShuffle:
		return b.Shuffle(op(0), op(1), ir.ShuffleKind(vd.Span)), nil
	case ir.KindGridIndex:
		return b.GridIndex(int(vd.Index))
	case ir.KindGroupIndex:
		return b.GroupIndex(int(vd.Index))
	case ir.KindGridDim:
		return b.GridDim(int(vd.Index))
	case ir.KindGroupDim:
		return b.GroupDim(int(vd.Index))
	case ir.KindCall:
		return b.Call(vd.Text, t, ops...), nil
	case ir.KindPhi:
		return b.Phi(t, ops...), nil
	case ir.KindReturn:
		return b.Return(op(0))
	case ir.KindBranch:
		if len(tgts) != 1 {
			return ir.Nil, fmt.Errorf("branch with %d targets", len(tgts))
		}
		return b.Branch(tgts[0])
	case ir.KindIfBranch:
		if len(tgts) != 2 {
			return ir.Nil, fmt.Errorf("conditional branch with %d targets", len(tgts))
		}
		return b.IfBranch(op(0), tgts[0], tgts[1])
	case ir.KindSwitchBranch:
		return b.SwitchBranch(op(0), tgts...)
	}
	return ir.Nil, fmt.Errorf("unknown value kind %d", vd.Kind)
}
