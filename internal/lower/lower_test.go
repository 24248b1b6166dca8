package lower

import (
	"testing"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/types"
)

func allValues(m *ir.Method) []ir.Value {
	var out []ir.Value
	for _, b := range m.Blocks() {
		out = append(out, b.Values()...)
	}
	return out
}

func countKind(m *ir.Method, k ir.ValueKind) int {
	n := 0
	for _, v := range allValues(m) {
		if m.KindOf(v) == k {
			n++
		}
	}
	return n
}

// assertViewFree fails if any live value still produces a view-typed result.
func assertViewFree(t *testing.T, m *ir.Method) {
	t.Helper()
	ctx := m.TypeContext()
	for _, v := range allValues(m) {
		if ctx.ContainsKind(m.TypeOf(v), types.KindView) {
			t.Fatalf("value %s still has view type %s", v, ctx.String(m.TypeOf(v)))
		}
	}
	for _, p := range m.Params() {
		if ctx.ContainsKind(m.TypeOf(p), types.KindView) {
			t.Fatalf("parameter still has view type %s", ctx.String(m.TypeOf(p)))
		}
	}
}

func TestViewLoweringSignatureAndLength(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	view := ctx.View(i32, types.Generic)

	m := ir.NewMethod(ctx, "len", i32)
	p := m.AddParameter("data", view)
	b := m.Builder()
	n, err := b.ViewLength(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(n); err != nil {
		t.Fatal(err)
	}

	pass := NewViewLowering(ctx)
	changed, err := pass.Apply(m)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("lowering must report a change")
	}

	pair := ctx.Structure([]types.TypeID{ctx.Pointer(i32, types.Generic), i32})
	if got := m.TypeOf(p); got != pair {
		t.Fatalf("parameter type = %s, want %s", ctx.String(got), ctx.String(pair))
	}
	if countKind(m, ir.KindViewLength) != 0 {
		t.Fatal("view length op survived lowering")
	}
	ret := m.EntryBlock().Terminator()
	lenVal := m.Operand(ret, 0)
	if m.KindOf(lenVal) != ir.KindGetField || m.FieldIndex(lenVal) != 1 {
		t.Fatalf("length must read pair field 1, got %s", m.KindOf(lenVal))
	}
	assertViewFree(t, m)

	// Idempotence.
	changed, err = pass.Apply(m)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("second run must report no change")
	}
}

func TestViewLoweringFlattensStructures(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	f32 := ctx.Primitive(types.Float32)
	view := ctx.View(f32, types.Generic)
	s := ctx.Structure([]types.TypeID{i32, view})

	m := ir.NewMethod(ctx, "pack", i32)
	x := m.AddParameter("x", i32)
	v := m.AddParameter("v", view)
	b := m.Builder()

	bs, err := b.BuildStruct(s, x, v)
	if err != nil {
		t.Fatal(err)
	}
	g1, err := b.GetField(bs, 1)
	if err != nil {
		t.Fatal(err)
	}
	n, err := b.ViewLength(g1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(n); err != nil {
		t.Fatal(err)
	}

	if _, err := NewViewLowering(ctx).Apply(m); err != nil {
		t.Fatal(err)
	}
	assertViewFree(t, m)

	lowered := ctx.Structure([]types.TypeID{i32, ctx.Pointer(f32, types.Generic), i32})
	var builds []ir.Value
	for _, val := range allValues(m) {
		if m.KindOf(val) == ir.KindBuildStruct {
			builds = append(builds, val)
		}
	}
	// The construction must carry the flattened three-field type.
	found := false
	for _, val := range builds {
		if m.TypeOf(val) == lowered {
			found = true
		}
	}
	if !found {
		t.Fatalf("no construction of flattened type %s", ctx.String(lowered))
	}
}

func TestGetFieldIndexRemapPreservesOrder(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	i64 := ctx.Primitive(types.Int64)
	view := ctx.View(i32, types.Generic)
	s := ctx.Structure([]types.TypeID{i32, view, i64})

	m := ir.NewMethod(ctx, "tail", i64)
	obj := m.AddParameter("obj", s)
	b := m.Builder()
	g, err := b.GetField(obj, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(g); err != nil {
		t.Fatal(err)
	}

	if _, err := NewViewLowering(ctx).Apply(m); err != nil {
		t.Fatal(err)
	}

	// Flattened layout is [i32, ptr, i32, i64]: original field 2 lands at 3.
	ret := m.EntryBlock().Terminator()
	got := m.Operand(ret, 0)
	if m.KindOf(got) != ir.KindGetField {
		t.Fatalf("return operand is %s, want field read", m.KindOf(got))
	}
	if idx := m.FieldIndex(got); idx != 3 {
		t.Fatalf("remapped index = %d, want 3", idx)
	}
	if m.TypeOf(got) != i64 {
		t.Fatalf("remapped read type = %s, want int64", ctx.String(m.TypeOf(got)))
	}
}

func TestSetFieldDecomposesIntoSubFieldWrites(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	view := ctx.View(i32, types.Generic)
	s := ctx.Structure([]types.TypeID{view, i32})

	m := ir.NewMethod(ctx, "store", ctx.Void())
	obj := m.AddParameter("obj", s)
	v := m.AddParameter("v", view)
	b := m.Builder()
	if _, err := b.SetField(obj, 0, v); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	if _, err := NewViewLowering(ctx).Apply(m); err != nil {
		t.Fatal(err)
	}
	assertViewFree(t, m)

	if got := countKind(m, ir.KindSetField); got != 2 {
		t.Fatalf("decomposed into %d writes, want 2", got)
	}
	lowered := ctx.Structure([]types.TypeID{ctx.Pointer(i32, types.Generic), i32, i32})
	for _, val := range allValues(m) {
		if m.KindOf(val) == ir.KindSetField && m.TypeOf(val) != lowered {
			t.Fatalf("write type = %s, want %s", ctx.String(m.TypeOf(val)), ctx.String(lowered))
		}
	}
}

func TestSubViewAndElementAddressLowerToPointerArithmetic(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	view := ctx.View(i32, types.Generic)

	m := ir.NewMethod(ctx, "slice", i32)
	v := m.AddParameter("v", view)
	off := m.AddParameter("off", i32)
	cnt := m.AddParameter("cnt", i32)
	b := m.Builder()

	sub, err := b.SubView(v, off, cnt)
	if err != nil {
		t.Fatal(err)
	}
	addr, err := b.LoadElementAddress(sub, off)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := b.Load(addr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(loaded); err != nil {
		t.Fatal(err)
	}

	if _, err := NewViewLowering(ctx).Apply(m); err != nil {
		t.Fatal(err)
	}
	assertViewFree(t, m)

	if countKind(m, ir.KindSubView) != 0 {
		t.Fatal("sub-view survived lowering")
	}
	// Element addressing remains, now against a plain pointer.
	for _, val := range allValues(m) {
		if m.KindOf(val) == ir.KindLoadElementAddress {
			opT := m.TypeOf(m.Operand(val, 0))
			if ctx.Kind(opT) != types.KindPointer {
				t.Fatalf("element address operand is %s, want pointer", ctx.String(opT))
			}
		}
	}
}

func TestNewViewBecomesPairConstruction(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	ptr := ctx.Pointer(i32, types.Global)

	m := ir.NewMethod(ctx, "wrap", i32)
	p := m.AddParameter("p", ptr)
	n := m.AddParameter("n", i32)
	b := m.Builder()
	v, err := b.NewView(p, n)
	if err != nil {
		t.Fatal(err)
	}
	length, err := b.ViewLength(v)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(length); err != nil {
		t.Fatal(err)
	}

	if _, err := NewViewLowering(ctx).Apply(m); err != nil {
		t.Fatal(err)
	}
	assertViewFree(t, m)

	if countKind(m, ir.KindNewView) != 0 {
		t.Fatal("view construction survived lowering")
	}
	pair := ctx.Structure([]types.TypeID{ptr, i32})
	if countKind(m, ir.KindBuildStruct) != 1 {
		t.Fatal("want exactly one pair construction")
	}
	for _, val := range allValues(m) {
		if m.KindOf(val) == ir.KindBuildStruct && m.TypeOf(val) != pair {
			t.Fatalf("pair type = %s, want %s", ctx.String(m.TypeOf(val)), ctx.String(pair))
		}
	}
}

func TestViewFreeMethodUntouched(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	m := ir.NewMethod(ctx, "id", i32)
	x := m.AddParameter("x", i32)
	b := m.Builder()
	if _, err := b.Return(x); err != nil {
		t.Fatal(err)
	}
	before := ir.Sprint(m)

	changed, err := NewViewLowering(ctx).Apply(m)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("view-free method must report no change")
	}
	if ir.Sprint(m) != before {
		t.Fatal("view-free method must be untouched")
	}
}

func TestArrayLoweringSignatureAndNull(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	arr := ctx.Array(i32, 4)

	m := ir.NewMethod(ctx, "zero", arr)
	b := m.Builder()
	n := b.Null(arr)
	if _, err := b.Return(n); err != nil {
		t.Fatal(err)
	}

	changed, err := NewArrayLowering(ctx).Apply(m)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("array lowering must report a change")
	}

	want := ctx.Structure([]types.TypeID{i32, i32, i32, i32})
	if m.ReturnType() != want {
		t.Fatalf("return type = %s, want %s", ctx.String(m.ReturnType()), ctx.String(want))
	}
	ret := m.EntryBlock().Terminator()
	if m.TypeOf(m.Operand(ret, 0)) != want {
		t.Fatal("null operand not retyped to element structure")
	}
}

func TestNestedArraysFlattenFully(t *testing.T) {
	ctx := types.NewContext()
	f32 := ctx.Primitive(types.Float32)
	inner := ctx.Array(f32, 2)
	outer := ctx.Array(inner, 3)
	s := ctx.Structure([]types.TypeID{outer, f32})

	m := ir.NewMethod(ctx, "mat", f32)
	obj := m.AddParameter("obj", s)
	b := m.Builder()
	g, err := b.GetField(obj, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(g); err != nil {
		t.Fatal(err)
	}

	if _, err := NewArrayLowering(ctx).Apply(m); err != nil {
		t.Fatal(err)
	}

	// outer contributes 3*2 flattened fields, so the trailing float is at 6.
	ret := m.EntryBlock().Terminator()
	got := m.Operand(ret, 0)
	if idx := m.FieldIndex(got); idx != 6 {
		t.Fatalf("remapped index = %d, want 6", idx)
	}
	fields := ctx.Fields(m.TypeOf(obj))
	if len(fields) != 7 {
		t.Fatalf("flattened struct has %d fields, want 7", len(fields))
	}
	for _, f := range fields {
		if f != f32 {
			t.Fatalf("flattened field type = %s, want float32", ctx.String(f))
		}
	}
}

func TestAllocaRebuiltOnLoweredType(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	arr := ctx.Array(i32, 2)

	m := ir.NewMethod(ctx, "local", ctx.Void())
	b := m.Builder()
	a := b.Alloca(arr, types.Local)
	_ = a
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	if _, err := NewArrayLowering(ctx).Apply(m); err != nil {
		t.Fatal(err)
	}

	want := ctx.Pointer(ctx.Structure([]types.TypeID{i32, i32}), types.Local)
	found := false
	for _, v := range allValues(m) {
		if m.KindOf(v) == ir.KindAlloca {
			found = true
			if m.TypeOf(v) != want {
				t.Fatalf("alloca type = %s, want %s", ctx.String(m.TypeOf(v)), ctx.String(want))
			}
		}
	}
	if !found {
		t.Fatal("alloca missing after lowering")
	}
}
