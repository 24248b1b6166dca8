package clc

import (
	"strings"
	"testing"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/target"
	"github.com/76creates/ILGPU/internal/types"
)

func generate(t *testing.T, ctx *types.Context, m *ir.Method) string {
	t.Helper()
	out, err := New(ctx, target.OpenCL64()).GenerateMethod(m)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func wantLines(t *testing.T, out string, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		if !strings.Contains(out, f) {
			t.Fatalf("output missing %q:\n%s", f, out)
		}
	}
}

func TestKernelSignatureAndViewParams(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	view := ctx.View(i32, types.Global)

	m := ir.NewMethod(ctx, "fill", ctx.Void())
	data := m.AddParameter("data", view)
	val := m.AddParameter("val", i32)
	b := m.Builder()
	addr, err := b.LoadElementAddress(data, b.Int32(0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Store(addr, val); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	out := generate(t, ctx, m)
	wantLines(t, out,
		"__kernel void fill(__global int* p0_ptr, int p0_len, int p1)",
		"bb0: {",
		"return;",
	)
	// Element addressing goes through the pair's pointer member.
	wantLines(t, out, "(p0_ptr + ")
}

func TestDeviceFunctionHasNoKernelQualifier(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)

	m := ir.NewMethod(ctx, "twice", i32)
	x := m.AddParameter("x", i32)
	b := m.Builder()
	sum, err := b.Binary(ir.BinAdd, x, x)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(sum); err != nil {
		t.Fatal(err)
	}

	out := generate(t, ctx, m)
	wantLines(t, out, "int twice(int p0)", "(p0 + p0)", "return v0;")
	if strings.Contains(out, "__kernel") {
		t.Fatalf("non-void method must not be a kernel:\n%s", out)
	}
}

func TestStructTypedefEmittedOnce(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	f32 := ctx.Primitive(types.Float32)
	st := ctx.Structure([]types.TypeID{i32, f32})

	m := ir.NewMethod(ctx, "pack", st)
	a := m.AddParameter("a", i32)
	c := m.AddParameter("c", f32)
	b := m.Builder()
	s1, err := b.BuildStruct(st, a, c)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := b.SetField(s1, 0, a)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(s2); err != nil {
		t.Fatal(err)
	}

	out := generate(t, ctx, m)
	wantLines(t, out,
		"typedef struct {\n\tint f0;\n\tfloat f1;\n} st0;",
		"(st0){p0, p1}",
		".f0 = p0;",
	)
	if strings.Count(out, "typedef struct") != 1 {
		t.Fatalf("typedef must be emitted once:\n%s", out)
	}
}

func TestEmptyStructTypedefGetsPadMember(t *testing.T) {
	ctx := types.NewContext()
	unit := ctx.Structure(nil)

	m := ir.NewMethod(ctx, "consume", ctx.Void())
	m.AddParameter("u", unit)
	b := m.Builder()
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	out := generate(t, ctx, m)
	wantLines(t, out,
		"typedef struct {\n\tchar pad;\n} st0;",
		"st0 p0",
	)
}

func TestViewFieldsFlattenIntoTypedef(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	view := ctx.View(i32, types.Global)
	st := ctx.Structure([]types.TypeID{i32, view})

	m := ir.NewMethod(ctx, "wrap", ctx.Void())
	n := m.AddParameter("n", i32)
	data := m.AddParameter("data", view)
	b := m.Builder()
	s, err := b.BuildStruct(st, n, data)
	if err != nil {
		t.Fatal(err)
	}
	inner, err := b.GetField(s, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ViewLength(inner); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	out := generate(t, ctx, m)
	wantLines(t, out,
		"\t__global int* f1_ptr;\n\tint f1_len;",
		"{p0, p1_ptr, p1_len}",
		".f1_ptr;",
		".f1_len;",
	)
}

func TestArraysBecomeWrapperTypedefs(t *testing.T) {
	ctx := types.NewContext()
	f32 := ctx.Primitive(types.Float32)
	arr := ctx.Array(f32, 4)

	m := ir.NewMethod(ctx, "zero", ctx.Void())
	b := m.Builder()
	buf := b.Alloca(arr, types.Shared)
	_ = buf
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	out := generate(t, ctx, m)
	wantLines(t, out,
		"typedef struct {\n\tfloat e[4];\n} at0;",
		"__local at0 v0_buf;",
		"v0 = &v0_buf;",
	)
}

func TestBranchesLowerToGotoBlocks(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	boolT := ctx.Primitive(types.Bool)

	m := ir.NewMethod(ctx, "pick", i32)
	cond := m.AddParameter("cond", boolT)
	a := m.AddParameter("a", i32)
	c := m.AddParameter("c", i32)
	b := m.Builder()

	left := m.CreateBlock("left")
	right := m.CreateBlock("right")
	exit := m.CreateBlock("exit")
	if _, err := b.IfBranch(cond, left, right); err != nil {
		t.Fatal(err)
	}
	b.SetBlock(left)
	if _, err := b.Branch(exit); err != nil {
		t.Fatal(err)
	}
	b.SetBlock(right)
	if _, err := b.Branch(exit); err != nil {
		t.Fatal(err)
	}
	b.SetBlock(exit)
	merged := b.Phi(i32, a, c)
	if _, err := b.Return(merged); err != nil {
		t.Fatal(err)
	}

	out := generate(t, ctx, m)
	wantLines(t, out,
		"if (p0) goto bb1; else goto bb2;",
		"v0 = p1;\ngoto bb3;",
		"v0 = p2;\ngoto bb3;",
		"return v0;",
	)
	// The phi variable is declared once at function scope.
	if strings.Count(out, "int v0;") != 1 {
		t.Fatalf("phi must be hoisted exactly once:\n%s", out)
	}
}

func TestSwitchDefaultsToFirstTarget(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)

	// Two-target switches canonicalize to an if-branch in the builder, so
	// three targets is the smallest shape that reaches the switch emitter.
	m := ir.NewMethod(ctx, "dispatch", ctx.Void())
	sel := m.AddParameter("sel", i32)
	b := m.Builder()
	t0 := m.CreateBlock("t0")
	t1 := m.CreateBlock("t1")
	t2 := m.CreateBlock("t2")
	if _, err := b.SwitchBranch(sel, t0, t1, t2); err != nil {
		t.Fatal(err)
	}
	for _, blk := range []*ir.BasicBlock{t0, t1, t2} {
		b.SetBlock(blk)
		if _, err := b.Return(ir.Nil); err != nil {
			t.Fatal(err)
		}
	}

	out := generate(t, ctx, m)
	wantLines(t, out,
		"switch (p0) {",
		"case 0: goto bb1;",
		"case 1: goto bb2;",
		"case 2: goto bb3;",
		"default: goto bb1;",
	)
}

func TestGridQueriesMapToWorkItemBuiltins(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)

	m := ir.NewMethod(ctx, "gid", i32)
	b := m.Builder()
	bid, err := b.GridIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	dim, err := b.GroupDim(2)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := b.Binary(ir.BinAdd, bid, dim)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(sum); err != nil {
		t.Fatal(err)
	}

	out := generate(t, ctx, m)
	wantLines(t, out, "(int)get_group_id(0)", "(int)get_local_size(2)")
}

func TestExternalMethodProducesNoSource(t *testing.T) {
	ctx := types.NewContext()
	m := ir.NewMethod(ctx, "extern_fn", ctx.Void())
	m.Flags |= ir.FlagExternal

	out, err := New(ctx, target.OpenCL64()).GenerateMethod(m)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Fatalf("external method must produce no source, got %q", out)
	}
}
