package cpu

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/target"
	"github.com/76creates/ILGPU/internal/types"
)

func compile(t *testing.T, ctx *types.Context, m *ir.Method) *Program {
	t.Helper()
	data, err := New(ctx, target.CPU64()).GenerateMethod(m)
	if err != nil {
		t.Fatal(err)
	}
	p, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func findOps(p *Program, op OpCode) []Instr {
	var out []Instr
	for _, b := range p.Blocks {
		for _, in := range b.Code {
			if in.Op == op {
				out = append(out, in)
			}
		}
	}
	return out
}

func TestProgramRoundTrip(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)

	m := ir.NewMethod(ctx, "addmul", i32)
	x := m.AddParameter("x", i32)
	y := m.AddParameter("y", i32)
	b := m.Builder()
	sum, err := b.Binary(ir.BinAdd, x, y)
	if err != nil {
		t.Fatal(err)
	}
	prod, err := b.Binary(ir.BinMul, sum, x)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(prod); err != nil {
		t.Fatal(err)
	}

	p := compile(t, ctx, m)
	if p.Schema != ProgramSchema || p.Name != "addmul" || p.Target != "cpu64" {
		t.Fatalf("bad program header: %+v", p)
	}
	if len(p.Params) != 2 {
		t.Fatalf("want 2 params, got %d", len(p.Params))
	}
	if p.RegTypes[p.Params[0]] != "int32" {
		t.Fatalf("param register type = %q", p.RegTypes[p.Params[0]])
	}
	bins := findOps(p, OpBinary)
	if len(bins) != 2 {
		t.Fatalf("want 2 binary ops, got %d", len(bins))
	}
	if ir.BinaryOp(bins[0].Aux) != ir.BinAdd || ir.BinaryOp(bins[1].Aux) != ir.BinMul {
		t.Fatalf("operator payloads wrong: %+v", bins)
	}
	// The multiply consumes the add's destination register.
	if bins[1].Args[0] != bins[0].Dst {
		t.Fatal("dataflow between instructions broken")
	}
	rets := findOps(p, OpReturn)
	if len(rets) != 1 || rets[0].Args[0] != bins[1].Dst {
		t.Fatalf("return must carry the product register: %+v", rets)
	}
}

func TestPhiBecomesEdgeMoves(t *testing.T) {
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

	p := compile(t, ctx, m)
	moves := findOps(p, OpMove)
	if len(moves) != 2 {
		t.Fatalf("want one move per incoming edge, got %d", len(moves))
	}
	if moves[0].Dst != moves[1].Dst {
		t.Fatal("both edges must write the same phi register")
	}
	if moves[0].Args[0] == moves[1].Args[0] {
		t.Fatal("edges must move distinct incoming values")
	}
	// Moves precede the edge terminators, never live in the merge block.
	last := p.Blocks[len(p.Blocks)-1]
	for _, in := range last.Code {
		if in.Op == OpMove {
			t.Fatal("phi move leaked into the merge block")
		}
	}
}

func TestSwitchCarriesAllTargets(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)

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

	p := compile(t, ctx, m)
	sw := findOps(p, OpSwitch)
	if len(sw) != 1 {
		t.Fatalf("want 1 switch, got %d", len(sw))
	}
	if len(sw[0].Targets) != 3 {
		t.Fatalf("switch must carry all targets, got %v", sw[0].Targets)
	}
}

func TestViewsStayFirstClass(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	view := ctx.View(i32, types.Generic)

	m := ir.NewMethod(ctx, "len", i32)
	data := m.AddParameter("data", view)
	b := m.Builder()
	n, err := b.ViewLength(data)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(n); err != nil {
		t.Fatal(err)
	}

	p := compile(t, ctx, m)
	if len(findOps(p, OpViewLen)) != 1 {
		t.Fatal("view length must survive as a dedicated op")
	}
}

func TestExternalMethodProducesNoProgram(t *testing.T) {
	ctx := types.NewContext()
	m := ir.NewMethod(ctx, "extern_fn", ctx.Void())
	m.Flags |= ir.FlagIntrinsic

	data, err := New(ctx, target.CPU64()).GenerateMethod(m)
	if err != nil {
		t.Fatal(err)
	}
	if data != nil {
		t.Fatal("intrinsic method must produce no program")
	}
}

func TestDecodeRejectsForeignSchema(t *testing.T) {
	data, err := msgpack.Marshal(&Program{Schema: ProgramSchema + 1, Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data); err == nil {
		t.Fatal("decode must reject unknown schema versions")
	}
}
