package backend

import (
	"testing"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/types"
)

func TestAllocatorNamesAreDeterministic(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)

	m := ir.NewMethod(ctx, "f", i32)
	x := m.AddParameter("x", i32)
	y := m.AddParameter("y", i32)
	b := m.Builder()
	sum, err := b.Binary(ir.BinAdd, x, y)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(sum); err != nil {
		t.Fatal(err)
	}

	a := NewAllocator(m)
	params := a.BindParams()
	if len(params) != 2 || params[0] != "p0" || params[1] != "p1" {
		t.Fatalf("params = %v", params)
	}
	if a.Name(x) != "p0" {
		t.Fatal("parameter lookup must resolve through the bound name")
	}
	if got := a.Name(sum); got != "v0" {
		t.Fatalf("first fresh binding = %q, want v0", got)
	}
	if got := a.Name(sum); got != "v0" {
		t.Fatalf("repeat lookup = %q, must be stable", got)
	}
	if !a.Bound(sum) || a.Bound(ir.Value{}) {
		t.Fatal("Bound must track exactly the named values")
	}
}

func TestViewAllocatorDerivesPairNames(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	view := ctx.View(i32, types.Generic)

	m := ir.NewMethod(ctx, "f", ctx.Void())
	p := m.AddParameter("data", view)
	b := m.Builder()
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	a := NewViewAllocator(m)
	a.BindParams()
	vv := a.View(p)
	if vv.Ptr != "p0_ptr" || vv.Len != "p0_len" {
		t.Fatalf("view pair = %+v", vv)
	}
	if again := a.View(p); again != vv {
		t.Fatal("view binding must be stable")
	}
}

func TestSkipMatchesBodylessFlags(t *testing.T) {
	ctx := types.NewContext()
	m := ir.NewMethod(ctx, "f", ctx.Void())
	if Skip(m) {
		t.Fatal("plain method must not be skipped")
	}
	m.Flags |= ir.FlagExternal
	if !Skip(m) {
		t.Fatal("external method must be skipped")
	}
	m.Flags = ir.FlagIntrinsic
	if !Skip(m) {
		t.Fatal("intrinsic method must be skipped")
	}
}

func TestPredecessorsFollowBlockCreationOrder(t *testing.T) {
	ctx := types.NewContext()
	boolT := ctx.Primitive(types.Bool)

	m := ir.NewMethod(ctx, "f", ctx.Void())
	cond := m.AddParameter("cond", boolT)
	b := m.Builder()

	left := m.CreateBlock("left")
	right := m.CreateBlock("right")
	exit := m.CreateBlock("exit")
	if _, err := b.IfBranch(cond, left, right); err != nil {
		t.Fatal(err)
	}
	// Seal in reverse creation order; the predecessor list must still come
	// out in creation order.
	b.SetBlock(right)
	if _, err := b.Branch(exit); err != nil {
		t.Fatal(err)
	}
	b.SetBlock(left)
	if _, err := b.Branch(exit); err != nil {
		t.Fatal(err)
	}
	b.SetBlock(exit)
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	preds := Predecessors(m)
	got := preds[exit.ID]
	if len(got) != 2 || got[0] != left || got[1] != right {
		t.Fatalf("exit predecessors = %v, want [left right]", got)
	}
	if len(preds[m.EntryBlock().ID]) != 0 {
		t.Fatal("entry block must have no predecessors")
	}
}

func TestPredecessorsDeduplicatesMultiEdges(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)

	m := ir.NewMethod(ctx, "f", ctx.Void())
	sel := m.AddParameter("sel", i32)
	b := m.Builder()

	dst := m.CreateBlock("dst")
	other := m.CreateBlock("other")
	// Two switch arms share one destination block.
	if _, err := b.SwitchBranch(sel, dst, other, dst); err != nil {
		t.Fatal(err)
	}
	for _, blk := range []*ir.BasicBlock{dst, other} {
		b.SetBlock(blk)
		if _, err := b.Return(ir.Nil); err != nil {
			t.Fatal(err)
		}
	}

	preds := Predecessors(m)
	if len(preds[dst.ID]) != 1 {
		t.Fatalf("multi-edge predecessor must appear once, got %d", len(preds[dst.ID]))
	}
}
