package transform

import (
	"errors"
	"testing"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/types"
)

// strengthReduce rewrites x*2 into x+x: a minimal, convergent rule.
func strengthReduce() *Transformation {
	t := New("strength-reduce")
	t.Add(ir.KindBinaryArith, Rule{
		Matches: func(s *Scope, v ir.Value) bool {
			m := s.Method()
			if ir.BinaryOp(m.OpCode(v)) != ir.BinMul {
				return false
			}
			rhs := m.Operand(v, 1)
			return m.KindOf(rhs) == ir.KindConstant && m.ConstantBits(rhs) == 2
		},
		Rewrite: func(rw *Rewrite, v ir.Value) error {
			m := rw.Method()
			b := rw.Builder(v)
			x := m.Operand(v, 0)
			sum, err := b.Binary(ir.BinAdd, x, x)
			if err != nil {
				return err
			}
			rw.Replace(v, sum)
			return nil
		},
	})
	return t
}

func buildMulMethod(t *testing.T) (*ir.Method, ir.Value) {
	t.Helper()
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	m := ir.NewMethod(ctx, "f", i32)
	x := m.AddParameter("x", i32)
	b := m.Builder()
	mul, err := b.Binary(ir.BinMul, x, b.Int32(2))
	if err != nil {
		t.Fatal(err)
	}
	sum, err := b.Binary(ir.BinAdd, mul, b.Int32(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(sum); err != nil {
		t.Fatal(err)
	}
	return m, mul
}

func TestApplyReplacesAndConverges(t *testing.T) {
	m, mul := buildMulMethod(t)
	pass := strengthReduce()

	changed, err := pass.Apply(m)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("first run must commit a replacement")
	}
	if m.Valid(mul) {
		t.Fatal("matched value must be evicted")
	}

	// Idempotence: a converged pass makes zero replacements.
	changed, err = pass.Apply(m)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("converged pass must report no change")
	}
}

func TestApplyNoCandidatesLeavesMethodUntouched(t *testing.T) {
	ctx := types.NewContext()
	i32 := ctx.Primitive(types.Int32)
	m := ir.NewMethod(ctx, "g", i32)
	x := m.AddParameter("x", i32)
	b := m.Builder()
	sum, err := b.Binary(ir.BinAdd, x, b.Int32(3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Return(sum); err != nil {
		t.Fatal(err)
	}
	before := ir.Sprint(m)

	changed, err := strengthReduce().Apply(m)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("no candidates: must report no change")
	}
	if ir.Sprint(m) != before {
		t.Fatal("no candidates: method must be untouched")
	}
}

func TestRewriteErrorAbortsPass(t *testing.T) {
	m, _ := buildMulMethod(t)
	boom := errors.New("boom")
	pass := New("exploding")
	pass.Add(ir.KindBinaryArith, Rule{
		Matches: func(s *Scope, v ir.Value) bool { return true },
		Rewrite: func(rw *Rewrite, v ir.Value) error { return boom },
	})
	_, err := pass.Apply(m)
	if !errors.Is(err, boom) {
		t.Fatalf("pass error must propagate, got %v", err)
	}
}

func TestScopeSkipsUnreachableBlocks(t *testing.T) {
	ctx := types.NewContext()
	m := ir.NewMethod(ctx, "h", ctx.Void())
	b := m.Builder()

	reached := m.CreateBlock("reached")
	orphan := m.CreateBlock("orphan")
	if _, err := b.Branch(reached); err != nil {
		t.Fatal(err)
	}
	b.SetBlock(reached)
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}
	b.SetBlock(orphan)
	if _, err := b.Return(ir.Nil); err != nil {
		t.Fatal(err)
	}

	s := NewScope(m)
	for _, blk := range s.Blocks() {
		if blk == orphan {
			t.Fatal("orphan block must not be in scope")
		}
	}
	if len(s.Blocks()) != 2 {
		t.Fatalf("scope has %d blocks, want 2", len(s.Blocks()))
	}
}

func TestPipelineRunsInOrder(t *testing.T) {
	m, _ := buildMulMethod(t)
	var order []string
	trace := func(name string, changed bool) {
		order = append(order, name)
	}
	err := Run(m, []Pass{strengthReduce(), strengthReduce()}, trace)
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "strength-reduce" {
		t.Fatalf("trace = %v", order)
	}
}
