// Package backend defines the contract every code generator implements and
// the variable allocators the text backends share. A generator walks a fully
// transformed method block by block and binds each value's result to exactly
// one allocated variable consumed by later users.
package backend

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/ir"
)

// Generator emits one method for a specific target.
type Generator interface {
	Target() string
	GenerateMethod(m *ir.Method) ([]byte, error)
}

// Skip reports whether a method has no emittable body: external methods are
// resolved by the runtime linker, intrinsic ones by the backend itself.
func Skip(m *ir.Method) bool {
	return m.Flags&(ir.FlagExternal|ir.FlagIntrinsic) != 0
}

// Allocator binds each value to one named variable. Names are deterministic:
// parameters bind to p<i> in declaration order, everything else to v<n> in
// first-bind order, which follows block order during emission.
type Allocator struct {
	m     *ir.Method
	names map[ir.Value]string
	next  int
}

// NewAllocator creates an empty allocator for one method.
func NewAllocator(m *ir.Method) *Allocator {
	return &Allocator{m: m, names: make(map[ir.Value]string, 32)}
}

// BindParams names every parameter up front. Header and body emission both
// resolve parameters through this binding, so the two stay consistent.
func (a *Allocator) BindParams() []string {
	params := a.m.Params()
	out := make([]string, len(params))
	for i, p := range params {
		name := fmt.Sprintf("p%d", i)
		a.names[p] = name
		out[i] = name
	}
	return out
}

// Name returns the variable bound to v, binding a fresh one on first use.
func (a *Allocator) Name(v ir.Value) string {
	if n, ok := a.names[v]; ok {
		return n
	}
	n := fmt.Sprintf("v%d", a.next)
	a.next++
	a.names[v] = n
	return n
}

// Bound reports whether v already has a binding.
func (a *Allocator) Bound(v ir.Value) bool {
	_, ok := a.names[v]
	return ok
}

// ViewVariable is the composite storage of one view value: the element
// pointer and the 32-bit length.
type ViewVariable struct {
	Ptr string
	Len string
}

// ViewAllocator layers pointer+length pairs over the scalar allocator for
// backends that keep views first-class in the emitted source.
type ViewAllocator struct {
	*Allocator
	views map[ir.Value]ViewVariable
}

// NewViewAllocator creates a view-aware allocator for one method.
func NewViewAllocator(m *ir.Method) *ViewAllocator {
	return &ViewAllocator{
		Allocator: NewAllocator(m),
		views:     make(map[ir.Value]ViewVariable, 8),
	}
}

// View returns the pair bound to a view value, deriving both members from
// the value's base name.
func (a *ViewAllocator) View(v ir.Value) ViewVariable {
	if vv, ok := a.views[v]; ok {
		return vv
	}
	base := a.Name(v)
	vv := ViewVariable{Ptr: base + "_ptr", Len: base + "_len"}
	a.views[v] = vv
	return vv
}

// Predecessors computes each block's predecessor list in block creation
// order. Phi operands are ordered like this list; backends resolving phis
// into predecessor-side assignments rely on it.
func Predecessors(m *ir.Method) map[ir.BlockID][]*ir.BasicBlock {
	preds := make(map[ir.BlockID][]*ir.BasicBlock, len(m.Blocks()))
	for _, b := range m.Blocks() {
		for _, succ := range b.Successors() {
			found := false
			for _, p := range preds[succ.ID] {
				if p == b {
					found = true
					break
				}
			}
			if !found {
				preds[succ.ID] = append(preds[succ.ID], b)
			}
		}
	}
	return preds
}
