package transform

import "github.com/76creates/ILGPU/internal/ir"

// Scope is an ephemeral snapshot of a method's reachable blocks and values,
// taken at the start of one pass invocation. It is recomputed per pass and
// never persisted: replacements made during the pass do not grow it.
type Scope struct {
	method *ir.Method
	blocks []*ir.BasicBlock
	values []ir.Value
}

// NewScope snapshots the blocks reachable from the entry, in a stable
// entry-first breadth-first order.
func NewScope(m *ir.Method) *Scope {
	s := &Scope{method: m}
	seen := make(map[ir.BlockID]bool, len(m.Blocks()))
	queue := []*ir.BasicBlock{m.EntryBlock()}
	seen[m.EntryBlock().ID] = true
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		s.blocks = append(s.blocks, b)
		s.values = append(s.values, b.Values()...)
		for _, succ := range b.Successors() {
			if !seen[succ.ID] {
				seen[succ.ID] = true
				queue = append(queue, succ)
			}
		}
	}
	return s
}

// Method returns the owning method.
func (s *Scope) Method() *ir.Method {
	return s.method
}

// Blocks returns the reachable blocks in snapshot order.
func (s *Scope) Blocks() []*ir.BasicBlock {
	return s.blocks
}

// Values returns the snapshot of reachable values in block order. Entries may
// have been invalidated by earlier replacements within the same session;
// consumers must check Method().Valid first.
func (s *Scope) Values() []ir.Value {
	return s.values
}
