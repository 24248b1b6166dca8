package ir

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/source"
	"github.com/76creates/ILGPU/internal/types"
)

// Value is a generation-stamped handle into a method's value arena. A stale
// handle (one whose slot was replaced and evicted) is detected on access.
type Value struct {
	idx uint32
	gen uint32
}

// Nil is the zero Value handle.
var Nil = Value{}

// IsNil reports whether the handle is the zero handle.
func (v Value) IsNil() bool {
	return v.gen == 0
}

func (v Value) String() string {
	if v.IsNil() {
		return "v?"
	}
	return fmt.Sprintf("v%d", v.idx)
}

// slot is the arena entry behind a Value handle. Operand lists are fixed
// after construction; the only sanctioned mutation is use rewiring performed
// by Method.Replace.
type slot struct {
	gen      uint32
	kind     ValueKind
	block    *BasicBlock
	typ      types.TypeID // declared type where not derivable from operands
	operands []Value
	uses     []Value // one entry per operand edge referencing this slot

	bits    uint64 // constant payload bits
	text    string // string constant, callee name, parameter name
	index   int32  // field/parameter index, dimension, operator code
	span    int32  // field span width, shuffle/barrier kind
	targets []*BasicBlock
	point   source.SeqPoint
}

// live reports whether the slot still backs the given handle generation.
func (s *slot) live(gen uint32) bool {
	return s.gen == gen
}
