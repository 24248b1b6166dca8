package ir

import "fmt"

// BlockID identifies a basic block within its method.
type BlockID int32

// BasicBlock is a straight-line value sequence ending in exactly one
// terminator value. Successor edges are implied by the terminator's targets.
type BasicBlock struct {
	ID     BlockID
	Name   string
	method *Method
	values []Value
	term   Value
}

func (b *BasicBlock) String() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("bb%d", b.ID)
}

// Values returns the ordered value sequence including the terminator.
// The slice aliases block storage; callers must not modify it.
func (b *BasicBlock) Values() []Value {
	return b.values
}

// Terminator returns the block's terminator handle (Nil while the block is
// still open).
func (b *BasicBlock) Terminator() Value {
	return b.term
}

// HasTerminator reports whether the block is sealed.
func (b *BasicBlock) HasTerminator() bool {
	return !b.term.IsNil()
}

// Successors returns the blocks the terminator may transfer to.
func (b *BasicBlock) Successors() []*BasicBlock {
	if b.term.IsNil() {
		return nil
	}
	return b.method.slotOf(b.term).targets
}

// remove unlinks a value from the block's ordered sequence.
func (b *BasicBlock) remove(v Value) {
	for i, cur := range b.values {
		if cur == v {
			b.values = append(b.values[:i], b.values[i+1:]...)
			break
		}
	}
	if b.term == v {
		b.term = Nil
	}
}

// indexOf returns the position of v in the ordered sequence, or -1.
func (b *BasicBlock) indexOf(v Value) int {
	for i, cur := range b.values {
		if cur == v {
			return i
		}
	}
	return -1
}
