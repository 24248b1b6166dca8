package source

import "fmt"

// SeqPoint ties a compiler value back to the instruction it originated from.
// The front end attaches one per produced value; passes carry it through so
// failures can be attributed to user code.
type SeqPoint struct {
	File      string
	Offset    uint32 // byte offset of the originating instruction
	StartLine uint32
	StartCol  uint32
	EndLine   uint32
	EndCol    uint32
}

// None is the zero sequence point, used when no debug metadata is available.
var None = SeqPoint{}

// IsValid reports whether the point carries any location information.
func (p SeqPoint) IsValid() bool {
	return p.File != "" || p.StartLine != 0
}

func (p SeqPoint) String() string {
	if !p.IsValid() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.StartLine, p.StartCol)
}

// Merge combines two points by taking the minimum start and maximum end
// bounds. Points from different files do not combine; the receiver wins.
func (p SeqPoint) Merge(other SeqPoint) SeqPoint {
	if !other.IsValid() {
		return p
	}
	if !p.IsValid() {
		return other
	}
	if p.File != other.File {
		return p
	}
	out := p
	if other.Offset < out.Offset {
		out.Offset = other.Offset
	}
	if lessPos(other.StartLine, other.StartCol, out.StartLine, out.StartCol) {
		out.StartLine, out.StartCol = other.StartLine, other.StartCol
	}
	if lessPos(out.EndLine, out.EndCol, other.EndLine, other.EndCol) {
		out.EndLine, out.EndCol = other.EndLine, other.EndCol
	}
	return out
}

func lessPos(aLine, aCol, bLine, bCol uint32) bool {
	if aLine != bLine {
		return aLine < bLine
	}
	return aCol < bCol
}
