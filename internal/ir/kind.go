package ir

import "fmt"

// ValueKind is the closed set of value kinds. Every consumer (rewriter rule
// tables, code generators, the ABI resolver) dispatches over an exhaustive
// switch on this discriminant; adding a kind must update each of them.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota

	// Constants and leaves.
	KindConstant
	KindStringConst
	KindNull
	KindUndefined
	KindParameter

	// Arithmetic.
	KindUnaryArith
	KindBinaryArith
	KindCompare
	KindSelect
	KindConvert

	// Casts.
	KindPointerCast
	KindAddressSpaceCast
	KindViewCast
	KindFloatAsIntCast
	KindIntAsFloatCast

	// Memory.
	KindAlloca
	KindLoad
	KindStore

	// Aggregates.
	KindBuildStruct
	KindGetField
	KindSetField

	// Views and address computation.
	KindNewView
	KindSubView
	KindViewLength
	KindLoadElementAddress
	KindLoadFieldAddress

	// Thread-group primitives.
	KindBarrier
	KindBroadcast
	KindShuffle
	KindGridIndex
	KindGroupIndex
	KindGridDim
	KindGroupDim

	// Calls and merges.
	KindCall
	KindPhi

	// Terminators.
	KindReturn
	KindBranch
	KindIfBranch
	KindSwitchBranch

	numValueKinds
)

var kindNames = [...]string{
	KindInvalid:            "invalid",
	KindConstant:           "const",
	KindStringConst:        "string",
	KindNull:               "null",
	KindUndefined:          "undef",
	KindParameter:          "param",
	KindUnaryArith:         "unary",
	KindBinaryArith:        "binary",
	KindCompare:            "cmp",
	KindSelect:             "select",
	KindConvert:            "convert",
	KindPointerCast:        "ptrcast",
	KindAddressSpaceCast:   "ascast",
	KindViewCast:           "viewcast",
	KindFloatAsIntCast:     "float_as_int",
	KindIntAsFloatCast:     "int_as_float",
	KindAlloca:             "alloca",
	KindLoad:               "load",
	KindStore:              "store",
	KindBuildStruct:        "struct",
	KindGetField:           "getfield",
	KindSetField:           "setfield",
	KindNewView:            "newview",
	KindSubView:            "subview",
	KindViewLength:         "viewlen",
	KindLoadElementAddress: "lea",
	KindLoadFieldAddress:   "lfa",
	KindBarrier:            "barrier",
	KindBroadcast:          "broadcast",
	KindShuffle:            "shuffle",
	KindGridIndex:          "grididx",
	KindGroupIndex:         "groupidx",
	KindGridDim:            "griddim",
	KindGroupDim:           "groupdim",
	KindCall:               "call",
	KindPhi:                "phi",
	KindReturn:             "ret",
	KindBranch:             "br",
	KindIfBranch:           "brif",
	KindSwitchBranch:       "switch",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// IsTerminator reports whether the kind transfers control.
func (k ValueKind) IsTerminator() bool {
	switch k {
	case KindReturn, KindBranch, KindIfBranch, KindSwitchBranch:
		return true
	}
	return false
}

// IsConstant reports whether the kind is a compile-time constant.
func (k ValueKind) IsConstant() bool {
	switch k {
	case KindConstant, KindStringConst, KindNull, KindUndefined:
		return true
	}
	return false
}

// UnaryOp enumerates unary arithmetic operators.
type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryAbs
)

func (o UnaryOp) String() string {
	switch o {
	case UnaryNeg:
		return "neg"
	case UnaryNot:
		return "not"
	case UnaryAbs:
		return "abs"
	}
	return fmt.Sprintf("UnaryOp(%d)", o)
}

// BinaryOp enumerates binary arithmetic operators.
type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinMin
	BinMax
)

var binNames = [...]string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr", "min", "max"}

func (o BinaryOp) String() string {
	if int(o) < len(binNames) {
		return binNames[o]
	}
	return fmt.Sprintf("BinaryOp(%d)", o)
}

// CompareOp enumerates comparison operators.
type CompareOp uint8

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

var cmpNames = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (o CompareOp) String() string {
	if int(o) < len(cmpNames) {
		return cmpNames[o]
	}
	return fmt.Sprintf("CompareOp(%d)", o)
}

// BarrierKind distinguishes synchronization scopes.
type BarrierKind uint8

const (
	BarrierGroup BarrierKind = iota
	BarrierDevice
)

// ShuffleKind distinguishes warp shuffle variants.
type ShuffleKind uint8

const (
	ShuffleIdx ShuffleKind = iota
	ShuffleUp
	ShuffleDown
	ShuffleXor
)

var shuffleNames = [...]string{"idx", "up", "down", "xor"}

func (k ShuffleKind) String() string {
	if int(k) < len(shuffleNames) {
		return shuffleNames[k]
	}
	return fmt.Sprintf("ShuffleKind(%d)", k)
}
