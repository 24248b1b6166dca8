package types

import (
	"fmt"
	"strings"
)

// TypeID uniquely identifies a type inside its owning Context. Because every
// shape is interned, TypeID equality is structural equality.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindPrimitive
	KindPointer
	KindView
	KindArray
	KindStructure
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindPrimitive:
		return "primitive"
	case KindPointer:
		return "pointer"
	case KindView:
		return "view"
	case KindArray:
		return "array"
	case KindStructure:
		return "structure"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// BasicKind enumerates primitive value categories. String is constant-only:
// it may appear in IR constants but never in device data layout.
type BasicKind uint8

const (
	NoBasic BasicKind = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float32
	Float64
	String
)

var basicNames = [...]string{
	NoBasic: "none",
	Bool:    "bool",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	UInt8:   "uint8",
	UInt16:  "uint16",
	UInt32:  "uint32",
	UInt64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
}

func (b BasicKind) String() string {
	if int(b) < len(basicNames) {
		return basicNames[b]
	}
	return fmt.Sprintf("BasicKind(%d)", b)
}

// BasicKindByName resolves a basic kind from its textual name.
// Used by target descriptions to name size-table overrides.
func BasicKindByName(name string) (BasicKind, bool) {
	for k, n := range basicNames {
		if n == name && BasicKind(k) != NoBasic {
			return BasicKind(k), true
		}
	}
	return NoBasic, false
}

// IsFloat reports whether the kind is a floating-point category.
func (b BasicKind) IsFloat() bool {
	return b == Float32 || b == Float64
}

// IsInteger reports whether the kind is a fixed-width integer category.
func (b BasicKind) IsInteger() bool {
	return b >= Int8 && b <= UInt64
}

// Bits returns the value width in bits, or 0 for Bool/String.
func (b BasicKind) Bits() int {
	switch b {
	case Int8, UInt8:
		return 8
	case Int16, UInt16:
		return 16
	case Int32, UInt32, Float32:
		return 32
	case Int64, UInt64, Float64:
		return 64
	default:
		return 0
	}
}

// AddressSpace distinguishes the memory regions a pointer or view may target.
type AddressSpace uint8

const (
	Generic AddressSpace = iota
	Global
	Shared
	Local
	Constant
)

func (s AddressSpace) String() string {
	switch s {
	case Generic:
		return "generic"
	case Global:
		return "global"
	case Shared:
		return "shared"
	case Local:
		return "local"
	case Constant:
		return "constant"
	default:
		return fmt.Sprintf("AddressSpace(%d)", s)
	}
}

// Type is the interned descriptor behind a TypeID. Structure fields live in
// the context's side table; Fields here is the index into it.
type Type struct {
	Kind   Kind
	Basic  BasicKind    // KindPrimitive
	Elem   TypeID       // pointer/view/array element
	Space  AddressSpace // pointer/view
	Dims   uint32       // array dimension count
	Fields uint32       // structure field-list index in the context
}

// String renders a type for diagnostics using the owning context.
func (c *Context) String(id TypeID) string {
	t, ok := c.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindPrimitive:
		return t.Basic.String()
	case KindPointer:
		return fmt.Sprintf("ptr<%s, %s>", c.String(t.Elem), t.Space)
	case KindView:
		return fmt.Sprintf("view<%s, %s>", c.String(t.Elem), t.Space)
	case KindArray:
		return fmt.Sprintf("array<%s, %d>", c.String(t.Elem), t.Dims)
	case KindStructure:
		fields := c.Fields(id)
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, c.String(f))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return t.Kind.String()
	}
}
