package types

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Context owns the intern table for one compilation universe. All lookups and
// constructors are safe for concurrent use: reads take the shared lock and
// insertion re-checks under the exclusive lock, so racing requests for the
// same shape converge to a single TypeID.
type Context struct {
	mu          sync.RWMutex
	types       []Type
	index       map[typeKey]TypeID
	structIndex map[string]TypeID
	fieldLists  [][]TypeID

	void TypeID
}

type typeKey struct {
	Kind  Kind
	Basic BasicKind
	Elem  TypeID
	Space AddressSpace
	Dims  uint32
}

// NewContext constructs an empty type context. TypeID 0 is reserved as the
// invalid sentinel.
func NewContext() *Context {
	c := &Context{
		types:       make([]Type, 1, 64),
		index:       make(map[typeKey]TypeID, 64),
		structIndex: make(map[string]TypeID, 16),
		fieldLists:  make([][]TypeID, 1, 16),
	}
	c.void = c.intern(Type{Kind: KindVoid})
	return c
}

// Void returns the canonical void type.
func (c *Context) Void() TypeID {
	return c.void
}

// Primitive returns the canonical primitive type of the given basic kind.
func (c *Context) Primitive(kind BasicKind) TypeID {
	if kind == NoBasic {
		panic("types: primitive of NoBasic")
	}
	return c.intern(Type{Kind: KindPrimitive, Basic: kind})
}

// Pointer returns the canonical pointer type.
func (c *Context) Pointer(elem TypeID, space AddressSpace) TypeID {
	c.mustExist(elem)
	return c.intern(Type{Kind: KindPointer, Elem: elem, Space: space})
}

// View returns the canonical view (pointer-plus-length) type.
func (c *Context) View(elem TypeID, space AddressSpace) TypeID {
	c.mustExist(elem)
	return c.intern(Type{Kind: KindView, Elem: elem, Space: space})
}

// Array returns the canonical array type with the given dimension count.
func (c *Context) Array(elem TypeID, dims uint32) TypeID {
	c.mustExist(elem)
	if dims == 0 {
		panic("types: array with zero dimensions")
	}
	return c.intern(Type{Kind: KindArray, Elem: elem, Dims: dims})
}

// Structure returns the canonical structure type for the ordered field list.
// A zero-field request is valid and yields the empty-structure singleton.
func (c *Context) Structure(fields []TypeID) TypeID {
	for _, f := range fields {
		c.mustExist(f)
	}
	key := structKey(fields)

	c.mu.RLock()
	if id, ok := c.structIndex[key]; ok {
		c.mu.RUnlock()
		return id
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.structIndex[key]; ok {
		return id
	}
	listIdx := uint32(len(c.fieldLists))
	c.fieldLists = append(c.fieldLists, append([]TypeID(nil), fields...))
	id := TypeID(len(c.types))
	c.types = append(c.types, Type{Kind: KindStructure, Fields: listIdx})
	c.structIndex[key] = id
	return id
}

// intern is the compare-and-insert path for fixed-shape descriptors.
func (c *Context) intern(t Type) TypeID {
	key := typeKey{Kind: t.Kind, Basic: t.Basic, Elem: t.Elem, Space: t.Space, Dims: t.Dims}

	c.mu.RLock()
	if id, ok := c.index[key]; ok {
		c.mu.RUnlock()
		return id
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.index[key]; ok {
		return id
	}
	id := TypeID(len(c.types))
	c.types = append(c.types, t)
	c.index[key] = id
	return id
}

func structKey(fields []TypeID) string {
	buf := make([]byte, 4+4*len(fields))
	binary.LittleEndian.PutUint32(buf, uint32(len(fields)))
	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[4+4*i:], uint32(f))
	}
	return string(buf)
}

// mustExist enforces acyclicity: element and field types must already be
// interned, so a type can never reference itself.
func (c *Context) mustExist(id TypeID) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(c.types) {
		panic(fmt.Sprintf("types: reference to unknown type #%d", id))
	}
}

// Lookup returns the descriptor for a TypeID.
func (c *Context) Lookup(id TypeID) (Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(c.types) {
		return Type{}, false
	}
	return c.types[id], true
}

// MustLookup panics when id is invalid.
func (c *Context) MustLookup(id TypeID) Type {
	t, ok := c.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return t
}

// Fields returns the ordered field list of a structure type.
// The slice aliases interned storage; callers must not modify it.
func (c *Context) Fields(id TypeID) []TypeID {
	t, ok := c.Lookup(id)
	if !ok || t.Kind != KindStructure {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fieldLists[t.Fields]
}

// NumTypes returns the number of interned types (diagnostics/tests).
func (c *Context) NumTypes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types) - 1
}

// Kind returns the kind of a type, KindInvalid for unknown IDs.
func (c *Context) Kind(id TypeID) Kind {
	t, ok := c.Lookup(id)
	if !ok {
		return KindInvalid
	}
	return t.Kind
}

// IsPrimitive reports whether id names a primitive of the given kind.
func (c *Context) IsPrimitive(id TypeID, kind BasicKind) bool {
	t, ok := c.Lookup(id)
	return ok && t.Kind == KindPrimitive && t.Basic == kind
}

// SpecializeAddressSpace rebuilds a pointer or view shell in another address
// space; other kinds are returned unchanged.
func (c *Context) SpecializeAddressSpace(id TypeID, space AddressSpace) TypeID {
	t, ok := c.Lookup(id)
	if !ok {
		return id
	}
	switch t.Kind {
	case KindPointer:
		return c.Pointer(t.Elem, space)
	case KindView:
		return c.View(t.Elem, space)
	default:
		return id
	}
}

// ContainsKind reports whether id transitively contains a type of the given
// kind. Interned type graphs are acyclic, so plain recursion terminates.
func (c *Context) ContainsKind(id TypeID, kind Kind) bool {
	t, ok := c.Lookup(id)
	if !ok {
		return false
	}
	if t.Kind == kind {
		return true
	}
	switch t.Kind {
	case KindPointer, KindView, KindArray:
		return c.ContainsKind(t.Elem, kind)
	case KindStructure:
		for _, f := range c.Fields(id) {
			if c.ContainsKind(f, kind) {
				return true
			}
		}
	}
	return false
}
