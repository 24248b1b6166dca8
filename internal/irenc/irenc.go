// Package irenc is the wire format between the front end and this compiler
// core. A Module is a flat, schema-versioned msgpack document: types travel
// as a structural table re-interned on load, values by index, blocks by
// position. Reconstruction goes through the ir builder so every invariant is
// checked again on the consuming side.
package irenc

import (
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/types"
)

// Schema version of the module document. Increment on any layout change.
const Schema uint16 = 1

// Module is the top-level interchange document.
type Module struct {
	Schema  uint16        `msgpack:"schema"`
	Name    string        `msgpack:"name"`
	Types   []WireType    `msgpack:"types"`
	Methods []*MethodDesc `msgpack:"methods"`
}

// WireType is one structural type table entry. Elem and Fields reference
// entries by table index.
type WireType struct {
	Kind   uint8   `msgpack:"k"`
	Basic  uint8   `msgpack:"b,omitempty"`
	Elem   int32   `msgpack:"e,omitempty"`
	Space  uint8   `msgpack:"s,omitempty"`
	Dims   uint32  `msgpack:"d,omitempty"`
	Fields []int32 `msgpack:"f,omitempty"`
}

// MethodDesc is one method. Value operands reference the method-wide
// numbering: parameters first, then block values in emission order.
type MethodDesc struct {
	Name   string      `msgpack:"name"`
	Flags  uint8       `msgpack:"flags,omitempty"`
	Ret    int32       `msgpack:"ret"`
	Params []ParamDesc `msgpack:"params"`
	Blocks []BlockDesc `msgpack:"blocks"`
}

type ParamDesc struct {
	Name string `msgpack:"name"`
	Type int32  `msgpack:"type"`
}

type BlockDesc struct {
	Name   string      `msgpack:"name"`
	Values []ValueDesc `msgpack:"values"`
}

// ValueDesc is one value. Index and Span carry the kind-specific payloads
// (operator codes, field indices, barrier and shuffle kinds, dimensions).
type ValueDesc struct {
	Kind     uint8      `msgpack:"k"`
	Type     int32      `msgpack:"t"`
	Operands []int32    `msgpack:"o,omitempty"`
	Index    int32      `msgpack:"i,omitempty"`
	Span     int32      `msgpack:"s,omitempty"`
	Bits     uint64     `msgpack:"c,omitempty"`
	Text     string     `msgpack:"x,omitempty"`
	Targets  []int32    `msgpack:"g,omitempty"`
	Point    *PointDesc `msgpack:"p,omitempty"`
}

type PointDesc struct {
	File      string `msgpack:"f"`
	Offset    uint32 `msgpack:"o,omitempty"`
	StartLine uint32 `msgpack:"sl,omitempty"`
	StartCol  uint32 `msgpack:"sc,omitempty"`
	EndLine   uint32 `msgpack:"el,omitempty"`
	EndCol    uint32 `msgpack:"ec,omitempty"`
}

// Encode writes the module as msgpack.
func (mod *Module) Encode(w io.Writer) error {
	mod.Schema = Schema
	return msgpack.NewEncoder(w).Encode(mod)
}

// Decode reads a msgpack module, rejecting unknown schema versions.
func Decode(r io.Reader) (*Module, error) {
	var mod Module
	if err := msgpack.NewDecoder(r).Decode(&mod); err != nil {
		return nil, fmt.Errorf("irenc: decode: %w", err)
	}
	if mod.Schema != Schema {
		return nil, fmt.Errorf("irenc: module schema %d, this build reads %d", mod.Schema, Schema)
	}
	return &mod, nil
}

// --- encoding -------------------------------------------------------------

// FromMethods captures live methods into a wire module.
func FromMethods(ctx *types.Context, name string, methods []*ir.Method) (*Module, error) {
	enc := &modEncoder{ctx: ctx, typeIdx: make(map[types.TypeID]int32, 16)}
	mod := &Module{Schema: Schema, Name: name}
	for _, m := range methods {
		md, err := enc.method(m)
		if err != nil {
			return nil, err
		}
		mod.Methods = append(mod.Methods, md)
	}
	mod.Types = enc.table
	return mod, nil
}

type modEncoder struct {
	ctx     *types.Context
	table   []WireType
	typeIdx map[types.TypeID]int32
}

func (enc *modEncoder) intern(t types.TypeID) (int32, error) {
	if i, ok := enc.typeIdx[t]; ok {
		return i, nil
	}
	d, ok := enc.ctx.Lookup(t)
	if !ok {
		return 0, fmt.Errorf("irenc: encoding unknown type #%d", t)
	}
	// Reserve the slot first; children may not reference it back since type
	// graphs are acyclic, but the index must be stable while recursing.
	idx, err := safecast.Conv[int32](len(enc.table))
	if err != nil {
		return 0, fmt.Errorf("irenc: type table overflow: %w", err)
	}
	enc.typeIdx[t] = idx
	enc.table = append(enc.table, WireType{})

	wt := WireType{Kind: uint8(d.Kind), Basic: uint8(d.Basic), Space: uint8(d.Space), Dims: d.Dims}
	switch d.Kind {
	case types.KindPointer, types.KindView, types.KindArray:
		e, err := enc.intern(d.Elem)
		if err != nil {
			return 0, err
		}
		wt.Elem = e
	case types.KindStructure:
		for _, f := range enc.ctx.Fields(t) {
			fi, err := enc.intern(f)
			if err != nil {
				return 0, err
			}
			wt.Fields = append(wt.Fields, fi)
		}
	}
	enc.table[idx] = wt
	return idx, nil
}

func (enc *modEncoder) method(m *ir.Method) (*MethodDesc, error) {
	ret, err := enc.intern(m.ReturnType())
	if err != nil {
		return nil, err
	}
	md := &MethodDesc{Name: m.Name, Flags: uint8(m.Flags), Ret: ret}

	number := make(map[ir.Value]int32, 64)
	next := int32(0)
	for _, p := range m.Params() {
		number[p] = next
		next++
		ti, err := enc.intern(m.TypeOf(p))
		if err != nil {
			return nil, err
		}
		md.Params = append(md.Params, ParamDesc{Name: m.ParameterName(p), Type: ti})
	}
	for _, b := range m.Blocks() {
		for _, v := range b.Values() {
			number[v] = next
			next++
		}
	}

	blockIdx := make(map[ir.BlockID]int32, len(m.Blocks()))
	for i, b := range m.Blocks() {
		blockIdx[b.ID] = int32(i)
	}

	for _, b := range m.Blocks() {
		bd := BlockDesc{Name: b.Name}
		for _, v := range b.Values() {
			vd, err := enc.value(m, v, number, blockIdx)
			if err != nil {
				return nil, err
			}
			bd.Values = append(bd.Values, vd)
		}
		md.Blocks = append(md.Blocks, bd)
	}
	return md, nil
}

func (enc *modEncoder) value(m *ir.Method, v ir.Value, number map[ir.Value]int32, blockIdx map[ir.BlockID]int32) (ValueDesc, error) {
	ti, err := enc.intern(m.TypeOf(v))
	if err != nil {
		return ValueDesc{}, err
	}
	vd := ValueDesc{
		Kind:  uint8(m.KindOf(v)),
		Type:  ti,
		Index: int32(m.OpCode(v)),
		Span:  int32(m.AuxKind(v)),
	}
	for _, op := range m.Operands(v) {
		idx, ok := number[op]
		if !ok {
			return ValueDesc{}, fmt.Errorf("irenc: %s references a value outside its method", v)
		}
		vd.Operands = append(vd.Operands, idx)
	}
	for _, tgt := range m.Targets(v) {
		vd.Targets = append(vd.Targets, blockIdx[tgt.ID])
	}
	switch m.KindOf(v) {
	case ir.KindConstant:
		vd.Bits = m.ConstantBits(v)
	case ir.KindStringConst:
		vd.Text = m.StringValue(v)
	case ir.KindCall:
		vd.Text = m.CalleeName(v)
	}
	if p := m.Point(v); p.IsValid() {
		vd.Point = &PointDesc{
			File:      p.File,
			Offset:    p.Offset,
			StartLine: p.StartLine,
			StartCol:  p.StartCol,
			EndLine:   p.EndLine,
			EndCol:    p.EndCol,
		}
	}
	return vd, nil
}
