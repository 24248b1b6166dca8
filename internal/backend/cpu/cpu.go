// Package cpu lowers methods into a portable register-machine program for
// host-side execution. The output is a msgpack-encoded Program rather than
// target text so the executing runtime can load it without parsing.
package cpu

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/76creates/ILGPU/internal/backend"
	"github.com/76creates/ILGPU/internal/diag"
	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/source"
	"github.com/76creates/ILGPU/internal/target"
	"github.com/76creates/ILGPU/internal/types"
)

// Schema version of the encoded Program. Increment on any layout change.
const ProgramSchema uint16 = 1

// OpCode enumerates register-machine operations.
type OpCode uint8

const (
	OpInvalid OpCode = iota
	OpConst          // Imm holds the raw bits, Aux the basic kind
	OpString         // Sym holds the literal
	OpZero           // zero value of the register's type
	OpUndef          // register left unspecified
	OpMove
	OpUnary   // Aux = ir.UnaryOp
	OpBinary  // Aux = ir.BinaryOp
	OpCompare // Aux = ir.CompareOp
	OpSelect
	OpConvert
	OpBitcast
	OpAlloca // Aux = address space
	OpLoad
	OpStore
	OpPack     // build a structure from Args
	OpExtract  // Aux = field index, Imm = span
	OpInsert   // Aux = field index
	OpNewView  // Args = pointer, length
	OpSubView  // Args = view, offset, length
	OpViewLen
	OpViewCast
	OpElemAddr
	OpFieldAddr // Aux = field index
	OpBarrier   // Aux = ir.BarrierKind
	OpBroadcast
	OpShuffle // Aux = ir.ShuffleKind
	OpGridIdx // Aux = dimension
	OpGroupIdx
	OpGridDim
	OpGroupDim
	OpCall // Sym = callee
	OpReturn
	OpJump   // Targets[0] is the destination
	OpBranch // Args[0] is the condition, Targets = [then, else]
	OpSwitch // Args[0] selects into Targets, out of range takes Targets[0]
)

// Instr is one register-machine instruction. Dst is -1 when the operation
// produces no value. Targets carries block IDs for control transfers.
type Instr struct {
	Op      OpCode  `msgpack:"op"`
	Dst     int32   `msgpack:"dst"`
	Args    []int32 `msgpack:"args,omitempty"`
	Imm     uint64  `msgpack:"imm,omitempty"`
	Aux     int32   `msgpack:"aux,omitempty"`
	Sym     string  `msgpack:"sym,omitempty"`
	Targets []int32 `msgpack:"tgt,omitempty"`
}

// Block is a run of instructions ending in a control transfer.
type Block struct {
	ID   int32   `msgpack:"id"`
	Code []Instr `msgpack:"code"`
}

// Program is one compiled method. Register types travel as rendered type
// strings so the runtime can size its slots without the type context.
type Program struct {
	Schema   uint16   `msgpack:"schema"`
	Target   string   `msgpack:"target"`
	Name     string   `msgpack:"name"`
	Params   []int32  `msgpack:"params"`
	RegTypes []string `msgpack:"regs"`
	RetType  string   `msgpack:"ret"`
	Blocks   []Block  `msgpack:"blocks"`
}

// Generator produces msgpack Programs.
type Generator struct {
	ctx  *types.Context
	desc target.Description
}

func New(ctx *types.Context, desc target.Description) *Generator {
	return &Generator{ctx: ctx, desc: desc}
}

func (g *Generator) Target() string {
	return g.desc.Name
}

// GenerateMethod encodes one method. External and intrinsic methods produce
// no output.
func (g *Generator) GenerateMethod(m *ir.Method) ([]byte, error) {
	if backend.Skip(m) {
		return nil, nil
	}
	fe := &encoder{
		g:     g,
		m:     m,
		regs:  make(map[ir.Value]int32, 64),
		preds: backend.Predecessors(m),
	}
	prog, err := fe.encode()
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(prog)
}

type encoder struct {
	g     *Generator
	m     *ir.Method
	regs  map[ir.Value]int32
	typs  []string
	preds map[ir.BlockID][]*ir.BasicBlock
}

// reg binds a value to a register, recording its rendered type on first use.
func (e *encoder) reg(v ir.Value) int32 {
	if r, ok := e.regs[v]; ok {
		return r
	}
	r := int32(len(e.typs))
	e.regs[v] = r
	e.typs = append(e.typs, e.g.ctx.String(e.m.TypeOf(v)))
	return r
}

func (e *encoder) args(vs ...ir.Value) []int32 {
	out := make([]int32, len(vs))
	for i, v := range vs {
		out[i] = e.reg(v)
	}
	return out
}

func (e *encoder) encode() (*Program, error) {
	m := e.m
	params := make([]int32, len(m.Params()))
	for i, p := range m.Params() {
		params[i] = e.reg(p)
	}

	var blocks []Block
	for _, b := range m.Blocks() {
		var code []Instr
		for _, v := range b.Values() {
			if m.KindOf(v).IsTerminator() {
				code = append(code, e.phiMoves(b, v)...)
				term, err := e.terminator(v)
				if err != nil {
					return nil, err
				}
				code = append(code, term)
				continue
			}
			instr, err := e.instr(v)
			if err != nil {
				return nil, err
			}
			if instr.Op != OpInvalid {
				code = append(code, instr)
			}
		}
		blocks = append(blocks, Block{ID: int32(b.ID), Code: code})
	}

	return &Program{
		Schema:   ProgramSchema,
		Target:   e.g.desc.Name,
		Name:     m.Name,
		Params:   params,
		RegTypes: e.typs,
		RetType:  e.g.ctx.String(m.ReturnType()),
		Blocks:   blocks,
	}, nil
}

func (e *encoder) instr(v ir.Value) (Instr, error) {
	m := e.m
	switch m.KindOf(v) {
	case ir.KindConstant:
		basic := e.g.ctx.MustLookup(m.TypeOf(v)).Basic
		return Instr{Op: OpConst, Dst: e.reg(v), Imm: m.ConstantBits(v), Aux: int32(basic)}, nil

	case ir.KindStringConst:
		return Instr{Op: OpString, Dst: e.reg(v), Sym: m.StringValue(v)}, nil

	case ir.KindNull:
		return Instr{Op: OpZero, Dst: e.reg(v)}, nil

	case ir.KindUndefined:
		return Instr{Op: OpUndef, Dst: e.reg(v)}, nil

	case ir.KindUnaryArith:
		return Instr{Op: OpUnary, Dst: e.reg(v), Args: e.args(m.Operand(v, 0)), Aux: int32(m.OpCode(v))}, nil

	case ir.KindBinaryArith:
		return Instr{Op: OpBinary, Dst: e.reg(v), Args: e.args(m.Operand(v, 0), m.Operand(v, 1)), Aux: int32(m.OpCode(v))}, nil

	case ir.KindCompare:
		return Instr{Op: OpCompare, Dst: e.reg(v), Args: e.args(m.Operand(v, 0), m.Operand(v, 1)), Aux: int32(m.OpCode(v))}, nil

	case ir.KindSelect:
		return Instr{Op: OpSelect, Dst: e.reg(v), Args: e.args(m.Operands(v)...)}, nil

	case ir.KindConvert:
		return Instr{Op: OpConvert, Dst: e.reg(v), Args: e.args(m.Operand(v, 0))}, nil

	case ir.KindPointerCast, ir.KindAddressSpaceCast:
		return Instr{Op: OpMove, Dst: e.reg(v), Args: e.args(m.Operand(v, 0))}, nil

	case ir.KindViewCast:
		return Instr{Op: OpViewCast, Dst: e.reg(v), Args: e.args(m.Operand(v, 0))}, nil

	case ir.KindFloatAsIntCast, ir.KindIntAsFloatCast:
		return Instr{Op: OpBitcast, Dst: e.reg(v), Args: e.args(m.Operand(v, 0))}, nil

	case ir.KindAlloca:
		space := e.g.ctx.MustLookup(m.TypeOf(v)).Space
		return Instr{Op: OpAlloca, Dst: e.reg(v), Aux: int32(space)}, nil

	case ir.KindLoad:
		return Instr{Op: OpLoad, Dst: e.reg(v), Args: e.args(m.Operand(v, 0))}, nil

	case ir.KindStore:
		return Instr{Op: OpStore, Dst: -1, Args: e.args(m.Operand(v, 0), m.Operand(v, 1))}, nil

	case ir.KindBuildStruct:
		return Instr{Op: OpPack, Dst: e.reg(v), Args: e.args(m.Operands(v)...)}, nil

	case ir.KindGetField:
		return Instr{Op: OpExtract, Dst: e.reg(v), Args: e.args(m.Operand(v, 0)),
			Aux: int32(m.FieldIndex(v)), Imm: uint64(m.FieldSpan(v))}, nil

	case ir.KindSetField:
		return Instr{Op: OpInsert, Dst: e.reg(v), Args: e.args(m.Operand(v, 0), m.Operand(v, 1)),
			Aux: int32(m.FieldIndex(v))}, nil

	case ir.KindNewView:
		return Instr{Op: OpNewView, Dst: e.reg(v), Args: e.args(m.Operand(v, 0), m.Operand(v, 1))}, nil

	case ir.KindSubView:
		return Instr{Op: OpSubView, Dst: e.reg(v), Args: e.args(m.Operands(v)...)}, nil

	case ir.KindViewLength:
		return Instr{Op: OpViewLen, Dst: e.reg(v), Args: e.args(m.Operand(v, 0))}, nil

	case ir.KindLoadElementAddress:
		return Instr{Op: OpElemAddr, Dst: e.reg(v), Args: e.args(m.Operand(v, 0), m.Operand(v, 1))}, nil

	case ir.KindLoadFieldAddress:
		return Instr{Op: OpFieldAddr, Dst: e.reg(v), Args: e.args(m.Operand(v, 0)),
			Aux: int32(m.FieldIndex(v))}, nil

	case ir.KindBarrier:
		return Instr{Op: OpBarrier, Dst: -1, Aux: int32(m.AuxKind(v))}, nil

	case ir.KindBroadcast:
		return Instr{Op: OpBroadcast, Dst: e.reg(v), Args: e.args(m.Operand(v, 0), m.Operand(v, 1))}, nil

	case ir.KindShuffle:
		return Instr{Op: OpShuffle, Dst: e.reg(v), Args: e.args(m.Operand(v, 0), m.Operand(v, 1)),
			Aux: int32(m.AuxKind(v))}, nil

	case ir.KindGridIndex:
		return Instr{Op: OpGridIdx, Dst: e.reg(v), Aux: int32(m.FieldIndex(v))}, nil
	case ir.KindGroupIndex:
		return Instr{Op: OpGroupIdx, Dst: e.reg(v), Aux: int32(m.FieldIndex(v))}, nil
	case ir.KindGridDim:
		return Instr{Op: OpGridDim, Dst: e.reg(v), Aux: int32(m.FieldIndex(v))}, nil
	case ir.KindGroupDim:
		return Instr{Op: OpGroupDim, Dst: e.reg(v), Aux: int32(m.FieldIndex(v))}, nil

	case ir.KindCall:
		dst := int32(-1)
		if m.TypeOf(v) != e.g.ctx.Void() {
			dst = e.reg(v)
		}
		return Instr{Op: OpCall, Dst: dst, Args: e.args(m.Operands(v)...), Sym: m.CalleeName(v)}, nil

	case ir.KindPhi:
		// Materialized as moves in the predecessors; the phi itself only
		// claims its register.
		e.reg(v)
		return Instr{}, nil
	}

	return Instr{}, diag.Unsupportedf(diag.UnsupValueKind, m.Point(v),
		"cpu backend cannot encode %s", m.KindOf(v))
}

// phiMoves assigns successor phi registers on the edge leaving b.
func (e *encoder) phiMoves(b *ir.BasicBlock, term ir.Value) []Instr {
	m := e.m
	var out []Instr
	for _, succ := range m.Targets(term) {
		predIdx := -1
		for i, p := range e.preds[succ.ID] {
			if p == b {
				predIdx = i
				break
			}
		}
		if predIdx < 0 {
			continue
		}
		for _, v := range succ.Values() {
			if m.KindOf(v) != ir.KindPhi {
				continue
			}
			ops := m.Operands(v)
			if predIdx >= len(ops) {
				continue
			}
			out = append(out, Instr{Op: OpMove, Dst: e.reg(v), Args: e.args(ops[predIdx])})
		}
	}
	return out
}

func (e *encoder) terminator(v ir.Value) (Instr, error) {
	m := e.m
	switch m.KindOf(v) {
	case ir.KindReturn:
		instr := Instr{Op: OpReturn, Dst: -1}
		if ops := m.Operands(v); len(ops) > 0 {
			instr.Args = e.args(ops[0])
		}
		return instr, nil

	case ir.KindBranch:
		return Instr{Op: OpJump, Dst: -1, Targets: blockIDs(m.Targets(v))}, nil

	case ir.KindIfBranch:
		return Instr{Op: OpBranch, Dst: -1, Args: e.args(m.Operand(v, 0)),
			Targets: blockIDs(m.Targets(v))}, nil

	case ir.KindSwitchBranch:
		// Selector indexes Targets directly; out-of-range selectors take
		// the first target.
		return Instr{Op: OpSwitch, Dst: -1, Args: e.args(m.Operand(v, 0)),
			Targets: blockIDs(m.Targets(v))}, nil
	}
	return Instr{}, diag.Invariantf(diag.InvTerminatorMissing, m.Point(v),
		"%s is not a terminator", m.KindOf(v))
}

func blockIDs(bs []*ir.BasicBlock) []int32 {
	out := make([]int32, len(bs))
	for i, b := range bs {
		out[i] = int32(b.ID)
	}
	return out
}

// Decode parses a msgpack Program, rejecting unknown schema versions.
func Decode(data []byte) (*Program, error) {
	var p Program
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Schema != ProgramSchema {
		return nil, diag.Unsupportedf(diag.UnsupType, source.None,
			"cpu program schema %d, this build reads %d", p.Schema, ProgramSchema)
	}
	return &p, nil
}
