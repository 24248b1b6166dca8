// Package clc renders methods as OpenCL-C-like source. Views stay
// first-class: every view value is a {pointer, length} variable pair, so the
// generator does not require view lowering to run first.
package clc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/76creates/ILGPU/internal/backend"
	"github.com/76creates/ILGPU/internal/diag"
	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/source"
	"github.com/76creates/ILGPU/internal/target"
	"github.com/76creates/ILGPU/internal/types"
)

// Generator emits OpenCL-C-like source, one translation unit per method.
type Generator struct {
	ctx  *types.Context
	desc target.Description
}

// New creates a generator for one target description.
func New(ctx *types.Context, desc target.Description) *Generator {
	return &Generator{ctx: ctx, desc: desc}
}

// Target returns the target name.
func (g *Generator) Target() string {
	return g.desc.Name
}

// GenerateMethod renders one method. External and intrinsic methods produce
// no output.
func (g *Generator) GenerateMethod(m *ir.Method) ([]byte, error) {
	if backend.Skip(m) {
		return nil, nil
	}
	fe := &funcEmitter{
		g:       g,
		m:       m,
		ctx:     g.ctx,
		alloc:   backend.NewViewAllocator(m),
		typeIDs: make(map[types.TypeID]string, 8),
		preds:   backend.Predecessors(m),
	}
	if err := fe.emit(); err != nil {
		return nil, err
	}
	var out strings.Builder
	out.WriteString(fe.decls.String())
	out.WriteString(fe.body.String())
	return []byte(out.String()), nil
}

type funcEmitter struct {
	g     *Generator
	m     *ir.Method
	ctx   *types.Context
	alloc *backend.ViewAllocator
	preds map[ir.BlockID][]*ir.BasicBlock

	decls   strings.Builder // typedefs and string constants
	body    strings.Builder
	typeIDs map[types.TypeID]string
	typeSeq int
	strSeq  int
}

func (fe *funcEmitter) emit() error {
	m := fe.m

	params := fe.alloc.BindParams()
	var sig []string
	for i, p := range m.Params() {
		t := m.TypeOf(p)
		if fe.ctx.Kind(t) == types.KindView {
			vv := fe.alloc.View(p)
			elem, err := fe.pointerName(t)
			if err != nil {
				return err
			}
			sig = append(sig, fmt.Sprintf("%s %s", elem, vv.Ptr), fmt.Sprintf("int %s", vv.Len))
			continue
		}
		tn, err := fe.typeName(t)
		if err != nil {
			return err
		}
		sig = append(sig, fmt.Sprintf("%s %s", tn, params[i]))
	}

	ret, err := fe.typeName(m.ReturnType())
	if err != nil {
		return err
	}
	qual := ""
	if m.ReturnType() == fe.ctx.Void() {
		qual = "__kernel "
	}
	fmt.Fprintf(&fe.body, "%s%s %s(%s)\n{\n", qual, ret, m.Name, strings.Join(sig, ", "))

	if err := fe.declarePhis(); err != nil {
		return err
	}
	for _, b := range m.Blocks() {
		fmt.Fprintf(&fe.body, "bb%d: {\n", b.ID)
		for _, v := range b.Values() {
			if err := fe.emitValue(b, v); err != nil {
				return err
			}
		}
		fmt.Fprintf(&fe.body, "}\n")
	}
	fe.body.WriteString("}\n")
	return nil
}

// declarePhis hoists one variable per phi to function scope; predecessors
// assign it before their terminator.
func (fe *funcEmitter) declarePhis() error {
	for _, b := range fe.m.Blocks() {
		for _, v := range b.Values() {
			if fe.m.KindOf(v) != ir.KindPhi {
				continue
			}
			t := fe.m.TypeOf(v)
			if fe.ctx.Kind(t) == types.KindView {
				vv := fe.alloc.View(v)
				pn, err := fe.pointerName(t)
				if err != nil {
					return err
				}
				fmt.Fprintf(&fe.body, "%s %s; int %s;\n", pn, vv.Ptr, vv.Len)
				continue
			}
			tn, err := fe.typeName(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(&fe.body, "%s %s;\n", tn, fe.alloc.Name(v))
		}
	}
	return nil
}

// resolvePhis assigns each successor's phi variables before leaving block b.
func (fe *funcEmitter) resolvePhis(b *ir.BasicBlock, term ir.Value) {
	m := fe.m
	for _, succ := range m.Targets(term) {
		predIdx := -1
		for i, p := range fe.preds[succ.ID] {
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
			in := ops[predIdx]
			if fe.ctx.Kind(m.TypeOf(v)) == types.KindView {
				dst, src := fe.alloc.View(v), fe.alloc.View(in)
				fmt.Fprintf(&fe.body, "%s = %s; %s = %s;\n", dst.Ptr, src.Ptr, dst.Len, src.Len)
			} else {
				fmt.Fprintf(&fe.body, "%s = %s;\n", fe.alloc.Name(v), fe.alloc.Name(in))
			}
		}
	}
}

func (fe *funcEmitter) emitValue(b *ir.BasicBlock, v ir.Value) error {
	m := fe.m
	if m.KindOf(v).IsTerminator() {
		fe.resolvePhis(b, v)
		return fe.emitTerminator(v)
	}

	switch m.KindOf(v) {
	case ir.KindConstant:
		t := m.TypeOf(v)
		text, err := fe.constText(t, m.ConstantBits(v))
		if err != nil {
			return err
		}
		return fe.assign(v, text)

	case ir.KindStringConst:
		name := fmt.Sprintf("s%d", fe.strSeq)
		fe.strSeq++
		fmt.Fprintf(&fe.decls, "__constant char %s[] = %s;\n", name, strconv.Quote(m.StringValue(v)))
		return fe.bindAlias(v, name)

	case ir.KindNull:
		return fe.emitNull(v)

	case ir.KindUndefined:
		return fe.declareOnly(v)

	case ir.KindUnaryArith:
		return fe.emitUnary(v)

	case ir.KindBinaryArith:
		return fe.emitBinary(v)

	case ir.KindCompare:
		op := cmpText[ir.CompareOp(m.OpCode(v))]
		return fe.assign(v, fmt.Sprintf("(%s %s %s)",
			fe.alloc.Name(m.Operand(v, 0)), op, fe.alloc.Name(m.Operand(v, 1))))

	case ir.KindSelect:
		return fe.assign(v, fmt.Sprintf("(%s ? %s : %s)",
			fe.alloc.Name(m.Operand(v, 0)),
			fe.alloc.Name(m.Operand(v, 1)),
			fe.alloc.Name(m.Operand(v, 2))))

	case ir.KindConvert:
		tn, err := fe.typeName(m.TypeOf(v))
		if err != nil {
			return err
		}
		return fe.assign(v, fmt.Sprintf("(%s)%s", tn, fe.alloc.Name(m.Operand(v, 0))))

	case ir.KindPointerCast, ir.KindAddressSpaceCast:
		t := m.TypeOf(v)
		if fe.ctx.Kind(t) == types.KindView {
			return fe.emitViewRetype(v)
		}
		pn, err := fe.pointerName(t)
		if err != nil {
			return err
		}
		return fe.assign(v, fmt.Sprintf("(%s)%s", pn, fe.alloc.Name(m.Operand(v, 0))))

	case ir.KindViewCast:
		return fe.emitViewRetype(v)

	case ir.KindFloatAsIntCast:
		fn := "as_int"
		if fe.ctx.IsPrimitive(m.TypeOf(v), types.Int64) {
			fn = "as_long"
		}
		return fe.assign(v, fmt.Sprintf("%s(%s)", fn, fe.alloc.Name(m.Operand(v, 0))))

	case ir.KindIntAsFloatCast:
		fn := "as_float"
		if fe.ctx.IsPrimitive(m.TypeOf(v), types.Float64) {
			fn = "as_double"
		}
		return fe.assign(v, fmt.Sprintf("%s(%s)", fn, fe.alloc.Name(m.Operand(v, 0))))

	case ir.KindAlloca:
		return fe.emitAlloca(v)

	case ir.KindLoad:
		return fe.assign(v, fmt.Sprintf("*%s", fe.alloc.Name(m.Operand(v, 0))))

	case ir.KindStore:
		fmt.Fprintf(&fe.body, "*%s = %s;\n",
			fe.alloc.Name(m.Operand(v, 0)), fe.alloc.Name(m.Operand(v, 1)))
		return nil

	case ir.KindBuildStruct:
		return fe.emitBuildStruct(v)

	case ir.KindGetField:
		return fe.emitGetField(v)

	case ir.KindSetField:
		return fe.emitSetField(v)

	case ir.KindNewView:
		vv := fe.alloc.View(v)
		pn, err := fe.pointerName(m.TypeOf(v))
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.body, "%s %s = %s; int %s = %s;\n",
			pn, vv.Ptr, fe.alloc.Name(m.Operand(v, 0)),
			vv.Len, fe.alloc.Name(m.Operand(v, 1)))
		return nil

	case ir.KindSubView:
		src := fe.alloc.View(m.Operand(v, 0))
		vv := fe.alloc.View(v)
		pn, err := fe.pointerName(m.TypeOf(v))
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.body, "%s %s = %s + %s; int %s = %s;\n",
			pn, vv.Ptr, src.Ptr, fe.alloc.Name(m.Operand(v, 1)),
			vv.Len, fe.alloc.Name(m.Operand(v, 2)))
		return nil

	case ir.KindViewLength:
		return fe.assign(v, fe.alloc.View(m.Operand(v, 0)).Len)

	case ir.KindLoadElementAddress:
		base := m.Operand(v, 0)
		expr := fe.alloc.Name(base)
		if fe.ctx.Kind(m.TypeOf(base)) == types.KindView {
			expr = fe.alloc.View(base).Ptr
		}
		return fe.assign(v, fmt.Sprintf("(%s + %s)", expr, fe.alloc.Name(m.Operand(v, 1))))

	case ir.KindLoadFieldAddress:
		return fe.emitFieldAddress(v)

	case ir.KindBarrier:
		fence := "CLK_LOCAL_MEM_FENCE"
		if ir.BarrierKind(m.AuxKind(v)) == ir.BarrierDevice {
			fence = "CLK_GLOBAL_MEM_FENCE"
		}
		fmt.Fprintf(&fe.body, "barrier(%s);\n", fence)
		return nil

	case ir.KindBroadcast:
		return fe.assign(v, fmt.Sprintf("sub_group_broadcast(%s, %s)",
			fe.alloc.Name(m.Operand(v, 0)), fe.alloc.Name(m.Operand(v, 1))))

	case ir.KindShuffle:
		fn := shuffleFns[ir.ShuffleKind(m.AuxKind(v))]
		return fe.assign(v, fmt.Sprintf("%s(%s, %s)",
			fn, fe.alloc.Name(m.Operand(v, 0)), fe.alloc.Name(m.Operand(v, 1))))

	case ir.KindGridIndex:
		return fe.assign(v, fmt.Sprintf("(int)get_group_id(%d)", m.FieldIndex(v)))
	case ir.KindGroupIndex:
		return fe.assign(v, fmt.Sprintf("(int)get_local_id(%d)", m.FieldIndex(v)))
	case ir.KindGridDim:
		return fe.assign(v, fmt.Sprintf("(int)get_num_groups(%d)", m.FieldIndex(v)))
	case ir.KindGroupDim:
		return fe.assign(v, fmt.Sprintf("(int)get_local_size(%d)", m.FieldIndex(v)))

	case ir.KindCall:
		return fe.emitCall(v)

	case ir.KindPhi:
		// Declared at function scope; assigned by predecessors.
		return nil
	}

	return diag.Unsupportedf(diag.UnsupValueKind, m.Point(v),
		"opencl backend cannot emit %s", m.KindOf(v))
}

func (fe *funcEmitter) emitTerminator(v ir.Value) error {
	m := fe.m
	switch m.KindOf(v) {
	case ir.KindReturn:
		if len(m.Operands(v)) == 0 {
			fe.body.WriteString("return;\n")
			return nil
		}
		fmt.Fprintf(&fe.body, "return %s;\n", fe.alloc.Name(m.Operand(v, 0)))
		return nil

	case ir.KindBranch:
		fmt.Fprintf(&fe.body, "goto bb%d;\n", m.Targets(v)[0].ID)
		return nil

	case ir.KindIfBranch:
		tg := m.Targets(v)
		fmt.Fprintf(&fe.body, "if (%s) goto bb%d; else goto bb%d;\n",
			fe.alloc.Name(m.Operand(v, 0)), tg[0].ID, tg[1].ID)
		return nil

	case ir.KindSwitchBranch:
		tg := m.Targets(v)
		fmt.Fprintf(&fe.body, "switch (%s) {\n", fe.alloc.Name(m.Operand(v, 0)))
		for i, t := range tg {
			fmt.Fprintf(&fe.body, "case %d: goto bb%d;\n", i, t.ID)
		}
		// Out-of-range selectors resolve to the first target.
		fmt.Fprintf(&fe.body, "default: goto bb%d;\n}\n", tg[0].ID)
		return nil
	}
	return diag.Invariantf(diag.InvTerminatorMissing, m.Point(v),
		"%s is not a terminator", m.KindOf(v))
}

// --- aggregate helpers ---------------------------------------------------

func (fe *funcEmitter) emitBuildStruct(v ir.Value) error {
	m := fe.m
	t := m.TypeOf(v)
	tn, err := fe.typeName(t)
	if err != nil {
		return err
	}
	var inits []string
	for _, op := range m.Operands(v) {
		if fe.ctx.Kind(m.TypeOf(op)) == types.KindView {
			vv := fe.alloc.View(op)
			inits = append(inits, vv.Ptr, vv.Len)
			continue
		}
		inits = append(inits, fe.alloc.Name(op))
	}
	return fe.assign(v, fmt.Sprintf("(%s){%s}", tn, strings.Join(inits, ", ")))
}

func (fe *funcEmitter) emitGetField(v ir.Value) error {
	m := fe.m
	src := fe.alloc.Name(m.Operand(v, 0))
	owner := m.TypeOf(m.Operand(v, 0))
	idx, span := m.FieldIndex(v), m.FieldSpan(v)

	if span == 1 {
		ft := fe.ctx.Fields(owner)[idx]
		if fe.ctx.Kind(ft) == types.KindView {
			vv := fe.alloc.View(v)
			pn, err := fe.pointerName(ft)
			if err != nil {
				return err
			}
			fmt.Fprintf(&fe.body, "%s %s = %s.f%d_ptr; int %s = %s.f%d_len;\n",
				pn, vv.Ptr, src, idx, vv.Len, src, idx)
			return nil
		}
		return fe.assign(v, fmt.Sprintf("%s.f%d", src, idx))
	}

	// Span reads re-materialize the sub-structure from the member slice.
	sub := m.TypeOf(v)
	tn, err := fe.typeName(sub)
	if err != nil {
		return err
	}
	var inits []string
	for i := idx; i < idx+span; i++ {
		if fe.ctx.Kind(fe.ctx.Fields(owner)[i]) == types.KindView {
			inits = append(inits, fmt.Sprintf("%s.f%d_ptr", src, i), fmt.Sprintf("%s.f%d_len", src, i))
			continue
		}
		inits = append(inits, fmt.Sprintf("%s.f%d", src, i))
	}
	return fe.assign(v, fmt.Sprintf("(%s){%s}", tn, strings.Join(inits, ", ")))
}

func (fe *funcEmitter) emitSetField(v ir.Value) error {
	m := fe.m
	owner := m.TypeOf(v)
	tn, err := fe.typeName(owner)
	if err != nil {
		return err
	}
	name := fe.alloc.Name(v)
	src := fe.alloc.Name(m.Operand(v, 0))
	idx := m.FieldIndex(v)
	ft := fe.ctx.Fields(owner)[idx]

	fmt.Fprintf(&fe.body, "%s %s = %s;\n", tn, name, src)
	if fe.ctx.Kind(ft) == types.KindView {
		vv := fe.alloc.View(m.Operand(v, 1))
		fmt.Fprintf(&fe.body, "%s.f%d_ptr = %s; %s.f%d_len = %s;\n",
			name, idx, vv.Ptr, name, idx, vv.Len)
		return nil
	}
	fmt.Fprintf(&fe.body, "%s.f%d = %s;\n", name, idx, fe.alloc.Name(m.Operand(v, 1)))
	return nil
}

func (fe *funcEmitter) emitFieldAddress(v ir.Value) error {
	m := fe.m
	pt := fe.ctx.MustLookup(m.TypeOf(m.Operand(v, 0)))
	idx := m.FieldIndex(v)
	if fe.ctx.Kind(fe.ctx.Fields(pt.Elem)[idx]) == types.KindView {
		return diag.Unsupportedf(diag.UnsupViewInBackend, m.Point(v),
			"address of view-typed field %d", idx)
	}
	return fe.assign(v, fmt.Sprintf("&%s->f%d", fe.alloc.Name(m.Operand(v, 0)), idx))
}

func (fe *funcEmitter) emitAlloca(v ir.Value) error {
	m := fe.m
	pt := fe.ctx.MustLookup(m.TypeOf(v))
	en, err := fe.typeName(pt.Elem)
	if err != nil {
		return err
	}
	pn, err := fe.pointerName(m.TypeOf(v))
	if err != nil {
		return err
	}
	name := fe.alloc.Name(v)
	qual := ""
	if pt.Space == types.Shared {
		qual = "__local "
	}
	fmt.Fprintf(&fe.body, "%s%s %s_buf; %s %s = &%s_buf;\n", qual, en, name, pn, name, name)
	return nil
}

func (fe *funcEmitter) emitNull(v ir.Value) error {
	m := fe.m
	t := m.TypeOf(v)
	switch fe.ctx.Kind(t) {
	case types.KindView:
		vv := fe.alloc.View(v)
		pn, err := fe.pointerName(t)
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.body, "%s %s = 0; int %s = 0;\n", pn, vv.Ptr, vv.Len)
		return nil
	case types.KindPointer:
		pn, err := fe.pointerName(t)
		if err != nil {
			return err
		}
		return fe.assign(v, fmt.Sprintf("(%s)0", pn))
	default:
		tn, err := fe.typeName(t)
		if err != nil {
			return err
		}
		return fe.assign(v, fmt.Sprintf("(%s){0}", tn))
	}
}

func (fe *funcEmitter) emitViewRetype(v ir.Value) error {
	m := fe.m
	src := fe.alloc.View(m.Operand(v, 0))
	vv := fe.alloc.View(v)
	pn, err := fe.pointerName(m.TypeOf(v))
	if err != nil {
		return err
	}
	fmt.Fprintf(&fe.body, "%s %s = (%s)%s; int %s = %s;\n",
		pn, vv.Ptr, pn, src.Ptr, vv.Len, src.Len)
	return nil
}

func (fe *funcEmitter) emitUnary(v ir.Value) error {
	m := fe.m
	x := fe.alloc.Name(m.Operand(v, 0))
	t := fe.ctx.MustLookup(m.TypeOf(v))
	switch ir.UnaryOp(m.OpCode(v)) {
	case ir.UnaryNeg:
		return fe.assign(v, fmt.Sprintf("(-%s)", x))
	case ir.UnaryNot:
		if t.Kind == types.KindPrimitive && t.Basic == types.Bool {
			return fe.assign(v, fmt.Sprintf("(!%s)", x))
		}
		return fe.assign(v, fmt.Sprintf("(~%s)", x))
	case ir.UnaryAbs:
		if t.Kind == types.KindPrimitive && t.Basic.IsFloat() {
			return fe.assign(v, fmt.Sprintf("fabs(%s)", x))
		}
		return fe.assign(v, fmt.Sprintf("abs(%s)", x))
	}
	return diag.Unsupportedf(diag.UnsupValueKind, m.Point(v),
		"unary operator %d", m.OpCode(v))
}

func (fe *funcEmitter) emitBinary(v ir.Value) error {
	m := fe.m
	lhs := fe.alloc.Name(m.Operand(v, 0))
	rhs := fe.alloc.Name(m.Operand(v, 1))
	op := ir.BinaryOp(m.OpCode(v))
	t := fe.ctx.MustLookup(m.TypeOf(v))
	isFloat := t.Kind == types.KindPrimitive && t.Basic.IsFloat()

	switch op {
	case ir.BinMin:
		if isFloat {
			return fe.assign(v, fmt.Sprintf("fmin(%s, %s)", lhs, rhs))
		}
		return fe.assign(v, fmt.Sprintf("min(%s, %s)", lhs, rhs))
	case ir.BinMax:
		if isFloat {
			return fe.assign(v, fmt.Sprintf("fmax(%s, %s)", lhs, rhs))
		}
		return fe.assign(v, fmt.Sprintf("max(%s, %s)", lhs, rhs))
	}
	infix, ok := binText[op]
	if !ok {
		return diag.Unsupportedf(diag.UnsupValueKind, m.Point(v),
			"binary operator %s", op)
	}
	return fe.assign(v, fmt.Sprintf("(%s %s %s)", lhs, infix, rhs))
}

func (fe *funcEmitter) emitCall(v ir.Value) error {
	m := fe.m
	var args []string
	for _, op := range m.Operands(v) {
		if fe.ctx.Kind(m.TypeOf(op)) == types.KindView {
			vv := fe.alloc.View(op)
			args = append(args, vv.Ptr, vv.Len)
			continue
		}
		args = append(args, fe.alloc.Name(op))
	}
	callText := fmt.Sprintf("%s(%s)", m.CalleeName(v), strings.Join(args, ", "))
	if m.TypeOf(v) == fe.ctx.Void() {
		fmt.Fprintf(&fe.body, "%s;\n", callText)
		return nil
	}
	return fe.assign(v, callText)
}

// --- naming and formatting ------------------------------------------------

// assign declares the value's variable initialized with expr.
func (fe *funcEmitter) assign(v ir.Value, expr string) error {
	tn, err := fe.typeName(fe.m.TypeOf(v))
	if err != nil {
		return err
	}
	fmt.Fprintf(&fe.body, "%s %s = %s;\n", tn, fe.alloc.Name(v), expr)
	return nil
}

func (fe *funcEmitter) declareOnly(v ir.Value) error {
	tn, err := fe.typeName(fe.m.TypeOf(v))
	if err != nil {
		return err
	}
	fmt.Fprintf(&fe.body, "%s %s;\n", tn, fe.alloc.Name(v))
	return nil
}

// bindAlias points the value at existing storage without declaring a new
// variable.
func (fe *funcEmitter) bindAlias(v ir.Value, name string) error {
	pn := "__constant char*"
	fmt.Fprintf(&fe.body, "%s %s = %s;\n", pn, fe.alloc.Name(v), name)
	return nil
}

// typeName renders the C spelling of a type, registering struct and array
// typedefs on first use.
func (fe *funcEmitter) typeName(t types.TypeID) (string, error) {
	d := fe.ctx.MustLookup(t)
	switch d.Kind {
	case types.KindVoid:
		return "void", nil
	case types.KindPrimitive:
		n, ok := primNames[d.Basic]
		if !ok {
			return "", diag.Unsupportedf(diag.UnsupType, source.None,
				"opencl backend cannot represent %s", fe.ctx.String(t))
		}
		return n, nil
	case types.KindPointer:
		return fe.pointerName(t)
	case types.KindStructure, types.KindArray:
		return fe.registerComposite(t)
	case types.KindView:
		return "", diag.Unsupportedf(diag.UnsupViewInBackend, source.None,
			"view %s has no scalar spelling", fe.ctx.String(t))
	}
	return "", diag.Unsupportedf(diag.UnsupType, source.None,
		"opencl backend cannot represent %s", fe.ctx.String(t))
}

// pointerName renders the qualified element-pointer spelling of a pointer or
// view type.
func (fe *funcEmitter) pointerName(t types.TypeID) (string, error) {
	d := fe.ctx.MustLookup(t)
	en, err := fe.typeName(d.Elem)
	if err != nil {
		return "", err
	}
	if q := spaceQual[d.Space]; q != "" {
		return q + " " + en + "*", nil
	}
	return en + "*", nil
}

// registerComposite assigns a typedef name to a structure or array and emits
// the typedef once. View fields flatten into pointer and length members.
func (fe *funcEmitter) registerComposite(t types.TypeID) (string, error) {
	if n, ok := fe.typeIDs[t]; ok {
		return n, nil
	}
	d := fe.ctx.MustLookup(t)
	name := fmt.Sprintf("st%d", fe.typeSeq)
	if d.Kind == types.KindArray {
		name = fmt.Sprintf("at%d", fe.typeSeq)
	}
	fe.typeSeq++
	fe.typeIDs[t] = name

	var members strings.Builder
	if d.Kind == types.KindArray {
		en, err := fe.typeName(d.Elem)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&members, "\t%s e[%d];\n", en, d.Dims)
	} else {
		for i, f := range fe.ctx.Fields(t) {
			if fe.ctx.Kind(f) == types.KindView {
				pn, err := fe.pointerName(f)
				if err != nil {
					return "", err
				}
				fmt.Fprintf(&members, "\t%s f%d_ptr;\n\tint f%d_len;\n", pn, i, i)
				continue
			}
			fn, err := fe.typeName(f)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&members, "\t%s f%d;\n", fn, i)
		}
		// Empty structs are invalid C; pad to the one-byte layout.
		if len(fe.ctx.Fields(t)) == 0 {
			members.WriteString("\tchar pad;\n")
		}
	}
	fmt.Fprintf(&fe.decls, "typedef struct {\n%s} %s;\n", members.String(), name)
	return name, nil
}

func (fe *funcEmitter) constText(t types.TypeID, bits uint64) (string, error) {
	d := fe.ctx.MustLookup(t)
	switch d.Basic {
	case types.Bool:
		if bits != 0 {
			return "1", nil
		}
		return "0", nil
	case types.Int8:
		return strconv.FormatInt(int64(int8(bits)), 10), nil
	case types.Int16:
		return strconv.FormatInt(int64(int16(bits)), 10), nil
	case types.Int32:
		return strconv.FormatInt(int64(int32(bits)), 10), nil
	case types.Int64:
		return strconv.FormatInt(int64(bits), 10) + "L", nil
	case types.UInt8, types.UInt16, types.UInt32:
		return strconv.FormatUint(bits, 10) + "u", nil
	case types.UInt64:
		return strconv.FormatUint(bits, 10) + "uL", nil
	case types.Float32:
		f := math.Float32frombits(uint32(bits))
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Sprintf("as_float(0x%Xu)", uint32(bits)), nil
		}
		return strconv.FormatFloat(float64(f), 'g', -1, 32) + "f", nil
	case types.Float64:
		f := math.Float64frombits(bits)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprintf("as_double(0x%XuL)", bits), nil
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	return "", diag.Unsupportedf(diag.UnsupConstKind, source.None,
		"constant of %s", fe.ctx.String(t))
}

var primNames = map[types.BasicKind]string{
	types.Bool:    "bool",
	types.Int8:    "char",
	types.Int16:   "short",
	types.Int32:   "int",
	types.Int64:   "long",
	types.UInt8:   "uchar",
	types.UInt16:  "ushort",
	types.UInt32:  "uint",
	types.UInt64:  "ulong",
	types.Float32: "float",
	types.Float64: "double",
}

var spaceQual = map[types.AddressSpace]string{
	types.Generic:  "",
	types.Global:   "__global",
	types.Shared:   "__local",
	types.Local:    "__private",
	types.Constant: "__constant",
}

var binText = map[ir.BinaryOp]string{
	ir.BinAdd: "+", ir.BinSub: "-", ir.BinMul: "*", ir.BinDiv: "/",
	ir.BinRem: "%", ir.BinAnd: "&", ir.BinOr: "|", ir.BinXor: "^",
	ir.BinShl: "<<", ir.BinShr: ">>",
}

var cmpText = map[ir.CompareOp]string{
	ir.CmpEq: "==", ir.CmpNe: "!=", ir.CmpLt: "<",
	ir.CmpLe: "<=", ir.CmpGt: ">", ir.CmpGe: ">=",
}

var shuffleFns = map[ir.ShuffleKind]string{
	ir.ShuffleIdx:  "sub_group_shuffle",
	ir.ShuffleUp:   "sub_group_shuffle_up",
	ir.ShuffleDown: "sub_group_shuffle_down",
	ir.ShuffleXor:  "sub_group_shuffle_xor",
}
