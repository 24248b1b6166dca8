// Package ptx renders methods as PTX-like device text. Structured values are
// held as flattened per-slot virtual registers, classed by width; views and
// arrays must be lowered away before emission.
package ptx

import (
	"fmt"
	"strings"

	"github.com/76creates/ILGPU/internal/abi"
	"github.com/76creates/ILGPU/internal/backend"
	"github.com/76creates/ILGPU/internal/diag"
	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/source"
	"github.com/76creates/ILGPU/internal/target"
	"github.com/76creates/ILGPU/internal/types"
)

// Generator emits PTX-like text, one entry or device function per method.
type Generator struct {
	ctx  *types.Context
	desc target.Description
	res  *abi.Resolver
}

// New creates a generator; the resolver supplies parameter and field offsets.
func New(ctx *types.Context, desc target.Description, res *abi.Resolver) *Generator {
	return &Generator{ctx: ctx, desc: desc, res: res}
}

// Target returns the target name.
func (g *Generator) Target() string {
	return g.desc.Name
}

// regClass indexes the virtual register files.
type regClass uint8

const (
	classPred regClass = iota // %p   bool and compare results
	classB32                  // %r   integers up to 32 bit
	classB64                  // %rd  64-bit integers and pointers
	classF32                  // %f
	classF64                  // %fd
	numClasses
)

var classPrefix = [numClasses]string{"%p", "%r", "%rd", "%f", "%fd"}
var classDecl = [numClasses]string{".pred", ".b32", ".b64", ".f32", ".f64"}

// GenerateMethod renders one method. External and intrinsic methods produce
// no output.
func (g *Generator) GenerateMethod(m *ir.Method) ([]byte, error) {
	if backend.Skip(m) {
		return nil, nil
	}
	fe := &funcEmitter{
		g:     g,
		m:     m,
		ctx:   g.ctx,
		res:   g.res,
		regs:  make(map[ir.Value][]string, 64),
		preds: backend.Predecessors(m),
	}
	if err := fe.checkRepresentable(); err != nil {
		return nil, err
	}
	if err := fe.emit(); err != nil {
		return nil, err
	}
	var out strings.Builder
	out.WriteString(fe.head.String())
	out.WriteString(fe.body.String())
	return []byte(out.String()), nil
}

type funcEmitter struct {
	g   *Generator
	m   *ir.Method
	ctx *types.Context
	res *abi.Resolver

	head    strings.Builder // directive, params, register declarations
	body    strings.Builder
	regs    map[ir.Value][]string
	counts  [numClasses]int
	preds   map[ir.BlockID][]*ir.BasicBlock
	depotID int
}

// checkRepresentable rejects types this backend cannot hold in registers.
// Views need the view-lowering pass; arrays need the array-lowering pass.
func (fe *funcEmitter) checkRepresentable() error {
	check := func(t types.TypeID, p ir.Value) error {
		if fe.ctx.ContainsKind(t, types.KindView) {
			return diag.Unsupportedf(diag.UnsupViewInBackend, fe.m.Point(p),
				"ptx backend requires view lowering, got %s", fe.ctx.String(t))
		}
		if fe.ctx.ContainsKind(t, types.KindArray) {
			return diag.Unsupportedf(diag.UnsupType, fe.m.Point(p),
				"ptx backend requires array lowering, got %s", fe.ctx.String(t))
		}
		return nil
	}
	for _, p := range fe.m.Params() {
		if err := check(fe.m.TypeOf(p), p); err != nil {
			return err
		}
	}
	for _, b := range fe.m.Blocks() {
		for _, v := range b.Values() {
			if err := check(fe.m.TypeOf(v), v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fe *funcEmitter) emit() error {
	m := fe.m

	// Parameter declarations and loads resolve through the same slot walk,
	// keeping the header consistent with the body.
	var paramDecls []string
	var paramLoads strings.Builder
	for i, p := range m.Params() {
		t := m.TypeOf(p)
		size, err := fe.res.SizeOf(t)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("param%d", i)
		paramDecls = append(paramDecls, fmt.Sprintf("\t.param .b8 %s[%d]", name, size))
		regs, err := fe.bind(p)
		if err != nil {
			return err
		}
		offsets, suffixes, err := fe.slotLayout(t)
		if err != nil {
			return err
		}
		for j, r := range regs {
			fmt.Fprintf(&paramLoads, "\tld.param.%s %s, [%s+%d];\n",
				suffixes[j], r, name, offsets[j])
		}
	}

	paramList := "()"
	if len(paramDecls) > 0 {
		paramList = "(\n" + strings.Join(paramDecls, ",\n") + "\n)"
	}
	if m.ReturnType() == fe.ctx.Void() {
		fmt.Fprintf(&fe.head, ".visible .entry %s%s\n{\n", m.Name, paramList)
	} else {
		retSize, err := fe.res.SizeOf(m.ReturnType())
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.head, ".visible .func (.param .b8 retval[%d]) %s%s\n{\n",
			retSize, m.Name, paramList)
	}

	fe.body.WriteString(paramLoads.String())
	for _, b := range m.Blocks() {
		fmt.Fprintf(&fe.body, "bb%d:\n", b.ID)
		for _, v := range b.Values() {
			if err := fe.emitValue(b, v); err != nil {
				return err
			}
		}
	}
	fe.body.WriteString("}\n")

	// Register files sized after the fact, once every value is bound.
	for c := regClass(0); c < numClasses; c++ {
		if fe.counts[c] > 0 {
			fmt.Fprintf(&fe.head, "\t.reg %s %s<%d>;\n", classDecl[c], classPrefix[c], fe.counts[c]+1)
		}
	}
	return nil
}

// --- register binding ----------------------------------------------------

// slotClasses flattens a type into per-scalar register classes.
func (fe *funcEmitter) slotClasses(t types.TypeID) ([]regClass, error) {
	d := fe.ctx.MustLookup(t)
	switch d.Kind {
	case types.KindVoid:
		return nil, nil
	case types.KindPrimitive:
		switch {
		case d.Basic == types.Bool:
			return []regClass{classPred}, nil
		case d.Basic == types.Float32:
			return []regClass{classF32}, nil
		case d.Basic == types.Float64:
			return []regClass{classF64}, nil
		case d.Basic.IsInteger() && d.Basic.Bits() <= 32:
			return []regClass{classB32}, nil
		case d.Basic.IsInteger():
			return []regClass{classB64}, nil
		}
	case types.KindPointer:
		if fe.g.desc.PtrSize == 8 {
			return []regClass{classB64}, nil
		}
		return []regClass{classB32}, nil
	case types.KindStructure:
		var out []regClass
		for _, f := range fe.ctx.Fields(t) {
			sub, err := fe.slotClasses(f)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	}
	return nil, diag.Unsupportedf(diag.UnsupType, source.None,
		"ptx backend cannot hold %s in registers", fe.ctx.String(t))
}

// slotLayout returns per-slot byte offsets and memory operation suffixes for
// a type, used by parameter and aggregate memory traffic.
func (fe *funcEmitter) slotLayout(t types.TypeID) ([]int, []string, error) {
	d := fe.ctx.MustLookup(t)
	switch d.Kind {
	case types.KindPrimitive, types.KindPointer:
		sfx, err := fe.memSuffix(t)
		if err != nil {
			return nil, nil, err
		}
		return []int{0}, []string{sfx}, nil
	case types.KindStructure:
		var offs []int
		var sfxs []string
		for i, f := range fe.ctx.Fields(t) {
			base, err := fe.res.FieldOffset(t, i)
			if err != nil {
				return nil, nil, err
			}
			subOffs, subSfxs, err := fe.slotLayout(f)
			if err != nil {
				return nil, nil, err
			}
			for j := range subOffs {
				offs = append(offs, base+subOffs[j])
				sfxs = append(sfxs, subSfxs[j])
			}
		}
		return offs, sfxs, nil
	}
	return nil, nil, diag.Unsupportedf(diag.UnsupType, source.None,
		"ptx backend has no memory layout for %s", fe.ctx.String(t))
}

// bind allocates registers for a value's slots, or returns the existing
// binding.
func (fe *funcEmitter) bind(v ir.Value) ([]string, error) {
	if regs, ok := fe.regs[v]; ok {
		return regs, nil
	}
	classes, err := fe.slotClasses(fe.m.TypeOf(v))
	if err != nil {
		return nil, err
	}
	regs := make([]string, len(classes))
	for i, c := range classes {
		fe.counts[c]++
		regs[i] = fmt.Sprintf("%s%d", classPrefix[c], fe.counts[c])
	}
	fe.regs[v] = regs
	return regs, nil
}

// reg returns the single register of a scalar value.
func (fe *funcEmitter) reg(v ir.Value) (string, error) {
	regs, err := fe.bind(v)
	if err != nil {
		return "", err
	}
	if len(regs) != 1 {
		return "", diag.Invariantf(diag.InvOperandType, fe.m.Point(v),
			"expected scalar register, got %d slots", len(regs))
	}
	return regs[0], nil
}

// --- instruction suffixes --------------------------------------------------

// arithSuffix is the type suffix of arithmetic instructions.
func (fe *funcEmitter) arithSuffix(t types.TypeID) (string, error) {
	d := fe.ctx.MustLookup(t)
	if d.Kind == types.KindPointer {
		if fe.g.desc.PtrSize == 8 {
			return "u64", nil
		}
		return "u32", nil
	}
	if d.Kind != types.KindPrimitive {
		return "", diag.Unsupportedf(diag.UnsupType, source.None,
			"no arithmetic suffix for %s", fe.ctx.String(t))
	}
	switch d.Basic {
	case types.Bool:
		return "pred", nil
	case types.Float32:
		return "f32", nil
	case types.Float64:
		return "f64", nil
	}
	sign := "s"
	if !isSigned(d.Basic) {
		sign = "u"
	}
	bits := d.Basic.Bits()
	if bits < 32 {
		bits = 32 // sub-word values are widened into b32 registers
	}
	return fmt.Sprintf("%s%d", sign, bits), nil
}

// memSuffix is the type suffix of ld/st instructions.
func (fe *funcEmitter) memSuffix(t types.TypeID) (string, error) {
	d := fe.ctx.MustLookup(t)
	if d.Kind == types.KindPointer {
		if fe.g.desc.PtrSize == 8 {
			return "u64", nil
		}
		return "u32", nil
	}
	if d.Kind != types.KindPrimitive {
		return "", diag.Unsupportedf(diag.UnsupType, source.None,
			"no memory suffix for %s", fe.ctx.String(t))
	}
	switch d.Basic {
	case types.Bool:
		return "u8", nil
	case types.Float32:
		return "f32", nil
	case types.Float64:
		return "f64", nil
	}
	sign := "s"
	if !isSigned(d.Basic) {
		sign = "u"
	}
	return fmt.Sprintf("%s%d", sign, d.Basic.Bits()), nil
}

func isSigned(b types.BasicKind) bool {
	return b >= types.Int8 && b <= types.Int64
}

func spaceName(s types.AddressSpace) string {
	switch s {
	case types.Global:
		return "global"
	case types.Shared:
		return "shared"
	case types.Local:
		return "local"
	case types.Constant:
		return "const"
	}
	return ""
}

var dimSuffix = [...]string{"x", "y", "z"}

// --- value emission --------------------------------------------------------

func (fe *funcEmitter) emitValue(b *ir.BasicBlock, v ir.Value) error {
	m := fe.m
	if m.KindOf(v).IsTerminator() {
		if err := fe.resolvePhis(b, v); err != nil {
			return err
		}
		return fe.emitTerminator(v)
	}

	switch m.KindOf(v) {
	case ir.KindConstant:
		return fe.emitConstant(v)

	case ir.KindNull:
		regs, err := fe.bind(v)
		if err != nil {
			return err
		}
		classes, err := fe.slotClasses(m.TypeOf(v))
		if err != nil {
			return err
		}
		for i, r := range regs {
			if classes[i] == classPred {
				fmt.Fprintf(&fe.body, "\tsetp.ne.u32 %s, 0, 0;\n", r)
				continue
			}
			fmt.Fprintf(&fe.body, "\tmov%s %s, 0;\n", movSuffix(classes[i]), r)
		}
		return nil

	case ir.KindUndefined:
		_, err := fe.bind(v)
		return err

	case ir.KindUnaryArith:
		return fe.emitUnary(v)

	case ir.KindBinaryArith:
		return fe.emitBinary(v)

	case ir.KindCompare:
		dst, err := fe.reg(v)
		if err != nil {
			return err
		}
		lhs, err := fe.reg(m.Operand(v, 0))
		if err != nil {
			return err
		}
		rhs, err := fe.reg(m.Operand(v, 1))
		if err != nil {
			return err
		}
		sfx, err := fe.arithSuffix(m.TypeOf(m.Operand(v, 0)))
		if err != nil {
			return err
		}
		op := ir.CompareOp(m.OpCode(v))
		fmt.Fprintf(&fe.body, "\tsetp.%s.%s %s, %s, %s;\n", op, sfx, dst, lhs, rhs)
		return nil

	case ir.KindSelect:
		return fe.emitSelect(v)

	case ir.KindConvert:
		return fe.emitConvert(v)

	case ir.KindPointerCast:
		return fe.emitMovLike(v, m.Operand(v, 0))

	case ir.KindAddressSpaceCast:
		return fe.emitAddressSpaceCast(v)

	case ir.KindFloatAsIntCast, ir.KindIntAsFloatCast:
		dst, err := fe.reg(v)
		if err != nil {
			return err
		}
		src, err := fe.reg(m.Operand(v, 0))
		if err != nil {
			return err
		}
		width := "b32"
		if fe.ctx.IsPrimitive(m.TypeOf(v), types.Int64) || fe.ctx.IsPrimitive(m.TypeOf(v), types.Float64) {
			width = "b64"
		}
		fmt.Fprintf(&fe.body, "\tmov.%s %s, %s;\n", width, dst, src)
		return nil

	case ir.KindAlloca:
		return fe.emitAlloca(v)

	case ir.KindLoad:
		return fe.emitLoad(v)

	case ir.KindStore:
		return fe.emitStore(v)

	case ir.KindBuildStruct:
		return fe.emitBuildStruct(v)

	case ir.KindGetField:
		return fe.emitGetField(v)

	case ir.KindSetField:
		return fe.emitSetField(v)

	case ir.KindLoadElementAddress:
		return fe.emitElementAddress(v)

	case ir.KindLoadFieldAddress:
		return fe.emitFieldAddress(v)

	case ir.KindBarrier:
		if ir.BarrierKind(m.AuxKind(v)) == ir.BarrierDevice {
			fe.body.WriteString("\tmembar.gl;\n")
		} else {
			fe.body.WriteString("\tbar.sync 0;\n")
		}
		return nil

	case ir.KindBroadcast, ir.KindShuffle:
		return fe.emitShuffle(v)

	case ir.KindGridIndex:
		return fe.emitSpecial(v, "%ctaid")
	case ir.KindGroupIndex:
		return fe.emitSpecial(v, "%tid")
	case ir.KindGridDim:
		return fe.emitSpecial(v, "%nctaid")
	case ir.KindGroupDim:
		return fe.emitSpecial(v, "%ntid")

	case ir.KindCall:
		return fe.emitCall(v)

	case ir.KindPhi:
		_, err := fe.bind(v)
		return err
	}

	return diag.Unsupportedf(diag.UnsupValueKind, m.Point(v),
		"ptx backend cannot emit %s", m.KindOf(v))
}

func movSuffix(c regClass) string {
	switch c {
	case classB64:
		return ".u64"
	case classF32:
		return ".f32"
	case classF64:
		return ".f64"
	default:
		return ".u32"
	}
}

func (fe *funcEmitter) emitConstant(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	t := fe.ctx.MustLookup(m.TypeOf(v))
	bits := m.ConstantBits(v)
	switch t.Basic {
	case types.Bool:
		cmp := "eq"
		if bits == 0 {
			cmp = "ne"
		}
		fmt.Fprintf(&fe.body, "\tsetp.%s.u32 %s, 0, 0;\n", cmp, dst)
	case types.Float32:
		fmt.Fprintf(&fe.body, "\tmov.f32 %s, 0F%08X;\n", dst, uint32(bits))
	case types.Float64:
		fmt.Fprintf(&fe.body, "\tmov.f64 %s, 0D%016X;\n", dst, bits)
	default:
		if t.Basic.Bits() > 32 {
			fmt.Fprintf(&fe.body, "\tmov.u64 %s, %d;\n", dst, bits)
		} else {
			fmt.Fprintf(&fe.body, "\tmov.u32 %s, %d;\n", dst, uint32(bits))
		}
	}
	return nil
}

func (fe *funcEmitter) emitUnary(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	src, err := fe.reg(m.Operand(v, 0))
	if err != nil {
		return err
	}
	sfx, err := fe.arithSuffix(m.TypeOf(v))
	if err != nil {
		return err
	}
	switch ir.UnaryOp(m.OpCode(v)) {
	case ir.UnaryNeg:
		fmt.Fprintf(&fe.body, "\tneg.%s %s, %s;\n", sfx, dst, src)
	case ir.UnaryNot:
		if sfx == "pred" {
			fmt.Fprintf(&fe.body, "\tnot.pred %s, %s;\n", dst, src)
		} else {
			fmt.Fprintf(&fe.body, "\tnot.b%d %s, %s;\n", widthOf(sfx), dst, src)
		}
	case ir.UnaryAbs:
		fmt.Fprintf(&fe.body, "\tabs.%s %s, %s;\n", sfx, dst, src)
	}
	return nil
}

func widthOf(sfx string) int {
	if strings.HasSuffix(sfx, "64") {
		return 64
	}
	return 32
}

func (fe *funcEmitter) emitBinary(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	lhs, err := fe.reg(m.Operand(v, 0))
	if err != nil {
		return err
	}
	rhs, err := fe.reg(m.Operand(v, 1))
	if err != nil {
		return err
	}
	sfx, err := fe.arithSuffix(m.TypeOf(v))
	if err != nil {
		return err
	}
	isFloat := strings.HasPrefix(sfx, "f")

	var instr string
	switch ir.BinaryOp(m.OpCode(v)) {
	case ir.BinAdd:
		instr = "add." + sfx
	case ir.BinSub:
		instr = "sub." + sfx
	case ir.BinMul:
		if isFloat {
			instr = "mul." + sfx
		} else {
			instr = "mul.lo." + sfx
		}
	case ir.BinDiv:
		if isFloat {
			instr = "div.rn." + sfx
		} else {
			instr = "div." + sfx
		}
	case ir.BinRem:
		instr = "rem." + sfx
	case ir.BinAnd:
		instr = fmt.Sprintf("and.b%d", widthOf(sfx))
	case ir.BinOr:
		instr = fmt.Sprintf("or.b%d", widthOf(sfx))
	case ir.BinXor:
		instr = fmt.Sprintf("xor.b%d", widthOf(sfx))
	case ir.BinShl:
		instr = fmt.Sprintf("shl.b%d", widthOf(sfx))
	case ir.BinShr:
		instr = "shr." + sfx
	case ir.BinMin:
		instr = "min." + sfx
	case ir.BinMax:
		instr = "max." + sfx
	default:
		return diag.Unsupportedf(diag.UnsupValueKind, m.Point(v),
			"binary operator %s", ir.BinaryOp(m.OpCode(v)))
	}
	fmt.Fprintf(&fe.body, "\t%s %s, %s, %s;\n", instr, dst, lhs, rhs)
	return nil
}

func (fe *funcEmitter) emitSelect(v ir.Value) error {
	m := fe.m
	cond, err := fe.reg(m.Operand(v, 0))
	if err != nil {
		return err
	}
	dst, err := fe.bind(v)
	if err != nil {
		return err
	}
	whenT, err := fe.bind(m.Operand(v, 1))
	if err != nil {
		return err
	}
	whenF, err := fe.bind(m.Operand(v, 2))
	if err != nil {
		return err
	}
	classes, err := fe.slotClasses(m.TypeOf(v))
	if err != nil {
		return err
	}
	for i := range dst {
		width := "b32"
		if classes[i] == classB64 || classes[i] == classF64 {
			width = "b64"
		}
		fmt.Fprintf(&fe.body, "\tselp.%s %s, %s, %s, %s;\n", width, dst[i], whenT[i], whenF[i], cond)
	}
	return nil
}

func (fe *funcEmitter) emitConvert(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	src, err := fe.reg(m.Operand(v, 0))
	if err != nil {
		return err
	}
	to, err := fe.arithSuffix(m.TypeOf(v))
	if err != nil {
		return err
	}
	from, err := fe.arithSuffix(m.TypeOf(m.Operand(v, 0)))
	if err != nil {
		return err
	}
	switch {
	case to == "pred":
		fmt.Fprintf(&fe.body, "\tsetp.ne.%s %s, %s, 0;\n", from, dst, src)
	case from == "pred":
		fmt.Fprintf(&fe.body, "\tselp.b%d %s, 1, 0, %s;\n", widthOf(to), dst, src)
	case strings.HasPrefix(to, "f") && !strings.HasPrefix(from, "f"):
		fmt.Fprintf(&fe.body, "\tcvt.rn.%s.%s %s, %s;\n", to, from, dst, src)
	case strings.HasPrefix(to, "f") && strings.HasPrefix(from, "f"):
		if widthOf(to) < widthOf(from) {
			fmt.Fprintf(&fe.body, "\tcvt.rn.%s.%s %s, %s;\n", to, from, dst, src)
		} else {
			fmt.Fprintf(&fe.body, "\tcvt.%s.%s %s, %s;\n", to, from, dst, src)
		}
	case !strings.HasPrefix(to, "f") && strings.HasPrefix(from, "f"):
		fmt.Fprintf(&fe.body, "\tcvt.rzi.%s.%s %s, %s;\n", to, from, dst, src)
	default:
		fmt.Fprintf(&fe.body, "\tcvt.%s.%s %s, %s;\n", to, from, dst, src)
	}
	return nil
}

func (fe *funcEmitter) emitMovLike(v, src ir.Value) error {
	dstRegs, err := fe.bind(v)
	if err != nil {
		return err
	}
	srcRegs, err := fe.bind(src)
	if err != nil {
		return err
	}
	classes, err := fe.slotClasses(fe.m.TypeOf(v))
	if err != nil {
		return err
	}
	for i := range dstRegs {
		fmt.Fprintf(&fe.body, "\tmov%s %s, %s;\n", movSuffix(classes[i]), dstRegs[i], srcRegs[i])
	}
	return nil
}

func (fe *funcEmitter) emitAddressSpaceCast(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	src, err := fe.reg(m.Operand(v, 0))
	if err != nil {
		return err
	}
	to := fe.ctx.MustLookup(m.TypeOf(v)).Space
	from := fe.ctx.MustLookup(m.TypeOf(m.Operand(v, 0))).Space
	width := fmt.Sprintf("u%d", fe.g.desc.PtrSize*8)
	switch {
	case to == types.Generic && from != types.Generic:
		fmt.Fprintf(&fe.body, "\tcvta.%s.%s %s, %s;\n", spaceName(from), width, dst, src)
	case to != types.Generic && from == types.Generic:
		fmt.Fprintf(&fe.body, "\tcvta.to.%s.%s %s, %s;\n", spaceName(to), width, dst, src)
	default:
		fmt.Fprintf(&fe.body, "\tmov.%s %s, %s;\n", width, dst, src)
	}
	return nil
}

func (fe *funcEmitter) emitAlloca(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	pt := fe.ctx.MustLookup(m.TypeOf(v))
	size, err := fe.res.SizeOf(pt.Elem)
	if err != nil {
		return err
	}
	align, err := fe.res.AlignOf(pt.Elem)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("depot%d", fe.depotID)
	fe.depotID++
	fmt.Fprintf(&fe.head, "\t.local .align %d .b8 %s[%d];\n", align, name, size)
	width := fmt.Sprintf("u%d", fe.g.desc.PtrSize*8)
	fmt.Fprintf(&fe.body, "\tmov.%s %s, %s;\n", width, dst, name)
	return nil
}

func (fe *funcEmitter) emitLoad(v ir.Value) error {
	m := fe.m
	ptr := m.Operand(v, 0)
	addr, err := fe.reg(ptr)
	if err != nil {
		return err
	}
	pt := fe.ctx.MustLookup(m.TypeOf(ptr))
	regs, err := fe.bind(v)
	if err != nil {
		return err
	}
	offs, sfxs, err := fe.slotLayout(pt.Elem)
	if err != nil {
		return err
	}
	space := ""
	if n := spaceName(pt.Space); n != "" {
		space = "." + n
	}
	for i, r := range regs {
		fmt.Fprintf(&fe.body, "\tld%s.%s %s, [%s+%d];\n", space, sfxs[i], r, addr, offs[i])
	}
	return nil
}

func (fe *funcEmitter) emitStore(v ir.Value) error {
	m := fe.m
	ptr := m.Operand(v, 0)
	addr, err := fe.reg(ptr)
	if err != nil {
		return err
	}
	pt := fe.ctx.MustLookup(m.TypeOf(ptr))
	regs, err := fe.bind(m.Operand(v, 1))
	if err != nil {
		return err
	}
	offs, sfxs, err := fe.slotLayout(pt.Elem)
	if err != nil {
		return err
	}
	space := ""
	if n := spaceName(pt.Space); n != "" {
		space = "." + n
	}
	for i, r := range regs {
		fmt.Fprintf(&fe.body, "\tst%s.%s [%s+%d], %s;\n", space, sfxs[i], addr, offs[i], r)
	}
	return nil
}

func (fe *funcEmitter) emitBuildStruct(v ir.Value) error {
	m := fe.m
	dst, err := fe.bind(v)
	if err != nil {
		return err
	}
	classes, err := fe.slotClasses(m.TypeOf(v))
	if err != nil {
		return err
	}
	slot := 0
	for _, op := range m.Operands(v) {
		srcRegs, err := fe.bind(op)
		if err != nil {
			return err
		}
		for _, r := range srcRegs {
			if classes[slot] == classPred {
				fmt.Fprintf(&fe.body, "\tand.pred %s, %s, %s;\n", dst[slot], r, r)
			} else {
				fmt.Fprintf(&fe.body, "\tmov%s %s, %s;\n", movSuffix(classes[slot]), dst[slot], r)
			}
			slot++
		}
	}
	return nil
}

// slotRange locates the register slots backing a field span.
func (fe *funcEmitter) slotRange(owner types.TypeID, index, span int) (start, width int, err error) {
	fields := fe.ctx.Fields(owner)
	for i := 0; i < index; i++ {
		c, err := fe.slotClasses(fields[i])
		if err != nil {
			return 0, 0, err
		}
		start += len(c)
	}
	for i := index; i < index+span; i++ {
		c, err := fe.slotClasses(fields[i])
		if err != nil {
			return 0, 0, err
		}
		width += len(c)
	}
	return start, width, nil
}

func (fe *funcEmitter) emitGetField(v ir.Value) error {
	m := fe.m
	owner := m.TypeOf(m.Operand(v, 0))
	start, width, err := fe.slotRange(owner, m.FieldIndex(v), m.FieldSpan(v))
	if err != nil {
		return err
	}
	src, err := fe.bind(m.Operand(v, 0))
	if err != nil {
		return err
	}
	dst, err := fe.bind(v)
	if err != nil {
		return err
	}
	classes, err := fe.slotClasses(m.TypeOf(v))
	if err != nil {
		return err
	}
	for i := 0; i < width; i++ {
		if classes[i] == classPred {
			fmt.Fprintf(&fe.body, "\tand.pred %s, %s, %s;\n", dst[i], src[start+i], src[start+i])
		} else {
			fmt.Fprintf(&fe.body, "\tmov%s %s, %s;\n", movSuffix(classes[i]), dst[i], src[start+i])
		}
	}
	return nil
}

func (fe *funcEmitter) emitSetField(v ir.Value) error {
	m := fe.m
	owner := m.TypeOf(v)
	start, width, err := fe.slotRange(owner, m.FieldIndex(v), 1)
	if err != nil {
		return err
	}
	src, err := fe.bind(m.Operand(v, 0))
	if err != nil {
		return err
	}
	val, err := fe.bind(m.Operand(v, 1))
	if err != nil {
		return err
	}
	dst, err := fe.bind(v)
	if err != nil {
		return err
	}
	classes, err := fe.slotClasses(owner)
	if err != nil {
		return err
	}
	for i := range dst {
		from := src[i]
		if i >= start && i < start+width {
			from = val[i-start]
		}
		if classes[i] == classPred {
			fmt.Fprintf(&fe.body, "\tand.pred %s, %s, %s;\n", dst[i], from, from)
		} else {
			fmt.Fprintf(&fe.body, "\tmov%s %s, %s;\n", movSuffix(classes[i]), dst[i], from)
		}
	}
	return nil
}

func (fe *funcEmitter) emitElementAddress(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	base, err := fe.reg(m.Operand(v, 0))
	if err != nil {
		return err
	}
	idx, err := fe.reg(m.Operand(v, 1))
	if err != nil {
		return err
	}
	pt := fe.ctx.MustLookup(m.TypeOf(m.Operand(v, 0)))
	size, err := fe.res.SizeOf(pt.Elem)
	if err != nil {
		return err
	}
	if fe.g.desc.PtrSize == 8 {
		fmt.Fprintf(&fe.body, "\tmul.wide.s32 %s, %s, %d;\n", dst, idx, size)
		fmt.Fprintf(&fe.body, "\tadd.u64 %s, %s, %s;\n", dst, base, dst)
	} else {
		fmt.Fprintf(&fe.body, "\tmul.lo.s32 %s, %s, %d;\n", dst, idx, size)
		fmt.Fprintf(&fe.body, "\tadd.u32 %s, %s, %s;\n", dst, base, dst)
	}
	return nil
}

func (fe *funcEmitter) emitFieldAddress(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	base, err := fe.reg(m.Operand(v, 0))
	if err != nil {
		return err
	}
	pt := fe.ctx.MustLookup(m.TypeOf(m.Operand(v, 0)))
	off, err := fe.res.FieldOffset(pt.Elem, m.FieldIndex(v))
	if err != nil {
		return err
	}
	width := fmt.Sprintf("u%d", fe.g.desc.PtrSize*8)
	fmt.Fprintf(&fe.body, "\tadd.%s %s, %s, %d;\n", width, dst, base, off)
	return nil
}

func (fe *funcEmitter) emitShuffle(v ir.Value) error {
	m := fe.m
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	src, err := fe.reg(m.Operand(v, 0))
	if err != nil {
		return err
	}
	lane, err := fe.reg(m.Operand(v, 1))
	if err != nil {
		return err
	}
	mode := "idx"
	if m.KindOf(v) == ir.KindShuffle {
		mode = ir.ShuffleKind(m.AuxKind(v)).String()
	}
	if mode == "xor" {
		mode = "bfly"
	}
	fmt.Fprintf(&fe.body, "\tshfl.sync.%s.b32 %s, %s, %s, 0x1f, 0xffffffff;\n", mode, dst, src, lane)
	return nil
}

func (fe *funcEmitter) emitSpecial(v ir.Value, sreg string) error {
	dst, err := fe.reg(v)
	if err != nil {
		return err
	}
	dim := fe.m.FieldIndex(v)
	fmt.Fprintf(&fe.body, "\tmov.u32 %s, %s.%s;\n", dst, sreg, dimSuffix[dim])
	return nil
}

func (fe *funcEmitter) emitCall(v ir.Value) error {
	m := fe.m
	var args []string
	for _, op := range m.Operands(v) {
		regs, err := fe.bind(op)
		if err != nil {
			return err
		}
		args = append(args, regs...)
	}
	if m.TypeOf(v) == fe.ctx.Void() {
		fmt.Fprintf(&fe.body, "\tcall.uni %s, (%s);\n", m.CalleeName(v), strings.Join(args, ", "))
		return nil
	}
	dst, err := fe.bind(v)
	if err != nil {
		return err
	}
	fmt.Fprintf(&fe.body, "\tcall.uni (%s), %s, (%s);\n",
		strings.Join(dst, ", "), m.CalleeName(v), strings.Join(args, ", "))
	return nil
}

func (fe *funcEmitter) resolvePhis(b *ir.BasicBlock, term ir.Value) error {
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
			if err := fe.emitMovLike(v, ops[predIdx]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fe *funcEmitter) emitTerminator(v ir.Value) error {
	m := fe.m
	switch m.KindOf(v) {
	case ir.KindReturn:
		if len(m.Operands(v)) > 0 {
			regs, err := fe.bind(m.Operand(v, 0))
			if err != nil {
				return err
			}
			offs, sfxs, err := fe.slotLayout(m.ReturnType())
			if err != nil {
				return err
			}
			for i, r := range regs {
				fmt.Fprintf(&fe.body, "\tst.param.%s [retval+%d], %s;\n", sfxs[i], offs[i], r)
			}
		}
		fe.body.WriteString("\tret;\n")
		return nil

	case ir.KindBranch:
		fmt.Fprintf(&fe.body, "\tbra bb%d;\n", m.Targets(v)[0].ID)
		return nil

	case ir.KindIfBranch:
		cond, err := fe.reg(m.Operand(v, 0))
		if err != nil {
			return err
		}
		tg := m.Targets(v)
		fmt.Fprintf(&fe.body, "\t@%s bra bb%d;\n\tbra bb%d;\n", cond, tg[0].ID, tg[1].ID)
		return nil

	case ir.KindSwitchBranch:
		sel, err := fe.reg(m.Operand(v, 0))
		if err != nil {
			return err
		}
		sfx, err := fe.arithSuffix(m.TypeOf(m.Operand(v, 0)))
		if err != nil {
			return err
		}
		tg := m.Targets(v)
		for i := 1; i < len(tg); i++ {
			scratch := fe.scratchPred()
			fmt.Fprintf(&fe.body, "\tsetp.eq.%s %s, %s, %d;\n", sfx, scratch, sel, i)
			fmt.Fprintf(&fe.body, "\t@%s bra bb%d;\n", scratch, tg[i].ID)
		}
		// Selector 0 and everything out of range take the first target.
		fmt.Fprintf(&fe.body, "\tbra bb%d;\n", tg[0].ID)
		return nil
	}
	return diag.Invariantf(diag.InvTerminatorMissing, m.Point(v),
		"%s is not a terminator", m.KindOf(v))
}

func (fe *funcEmitter) scratchPred() string {
	fe.counts[classPred]++
	return fmt.Sprintf("%s%d", classPrefix[classPred], fe.counts[classPred])
}
