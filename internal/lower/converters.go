package lower

import "github.com/76creates/ILGPU/internal/types"

// ViewConverter eliminates views. Each view lowers to a structure pair of
// the underlying storage pointer and a 32-bit element count; a view field
// inside a structure contributes those two fields in place.
type ViewConverter struct{}

func (ViewConverter) AppliesTo(ctx *types.Context, t types.TypeID) bool {
	return ctx.Kind(t) == types.KindView
}

func (ViewConverter) Convert(ctx *types.Context, t types.TypeID) types.TypeID {
	d := ctx.MustLookup(t)
	return ctx.Structure([]types.TypeID{
		ctx.Pointer(d.Elem, d.Space),
		ctx.Primitive(types.Int32),
	})
}

func (ViewConverter) NumFields(ctx *types.Context, t types.TypeID) int {
	return 2
}

// NewViewLowering builds the pass that removes every view type and view
// operation from a method. Backends that cannot represent views run it
// before emission.
func NewViewLowering(ctx *types.Context) *TypeLowering {
	return NewTypeLowering("lower-views", ctx, ViewConverter{})
}

// ArrayConverter eliminates fixed-size arrays. An array of d elements lowers
// to a structure of d consecutive element fields; nested arrays flatten all
// the way down.
type ArrayConverter struct{}

func (ArrayConverter) AppliesTo(ctx *types.Context, t types.TypeID) bool {
	return ctx.Kind(t) == types.KindArray
}

func (ArrayConverter) Convert(ctx *types.Context, t types.TypeID) types.TypeID {
	d := ctx.MustLookup(t)
	fields := make([]types.TypeID, d.Dims)
	for i := range fields {
		fields[i] = d.Elem
	}
	return ctx.Structure(fields)
}

func (c ArrayConverter) NumFields(ctx *types.Context, t types.TypeID) int {
	d := ctx.MustLookup(t)
	per := 1
	if c.AppliesTo(ctx, d.Elem) {
		per = c.NumFields(ctx, d.Elem)
	}
	return int(d.Dims) * per
}

// NewArrayLowering builds the pass that replaces fixed-size arrays with
// per-element structure fields.
func NewArrayLowering(ctx *types.Context) *TypeLowering {
	return NewTypeLowering("lower-arrays", ctx, ArrayConverter{})
}
