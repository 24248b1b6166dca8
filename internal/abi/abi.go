// Package abi computes deterministic per-target memory layout for interned
// types: size, alignment and field offsets. Results are cached per type and
// served to lowering passes and to the runtime for kernel-argument marshaling.
package abi

import (
	"sync"

	"github.com/76creates/ILGPU/internal/diag"
	"github.com/76creates/ILGPU/internal/source"
	"github.com/76creates/ILGPU/internal/target"
	"github.com/76creates/ILGPU/internal/types"
)

// TypeInfo is the resolved layout of one type for one target.
type TypeInfo struct {
	Size  int
	Align int

	// FieldOffsets is populated for structures only.
	FieldOffsets []int
}

// NumFields returns the structure field count (zero for non-structures).
func (i *TypeInfo) NumFields() int {
	return len(i.FieldOffsets)
}

// Resolver maps types to layout for one target. Safe for concurrent use:
// cache reads proceed under the shared lock, insertion re-checks under the
// exclusive lock.
type Resolver struct {
	target target.Description
	ctx    *types.Context

	mu    sync.RWMutex
	cache map[types.TypeID]*TypeInfo
}

// NewResolver builds a resolver for one (context, target) pair.
func NewResolver(ctx *types.Context, desc target.Description) *Resolver {
	return &Resolver{
		target: desc,
		ctx:    ctx,
		cache:  make(map[types.TypeID]*TypeInfo, 64),
	}
}

// Target returns the target description the resolver computes for.
func (r *Resolver) Target() target.Description {
	return r.target
}

// Clear drops every cached layout. Call when the owning type set changes.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.cache = make(map[types.TypeID]*TypeInfo, 64)
	r.mu.Unlock()
}

// Resolve computes (or returns the cached) layout of a type.
func (r *Resolver) Resolve(id types.TypeID) (*TypeInfo, error) {
	r.mu.RLock()
	if info, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return info, nil
	}
	r.mu.RUnlock()

	info, err := r.compute(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.cache[id]; ok {
		return existing, nil
	}
	r.cache[id] = info
	return info, nil
}

// SizeOf returns the storage size of a type in bytes.
func (r *Resolver) SizeOf(id types.TypeID) (int, error) {
	info, err := r.Resolve(id)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// AlignOf returns the alignment requirement of a type in bytes.
func (r *Resolver) AlignOf(id types.TypeID) (int, error) {
	info, err := r.Resolve(id)
	if err != nil {
		return 0, err
	}
	return info.Align, nil
}

// FieldOffset returns the byte offset of a structure field.
func (r *Resolver) FieldOffset(id types.TypeID, field int) (int, error) {
	info, err := r.Resolve(id)
	if err != nil {
		return 0, err
	}
	if field < 0 || field >= len(info.FieldOffsets) {
		return 0, diag.Rangef(diag.RangeFieldSpan, source.None,
			"field %d outside structure %s with %d fields", field, r.ctx.String(id), len(info.FieldOffsets))
	}
	return info.FieldOffsets[field], nil
}

func (r *Resolver) compute(id types.TypeID) (*TypeInfo, error) {
	t, ok := r.ctx.Lookup(id)
	if !ok {
		return nil, diag.Invariantf(diag.InvOperandType, source.None, "layout of unknown type #%d", id)
	}
	switch t.Kind {
	case types.KindPrimitive:
		if t.Basic == types.String {
			return nil, diag.Unsupportedf(diag.UnsupType, source.None,
				"string has no device storage layout")
		}
		size := r.target.SizeOf(t.Basic)
		return &TypeInfo{Size: size, Align: size}, nil

	case types.KindPointer:
		return &TypeInfo{Size: r.target.PtrSize, Align: r.target.PtrAlign}, nil

	case types.KindView:
		// A view may carry a composite size (pointer plus length) chosen by
		// the owning backend; alignment stays at pointer alignment.
		size := r.target.ViewSize
		if size == 0 {
			size = r.target.PtrSize
		}
		return &TypeInfo{Size: size, Align: r.target.PtrAlign}, nil

	case types.KindArray:
		elem, err := r.Resolve(t.Elem)
		if err != nil {
			return nil, err
		}
		return &TypeInfo{Size: elem.Size * int(t.Dims), Align: elem.Align}, nil

	case types.KindStructure:
		return r.computeStructure(id)

	case types.KindVoid:
		return nil, diag.Unsupportedf(diag.UnsupType, source.None, "void has no storage layout")

	default:
		return nil, diag.Unsupportedf(diag.UnsupType, source.None,
			"type %s has no storage layout", r.ctx.String(id))
	}
}

func (r *Resolver) computeStructure(id types.TypeID) (*TypeInfo, error) {
	fields := r.ctx.Fields(id)
	if len(fields) == 0 {
		// The empty structure occupies one byte so every value has an address.
		return &TypeInfo{Size: 1, Align: 1}, nil
	}
	offsets := make([]int, len(fields))
	offset := 0
	maxAlign := 1
	for i, f := range fields {
		fi, err := r.Resolve(f)
		if err != nil {
			return nil, err
		}
		offset = alignUp(offset, fi.Align)
		offsets[i] = offset
		offset += fi.Size
		if fi.Align > maxAlign {
			maxAlign = fi.Align
		}
	}
	return &TypeInfo{
		Size:         alignUp(offset, maxAlign),
		Align:        maxAlign,
		FieldOffsets: offsets,
	}, nil
}

// alignUp rounds offset up to the next multiple of align.
func alignUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	return offset + ((align - offset%align) % align)
}
