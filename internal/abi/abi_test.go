package abi

import (
	"errors"
	"sync"
	"testing"

	"github.com/76creates/ILGPU/internal/diag"
	"github.com/76creates/ILGPU/internal/target"
	"github.com/76creates/ILGPU/internal/types"
)

func newResolver(t *testing.T, desc target.Description) (*types.Context, *Resolver) {
	t.Helper()
	ctx := types.NewContext()
	return ctx, NewResolver(ctx, desc)
}

func TestSequentialStructurePlacement(t *testing.T) {
	ctx, r := newResolver(t, target.CPU64())
	// Fields of size/alignment [4, 1, 8] resolve to offsets [0, 4, 8],
	// total size 16 under 8-byte max alignment.
	s := ctx.Structure([]types.TypeID{
		ctx.Primitive(types.Int32),
		ctx.Primitive(types.Bool),
		ctx.Primitive(types.Float64),
	})
	info, err := r.Resolve(s)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	wantOffsets := []int{0, 4, 8}
	for i, want := range wantOffsets {
		if info.FieldOffsets[i] != want {
			t.Fatalf("offset[%d] = %d, want %d", i, info.FieldOffsets[i], want)
		}
	}
	if info.Size != 16 || info.Align != 8 {
		t.Fatalf("size/align = %d/%d, want 16/8", info.Size, info.Align)
	}
}

func TestTailPadding(t *testing.T) {
	ctx, r := newResolver(t, target.CPU64())
	s := ctx.Structure([]types.TypeID{
		ctx.Primitive(types.Float64),
		ctx.Primitive(types.Bool),
	})
	info, err := r.Resolve(s)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.Size != 16 {
		t.Fatalf("size = %d, want 16 (tail padded to max alignment)", info.Size)
	}
}

func TestEmptyStructure(t *testing.T) {
	ctx, r := newResolver(t, target.CPU64())
	info, err := r.Resolve(ctx.Structure(nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.Size != 1 || info.Align != 1 || len(info.FieldOffsets) != 0 {
		t.Fatalf("empty structure = %+v, want {1 1 []}", info)
	}
}

func TestPointerWidthPerTarget(t *testing.T) {
	ctx32, r32 := newResolver(t, target.CPU32())
	p32, err := r32.Resolve(ctx32.Pointer(ctx32.Primitive(types.Int32), types.Global))
	if err != nil {
		t.Fatal(err)
	}
	if p32.Size != 4 || p32.Align != 4 {
		t.Fatalf("32-bit pointer = %+v", p32)
	}

	ctx64, r64 := newResolver(t, target.CPU64())
	p64, err := r64.Resolve(ctx64.Pointer(ctx64.Primitive(types.Int32), types.Global))
	if err != nil {
		t.Fatal(err)
	}
	if p64.Size != 8 || p64.Align != 8 {
		t.Fatalf("64-bit pointer = %+v", p64)
	}
}

func TestViewCompositeSize(t *testing.T) {
	ctx, r := newResolver(t, target.OpenCL64())
	v, err := r.Resolve(ctx.View(ctx.Primitive(types.Float32), types.Global))
	if err != nil {
		t.Fatal(err)
	}
	if v.Size != 16 || v.Align != 8 {
		t.Fatalf("composite view = %+v, want size 16 align 8", v)
	}

	ctxP, rp := newResolver(t, target.PTX64())
	vp, err := rp.Resolve(ctxP.View(ctxP.Primitive(types.Float32), types.Global))
	if err != nil {
		t.Fatal(err)
	}
	if vp.Size != 8 {
		t.Fatalf("plain view size = %d, want pointer size 8", vp.Size)
	}
}

func TestArrayLayout(t *testing.T) {
	ctx, r := newResolver(t, target.CPU64())
	a := ctx.Array(ctx.Primitive(types.Int16), 5)
	info, err := r.Resolve(a)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size != 10 || info.Align != 2 {
		t.Fatalf("array = %+v, want size 10 align 2", info)
	}
}

func TestSizeOverride(t *testing.T) {
	desc := target.CPU64()
	desc.SizeOverrides = map[string]int{"bool": 4}
	ctx, r := newResolver(t, desc)
	s := ctx.Structure([]types.TypeID{ctx.Primitive(types.Bool), ctx.Primitive(types.Int32)})
	info, err := r.Resolve(s)
	if err != nil {
		t.Fatal(err)
	}
	if info.FieldOffsets[1] != 4 || info.Size != 8 {
		t.Fatalf("override layout = %+v", info)
	}
}

func TestFieldOffsetRangeError(t *testing.T) {
	ctx, r := newResolver(t, target.CPU64())
	s := ctx.Structure([]types.TypeID{ctx.Primitive(types.Int32)})
	if _, err := r.FieldOffset(s, 3); err == nil {
		t.Fatal("out-of-range field must fail")
	} else {
		var de *diag.Error
		if !errors.As(err, &de) || !de.Diag.Code.IsRange() {
			t.Fatalf("want range-coded diag error, got %v", err)
		}
	}
}

func TestVoidAndStringUnsupported(t *testing.T) {
	ctx, r := newResolver(t, target.CPU64())
	if _, err := r.Resolve(ctx.Void()); err == nil {
		t.Fatal("void layout must fail")
	}
	if _, err := r.Resolve(ctx.Primitive(types.String)); err == nil {
		t.Fatal("string layout must fail")
	}
}

func TestCacheClearAndConcurrentReads(t *testing.T) {
	ctx, r := newResolver(t, target.CPU64())
	s := ctx.Structure([]types.TypeID{ctx.Primitive(types.Float64), ctx.Primitive(types.Int32)})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				info, err := r.Resolve(s)
				if err != nil || info.Size != 16 {
					t.Errorf("concurrent resolve: %+v %v", info, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	r.Clear()
	info, err := r.Resolve(s)
	if err != nil || info.Size != 16 {
		t.Fatalf("resolve after clear: %+v %v", info, err)
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ off, align, want int }{
		{0, 8, 0},
		{1, 8, 8},
		{4, 4, 4},
		{5, 1, 5},
		{9, 4, 12},
	}
	for _, c := range cases {
		if got := alignUp(c.off, c.align); got != c.want {
			t.Fatalf("alignUp(%d,%d) = %d, want %d", c.off, c.align, got, c.want)
		}
	}
}
