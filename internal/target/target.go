// Package target describes compilation targets: which backend emits code,
// the pointer width, and per-basic-kind size overrides for the ABI resolver.
package target

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/types"
)

// Description is one compilation target.
type Description struct {
	Name     string `toml:"name"`
	Backend  string `toml:"backend"`
	PtrSize  int    `toml:"ptr_size"`
	PtrAlign int    `toml:"ptr_align"`

	// ViewSize overrides the storage size of a view. Backends that keep
	// views as {pointer, length} composites set this to PtrSize plus the
	// length slot; zero means plain pointer size.
	ViewSize int `toml:"view_size"`

	// SizeOverrides maps basic-kind names (e.g. "bool") to storage sizes.
	SizeOverrides map[string]int `toml:"size_overrides"`
}

// Validate checks the description for internal consistency.
func (d *Description) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("target: missing name")
	}
	if d.PtrSize != 4 && d.PtrSize != 8 {
		return fmt.Errorf("target %s: pointer size must be 4 or 8, got %d", d.Name, d.PtrSize)
	}
	if d.PtrAlign == 0 {
		d.PtrAlign = d.PtrSize
	}
	if d.ViewSize != 0 && d.ViewSize < d.PtrSize {
		return fmt.Errorf("target %s: view size %d smaller than pointer size %d", d.Name, d.ViewSize, d.PtrSize)
	}
	for name := range d.SizeOverrides {
		if _, ok := types.BasicKindByName(name); !ok {
			return fmt.Errorf("target %s: unknown basic kind %q in size overrides", d.Name, name)
		}
	}
	return nil
}

// SizeOf returns the storage size for a basic kind, honoring overrides.
// Bool defaults to one byte; String has no device storage and returns 0.
func (d *Description) SizeOf(kind types.BasicKind) int {
	if d.SizeOverrides != nil {
		if n, ok := d.SizeOverrides[kind.String()]; ok {
			return n
		}
	}
	if kind == types.Bool {
		return 1
	}
	return kind.Bits() / 8
}

// PTX64 is the 64-bit GPU ISA target.
func PTX64() Description {
	return Description{Name: "ptx64", Backend: "ptx", PtrSize: 8, PtrAlign: 8}
}

// OpenCL64 keeps views as pointer+length composites in generated source.
func OpenCL64() Description {
	return Description{Name: "opencl64", Backend: "clc", PtrSize: 8, PtrAlign: 8, ViewSize: 16}
}

// CPU64 is the 64-bit CPU instruction-stream target.
func CPU64() Description {
	return Description{Name: "cpu64", Backend: "cpu", PtrSize: 8, PtrAlign: 8}
}

// CPU32 is the 32-bit CPU instruction-stream target.
func CPU32() Description {
	return Description{Name: "cpu32", Backend: "cpu", PtrSize: 4, PtrAlign: 4}
}

// Builtins lists the compiled-in targets.
func Builtins() []Description {
	return []Description{PTX64(), OpenCL64(), CPU64(), CPU32()}
}

// ByName resolves a built-in target.
func ByName(name string) (Description, bool) {
	for _, d := range Builtins() {
		if d.Name == name {
			return d, true
		}
	}
	return Description{}, false
}
