package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveTargetFindsBuiltins(t *testing.T) {
	d, err := resolveTarget("ptx64", "")
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if d.Backend != "ptx" {
		t.Fatalf("Backend = %q, want %q", d.Backend, "ptx")
	}
}

func TestResolveTargetRejectsUnknown(t *testing.T) {
	if _, err := resolveTarget("riscv128", ""); err == nil {
		t.Fatal("expected error for unknown target")
	}
}

func TestResolveTargetPrefersDirectoryDefinitions(t *testing.T) {
	dir := t.TempDir()
	manifest := `[[target]]
name = "ptx64"
backend = "ptx"
ptr_size = 4
ptr_align = 4
`
	if err := os.WriteFile(filepath.Join(dir, "targets.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := resolveTarget("ptx64", dir)
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if d.PtrSize != 4 {
		t.Fatalf("PtrSize = %d, want file-defined 4", d.PtrSize)
	}
}

func TestArtifactExtByBackend(t *testing.T) {
	cases := map[string]string{"ptx": ".ptx", "clc": ".cl", "cpu": ".prog"}
	for backend, want := range cases {
		if got := artifactExt(backend); got != want {
			t.Errorf("artifactExt(%q) = %q, want %q", backend, got, want)
		}
	}
}

func TestUseProgressUIRespectsQuiet(t *testing.T) {
	if useProgressUI("on", true) != true {
		t.Error("explicit on should win over quiet")
	}
	if useProgressUI("off", false) != false {
		t.Error("explicit off should disable the UI")
	}
	if useProgressUI("auto", true) != false {
		t.Error("auto with quiet should disable the UI")
	}
}
