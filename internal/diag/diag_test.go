package diag

import (
	"errors"
	"strings"
	"testing"

	"github.com/76creates/ILGPU/internal/source"
)

func TestCodeRanges(t *testing.T) {
	if !InvCastMismatch.IsInvariant() {
		t.Fatal("InvCastMismatch should classify as invariant")
	}
	if !UnsupBitCastWidth.IsUnsupported() {
		t.Fatal("UnsupBitCastWidth should classify as unsupported")
	}
	if !RangeFieldSpan.IsRange() {
		t.Fatal("RangeFieldSpan should classify as range")
	}
	if UnsupType.IsInvariant() || InvNotAPointer.IsRange() {
		t.Fatal("range predicates overlap")
	}
}

func TestErrorfSeverityFollowsCode(t *testing.T) {
	inv := Errorf(InvCastMismatch, source.None, "cast mismatch")
	if inv.Diag.Severity != SevFatal {
		t.Fatalf("invariant severity = %v, want fatal", inv.Diag.Severity)
	}
	uns := Errorf(UnsupBitCastWidth, source.None, "16-bit bit cast")
	if uns.Diag.Severity != SevError {
		t.Fatalf("unsupported severity = %v, want error", uns.Diag.Severity)
	}
}

func TestErrorTravelsThroughErrorsAs(t *testing.T) {
	pt := source.SeqPoint{File: "k.cs", StartLine: 3, StartCol: 1}
	var err error = Unsupportedf(UnsupType, pt, "type %s not representable", "view<int32>")
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *diag.Error, got %T", err)
	}
	if de.Diag.Point.File != "k.cs" {
		t.Fatalf("point lost: %+v", de.Diag.Point)
	}
	if !strings.Contains(de.Error(), "view<int32>") {
		t.Fatalf("message lost: %q", de.Error())
	}
}

func TestBagLimitAndMerge(t *testing.T) {
	b := NewBag(2)
	for i := 0; i < 3; i++ {
		b.Add(Diagnostic{Severity: SevWarning, Message: "w"})
	}
	if b.Len() != 2 {
		t.Fatalf("bag len = %d, want 2 (limit)", b.Len())
	}
	if b.HasErrors() {
		t.Fatal("warnings must not count as errors")
	}

	other := NewBag(4)
	other.AddError(Rangef(RangeFieldSpan, source.None, "field 7 of 3"))
	b.Merge(other)
	if b.Len() != 3 {
		t.Fatalf("merged len = %d, want 3", b.Len())
	}
	if !b.HasErrors() {
		t.Fatal("merged bag should carry the error")
	}
}

func TestReporterPlainOutput(t *testing.T) {
	var sb strings.Builder
	r := NewReporter(&sb, ColorOff, false)
	r.Report(Diagnostic{
		Severity: SevError,
		Code:     UnsupBitCastWidth,
		Message:  "bit cast requires 32- or 64-bit operands",
		Point:    source.SeqPoint{File: "k.cs", StartLine: 12, StartCol: 5},
	})
	out := sb.String()
	for _, want := range []string{"k.cs:12:5", "ERROR", "ILG2001", "bit cast"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}
