package diag

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/source"
)

type Note struct {
	Point source.SeqPoint
	Msg   string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Point    source.SeqPoint
	Notes    []Note
}

func (d Diagnostic) String() string {
	if d.Point.IsValid() {
		return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, d.Point, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
}

// Error is a Diagnostic that can travel as a Go error. All structured
// compiler failures (unsupported-target, range, invariant) use this shape so
// the driver can attribute them to the originating sequence point.
type Error struct {
	Diag Diagnostic
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Diag.String()
}

// Errorf builds a coded error with severity derived from the code range.
func Errorf(code Code, point source.SeqPoint, format string, args ...any) *Error {
	sev := SevError
	if code.IsInvariant() {
		sev = SevFatal
	}
	return &Error{Diag: Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Point:    point,
	}}
}

// Unsupportedf reports a legitimate-but-unsupported input condition.
func Unsupportedf(code Code, point source.SeqPoint, format string, args ...any) *Error {
	return &Error{Diag: Diagnostic{
		Severity: SevError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Point:    point,
	}}
}

// Invariantf reports malformed IR: a bug in an upstream producer or pass.
func Invariantf(code Code, point source.SeqPoint, format string, args ...any) *Error {
	return &Error{Diag: Diagnostic{
		Severity: SevFatal,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Point:    point,
	}}
}

// Rangef reports an argument-range or capacity failure.
func Rangef(code Code, point source.SeqPoint, format string, args ...any) *Error {
	return &Error{Diag: Diagnostic{
		Severity: SevError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Point:    point,
	}}
}
