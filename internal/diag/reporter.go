package diag

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// ColorMode controls whether the reporter colorizes output.
type ColorMode uint8

const (
	ColorAuto ColorMode = iota
	ColorOn
	ColorOff
)

// Reporter renders diagnostics to a writer.
type Reporter struct {
	w     io.Writer
	quiet bool

	sevFatal *color.Color
	sevError *color.Color
	sevWarn  *color.Color
	sevInfo  *color.Color
	code     *color.Color
	point    *color.Color
}

// NewReporter builds a reporter. ColorAuto resolution (terminal detection)
// belongs to the caller; pass ColorOn/ColorOff here.
func NewReporter(w io.Writer, mode ColorMode, quiet bool) *Reporter {
	r := &Reporter{
		w:        w,
		quiet:    quiet,
		sevFatal: color.New(color.FgRed, color.Bold),
		sevError: color.New(color.FgRed),
		sevWarn:  color.New(color.FgYellow),
		sevInfo:  color.New(color.FgCyan),
		code:     color.New(color.Faint),
		point:    color.New(color.FgWhite, color.Bold),
	}
	if mode == ColorOff {
		for _, c := range []*color.Color{r.sevFatal, r.sevError, r.sevWarn, r.sevInfo, r.code, r.point} {
			c.DisableColor()
		}
	} else {
		for _, c := range []*color.Color{r.sevFatal, r.sevError, r.sevWarn, r.sevInfo, r.code, r.point} {
			c.EnableColor()
		}
	}
	return r
}

// Report renders a single diagnostic.
func (r *Reporter) Report(d Diagnostic) {
	if r == nil || r.w == nil {
		return
	}
	if r.quiet && d.Severity < SevError {
		return
	}
	sev := r.sevInfo
	switch d.Severity {
	case SevFatal:
		sev = r.sevFatal
	case SevError:
		sev = r.sevError
	case SevWarning:
		sev = r.sevWarn
	}
	if d.Point.IsValid() {
		fmt.Fprintf(r.w, "%s %s %s: %s\n",
			r.point.Sprint(d.Point.String()),
			sev.Sprint(d.Severity.String()),
			r.code.Sprint(d.Code.String()),
			d.Message)
	} else {
		fmt.Fprintf(r.w, "%s %s: %s\n",
			sev.Sprint(d.Severity.String()),
			r.code.Sprint(d.Code.String()),
			d.Message)
	}
	for _, n := range d.Notes {
		if n.Point.IsValid() {
			fmt.Fprintf(r.w, "  note: %s: %s\n", n.Point, n.Msg)
		} else {
			fmt.Fprintf(r.w, "  note: %s\n", n.Msg)
		}
	}
}

// ReportError renders err as a diagnostic when it carries one, or as a
// plain error line otherwise.
func (r *Reporter) ReportError(err error) {
	if r == nil || r.w == nil || err == nil {
		return
	}
	var de *Error
	if errors.As(err, &de) {
		r.Report(de.Diag)
		return
	}
	fmt.Fprintf(r.w, "%s: %v\n", r.sevError.Sprint("error"), err)
}

// ReportBag renders every diagnostic in the bag.
func (r *Reporter) ReportBag(b *Bag) {
	if b == nil {
		return
	}
	for _, d := range b.Items() {
		r.Report(d)
	}
}
