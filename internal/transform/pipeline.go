package transform

import "github.com/76creates/ILGPU/internal/ir"

// Pass is anything that can rewrite a method: a Transformation or a composite
// lowering built on one.
type Pass interface {
	Name() string
	Apply(m *ir.Method) (bool, error)
}

// Trace observes pass execution (used by the driver's progress reporting).
type Trace func(pass string, changed bool)

// Run executes the passes in the caller-chosen order. A pass error aborts
// the pipeline for this method: no partial commit is retried or suppressed.
func Run(m *ir.Method, passes []Pass, trace Trace) error {
	for _, p := range passes {
		changed, err := p.Apply(m)
		if err != nil {
			return err
		}
		if trace != nil {
			trace(p.Name(), changed)
		}
	}
	return nil
}
