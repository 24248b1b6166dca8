// Package transform is the generic pattern-driven rewriting infrastructure.
// A transformation registers, per value kind, a predicate and a rewrite
// action; a session snapshots a Scope, matches predicates over it and only
// commits when at least one candidate matched. Converged passes are
// idempotent: re-running them performs zero replacements.
package transform

import (
	"fmt"

	"github.com/76creates/ILGPU/internal/ir"
)

// Rule pairs a candidate predicate with its rewrite action for one value
// kind. A predicate that errors (panics) is an IR-shape bug and is not
// suppressed; a Rewrite error aborts the whole pass with no retry.
type Rule struct {
	Matches func(s *Scope, v ir.Value) bool
	Rewrite func(rw *Rewrite, v ir.Value) error
}

// Transformation is a named table of rules keyed by value kind.
type Transformation struct {
	name  string
	rules map[ir.ValueKind][]Rule
}

// New creates an empty transformation.
func New(name string) *Transformation {
	return &Transformation{
		name:  name,
		rules: make(map[ir.ValueKind][]Rule, 8),
	}
}

// Name returns the transformation's registered name.
func (t *Transformation) Name() string {
	return t.name
}

// Add registers a rule for one value kind. Rules for the same kind are tried
// in registration order; the first matching rule wins.
func (t *Transformation) Add(kind ir.ValueKind, rule Rule) *Transformation {
	t.rules[kind] = append(t.rules[kind], rule)
	return t
}

// Apply runs one rewrite session over the method. It reports whether any
// replacement was committed; when no candidate matches, the method is left
// untouched.
func (t *Transformation) Apply(m *ir.Method) (bool, error) {
	scope := NewScope(m)

	matched := false
	for _, v := range scope.Values() {
		if t.matchRule(scope, m, v) != nil {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	rw := &Rewrite{method: m}
	for _, v := range scope.Values() {
		// Earlier replacements in this session may have evicted the value.
		if !m.Valid(v) {
			continue
		}
		rule := t.matchRule(scope, m, v)
		if rule == nil {
			continue
		}
		if err := rule.Rewrite(rw, v); err != nil {
			return false, fmt.Errorf("pass %s: %w", t.name, err)
		}
	}
	return rw.replacements > 0, nil
}

func (t *Transformation) matchRule(scope *Scope, m *ir.Method, v ir.Value) *Rule {
	rules := t.rules[m.KindOf(v)]
	for i := range rules {
		if rules[i].Matches(scope, v) {
			return &rules[i]
		}
	}
	return nil
}

// Rewrite is the splice surface handed to rewrite actions.
type Rewrite struct {
	method       *ir.Method
	replacements int
}

// NewRewrite opens a rewrite session for composite passes that drive their
// own candidate matching instead of a per-kind rule table.
func NewRewrite(m *ir.Method) *Rewrite {
	return &Rewrite{method: m}
}

// Method returns the method being rewritten.
func (rw *Rewrite) Method() *ir.Method {
	return rw.method
}

// Builder returns the method builder positioned so new values are inserted
// immediately before v in its block.
func (rw *Rewrite) Builder(v ir.Value) *ir.Builder {
	b := rw.method.Builder()
	b.SetInsertBefore(v)
	b.SetPoint(rw.method.Point(v))
	return b
}

// Replace transactionally rewires every use of old to new and evicts old.
func (rw *Rewrite) Replace(old, new ir.Value) {
	rw.method.Replace(old, new)
	rw.replacements++
}

// Remove evicts a use-free value (e.g. a store superseded by a sequence).
func (rw *Rewrite) Remove(v ir.Value) {
	rw.method.RemoveDead(v)
	rw.replacements++
}

// Replacements returns the number of commits in this session.
func (rw *Rewrite) Replacements() int {
	return rw.replacements
}
