package segmentation

import (
	"fmt"

	"github.com/ignite/audience-engine/internal/domain"
)

// Evaluator walks a condition tree against single contacts. Evaluation is
// pure and exception-safe: a rule that panics is reported through the
// error hook and counts as false, without aborting the rest of the tree
// or the surrounding batch.
type Evaluator struct {
	// onError receives per-rule evaluation failures. May be nil.
	onError func(c *domain.Contact, err error)
}

// NewEvaluator creates an evaluator. onError may be nil when the caller
// does not care about individual rule failures (e.g. previews).
func NewEvaluator(onError func(c *domain.Contact, err error)) *Evaluator {
	return &Evaluator{onError: onError}
}

// Evaluate reports whether a contact satisfies the given root condition
// group. A nil or empty root group matches every contact: "no filter
// configured" deliberately means "all contacts". The same is NOT true of
// nested groups (see evalGroup).
func (e *Evaluator) Evaluate(root *Group, c *domain.Contact) bool {
	if root == nil || len(root.Rules) == 0 {
		return true
	}
	return e.evalGroup(root, c)
}

// evalGroup combines child results under the group's logic operator,
// short-circuiting. Nested empty groups keep their strict boolean
// identities: an empty AND is vacuously true, an empty OR has no
// satisfiable branch and is false. Only the root gets the "empty means
// match all" special case, so an empty OR sub-clause can never silently
// widen an enclosing AND chain.
func (e *Evaluator) evalGroup(g *Group, c *domain.Contact) bool {
	if g.Operator == LogicOr {
		for _, n := range g.Rules {
			if e.evalNode(n, c) {
				return true
			}
		}
		return false
	}
	// AND, and any unrecognized logic operator.
	for _, n := range g.Rules {
		if !e.evalNode(n, c) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evalNode(n Node, c *domain.Contact) bool {
	if n.Group != nil {
		return e.evalGroup(n.Group, c)
	}
	if n.Rule == nil {
		e.report(c, fmt.Errorf("condition node has neither rule nor group"))
		return false
	}
	return e.evalRule(n.Rule, c)
}

func (e *Evaluator) evalRule(r *Rule, c *domain.Contact) (matched bool) {
	defer func() {
		if p := recover(); p != nil {
			e.report(c, fmt.Errorf("rule %s %s panicked: %v", r.Field, r.Operator, p))
			matched = false
		}
	}()
	return Apply(r.Operator, Resolve(c, r.Field), r.Value)
}

func (e *Evaluator) report(c *domain.Contact, err error) {
	if e.onError != nil {
		e.onError(c, err)
	}
}
