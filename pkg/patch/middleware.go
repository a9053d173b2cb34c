package patch

import (
	"context"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/patchwork/pkg/core"
)

// Next forwards a possibly rewritten operation to the rest of the chain.
type Next func(ctx context.Context, op *Operation) error

// Handler intercepts an operation. It may rewrite op and call next, return
// without calling next to skip the operation, or return an error to abort
// the whole patch.
type Handler func(ctx context.Context, doc *core.Document, op *Operation, next Next) error

// Rule binds a handler to a verb and a path glob. An empty Op or "*"
// matches every verb; an empty Path matches every path.
type Rule struct {
	Op      Op
	Path    string
	Handler Handler
}

// Matches reports whether the rule applies to op.
func (r Rule) Matches(op Operation) bool {
	if r.Op != "" && r.Op != "*" && r.Op != op.Op {
		return false
	}
	if r.Path == "" {
		return true
	}
	ok, _ := doublestar.Match(r.Path, op.Path)
	return ok
}

// Pipeline runs matching rules in registration order as one continuation chain.
type Pipeline struct {
	rules []Rule
}

// NewPipeline returns a pipeline over rules.
func NewPipeline(rules ...Rule) *Pipeline {
	return &Pipeline{rules: rules}
}

// Use appends rules.
func (p *Pipeline) Use(rules ...Rule) {
	p.rules = append(p.rules, rules...)
}

// Len returns the number of registered rules.
func (p *Pipeline) Len() int {
	return len(p.rules)
}

// Run selects the rules matching op as submitted and chains them, the last
// next invoking final. It reports whether final ran.
func (p *Pipeline) Run(ctx context.Context, doc *core.Document, op *Operation, final Next) (bool, error) {
	var chain []Rule
	for _, r := range p.rules {
		if r.Handler != nil && r.Matches(*op) {
			chain = append(chain, r)
		}
	}

	executed := false
	var step func(i int) Next
	step = func(i int) Next {
		return func(ctx context.Context, op *Operation) error {
			if i == len(chain) {
				executed = true
				return final(ctx, op)
			}
			return chain[i].Handler(ctx, doc, op, step(i+1))
		}
	}

	err := step(0)(ctx, op)
	return executed, err
}
