package patch

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/aretw0/patchwork/pkg/core"
)

// RuleSpec is a declarative middleware rule, as found in configuration.
// Expressions are evaluated against op, path, from, value, doc, type and id,
// with references rendered as their ids.
//
//	- op: add
//	  path: /first_name
//	  when: value == "Jimmy"
//	  set: '"Jimmie"'
type RuleSpec struct {
	Op   Op     `yaml:"op" json:"op,omitempty"`
	Path string `yaml:"path" json:"path,omitempty"`
	// When guards the rule; the operation passes through untouched when false.
	When string `yaml:"when" json:"when,omitempty"`
	// Set computes the value forwarded in place of the submitted one.
	Set string `yaml:"set" json:"set,omitempty"`
	// Reject aborts the patch with this message.
	Reject string `yaml:"reject" json:"reject,omitempty"`
	// Skip drops the operation without error.
	Skip bool `yaml:"skip" json:"skip,omitempty"`
}

// CompileRules turns specs into middleware rules.
func CompileRules(specs ...RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, s := range specs {
		r, err := s.Compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Compile builds the middleware rule described by s.
func (s RuleSpec) Compile() (Rule, error) {
	if s.Op != "" && s.Op != "*" && !s.Op.Valid() {
		return Rule{}, fmt.Errorf("%w: unsupported op %q", ErrInvalidOperation, s.Op)
	}
	if s.Set != "" && (s.Skip || s.Reject != "") {
		return Rule{}, fmt.Errorf("set cannot be combined with skip or reject")
	}

	var when, set *vm.Program
	var err error
	if s.When != "" {
		if when, err = expr.Compile(s.When, expr.Env(ruleEnv{}), expr.AsBool()); err != nil {
			return Rule{}, fmt.Errorf("compile when %q: %w", s.When, err)
		}
	}
	if s.Set != "" {
		if set, err = expr.Compile(s.Set, expr.Env(ruleEnv{})); err != nil {
			return Rule{}, fmt.Errorf("compile set %q: %w", s.Set, err)
		}
	}

	handler := func(ctx context.Context, doc *core.Document, op *Operation, next Next) error {
		env := newRuleEnv(doc, op)
		if when != nil {
			ok, err := expr.Run(when, env)
			if err != nil {
				return fmt.Errorf("evaluate when %q: %w", s.When, err)
			}
			if !ok.(bool) {
				return next(ctx, op)
			}
		}
		switch {
		case s.Reject != "":
			return fmt.Errorf("%w: %s", ErrRejected, s.Reject)
		case s.Skip:
			return nil
		case set != nil:
			v, err := expr.Run(set, env)
			if err != nil {
				return fmt.Errorf("evaluate set %q: %w", s.Set, err)
			}
			op.Value, op.HasValue = v, true
		}
		return next(ctx, op)
	}

	return Rule{Op: s.Op, Path: s.Path, Handler: handler}, nil
}

type ruleEnv struct {
	Op    string         `expr:"op"`
	Path  string         `expr:"path"`
	From  string         `expr:"from"`
	Value any            `expr:"value"`
	Doc   map[string]any `expr:"doc"`
	Type  string         `expr:"type"`
	ID    string         `expr:"id"`
}

func newRuleEnv(doc *core.Document, op *Operation) ruleEnv {
	env := ruleEnv{
		Op:    string(op.Op),
		Path:  op.Path,
		From:  op.From,
		Value: core.Plain(op.Value),
		Doc:   map[string]any{},
	}
	if doc != nil {
		env.Doc = core.Plain(map[string]any(doc.Fields)).(map[string]any)
		env.Type = doc.Type
		env.ID = doc.ID
	}
	return env
}
