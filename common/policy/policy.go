// Package policy evaluates operator-configured release rules against
// submitted manifests. Rules are CEL expressions over a `manifest` variable
// and must evaluate to true for a release to be accepted; a failing rule
// contributes a validation error just like a malformed field does.
//
// Example rules:
//
//	!(manifest.name in ['core', 'registry'])
//	!manifest.name.startsWith('internal.')
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

type compiledRule struct {
	source  string
	program cel.Program
}

// Engine holds the compiled rule set. A nil engine accepts everything.
type Engine struct {
	rules []compiledRule
}

// New compiles the rule set. Invalid rules are a startup error, not a
// runtime one.
func New(rules []string) (*Engine, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("manifest", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create policy environment: %w", err)
	}

	engine := &Engine{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		ast, issues := env.Compile(rule)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile policy rule %q: %w", rule, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("policy rule %q must evaluate to a boolean", rule)
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build policy rule %q: %w", rule, err)
		}

		engine.rules = append(engine.rules, compiledRule{source: rule, program: program})
	}

	return engine, nil
}

// Check evaluates all rules against a manifest and returns one error string
// per violated rule. Evaluation errors (a rule referencing a missing field)
// count as violations: an unevaluable rule must not let a release through.
func (e *Engine) Check(m map[string]any) []string {
	if e == nil {
		return nil
	}

	var errors []string
	for _, rule := range e.rules {
		out, _, err := rule.program.Eval(map[string]any{"manifest": map[string]any(m)})
		if err != nil {
			errors = append(errors, fmt.Sprintf("Policy rule failed: %s.", rule.source))
			continue
		}
		if allowed, ok := out.Value().(bool); !ok || !allowed {
			errors = append(errors, fmt.Sprintf("Policy rule violated: %s.", rule.source))
		}
	}

	return errors
}
