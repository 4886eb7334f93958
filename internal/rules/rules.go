// Package rules evaluates user-supplied gate expressions against public
// operations. Rules let a team tighten the quality bar beyond the built-in
// gate without forking the tool.
package rules

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/rideflow/apigovern/internal/report"
	"github.com/rideflow/apigovern/internal/specdoc"
)

// Definition is one named rule as it appears in configuration. The
// expression must evaluate to a boolean; false fails the operation.
type Definition struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expr"`
}

type Rule struct {
	Name       string
	Expression string
	program    *exprvm.Program
}

// Compile builds every rule up front so a typo fails the run before any
// operation is judged.
func Compile(defs []Definition) ([]Rule, error) {
	rules := make([]Rule, 0, len(defs))
	for _, def := range defs {
		if def.Expression == "" {
			return nil, fmt.Errorf("rule %q has no expression", def.Name)
		}
		program, err := exprlang.Compile(def.Expression, exprlang.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", def.Name, err)
		}
		rules = append(rules, Rule{Name: def.Name, Expression: def.Expression, program: program})
	}
	return rules, nil
}

// Evaluate runs every rule against every public operation and collects one
// violation per failing rule.
func Evaluate(rls []Rule, doc *specdoc.Document) ([]report.Violation, error) {
	var violations []report.Violation
	for _, op := range doc.Operations() {
		if op.Visibility() != specdoc.VisibilityPublic {
			continue
		}
		env := operationEnv(op)
		for _, rule := range rls {
			result, err := exprlang.Run(rule.program, env)
			if err != nil {
				return nil, fmt.Errorf("evaluate rule %q on %s: %w", rule.Name, op.Key(), err)
			}
			ok, _ := result.(bool)
			if !ok {
				violations = append(violations, report.Violation{
					Kind:   report.KindRule,
					Method: op.Method,
					Path:   op.Path,
					Reason: fmt.Sprintf("rule %q failed", rule.Name),
				})
			}
		}
	}
	return violations, nil
}

func operationEnv(op specdoc.Operation) map[string]any {
	codes := make([]string, 0, 4)
	for _, resp := range op.Responses() {
		codes = append(codes, resp.Code)
	}
	return map[string]any{
		"method":      op.Method,
		"path":        op.Path,
		"visibility":  op.Visibility(),
		"status":      op.Status(),
		"summary":     op.Summary(),
		"operationId": op.OperationID(),
		"tags":        op.Tags(),
		"security":    op.Security(),
		"responses":   codes,
	}
}
