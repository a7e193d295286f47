// Package policy evaluates agent turns against call-compliance rules.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA compliance engine. The rego module defines the
// required-element and forbidden-phrase rules for collection calls.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given rego policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.call_compliance.violations"),
		rego.Module("call_compliance.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Check evaluates the agent side of one transcript and returns the sorted
// list of violations; an empty list means the call was compliant.
func (e *Engine) Check(ctx context.Context, agentText string) ([]string, error) {
	input := map[string]interface{}{
		"text": strings.ToLower(agentText),
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}

	violations := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			violations = append(violations, s)
		}
	}
	sort.Strings(violations)
	return violations, nil
}

// DefaultPolicy holds the built-in call-compliance rules: the elements a
// collection call must contain and the language it must never contain.
const DefaultPolicy = `
package call_compliance

import rego.v1

forbidden_phrases := [
	"lawsuit",
	"legal action",
	"arrest",
	"police",
	"sue you",
	"must pay immediately",
	"have to pay now",
	"final chance",
	"last chance",
	"only chance",
	"irresponsible",
	"negligent",
	"deadbeat",
	"guaranteed to remove",
]

violations contains msg if {
	some phrase in forbidden_phrases
	contains(input.text, phrase)
	msg := sprintf("forbidden phrase used: %q", [phrase])
}

violations contains "missing agent identification" if {
	not contains(input.text, "my name is")
}

violations contains "missing company identification" if {
	not contains(input.text, "calling from")
}

violations contains "missing recording disclosure" if {
	not contains(input.text, "recorded")
}

violations contains "missing identity verification" if {
	not contains(input.text, "verify")
	not contains(input.text, "confirm your")
}

violations contains "missing purpose statement" if {
	not contains(input.text, "regarding your")
}
`
