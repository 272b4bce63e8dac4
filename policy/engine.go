package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Input is the document evaluated before an evolution is executed.
type Input struct {
	Agent     string         `json:"agent"`
	Tool      string         `json:"tool"`
	Evolution EvolutionInput `json:"evolution"`
	Approval  ApprovalInput  `json:"approval"`
}

// EvolutionInput is the evolution part of Input.
type EvolutionInput struct {
	ID       string `json:"id"`
	Workshop string `json:"workshop"`
	Phase    string `json:"phase"`
	Type     string `json:"type"`
}

// ApprovalInput is the linked approval part of Input. Status is empty when no
// approval is linked.
type ApprovalInput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.workshop_policy.result"),
		rego.Module("workshop_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the execution policy.
// Returns: decision (allow, require_approval, block), reason, error
func (e *Engine) Evaluate(ctx context.Context, input Input) (domain.PolicyDecision, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyAllow, "default", nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return parseDecision(val, "")
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		return parseDecision(decision, reason)
	default:
		return "", "", fmt.Errorf("unexpected policy result type %T", val)
	}
}

func parseDecision(decision, reason string) (domain.PolicyDecision, string, error) {
	switch d := domain.PolicyDecision(decision); d {
	case domain.PolicyAllow, domain.PolicyRequireApproval, domain.PolicyBlock:
		return d, reason, nil
	default:
		return "", "", fmt.Errorf("unknown policy decision %q", decision)
	}
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package workshop_policy

default result = {"decision": "allow", "reason": "default"}

denied_approval = {"REJECTED", "TIMEOUT", "NEEDS_CHANGES"}

high_risk = {"security_update", "technology_refresh", "performance_optimization"}

# Only approved evolutions may be executed.
result = {"decision": "block", "reason": "evolution is not in APPROVED phase"} {
	input.evolution.phase != "APPROVED"
} else = {"decision": "block", "reason": "linked approval was not granted"} {
	denied_approval[input.approval.status]
} else = {"decision": "require_approval", "reason": "high-risk change needs an approved review"} {
	high_risk[input.evolution.type]
	input.approval.status != "APPROVED"
}
`
