package service

import (
	"context"
	"strings"
	"time"

	"github.com/xiaot623/gogo/coordinator/internal/adapter/notify"
	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/policy"
)

// ExecuteEvolution runs the approved work of an evolution on an agent. The
// execution policy is checked first; an allowed run moves the evolution to
// IMPLEMENTING, invokes the agent and records the outcome: VALIDATING with
// the agent result as a validation result, or FAILED with the error.
func (s *Service) ExecuteEvolution(ctx context.Context, id string, in domain.ExecuteEvolutionRequest) (*domain.Evolution, *domain.Invocation, error) {
	if strings.TrimSpace(in.Agent) == "" {
		return nil, nil, &domain.ValidationError{Field: "agent", Message: "Agent is required"}
	}
	if strings.TrimSpace(in.Tool) == "" {
		return nil, nil, &domain.ValidationError{Field: "tool", Message: "Tool is required"}
	}
	actor := in.Actor
	if actor == "" {
		actor = systemActor
	}

	evo, err := s.evolutions.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkPolicy(ctx, evo, in); err != nil {
		return nil, nil, err
	}

	// Only one caller may move the evolution out of APPROVED and run the agent.
	evo, err = s.evolutions.Claim(id, domain.PhaseApproved, domain.PhaseImplementing, actor, "")
	if err != nil {
		return nil, nil, err
	}
	s.persistEvolution(ctx, evo)

	params := domain.CloneContent(in.Parameters)
	if params == nil {
		params = make(map[string]interface{})
	}
	if _, ok := params["workshop_name"]; !ok {
		params["workshop_name"] = evo.WorkshopName
	}

	inv, invokeErr := s.bridge.Invoke(ctx, in.Agent, in.Tool, params)
	if invokeErr != nil {
		failed, err := s.evolutions.UpdateStatus(id, domain.PhaseFailed, actor, invokeErr.Error())
		if err != nil {
			s.log.Error().Err(err).Str("evolution_id", id).Msg("failed to mark evolution failed")
			return nil, nil, invokeErr
		}
		s.persistEvolution(ctx, failed)
		return failed, nil, invokeErr
	}

	if _, err := s.evolutions.AddValidationResults(id, []domain.ValidationResult{{
		Check:   "agent:" + in.Tool,
		Passed:  true,
		Details: inv.Result,
		Source:  in.Agent,
	}}); err != nil {
		return nil, inv, err
	}
	if _, err := s.evolutions.RecordMetrics(id, map[string]interface{}{
		"agent_task_id":     inv.TaskID,
		"agent_attempts":    inv.Attempts,
		"agent_duration_ms": inv.Duration.Milliseconds(),
	}); err != nil {
		return nil, inv, err
	}
	evo, err = s.evolutions.UpdateStatus(id, domain.PhaseValidating, actor, "")
	if err != nil {
		return nil, inv, err
	}
	s.persistEvolution(ctx, evo)
	return evo, inv, nil
}

func (s *Service) checkPolicy(ctx context.Context, evo *domain.Evolution, in domain.ExecuteEvolutionRequest) error {
	if s.policyEngine == nil {
		return nil
	}
	input := policy.Input{
		Agent: in.Agent,
		Tool:  in.Tool,
		Evolution: policy.EvolutionInput{
			ID:       evo.EvolutionID,
			Workshop: evo.WorkshopName,
			Phase:    string(evo.Phase),
			Type:     string(evo.Type),
		},
	}
	if evo.ApprovalID != "" {
		input.Approval.ID = evo.ApprovalID
		if req, err := s.approvals.Get(evo.ApprovalID); err == nil {
			input.Approval.Status = string(req.Status)
		}
	}

	decision, reason, err := s.policyEngine.Evaluate(ctx, input)
	if err != nil {
		return err
	}
	s.log.Info().
		Str("evolution_id", evo.EvolutionID).
		Str("agent", in.Agent).
		Str("tool", in.Tool).
		Str("decision", string(decision)).
		Str("reason", reason).
		Msg("policy evaluated")
	s.emitter.Emit(notify.NewEvent(domain.EventTypePolicyDecision, evo.EvolutionID, in.Actor, time.Now(), map[string]interface{}{
		"decision": decision,
		"reason":   reason,
		"input":    input,
	}))

	if decision != domain.PolicyAllow {
		return &domain.PolicyError{Decision: decision, Reason: reason}
	}
	return nil
}

// InvokeAgent calls a tool on an agent outside any evolution.
func (s *Service) InvokeAgent(ctx context.Context, agent string, in domain.InvokeAgentRequest) (*domain.Invocation, error) {
	if strings.TrimSpace(in.Tool) == "" {
		return nil, &domain.ValidationError{Field: "tool", Message: "Tool is required"}
	}
	return s.bridge.Invoke(ctx, agent, in.Tool, in.Parameters)
}
