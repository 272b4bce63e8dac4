package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// SubmitApproval creates an approval request and persists it.
func (s *Service) SubmitApproval(ctx context.Context, sub domain.ApprovalSubmission) (*domain.ApprovalRequest, error) {
	req, err := s.approvals.Submit(sub)
	if err != nil {
		return nil, err
	}
	s.persistApproval(ctx, req.ApprovalID)
	return req, nil
}

// DecideApproval applies a reviewer verdict. When the approval gates an
// evolution, the evolution follows: approved moves it to APPROVED, rejected
// to REJECTED. A verdict is never undone because the evolution could not
// follow.
func (s *Service) DecideApproval(ctx context.Context, id string, decision domain.DecisionValue, in domain.DecisionInput) (*domain.ApprovalRequest, error) {
	var (
		req *domain.ApprovalRequest
		err error
	)
	switch decision {
	case domain.DecisionApproved:
		req, err = s.approvals.Approve(id, in)
	case domain.DecisionRejected:
		req, err = s.approvals.Reject(id, in)
	case domain.DecisionNeedsChanges:
		req, err = s.approvals.RequestChanges(id, in)
	default:
		return nil, &domain.ValidationError{Field: "decision", Message: fmt.Sprintf("Unsupported decision: %s", decision)}
	}
	if err != nil {
		return nil, err
	}
	s.persistApproval(ctx, id)

	switch decision {
	case domain.DecisionApproved:
		s.followApproval(ctx, req, domain.PhaseApproved, in.Reviewer, in.Comments)
	case domain.DecisionRejected:
		s.followApproval(ctx, req, domain.PhaseRejected, in.Reviewer, in.Comments)
	}
	return req, nil
}

// StartReview claims an approval for a reviewer.
func (s *Service) StartReview(ctx context.Context, id, reviewer string) (*domain.ApprovalRequest, error) {
	req, err := s.approvals.StartReview(id, reviewer)
	if err != nil {
		return nil, err
	}
	s.persistApproval(ctx, id)
	return req, nil
}

// ReviseApproval resubmits content after changes were requested.
func (s *Service) ReviseApproval(ctx context.Context, id string, in domain.ReviseRequest) (*domain.ApprovalRequest, error) {
	req, err := s.approvals.Revise(id, in.Actor, in.Content, in.Comments)
	if err != nil {
		return nil, err
	}
	s.persistApproval(ctx, id)
	return req, nil
}

// EscalateApproval escalates an approval by hand.
func (s *Service) EscalateApproval(ctx context.Context, id string, in domain.EscalateRequest) (*domain.ApprovalRequest, error) {
	req, err := s.approvals.Escalate(id, in.Reason, in.EscalatedTo)
	if err != nil {
		return nil, err
	}
	s.persistApproval(ctx, id)
	return req, nil
}

// followApproval moves the evolution linked to req, if any.
func (s *Service) followApproval(ctx context.Context, req *domain.ApprovalRequest, phase domain.EvolutionPhase, actor, message string) {
	evolutionID := req.Context[contextKeyEvolution]
	if evolutionID == "" {
		return
	}
	evo, err := s.evolutions.UpdateStatus(evolutionID, phase, actor, message)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("approval_id", req.ApprovalID).
			Str("evolution_id", evolutionID).
			Str("phase", string(phase)).
			Msg("linked evolution could not follow approval")
		return
	}
	s.persistEvolution(ctx, evo)
}

// RequestEvolution records a new evolution, submits the workshop_evolution
// approval that gates it and moves it to UNDER_REVIEW. The approval and the
// evolution are independent writes; if the approval cannot be submitted the
// evolution is cancelled.
func (s *Service) RequestEvolution(ctx context.Context, in domain.EvolutionRequest) (*domain.Evolution, *domain.ApprovalRequest, error) {
	evo, err := s.evolutions.Create(in)
	if err != nil {
		return nil, nil, err
	}
	s.persistEvolution(ctx, evo)

	content := domain.CloneContent(in.Content)
	if content == nil {
		content = make(map[string]interface{})
	}
	content["workshop_name"] = in.WorkshopName
	content["evolution_type"] = string(in.Type)
	if in.Description != "" {
		content["description"] = in.Description
	}
	if in.ResearchBasis != "" {
		content["research_basis"] = in.ResearchBasis
	}
	if in.ImpactAssessment != "" {
		content["impact_assessment"] = in.ImpactAssessment
	}

	priority := domain.PriorityNormal
	if info, ok := in.Type.Info(); ok {
		priority = info.Priority
	}

	req, err := s.SubmitApproval(ctx, domain.ApprovalSubmission{
		Type:        domain.ApprovalTypeWorkshopEvolution,
		Description: fmt.Sprintf("%s for %s", in.Type, in.WorkshopName),
		Content:     content,
		Priority:    priority,
		Requester:   in.RequestedBy,
		Context: map[string]string{
			contextKeyEvolution: evo.EvolutionID,
			"workshop_name":     in.WorkshopName,
		},
	})
	if err != nil {
		if cancelled, cerr := s.evolutions.UpdateStatus(evo.EvolutionID, domain.PhaseCancelled, systemActor, err.Error()); cerr == nil {
			s.persistEvolution(ctx, cancelled)
		}
		return nil, nil, fmt.Errorf("failed to submit evolution approval: %w", err)
	}

	if _, err := s.evolutions.LinkApproval(evo.EvolutionID, req.ApprovalID); err != nil {
		return nil, nil, err
	}
	evo, err = s.evolutions.UpdateStatus(evo.EvolutionID, domain.PhaseUnderReview, in.RequestedBy, "")
	if err != nil {
		return nil, nil, err
	}
	s.persistEvolution(ctx, evo)
	return evo, req, nil
}

// UpdateEvolutionStatus moves an evolution to another phase.
func (s *Service) UpdateEvolutionStatus(ctx context.Context, id string, in domain.PhaseUpdateRequest) (*domain.Evolution, error) {
	evo, err := s.evolutions.UpdateStatus(id, in.Phase, in.Actor, in.Message)
	if err != nil {
		return nil, err
	}
	s.persistEvolution(ctx, evo)
	return evo, nil
}

// UpdateImplementation records implementation details on an evolution.
func (s *Service) UpdateImplementation(ctx context.Context, id string, in domain.ImplementationUpdate) (*domain.Evolution, error) {
	evo, err := s.evolutions.UpdateImplementation(id, in)
	if err != nil {
		return nil, err
	}
	s.persistEvolution(ctx, evo)
	return evo, nil
}

// AddValidationResults appends validation results to an evolution.
func (s *Service) AddValidationResults(ctx context.Context, id string, results []domain.ValidationResult) (*domain.Evolution, error) {
	evo, err := s.evolutions.AddValidationResults(id, results)
	if err != nil {
		return nil, err
	}
	s.persistEvolution(ctx, evo)
	return evo, nil
}

// CleanupEvolutions purges terminal evolutions older than retentionDays.
func (s *Service) CleanupEvolutions(ctx context.Context, retentionDays int) (*domain.CleanupResult, error) {
	if retentionDays < 0 {
		return nil, &domain.ValidationError{Field: "retention_days", Message: "Retention days must not be negative"}
	}
	removed := s.evolutions.Cleanup(retentionDays)
	if s.store != nil && len(removed) > 0 {
		if err := s.store.DeleteEvolutions(ctx, removed); err != nil {
			s.log.Warn().Err(err).Int("count", len(removed)).Msg("failed to delete persisted evolutions")
		}
	}
	return &domain.CleanupResult{Deleted: len(removed)}, nil
}
