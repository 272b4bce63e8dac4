// Package domain defines the core domain models for the workshop coordinator.
package domain

// ApprovalStatus represents the status of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending      ApprovalStatus = "PENDING"
	ApprovalStatusInReview     ApprovalStatus = "IN_REVIEW"
	ApprovalStatusApproved     ApprovalStatus = "APPROVED"
	ApprovalStatusRejected     ApprovalStatus = "REJECTED"
	ApprovalStatusNeedsChanges ApprovalStatus = "NEEDS_CHANGES"
	ApprovalStatusEscalated    ApprovalStatus = "ESCALATED"
	ApprovalStatusTimeout      ApprovalStatus = "TIMEOUT"
)

// IsPending reports whether a reviewer may still act on the request.
func (s ApprovalStatus) IsPending() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusInReview, ApprovalStatusEscalated:
		return true
	}
	return false
}

// IsComplete reports whether a reviewer has reached a verdict.
func (s ApprovalStatus) IsComplete() bool {
	switch s {
	case ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusNeedsChanges:
		return true
	}
	return false
}

// IsFinal reports whether no further decisions are accepted.
func (s ApprovalStatus) IsFinal() bool {
	switch s {
	case ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusTimeout:
		return true
	}
	return false
}

// ApprovalType identifies an entry of the approval type catalog.
type ApprovalType string

const (
	ApprovalTypeClassification          ApprovalType = "classification"
	ApprovalTypeContentReview           ApprovalType = "content_review"
	ApprovalTypeDeploymentAuthorization ApprovalType = "deployment_authorization"
	ApprovalTypeConflictResolution      ApprovalType = "conflict_resolution"
	ApprovalTypeRAGUpdate               ApprovalType = "rag_update"
	ApprovalTypeWorkshopEvolution       ApprovalType = "workshop_evolution"
	ApprovalTypeResearchIntegration     ApprovalType = "research_integration"
	ApprovalTypeTechnologyRefresh       ApprovalType = "technology_refresh"
)

// Priority is the urgency attached to approvals and evolution types.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DecisionValue is the verdict recorded in an ApprovalDecision.
type DecisionValue string

const (
	DecisionApproved     DecisionValue = "approved"
	DecisionRejected     DecisionValue = "rejected"
	DecisionNeedsChanges DecisionValue = "needs_changes"
	DecisionEscalated    DecisionValue = "escalated"
	DecisionDeferred     DecisionValue = "deferred"
)

// EvolutionPhase represents the lifecycle phase of an evolution.
type EvolutionPhase string

const (
	PhaseRequested    EvolutionPhase = "REQUESTED"
	PhaseUnderReview  EvolutionPhase = "UNDER_REVIEW"
	PhaseApproved     EvolutionPhase = "APPROVED"
	PhaseImplementing EvolutionPhase = "IMPLEMENTING"
	PhaseValidating   EvolutionPhase = "VALIDATING"
	PhaseCompleted    EvolutionPhase = "COMPLETED"
	PhaseDeployed     EvolutionPhase = "DEPLOYED"
	PhaseRejected     EvolutionPhase = "REJECTED"
	PhaseFailed       EvolutionPhase = "FAILED"
	PhaseRolledBack   EvolutionPhase = "ROLLED_BACK"
	PhaseCancelled    EvolutionPhase = "CANCELLED"
)

// EvolutionType classifies the kind of change an evolution applies.
type EvolutionType string

const (
	EvolutionTypeResearchUpdate          EvolutionType = "research_update"
	EvolutionTypeTechnologyRefresh       EvolutionType = "technology_refresh"
	EvolutionTypeFeedbackIntegration     EvolutionType = "feedback_integration"
	EvolutionTypeContentExpansion        EvolutionType = "content_expansion"
	EvolutionTypeContentUpdate           EvolutionType = "content_update"
	EvolutionTypeBugFix                  EvolutionType = "bug_fix"
	EvolutionTypeSecurityUpdate          EvolutionType = "security_update"
	EvolutionTypePerformanceOptimization EvolutionType = "performance_optimization"
)

// EventType represents the type of an outbound event.
type EventType string

const (
	EventTypeApprovalSubmitted     EventType = "approval_submitted"
	EventTypeApprovalReviewStarted EventType = "approval_review_started"
	EventTypeApprovalApproved      EventType = "approval_approved"
	EventTypeApprovalRejected      EventType = "approval_rejected"
	EventTypeApprovalChangesNeeded EventType = "approval_changes_requested"
	EventTypeApprovalRevised       EventType = "approval_revised"
	EventTypeApprovalEscalated     EventType = "approval_escalated"
	EventTypeEvolutionCreated      EventType = "evolution_created"
	EventTypeEvolutionPhaseChanged EventType = "evolution_phase_changed"
	EventTypeEvolutionUpdated      EventType = "evolution_updated"
	EventTypeAgentTaskSucceeded    EventType = "agent_task_succeeded"
	EventTypeAgentTaskFailed       EventType = "agent_task_failed"
	EventTypePolicyDecision        EventType = "policy_decision"
)

// PolicyDecision is the result of evaluating the execution policy.
type PolicyDecision string

const (
	PolicyAllow           PolicyDecision = "allow"
	PolicyRequireApproval PolicyDecision = "require_approval"
	PolicyBlock           PolicyDecision = "block"
)
