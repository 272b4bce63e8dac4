package domain

import "encoding/json"

// ApprovalSubmission is the input to submit an approval request.
type ApprovalSubmission struct {
	Type             ApprovalType           `json:"type"`
	Name             string                 `json:"name,omitempty"`
	Description      string                 `json:"description,omitempty"`
	Content          map[string]interface{} `json:"content"`
	Priority         Priority               `json:"priority,omitempty"`
	Requester        string                 `json:"requester"`
	Context          map[string]string      `json:"context,omitempty"`
	AssignedReviewer string                 `json:"assigned_reviewer,omitempty"`
}

// DecisionInput carries a reviewer's verdict details.
type DecisionInput struct {
	Reviewer             string   `json:"reviewer"`
	ReviewerRole         string   `json:"reviewer_role,omitempty"`
	Comments             string   `json:"comments,omitempty"`
	Rationale            string   `json:"rationale,omitempty"`
	ComplianceNotes      string   `json:"compliance_notes,omitempty"`
	QualityScore         *float64 `json:"quality_score,omitempty"`
	ConfidenceLevel      string   `json:"confidence_level,omitempty"`
	RequiresFollowup     bool     `json:"requires_followup,omitempty"`
	FollowupInstructions string   `json:"followup_instructions,omitempty"`
}

// EscalateRequest is the body of a manual escalation.
type EscalateRequest struct {
	Reason      string `json:"reason"`
	EscalatedTo string `json:"escalated_to"`
}

// StartReviewRequest claims a request for review.
type StartReviewRequest struct {
	Reviewer string `json:"reviewer"`
}

// ReviseRequest resubmits content after changes were requested.
type ReviseRequest struct {
	Actor    string                 `json:"actor"`
	Content  map[string]interface{} `json:"content"`
	Comments string                 `json:"comments,omitempty"`
}

// OverdueResult lists the ids touched by one overdue sweep.
type OverdueResult struct {
	Escalated []string `json:"escalated"`
}

// EvolutionRequest is the input to request a new evolution.
type EvolutionRequest struct {
	WorkshopName     string                 `json:"workshop_name"`
	Type             EvolutionType          `json:"evolution_type"`
	RequestedBy      string                 `json:"requested_by"`
	Description      string                 `json:"description,omitempty"`
	ResearchBasis    string                 `json:"research_basis,omitempty"`
	ImpactAssessment string                 `json:"impact_assessment,omitempty"`
	Content          map[string]interface{} `json:"content,omitempty"`
}

// PhaseUpdateRequest moves an evolution to another phase.
type PhaseUpdateRequest struct {
	Phase   EvolutionPhase `json:"phase"`
	Actor   string         `json:"actor"`
	Message string         `json:"message,omitempty"`
}

// ImplementationUpdate records what an implementation changed.
type ImplementationUpdate struct {
	ApprovedChanges []string `json:"approved_changes,omitempty"`
	CurrentVersion  string   `json:"current_version,omitempty"`
	TargetVersion   string   `json:"target_version,omitempty"`
	BackupVersion   string   `json:"backup_version,omitempty"`
	FilesModified   []string `json:"files_modified,omitempty"`
}

// ValidationResultsRequest appends validation results to an evolution.
type ValidationResultsRequest struct {
	Results []ValidationResult `json:"results"`
}

// ExecuteEvolutionRequest runs an approved evolution against an agent.
type ExecuteEvolutionRequest struct {
	Agent      string                 `json:"agent"`
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Actor      string                 `json:"actor"`
}

// InvokeAgentRequest calls a tool on an agent outside any evolution.
type InvokeAgentRequest struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// RegisterAgentRequest registers or updates an agent endpoint.
type RegisterAgentRequest struct {
	Name         string          `json:"name"`
	Endpoint     string          `json:"endpoint"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
}

// CleanupResult reports a retention purge.
type CleanupResult struct {
	Deleted int `json:"deleted"`
}
