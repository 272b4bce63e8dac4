package domain

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalTypeConfig describes one entry of the approval type catalog.
type ApprovalTypeConfig struct {
	Type            ApprovalType `json:"type" yaml:"type"`
	Name            string       `json:"name" yaml:"name"`
	TimeoutHours    float64      `json:"timeout_hours" yaml:"timeout_hours"`
	EscalationHours float64      `json:"escalation_hours" yaml:"escalation_hours"`
	RequiredRole    string       `json:"required_role" yaml:"required_role"`
}

// Timeout returns the configured timeout as a duration.
func (c ApprovalTypeConfig) Timeout() time.Duration {
	return hoursToDuration(c.TimeoutHours)
}

// Escalation returns the configured escalation delay as a duration.
func (c ApprovalTypeConfig) Escalation() time.Duration {
	return hoursToDuration(c.EscalationHours)
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// ApprovalRequest is a unit of human review.
type ApprovalRequest struct {
	ApprovalID       string                 `json:"approval_id"`
	Type             ApprovalType           `json:"type"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description,omitempty"`
	Content          map[string]interface{} `json:"content"`
	Priority         Priority               `json:"priority"`
	Requester        string                 `json:"requester"`
	Context          map[string]string      `json:"context,omitempty"`
	RequiredRole     string                 `json:"required_role"`
	TimeoutHours     float64                `json:"timeout_hours"`
	EscalationHours  float64                `json:"escalation_hours"`
	Status           ApprovalStatus         `json:"status"`
	AssignedReviewer string                 `json:"assigned_reviewer,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	TimeoutAt        time.Time              `json:"timeout_at"`
	EscalationAt     time.Time              `json:"escalation_at"`
	LastUpdated      time.Time              `json:"last_updated"`
	DecisionTime     *time.Time             `json:"decision_time,omitempty"`
	DecisionComments string                 `json:"decision_comments,omitempty"`
	EscalationReason string                 `json:"escalation_reason,omitempty"`
	AuditTrail       string                 `json:"audit_trail"`
}

// IsOverdue reports whether the request passed its timeout without a verdict.
func (r *ApprovalRequest) IsOverdue(now time.Time) bool {
	return now.After(r.TimeoutAt) && !r.Status.IsComplete() && r.Status != ApprovalStatusTimeout
}

// NeedsEscalation reports whether the sweep should escalate the request.
func (r *ApprovalRequest) NeedsEscalation(now time.Time) bool {
	return r.Status.IsPending() && r.Status != ApprovalStatusEscalated && now.After(r.EscalationAt)
}

// AppendAudit adds one formatted line to the audit trail.
func (r *ApprovalRequest) AppendAudit(at time.Time, action, actor, details string) {
	if strings.TrimSpace(details) == "" {
		details = "No details"
	}
	line := fmt.Sprintf("[%s] %s by %s: %s", at.UTC().Format(time.RFC3339), action, actor, details)
	if r.AuditTrail == "" {
		r.AuditTrail = line
		return
	}
	r.AuditTrail += "\n" + line
}

// AuditLines splits the audit trail into its entries.
func (r *ApprovalRequest) AuditLines() []string {
	if r.AuditTrail == "" {
		return nil
	}
	return strings.Split(r.AuditTrail, "\n")
}

// Clone returns a copy that shares no mutable state with r.
func (r *ApprovalRequest) Clone() *ApprovalRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Content = CloneContent(r.Content)
	if r.Context != nil {
		c.Context = make(map[string]string, len(r.Context))
		for k, v := range r.Context {
			c.Context[k] = v
		}
	}
	if r.DecisionTime != nil {
		t := *r.DecisionTime
		c.DecisionTime = &t
	}
	return &c
}

// CloneContent returns a shallow copy of a content payload.
func CloneContent(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ApprovalDecision is a reviewer's verdict. It is never modified after it is
// appended to a request's history.
type ApprovalDecision struct {
	ApprovalID            string        `json:"approval_id"`
	Decision              DecisionValue `json:"decision"`
	Reviewer              string        `json:"reviewer"`
	ReviewerRole          string        `json:"reviewer_role,omitempty"`
	Comments              string        `json:"comments,omitempty"`
	Rationale             string        `json:"rationale,omitempty"`
	ComplianceNotes       string        `json:"compliance_notes,omitempty"`
	DecisionTime          time.Time     `json:"decision_time"`
	ReviewDurationMinutes int64         `json:"review_duration_minutes"`
	QualityScore          *float64      `json:"quality_score,omitempty"`
	ConfidenceLevel       string        `json:"confidence_level,omitempty"`
	RequiresFollowup      bool          `json:"requires_followup"`
	FollowupInstructions  string        `json:"followup_instructions,omitempty"`
}

// ApprovalFilter narrows the pending queue.
type ApprovalFilter struct {
	Type     ApprovalType
	Priority Priority
	Reviewer string
	Role     string
}

// Matches reports whether r satisfies every non-empty field of f.
func (f ApprovalFilter) Matches(r *ApprovalRequest) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.Reviewer != "" && r.AssignedReviewer != f.Reviewer {
		return false
	}
	if f.Role != "" && r.RequiredRole != f.Role {
		return false
	}
	return true
}

// ApprovalStatusSummary is a point-in-time view of a request's deadlines.
type ApprovalStatusSummary struct {
	ApprovalID       string         `json:"approval_id"`
	Status           ApprovalStatus `json:"status"`
	AssignedReviewer string         `json:"assigned_reviewer,omitempty"`
	Overdue          bool           `json:"overdue"`
	NeedsEscalation  bool           `json:"needs_escalation"`
	TimeRemaining    string         `json:"time_remaining"`
	Decisions        int            `json:"decisions"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// ApprovalStats aggregates the engine's contents.
type ApprovalStats struct {
	Total    int                    `json:"total"`
	Pending  int                    `json:"pending"`
	Overdue  int                    `json:"overdue"`
	ByStatus map[ApprovalStatus]int `json:"by_status"`
	ByType   map[ApprovalType]int   `json:"by_type"`
}
