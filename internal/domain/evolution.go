package domain

import (
	"fmt"
	"time"
)

// Evolution is the lifecycle record of one accepted change to one workshop.
type Evolution struct {
	EvolutionID         string                 `json:"evolution_id"`
	WorkshopName        string                 `json:"workshop_name"`
	Type                EvolutionType          `json:"evolution_type"`
	Phase               EvolutionPhase         `json:"phase"`
	CurrentVersion      string                 `json:"current_version,omitempty"`
	TargetVersion       string                 `json:"target_version,omitempty"`
	BackupVersion       string                 `json:"backup_version,omitempty"`
	ApprovalID          string                 `json:"approval_id,omitempty"`
	RequestedBy         string                 `json:"requested_by"`
	ApprovedBy          string                 `json:"approved_by,omitempty"`
	ImplementedBy       string                 `json:"implemented_by,omitempty"`
	Description         string                 `json:"description,omitempty"`
	ApprovedChanges     []string               `json:"approved_changes,omitempty"`
	ResearchBasis       string                 `json:"research_basis,omitempty"`
	ImpactAssessment    string                 `json:"impact_assessment,omitempty"`
	FilesModified       []string               `json:"files_modified,omitempty"`
	ContentUpdated      bool                   `json:"content_updated"`
	DeploymentTriggered bool                   `json:"deployment_triggered"`
	RollbackAvailable   bool                   `json:"rollback_available"`
	CreatedAt           time.Time              `json:"created_at"`
	ApprovedAt          *time.Time             `json:"approved_at,omitempty"`
	ImplementedAt       *time.Time             `json:"implemented_at,omitempty"`
	CompletedAt         *time.Time             `json:"completed_at,omitempty"`
	LastUpdated         time.Time              `json:"last_updated"`
	Metrics             map[string]interface{} `json:"metrics,omitempty"`
	ValidationResults   []ValidationResult     `json:"validation_results,omitempty"`
	ErrorMessage        string                 `json:"error_message,omitempty"`
	RollbackReason      string                 `json:"rollback_reason,omitempty"`
}

// ValidationResult is one check recorded against an evolution.
type ValidationResult struct {
	Check      string    `json:"check"`
	Passed     bool      `json:"passed"`
	Details    string    `json:"details,omitempty"`
	Source     string    `json:"source,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DurationMinutes is the elapsed time from creation to completion, or to now
// while the evolution is still open.
func (e *Evolution) DurationMinutes(now time.Time) int64 {
	end := now
	if e.CompletedAt != nil {
		end = *e.CompletedAt
	}
	d := end.Sub(e.CreatedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}

// RefreshRollback recomputes RollbackAvailable from the backup and phase.
func (e *Evolution) RefreshRollback() {
	e.RollbackAvailable = e.BackupVersion != "" && e.Phase.CanBeRolledBack()
}

// Clone returns a copy that shares no mutable state with e.
func (e *Evolution) Clone() *Evolution {
	if e == nil {
		return nil
	}
	c := *e
	c.ApprovedChanges = append([]string(nil), e.ApprovedChanges...)
	c.FilesModified = append([]string(nil), e.FilesModified...)
	c.ValidationResults = append([]ValidationResult(nil), e.ValidationResults...)
	c.Metrics = CloneContent(e.Metrics)
	c.ApprovedAt = cloneTime(e.ApprovedAt)
	c.ImplementedAt = cloneTime(e.ImplementedAt)
	c.CompletedAt = cloneTime(e.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var phaseDescriptions = map[EvolutionPhase]string{
	PhaseRequested:    "Evolution has been requested and is awaiting review",
	PhaseUnderReview:  "Evolution is under human review",
	PhaseApproved:     "Evolution has been approved for implementation",
	PhaseImplementing: "Changes are being implemented",
	PhaseValidating:   "Implemented changes are being validated",
	PhaseCompleted:    "Changes are implemented and validated",
	PhaseDeployed:     "Changes are deployed",
	PhaseRejected:     "Evolution was rejected during review",
	PhaseFailed:       "Implementation or validation failed",
	PhaseRolledBack:   "Changes were rolled back",
	PhaseCancelled:    "Evolution was cancelled",
}

var nextPhase = map[EvolutionPhase]EvolutionPhase{
	PhaseRequested:    PhaseUnderReview,
	PhaseUnderReview:  PhaseApproved,
	PhaseApproved:     PhaseImplementing,
	PhaseImplementing: PhaseValidating,
	PhaseValidating:   PhaseCompleted,
	PhaseCompleted:    PhaseDeployed,
}

var allowedTransitions = map[EvolutionPhase]map[EvolutionPhase]struct{}{
	PhaseRequested: {
		PhaseUnderReview: {},
		PhaseCancelled:   {},
	},
	PhaseUnderReview: {
		PhaseApproved:  {},
		PhaseRejected:  {},
		PhaseCancelled: {},
	},
	PhaseApproved: {
		PhaseImplementing: {},
		PhaseCancelled:    {},
	},
	PhaseImplementing: {
		PhaseValidating: {},
		PhaseFailed:     {},
		PhaseCancelled:  {},
	},
	PhaseValidating: {
		PhaseCompleted: {},
		PhaseFailed:    {},
		PhaseCancelled: {},
	},
	PhaseCompleted: {
		PhaseDeployed:   {},
		PhaseRolledBack: {},
	},
	PhaseDeployed: {
		PhaseRolledBack: {},
	},
}

// AllPhases lists the phases in lifecycle order.
func AllPhases() []EvolutionPhase {
	return []EvolutionPhase{
		PhaseRequested, PhaseUnderReview, PhaseApproved, PhaseImplementing, PhaseValidating,
		PhaseCompleted, PhaseDeployed, PhaseRejected, PhaseFailed, PhaseRolledBack, PhaseCancelled,
	}
}

// Valid reports whether p is a known phase.
func (p EvolutionPhase) Valid() bool {
	_, ok := phaseDescriptions[p]
	return ok
}

// Description returns a human-readable description of the phase.
func (p EvolutionPhase) Description() string {
	return phaseDescriptions[p]
}

// IsActive reports whether work on the evolution is still in progress.
func (p EvolutionPhase) IsActive() bool {
	switch p {
	case PhaseRequested, PhaseUnderReview, PhaseApproved, PhaseImplementing, PhaseValidating:
		return true
	}
	return false
}

// IsTerminal reports whether the phase ends the active lifecycle.
// COMPLETED counts as terminal for statistics even though it may still be
// deployed or rolled back.
func (p EvolutionPhase) IsTerminal() bool {
	return p.IsSuccessful() || p.IsFailed()
}

// IsSuccessful reports whether the phase is a successful outcome.
func (p EvolutionPhase) IsSuccessful() bool {
	return p == PhaseCompleted || p == PhaseDeployed
}

// IsFailed reports whether the phase is a failed outcome.
func (p EvolutionPhase) IsFailed() bool {
	switch p {
	case PhaseRejected, PhaseFailed, PhaseRolledBack, PhaseCancelled:
		return true
	}
	return false
}

// StampsCompletion reports whether entering p sets completedAt.
func (p EvolutionPhase) StampsCompletion() bool {
	return p == PhaseDeployed || p.IsFailed()
}

// CanBeCancelled reports whether the evolution may still be cancelled
// without rolling anything back.
func (p EvolutionPhase) CanBeCancelled() bool {
	switch p {
	case PhaseRequested, PhaseUnderReview, PhaseApproved:
		return true
	}
	return false
}

// CanBeRolledBack reports whether implemented changes exist to roll back.
func (p EvolutionPhase) CanBeRolledBack() bool {
	return p == PhaseCompleted || p == PhaseDeployed
}

// NextPhase returns the following phase on the success path.
func (p EvolutionPhase) NextPhase() (EvolutionPhase, bool) {
	n, ok := nextPhase[p]
	return n, ok
}

// AllowedNext lists the phases reachable from p.
func (p EvolutionPhase) AllowedNext() []EvolutionPhase {
	var out []EvolutionPhase
	for _, candidate := range AllPhases() {
		if _, ok := allowedTransitions[p][candidate]; ok {
			out = append(out, candidate)
		}
	}
	return out
}

// ValidateTransition checks that to is reachable from from.
func ValidateTransition(from, to EvolutionPhase) error {
	if !to.Valid() {
		return &ValidationError{Field: "phase", Message: fmt.Sprintf("Invalid evolution phase: %s", to)}
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return &StateError{
			Kind:    "evolution",
			Current: string(from),
			Message: fmt.Sprintf("invalid phase transition %s -> %s", from, to),
		}
	}
	return nil
}

// EvolutionTypeInfo carries the fixed metadata of an evolution type.
type EvolutionTypeInfo struct {
	Type                     EvolutionType `json:"type"`
	DisplayName              string        `json:"display_name"`
	TypicalDurationHours     int           `json:"typical_duration_hours"`
	Priority                 Priority      `json:"priority"`
	RequiresExtensiveTesting bool          `json:"requires_extensive_testing"`
	AffectsMultipleSections  bool          `json:"affects_multiple_sections"`
}

var evolutionTypes = map[EvolutionType]EvolutionTypeInfo{
	EvolutionTypeResearchUpdate:          {EvolutionTypeResearchUpdate, "Research Update", 48, PriorityNormal, false, true},
	EvolutionTypeTechnologyRefresh:       {EvolutionTypeTechnologyRefresh, "Technology Refresh", 72, PriorityHigh, true, true},
	EvolutionTypeFeedbackIntegration:     {EvolutionTypeFeedbackIntegration, "Feedback Integration", 24, PriorityNormal, false, false},
	EvolutionTypeContentExpansion:        {EvolutionTypeContentExpansion, "Content Expansion", 96, PriorityNormal, true, true},
	EvolutionTypeContentUpdate:           {EvolutionTypeContentUpdate, "Content Update", 12, PriorityNormal, false, false},
	EvolutionTypeBugFix:                  {EvolutionTypeBugFix, "Bug Fix", 4, PriorityHigh, false, false},
	EvolutionTypeSecurityUpdate:          {EvolutionTypeSecurityUpdate, "Security Update", 8, PriorityUrgent, true, false},
	EvolutionTypePerformanceOptimization: {EvolutionTypePerformanceOptimization, "Performance Optimization", 16, PriorityHigh, true, true},
}

// Info returns the metadata of t.
func (t EvolutionType) Info() (EvolutionTypeInfo, bool) {
	info, ok := evolutionTypes[t]
	return info, ok
}

// Valid reports whether t is a known evolution type.
func (t EvolutionType) Valid() bool {
	_, ok := evolutionTypes[t]
	return ok
}

// EvolutionStatistics aggregates the tracker's contents.
type EvolutionStatistics struct {
	TotalEvolutions        int                    `json:"total_evolutions"`
	ActiveEvolutions       int                    `json:"active_evolutions"`
	ByPhase                map[EvolutionPhase]int `json:"by_phase"`
	ByType                 map[EvolutionType]int  `json:"by_type"`
	SuccessRate            float64                `json:"success_rate"`
	AverageDurationMinutes float64                `json:"average_duration_minutes"`
	RecentActivity7Days    int                    `json:"recent_activity_7_days"`
	LastUpdated            time.Time              `json:"last_updated"`
}

// WorkshopSummary describes the evolution history of one workshop.
type WorkshopSummary struct {
	WorkshopName    string                 `json:"workshop_name"`
	TotalEvolutions int                    `json:"total_evolutions"`
	ActiveCount     int                    `json:"active_count"`
	LatestEvolution *Evolution             `json:"latest_evolution,omitempty"`
	StatusCounts    map[EvolutionPhase]int `json:"status_counts"`
}
