package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/internal/adapter/notify"
	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/metrics"
)

const (
	// DefaultEscalationExtension is how far an escalation pushes timeoutAt.
	DefaultEscalationExtension = 2 * time.Hour
	// AutoEscalationReason is recorded when the sweep escalates a request.
	AutoEscalationReason = "Automatic escalation due to timeout"
	// DefaultEscalationAssignee receives automatically escalated requests.
	DefaultEscalationAssignee = "management"

	systemActor = "system"
)

// Catalog resolves approval types to their configuration.
type Catalog interface {
	Lookup(t domain.ApprovalType) (domain.ApprovalTypeConfig, bool)
}

// ApprovalEngine manages submission, review, decision, timeout and
// escalation of approval requests. All state is held in memory.
type ApprovalEngine struct {
	mu       sync.Mutex
	requests map[string]*domain.ApprovalRequest
	history  map[string][]domain.ApprovalDecision

	catalog    Catalog
	emitter    notify.Emitter
	log        zerolog.Logger
	clock      func() time.Time
	extension  time.Duration
	escalateTo string
}

// ApprovalOption configures an ApprovalEngine.
type ApprovalOption func(*ApprovalEngine)

// WithApprovalClock overrides the time source (for tests).
func WithApprovalClock(clock func() time.Time) ApprovalOption {
	return func(e *ApprovalEngine) { e.clock = clock }
}

// WithApprovalEmitter sets the notification side channel.
func WithApprovalEmitter(emitter notify.Emitter) ApprovalOption {
	return func(e *ApprovalEngine) { e.emitter = emitter }
}

// WithApprovalLogger sets the logger.
func WithApprovalLogger(log zerolog.Logger) ApprovalOption {
	return func(e *ApprovalEngine) { e.log = log }
}

// WithEscalationExtension sets how far escalation pushes timeoutAt.
// Non-positive values are ignored so that escalation never shortens a deadline.
func WithEscalationExtension(d time.Duration) ApprovalOption {
	return func(e *ApprovalEngine) {
		if d > 0 {
			e.extension = d
		}
	}
}

// WithEscalationAssignee sets who receives automatic escalations.
func WithEscalationAssignee(assignee string) ApprovalOption {
	return func(e *ApprovalEngine) {
		if assignee != "" {
			e.escalateTo = assignee
		}
	}
}

// NewApprovalEngine creates an engine over the given type catalog.
func NewApprovalEngine(catalog Catalog, opts ...ApprovalOption) *ApprovalEngine {
	e := &ApprovalEngine{
		requests:   make(map[string]*domain.ApprovalRequest),
		history:    make(map[string][]domain.ApprovalDecision),
		catalog:    catalog,
		emitter:    notify.Discard,
		log:        zerolog.Nop(),
		clock:      time.Now,
		extension:  DefaultEscalationExtension,
		escalateTo: DefaultEscalationAssignee,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit validates and stores a new approval request in PENDING status.
func (e *ApprovalEngine) Submit(sub domain.ApprovalSubmission) (*domain.ApprovalRequest, error) {
	if strings.TrimSpace(string(sub.Type)) == "" {
		return nil, &domain.ValidationError{Field: "type", Message: "Approval type is required"}
	}
	cfg, ok := e.catalog.Lookup(sub.Type)
	if !ok {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("Invalid approval type: %s", sub.Type)}
	}
	if strings.TrimSpace(sub.Requester) == "" {
		return nil, &domain.ValidationError{Field: "requester", Message: "Requester is required"}
	}
	if len(sub.Content) == 0 {
		return nil, &domain.ValidationError{Field: "content", Message: "Content is required for approval"}
	}

	now := e.clock()
	req := &domain.ApprovalRequest{
		ApprovalID:       uuid.New().String(),
		Type:             sub.Type,
		Name:             cfg.Name,
		Description:      sub.Description,
		Content:          sub.Content,
		Priority:         sub.Priority,
		Requester:        sub.Requester,
		Context:          sub.Context,
		RequiredRole:     cfg.RequiredRole,
		TimeoutHours:     cfg.TimeoutHours,
		EscalationHours:  cfg.EscalationHours,
		Status:           domain.ApprovalStatusPending,
		AssignedReviewer: sub.AssignedReviewer,
		CreatedAt:        now,
		TimeoutAt:        now.Add(cfg.Timeout()),
		EscalationAt:     now.Add(cfg.Escalation()),
		LastUpdated:      now,
	}
	if sub.Name != "" {
		req.Name = sub.Name
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityNormal
	}
	req.AppendAudit(now, "SUBMITTED", req.Requester, req.Description)

	// The stored copy must not alias the caller's maps.
	stored := req.Clone()
	e.mu.Lock()
	e.requests[stored.ApprovalID] = stored
	e.history[stored.ApprovalID] = []domain.ApprovalDecision{}
	e.mu.Unlock()
	out := req

	metrics.RecordApprovalSubmitted(string(req.Type))
	e.log.Info().
		Str("approval_id", out.ApprovalID).
		Str("type", string(out.Type)).
		Str("requester", out.Requester).
		Time("escalation_at", out.EscalationAt).
		Msg("approval submitted")
	e.emit(domain.EventTypeApprovalSubmitted, out, out.Requester, reviewers(out)...)
	return out, nil
}

// Get returns a copy of the request.
func (e *ApprovalEngine) Get(id string) (*domain.ApprovalRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "approval", ID: id}
	}
	return req.Clone(), nil
}

// History returns the decisions recorded for a request, oldest first.
func (e *ApprovalEngine) History(id string) ([]domain.ApprovalDecision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.requests[id]; !ok {
		return nil, &domain.NotFoundError{Kind: "approval", ID: id}
	}
	return append([]domain.ApprovalDecision{}, e.history[id]...), nil
}

// StatusSummary reports the deadline state of a request.
func (e *ApprovalEngine) StatusSummary(id string) (*domain.ApprovalStatusSummary, error) {
	now := e.clock()
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "approval", ID: id}
	}
	remaining := time.Duration(0)
	if req.Status.IsPending() && req.TimeoutAt.After(now) {
		remaining = req.TimeoutAt.Sub(now).Truncate(time.Second)
	}
	return &domain.ApprovalStatusSummary{
		ApprovalID:       req.ApprovalID,
		Status:           req.Status,
		AssignedReviewer: req.AssignedReviewer,
		Overdue:          req.IsOverdue(now),
		NeedsEscalation:  req.NeedsEscalation(now),
		TimeRemaining:    remaining.String(),
		Decisions:        len(e.history[id]),
		LastUpdated:      req.LastUpdated,
	}, nil
}

// Approve records an approval. The request must be pending.
func (e *ApprovalEngine) Approve(id string, in domain.DecisionInput) (*domain.ApprovalRequest, error) {
	return e.decide(id, in, domain.ApprovalStatusApproved, domain.DecisionApproved, "APPROVED", domain.EventTypeApprovalApproved)
}

// Reject records a rejection. The request must be pending.
func (e *ApprovalEngine) Reject(id string, in domain.DecisionInput) (*domain.ApprovalRequest, error) {
	return e.decide(id, in, domain.ApprovalStatusRejected, domain.DecisionRejected, "REJECTED", domain.EventTypeApprovalRejected)
}

// RequestChanges sends the request back to the requester. NEEDS_CHANGES is
// complete but not final: the requester may revise and resubmit.
func (e *ApprovalEngine) RequestChanges(id string, in domain.DecisionInput) (*domain.ApprovalRequest, error) {
	return e.decide(id, in, domain.ApprovalStatusNeedsChanges, domain.DecisionNeedsChanges, "CHANGES_REQUESTED", domain.EventTypeApprovalChangesNeeded)
}

func (e *ApprovalEngine) decide(id string, in domain.DecisionInput, status domain.ApprovalStatus, value domain.DecisionValue, action string, eventType domain.EventType) (*domain.ApprovalRequest, error) {
	e.mu.Lock()
	req, ok := e.requests[id]
	if !ok {
		e.mu.Unlock()
		return nil, &domain.NotFoundError{Kind: "approval", ID: id}
	}
	if !req.Status.IsPending() {
		current := req.Status
		e.mu.Unlock()
		return nil, &domain.StateError{Kind: "approval", ID: id, Current: string(current), Message: "approval is not pending"}
	}
	if strings.TrimSpace(in.Reviewer) == "" {
		e.mu.Unlock()
		return nil, &domain.ValidationError{Field: "reviewer", Message: "Reviewer is required"}
	}

	now := e.clock()
	decision := domain.ApprovalDecision{
		ApprovalID:            id,
		Decision:              value,
		Reviewer:              in.Reviewer,
		ReviewerRole:          in.ReviewerRole,
		Comments:              in.Comments,
		Rationale:             in.Rationale,
		ComplianceNotes:       in.ComplianceNotes,
		DecisionTime:          now,
		ReviewDurationMinutes: reviewMinutes(req.CreatedAt, now),
		QualityScore:          in.QualityScore,
		ConfidenceLevel:       in.ConfidenceLevel,
		RequiresFollowup:      in.RequiresFollowup,
		FollowupInstructions:  in.FollowupInstructions,
	}

	req.Status = status
	req.AssignedReviewer = in.Reviewer
	req.DecisionTime = &now
	req.DecisionComments = in.Comments
	req.LastUpdated = now
	req.AppendAudit(now, action, in.Reviewer, in.Comments)
	e.history[id] = append(e.history[id], decision)
	out := req.Clone()
	e.mu.Unlock()

	metrics.RecordApprovalDecision(string(out.Type), string(value), decision.ReviewDurationMinutes)
	e.log.Info().
		Str("approval_id", id).
		Str("decision", string(value)).
		Str("reviewer", in.Reviewer).
		Int64("review_minutes", decision.ReviewDurationMinutes).
		Msg("approval decided")
	e.emit(eventType, out, in.Reviewer, out.Requester)
	return out, nil
}

// StartReview claims a PENDING or ESCALATED request for a reviewer.
func (e *ApprovalEngine) StartReview(id, reviewer string) (*domain.ApprovalRequest, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, &domain.ValidationError{Field: "reviewer", Message: "Reviewer is required"}
	}
	e.mu.Lock()
	req, ok := e.requests[id]
	if !ok {
		e.mu.Unlock()
		return nil, &domain.NotFoundError{Kind: "approval", ID: id}
	}
	if req.Status != domain.ApprovalStatusPending && req.Status != domain.ApprovalStatusEscalated {
		current := req.Status
		e.mu.Unlock()
		return nil, &domain.StateError{Kind: "approval", ID: id, Current: string(current), Message: "approval cannot enter review"}
	}
	now := e.clock()
	req.Status = domain.ApprovalStatusInReview
	req.AssignedReviewer = reviewer
	req.LastUpdated = now
	req.AppendAudit(now, "REVIEW_STARTED", reviewer, "")
	out := req.Clone()
	e.mu.Unlock()

	e.emit(domain.EventTypeApprovalReviewStarted, out, reviewer, out.Requester)
	return out, nil
}

// Revise replaces the content of a NEEDS_CHANGES request and returns it to
// PENDING. Deadlines keep their original values.
func (e *ApprovalEngine) Revise(id, actor string, content map[string]interface{}, comments string) (*domain.ApprovalRequest, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, &domain.ValidationError{Field: "actor", Message: "Actor is required"}
	}
	if len(content) == 0 {
		return nil, &domain.ValidationError{Field: "content", Message: "Content is required for approval"}
	}
	e.mu.Lock()
	req, ok := e.requests[id]
	if !ok {
		e.mu.Unlock()
		return nil, &domain.NotFoundError{Kind: "approval", ID: id}
	}
	if req.Status != domain.ApprovalStatusNeedsChanges {
		current := req.Status
		e.mu.Unlock()
		return nil, &domain.StateError{Kind: "approval", ID: id, Current: string(current), Message: "approval has no requested changes"}
	}
	now := e.clock()
	req.Content = domain.CloneContent(content)
	req.Status = domain.ApprovalStatusPending
	req.DecisionTime = nil
	req.LastUpdated = now
	req.AppendAudit(now, "REVISED", actor, comments)
	out := req.Clone()
	e.mu.Unlock()

	e.emit(domain.EventTypeApprovalRevised, out, actor, reviewers(out)...)
	return out, nil
}

// Escalate reassigns a request to escalatedTo and extends its timeout.
func (e *ApprovalEngine) Escalate(id, reason, escalatedTo string) (*domain.ApprovalRequest, error) {
	return e.escalate(id, reason, escalatedTo, false)
}

func (e *ApprovalEngine) escalate(id, reason, escalatedTo string, automatic bool) (*domain.ApprovalRequest, error) {
	if strings.TrimSpace(escalatedTo) == "" {
		return nil, &domain.ValidationError{Field: "escalated_to", Message: "Escalation target is required"}
	}
	e.mu.Lock()
	req, ok := e.requests[id]
	if !ok {
		e.mu.Unlock()
		return nil, &domain.NotFoundError{Kind: "approval", ID: id}
	}
	if !req.Status.IsPending() {
		current := req.Status
		e.mu.Unlock()
		return nil, &domain.StateError{Kind: "approval", ID: id, Current: string(current), Message: "only pending approvals can be escalated"}
	}

	now := e.clock()
	req.Status = domain.ApprovalStatusEscalated
	req.AssignedReviewer = escalatedTo
	req.EscalationReason = reason
	req.TimeoutAt = req.TimeoutAt.Add(e.extension)
	req.LastUpdated = now
	req.AppendAudit(now, "ESCALATED", systemActor, fmt.Sprintf("%s (assigned to %s)", reason, escalatedTo))
	e.history[id] = append(e.history[id], domain.ApprovalDecision{
		ApprovalID:            id,
		Decision:              domain.DecisionEscalated,
		Reviewer:              systemActor,
		Comments:              reason,
		DecisionTime:          now,
		ReviewDurationMinutes: reviewMinutes(req.CreatedAt, now),
	})
	out := req.Clone()
	e.mu.Unlock()

	metrics.RecordApprovalEscalation(string(out.Type), automatic)
	e.log.Warn().
		Str("approval_id", id).
		Str("escalated_to", escalatedTo).
		Str("reason", reason).
		Time("timeout_at", out.TimeoutAt).
		Msg("approval escalated")
	e.emit(domain.EventTypeApprovalEscalated, out, systemActor, escalatedTo)
	return out, nil
}

// ProcessOverdue escalates every pending request whose escalation deadline
// has passed and which has not been escalated yet. It returns the ids it
// escalated, oldest request first.
func (e *ApprovalEngine) ProcessOverdue() []string {
	now := e.clock()
	e.mu.Lock()
	var due []*domain.ApprovalRequest
	for _, req := range e.requests {
		if req.NeedsEscalation(now) {
			due = append(due, req.Clone())
		}
	}
	e.mu.Unlock()
	sortOldestFirst(due)

	escalated := make([]string, 0, len(due))
	for _, req := range due {
		if _, err := e.escalate(req.ApprovalID, AutoEscalationReason, e.escalateTo, true); err != nil {
			e.log.Warn().Err(err).Str("approval_id", req.ApprovalID).Msg("automatic escalation failed")
			continue
		}
		escalated = append(escalated, req.ApprovalID)
	}
	return escalated
}

// ListPending returns pending requests matching filter, oldest first.
func (e *ApprovalEngine) ListPending(filter domain.ApprovalFilter) []*domain.ApprovalRequest {
	e.mu.Lock()
	out := make([]*domain.ApprovalRequest, 0)
	for _, req := range e.requests {
		if req.Status.IsPending() && filter.Matches(req) {
			out = append(out, req.Clone())
		}
	}
	e.mu.Unlock()
	sortOldestFirst(out)
	return out
}

// ListAll returns every request, newest first.
func (e *ApprovalEngine) ListAll() []*domain.ApprovalRequest {
	e.mu.Lock()
	out := make([]*domain.ApprovalRequest, 0, len(e.requests))
	for _, req := range e.requests {
		out = append(out, req.Clone())
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Stats aggregates request counts.
func (e *ApprovalEngine) Stats() domain.ApprovalStats {
	now := e.clock()
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := domain.ApprovalStats{
		ByStatus: make(map[domain.ApprovalStatus]int),
		ByType:   make(map[domain.ApprovalType]int),
	}
	for _, req := range e.requests {
		stats.Total++
		stats.ByStatus[req.Status]++
		stats.ByType[req.Type]++
		if req.Status.IsPending() {
			stats.Pending++
		}
		if req.IsOverdue(now) {
			stats.Overdue++
		}
	}
	return stats
}

// Restore loads previously persisted requests. Existing ids are replaced.
func (e *ApprovalEngine) Restore(requests []*domain.ApprovalRequest, history map[string][]domain.ApprovalDecision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, req := range requests {
		e.requests[req.ApprovalID] = req.Clone()
		e.history[req.ApprovalID] = append([]domain.ApprovalDecision{}, history[req.ApprovalID]...)
	}
}

func (e *ApprovalEngine) emit(eventType domain.EventType, req *domain.ApprovalRequest, actor string, recipients ...string) {
	e.emitter.Emit(notify.NewEvent(eventType, req.ApprovalID, actor, req.LastUpdated, req, recipients...))
}

func reviewers(req *domain.ApprovalRequest) []string {
	if req.AssignedReviewer != "" {
		return []string{req.AssignedReviewer, req.RequiredRole}
	}
	return []string{req.RequiredRole}
}

func reviewMinutes(created, decided time.Time) int64 {
	d := decided.Sub(created)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}

func sortOldestFirst(reqs []*domain.ApprovalRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ApprovalID < reqs[j].ApprovalID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
