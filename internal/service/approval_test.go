package service

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/coordinator/config"
	"github.com/xiaot623/gogo/coordinator/internal/adapter/notify"
	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestApprovalEngine(t *testing.T, clock *fakeClock) (*ApprovalEngine, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	e := NewApprovalEngine(config.DefaultCatalog(),
		WithApprovalClock(clock.Now),
		WithApprovalEmitter(rec),
	)
	return e, rec
}

func contentReview(requester string) domain.ApprovalSubmission {
	return domain.ApprovalSubmission{
		Type:        domain.ApprovalTypeContentReview,
		Description: "Review module 3",
		Content:     map[string]interface{}{"module": "3", "changes": "new lab"},
		Requester:   requester,
	}
}

func TestSubmitAppliesCatalogDeadlines(t *testing.T) {
	catalog := config.DefaultCatalog()
	types := catalog.Types()

	properties := gopter.NewProperties(nil)
	properties.Property("deadlines follow the catalog entry", prop.ForAll(
		func(idx int, offsetMinutes int) bool {
			clock := newFakeClock()
			clock.Advance(time.Duration(offsetMinutes) * time.Minute)
			e := NewApprovalEngine(catalog, WithApprovalClock(clock.Now))
			cfg := types[idx]

			req, err := e.Submit(domain.ApprovalSubmission{
				Type:      cfg.Type,
				Content:   map[string]interface{}{"k": "v"},
				Requester: "pipeline",
			})
			if err != nil {
				return false
			}
			return req.Status == domain.ApprovalStatusPending &&
				req.RequiredRole == cfg.RequiredRole &&
				req.TimeoutAt.Equal(clock.now.Add(cfg.Timeout())) &&
				req.EscalationAt.Equal(clock.now.Add(cfg.Escalation())) &&
				req.EscalationAt.Before(req.TimeoutAt)
		},
		gen.IntRange(0, len(types)-1),
		gen.IntRange(0, 60*24*30),
	))
	properties.TestingRun(t)
}

func TestSubmitValidation(t *testing.T) {
	e, rec := newTestApprovalEngine(t, newFakeClock())

	tests := []struct {
		name    string
		sub     domain.ApprovalSubmission
		message string
	}{
		{"missing type", domain.ApprovalSubmission{Requester: "a", Content: map[string]interface{}{"k": 1}}, "Approval type is required"},
		{"unknown type", domain.ApprovalSubmission{Type: "budget", Requester: "a", Content: map[string]interface{}{"k": 1}}, "Invalid approval type: budget"},
		{"missing requester", domain.ApprovalSubmission{Type: domain.ApprovalTypeClassification, Content: map[string]interface{}{"k": 1}}, "Requester is required"},
		{"empty content", domain.ApprovalSubmission{Type: domain.ApprovalTypeClassification, Requester: "a"}, "Content is required for approval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Submit(tt.sub)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Equal(t, tt.message, err.Error())
		})
	}
	assert.Empty(t, e.ListAll())
	assert.Empty(t, rec.Events())
}

func TestContentReviewScenario(t *testing.T) {
	clock := newFakeClock()
	e, rec := newTestApprovalEngine(t, clock)

	req, err := e.Submit(contentReview("content-creator"))
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, req.Status)
	assert.Equal(t, "subject_matter_expert", req.RequiredRole)
	assert.WithinDuration(t, clock.now.Add(4*time.Hour), req.EscalationAt, time.Second)
	assert.WithinDuration(t, clock.now.Add(8*time.Hour), req.TimeoutAt, time.Second)

	clock.Advance(25 * time.Minute)
	approved, err := e.Approve(req.ApprovalID, domain.DecisionInput{Reviewer: "alice", Comments: "looks good"})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, approved.Status)
	assert.Equal(t, "alice", approved.AssignedReviewer)
	require.NotNil(t, approved.DecisionTime)

	history, err := e.History(req.ApprovalID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DecisionApproved, history[0].Decision)
	assert.GreaterOrEqual(t, history[0].ReviewDurationMinutes, int64(0))
	assert.Equal(t, int64(25), history[0].ReviewDurationMinutes)

	_, err = e.Approve(req.ApprovalID, domain.DecisionInput{Reviewer: "bob"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))

	assert.Equal(t, []domain.EventType{domain.EventTypeApprovalSubmitted, domain.EventTypeApprovalApproved}, rec.Types())
}

// timedOut returns a copy of req as it would be restored after an operator
// recorded a TIMEOUT; the engine itself never expires requests.
func timedOut(req *domain.ApprovalRequest, at time.Time) *domain.ApprovalRequest {
	c := req.Clone()
	c.Status = domain.ApprovalStatusTimeout
	c.LastUpdated = at
	c.AppendAudit(at, "TIMEOUT", "operator", "closed without review")
	return c
}

func TestDecisionsOnFinalRequestLeaveStateUnchanged(t *testing.T) {
	finals := []struct {
		status   domain.ApprovalStatus
		finalize func(t *testing.T, e *ApprovalEngine, clock *fakeClock, req *domain.ApprovalRequest)
	}{
		{domain.ApprovalStatusApproved, func(t *testing.T, e *ApprovalEngine, _ *fakeClock, req *domain.ApprovalRequest) {
			_, err := e.Approve(req.ApprovalID, domain.DecisionInput{Reviewer: "carol", Comments: "ship it"})
			require.NoError(t, err)
		}},
		{domain.ApprovalStatusRejected, func(t *testing.T, e *ApprovalEngine, _ *fakeClock, req *domain.ApprovalRequest) {
			_, err := e.Reject(req.ApprovalID, domain.DecisionInput{Reviewer: "carol", Comments: "outdated sources"})
			require.NoError(t, err)
		}},
		{domain.ApprovalStatusTimeout, func(t *testing.T, e *ApprovalEngine, clock *fakeClock, req *domain.ApprovalRequest) {
			clock.Advance(9 * time.Hour)
			e.Restore([]*domain.ApprovalRequest{timedOut(req, clock.Now())}, nil)
		}},
	}

	for _, final := range finals {
		t.Run(string(final.status), func(t *testing.T) {
			clock := newFakeClock()
			e, _ := newTestApprovalEngine(t, clock)
			req, err := e.Submit(contentReview("pipeline"))
			require.NoError(t, err)
			final.finalize(t, e, clock, req)

			before, err := e.Get(req.ApprovalID)
			require.NoError(t, err)
			require.Equal(t, final.status, before.Status)
			historyBefore, err := e.History(req.ApprovalID)
			require.NoError(t, err)

			clock.Advance(time.Hour)
			calls := map[string]func() error{
				"approve": func() error {
					_, err := e.Approve(req.ApprovalID, domain.DecisionInput{Reviewer: "dave"})
					return err
				},
				"reject": func() error {
					_, err := e.Reject(req.ApprovalID, domain.DecisionInput{Reviewer: "dave"})
					return err
				},
				"request changes": func() error {
					_, err := e.RequestChanges(req.ApprovalID, domain.DecisionInput{Reviewer: "dave"})
					return err
				},
				"escalate": func() error {
					_, err := e.Escalate(req.ApprovalID, "stuck", "management")
					return err
				},
			}
			for name, call := range calls {
				err := call()
				var stateErr *domain.StateError
				require.ErrorAs(t, err, &stateErr, name)
				assert.Equal(t, string(final.status), stateErr.Current, name)
			}

			after, err := e.Get(req.ApprovalID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, before.DecisionTime, after.DecisionTime)
			historyAfter, err := e.History(req.ApprovalID)
			require.NoError(t, err)
			assert.Equal(t, historyBefore, historyAfter)
		})
	}
}

func TestUnknownApprovalIsNotFound(t *testing.T) {
	e, _ := newTestApprovalEngine(t, newFakeClock())

	_, err := e.Approve("missing", domain.DecisionInput{Reviewer: "alice"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = e.Get("missing")
	assert.EqualError(t, err, "approval not found: missing")
}

func TestDecisionRequiresReviewer(t *testing.T) {
	e, _ := newTestApprovalEngine(t, newFakeClock())
	req, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)

	_, err = e.Approve(req.ApprovalID, domain.DecisionInput{})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	got, err := e.Get(req.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, got.Status)
}

func TestProcessOverdueEscalatesOnce(t *testing.T) {
	clock := newFakeClock()
	e, rec := newTestApprovalEngine(t, clock)

	req, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)
	originalTimeout := req.TimeoutAt

	clock.Advance(3 * time.Hour)
	assert.Empty(t, e.ProcessOverdue())

	clock.Advance(90 * time.Minute)
	assert.Equal(t, []string{req.ApprovalID}, e.ProcessOverdue())
	assert.Empty(t, e.ProcessOverdue())

	got, err := e.Get(req.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusEscalated, got.Status)
	assert.Equal(t, DefaultEscalationAssignee, got.AssignedReviewer)
	assert.Equal(t, AutoEscalationReason, got.EscalationReason)
	assert.True(t, got.TimeoutAt.After(originalTimeout))
	assert.Equal(t, originalTimeout.Add(DefaultEscalationExtension), got.TimeoutAt)

	lines := got.AuditLines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "SUBMITTED by pipeline")
	assert.Contains(t, lines[1], "ESCALATED by system: "+AutoEscalationReason+" (assigned to management)")

	history, err := e.History(req.ApprovalID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DecisionEscalated, history[0].Decision)

	assert.Contains(t, rec.Types(), domain.EventTypeApprovalEscalated)
}

func TestEscalatedRequestCanStillBeDecided(t *testing.T) {
	clock := newFakeClock()
	e, _ := newTestApprovalEngine(t, clock)
	req, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)

	_, err = e.Escalate(req.ApprovalID, "reviewer on leave", "lead")
	require.NoError(t, err)

	got, err := e.Approve(req.ApprovalID, domain.DecisionInput{Reviewer: "lead"})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, got.Status)
}

func TestOverdueRequestStaysPending(t *testing.T) {
	clock := newFakeClock()
	e, rec := newTestApprovalEngine(t, clock)
	req, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)

	clock.Advance(5 * time.Hour)
	assert.Equal(t, []string{req.ApprovalID}, e.ProcessOverdue())

	clock.Advance(72 * time.Hour)
	assert.Empty(t, e.ProcessOverdue())

	got, err := e.Get(req.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusEscalated, got.Status)
	assert.True(t, got.Status.IsPending())

	summary, err := e.StatusSummary(req.ApprovalID)
	require.NoError(t, err)
	assert.True(t, summary.Overdue)
	assert.False(t, summary.NeedsEscalation)
	assert.Equal(t, "0s", summary.TimeRemaining)
	assert.Equal(t, 1, e.Stats().Overdue)

	assert.Equal(t, []domain.EventType{domain.EventTypeApprovalSubmitted, domain.EventTypeApprovalEscalated}, rec.Types())

	approved, err := e.Approve(req.ApprovalID, domain.DecisionInput{Reviewer: "management"})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, approved.Status)
	assert.Equal(t, 0, e.Stats().Overdue)
}

func TestRequestChangesAndRevise(t *testing.T) {
	clock := newFakeClock()
	e, _ := newTestApprovalEngine(t, clock)
	req, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)

	_, err = e.StartReview(req.ApprovalID, "alice")
	require.NoError(t, err)
	changed, err := e.RequestChanges(req.ApprovalID, domain.DecisionInput{Reviewer: "alice", Comments: "cite sources"})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusNeedsChanges, changed.Status)
	assert.True(t, changed.Status.IsComplete())
	assert.False(t, changed.Status.IsFinal())

	revised, err := e.Revise(req.ApprovalID, "pipeline", map[string]interface{}{"module": "3", "sources": "added"}, "sources added")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, revised.Status)
	assert.Equal(t, "added", revised.Content["sources"])
	assert.Equal(t, req.TimeoutAt, revised.TimeoutAt)
	assert.Len(t, revised.AuditLines(), 4)

	_, err = e.Revise(req.ApprovalID, "pipeline", map[string]interface{}{"x": 1}, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestListPendingFiltersAndOrders(t *testing.T) {
	clock := newFakeClock()
	e, _ := newTestApprovalEngine(t, clock)

	first, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := e.Submit(domain.ApprovalSubmission{
		Type:      domain.ApprovalTypeClassification,
		Content:   map[string]interface{}{"repo": "x"},
		Requester: "source-manager",
		Priority:  domain.PriorityHigh,
	})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	third, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)
	_, err = e.Approve(third.ApprovalID, domain.DecisionInput{Reviewer: "alice"})
	require.NoError(t, err)

	all := e.ListPending(domain.ApprovalFilter{})
	require.Len(t, all, 2)
	assert.Equal(t, first.ApprovalID, all[0].ApprovalID)
	assert.Equal(t, second.ApprovalID, all[1].ApprovalID)

	byRole := e.ListPending(domain.ApprovalFilter{Role: "technical_lead"})
	require.Len(t, byRole, 1)
	assert.Equal(t, second.ApprovalID, byRole[0].ApprovalID)

	byPriority := e.ListPending(domain.ApprovalFilter{Priority: domain.PriorityHigh})
	assert.Len(t, byPriority, 1)

	stats := e.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.ByStatus[domain.ApprovalStatusApproved])
}

func TestSubmitDoesNotAliasCallerContent(t *testing.T) {
	e, _ := newTestApprovalEngine(t, newFakeClock())
	sub := contentReview("pipeline")
	req, err := e.Submit(sub)
	require.NoError(t, err)

	sub.Content["module"] = "changed"
	got, err := e.Get(req.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, "3", got.Content["module"])
}

func TestStatusSummary(t *testing.T) {
	clock := newFakeClock()
	e, _ := newTestApprovalEngine(t, clock)
	req, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)

	clock.Advance(5 * time.Hour)
	summary, err := e.StatusSummary(req.ApprovalID)
	require.NoError(t, err)
	assert.True(t, summary.NeedsEscalation)
	assert.False(t, summary.Overdue)
	assert.Equal(t, "3h0m0s", summary.TimeRemaining)
}

func TestDoubleEscalationKeepsBothAuditLines(t *testing.T) {
	clock := newFakeClock()
	e, _ := newTestApprovalEngine(t, clock)
	req, err := e.Submit(contentReview("pipeline"))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	first, err := e.Escalate(req.ApprovalID, "reviewer unavailable", "lead")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	second, err := e.Escalate(req.ApprovalID, "still waiting", "director")
	require.NoError(t, err)

	assert.True(t, first.TimeoutAt.After(req.TimeoutAt))
	assert.True(t, second.TimeoutAt.After(first.TimeoutAt))
	assert.Equal(t, "director", second.AssignedReviewer)

	lines := second.AuditLines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "reviewer unavailable (assigned to lead)")
	assert.Contains(t, lines[2], "still waiting (assigned to director)")
}

func TestEscalationNeverShortensTimeout(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("timeoutAt grows with every escalation", prop.ForAll(
		func(escalations int, extensionMinutes int) bool {
			clock := newFakeClock()
			e := NewApprovalEngine(config.DefaultCatalog(),
				WithApprovalClock(clock.Now),
				WithEscalationExtension(time.Duration(extensionMinutes)*time.Minute),
			)
			req, err := e.Submit(contentReview("pipeline"))
			if err != nil {
				return false
			}
			previous := req.TimeoutAt
			for i := 0; i < escalations; i++ {
				clock.Advance(10 * time.Minute)
				got, err := e.Escalate(req.ApprovalID, "manual", "lead")
				if err != nil || !got.TimeoutAt.After(previous) {
					return false
				}
				previous = got.TimeoutAt
			}
			return true
		},
		gen.IntRange(1, 5),
		gen.IntRange(-30, 240),
	))
	properties.TestingRun(t)
}
