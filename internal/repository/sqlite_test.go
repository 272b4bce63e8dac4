package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func testApproval(id string, created time.Time) *domain.ApprovalRequest {
	return &domain.ApprovalRequest{
		ApprovalID:   id,
		Type:         domain.ApprovalTypeContentReview,
		Name:         "Workshop Content Quality Review",
		Content:      map[string]interface{}{"module": "3"},
		Priority:     domain.PriorityNormal,
		Requester:    "content-creator",
		RequiredRole: "subject_matter_expert",
		Status:       domain.ApprovalStatusPending,
		CreatedAt:    created,
		TimeoutAt:    created.Add(8 * time.Hour),
		EscalationAt: created.Add(4 * time.Hour),
		LastUpdated:  created,
	}
}

func TestSQLiteStoreApprovalsAndDecisions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	first := testApproval("apr-1", now)
	second := testApproval("apr-2", now.Add(time.Minute))
	for _, req := range []*domain.ApprovalRequest{first, second} {
		if err := store.UpsertApproval(ctx, req); err != nil {
			t.Fatalf("UpsertApproval failed: %v", err)
		}
	}

	first.Status = domain.ApprovalStatusApproved
	first.AssignedReviewer = "alice"
	first.AppendAudit(now, "APPROVED", "alice", "ok")
	if err := store.UpsertApproval(ctx, first); err != nil {
		t.Fatalf("UpsertApproval (update) failed: %v", err)
	}

	got, err := store.GetApproval(ctx, "apr-1")
	if err != nil {
		t.Fatalf("GetApproval failed: %v", err)
	}
	if got == nil || got.Status != domain.ApprovalStatusApproved || got.AssignedReviewer != "alice" {
		t.Fatalf("unexpected approval: %+v", got)
	}
	if got.Content["module"] != "3" {
		t.Fatalf("content not preserved: %+v", got.Content)
	}

	missing, err := store.GetApproval(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil approval, got %+v (err=%v)", missing, err)
	}

	pending, err := store.ListApprovals(ctx, domain.ApprovalStatusPending)
	if err != nil {
		t.Fatalf("ListApprovals failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ApprovalID != "apr-2" {
		t.Fatalf("unexpected pending approvals: %+v", pending)
	}

	all, err := store.ListApprovals(ctx, "")
	if err != nil {
		t.Fatalf("ListApprovals failed: %v", err)
	}
	if len(all) != 2 || all[0].ApprovalID != "apr-1" {
		t.Fatalf("expected 2 approvals oldest first, got %+v", all)
	}

	decision := &domain.ApprovalDecision{
		ApprovalID:   "apr-1",
		Decision:     domain.DecisionApproved,
		Reviewer:     "alice",
		DecisionTime: now,
	}
	if err := store.AppendDecision(ctx, decision); err != nil {
		t.Fatalf("AppendDecision failed: %v", err)
	}
	decisions, err := store.ListDecisions(ctx, "apr-1")
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(decisions) != 1 || decisions[0].Reviewer != "alice" {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
	grouped, err := store.ListAllDecisions(ctx)
	if err != nil {
		t.Fatalf("ListAllDecisions failed: %v", err)
	}
	if len(grouped["apr-1"]) != 1 || len(grouped["apr-2"]) != 0 {
		t.Fatalf("unexpected grouped decisions: %+v", grouped)
	}
}

func TestSQLiteStoreDecisionRequiresApproval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	err := store.AppendDecision(ctx, &domain.ApprovalDecision{ApprovalID: "ghost", Decision: domain.DecisionApproved, Reviewer: "x", DecisionTime: time.Now()})
	if err == nil {
		t.Fatalf("expected foreign key violation")
	}
}

func TestSQLiteStoreEvolutions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	evo := &domain.Evolution{
		EvolutionID:  "evo-1",
		WorkshopName: "ocp-basics",
		Type:         domain.EvolutionTypeBugFix,
		Phase:        domain.PhaseRequested,
		RequestedBy:  "research-validation",
		CreatedAt:    now,
		LastUpdated:  now,
	}
	if err := store.UpsertEvolution(ctx, evo); err != nil {
		t.Fatalf("UpsertEvolution failed: %v", err)
	}

	evo.Phase = domain.PhaseCancelled
	evo.CompletedAt = &now
	evo.ValidationResults = []domain.ValidationResult{{Check: "links", Passed: true, RecordedAt: now}}
	if err := store.UpsertEvolution(ctx, evo); err != nil {
		t.Fatalf("UpsertEvolution (update) failed: %v", err)
	}

	got, err := store.GetEvolution(ctx, "evo-1")
	if err != nil {
		t.Fatalf("GetEvolution failed: %v", err)
	}
	if got == nil || got.Phase != domain.PhaseCancelled || got.CompletedAt == nil || len(got.ValidationResults) != 1 {
		t.Fatalf("unexpected evolution: %+v", got)
	}

	evos, err := store.ListEvolutions(ctx)
	if err != nil {
		t.Fatalf("ListEvolutions failed: %v", err)
	}
	if len(evos) != 1 {
		t.Fatalf("expected 1 evolution, got %d", len(evos))
	}

	if err := store.DeleteEvolutions(ctx, []string{"evo-1"}); err != nil {
		t.Fatalf("DeleteEvolutions failed: %v", err)
	}
	evos, err = store.ListEvolutions(ctx)
	if err != nil {
		t.Fatalf("ListEvolutions failed: %v", err)
	}
	if len(evos) != 0 {
		t.Fatalf("expected no evolutions after delete, got %d", len(evos))
	}
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	base := time.Now().UnixMilli()
	events := []*domain.Event{
		{EventID: "e1", Type: domain.EventTypeApprovalSubmitted, SubjectID: "apr-1", Actor: "pipeline", Recipients: []string{"subject_matter_expert"}, Ts: base, Payload: json.RawMessage(`{"status":"PENDING"}`)},
		{EventID: "e2", Type: domain.EventTypeApprovalApproved, SubjectID: "apr-1", Actor: "alice", Ts: base + 1},
		{EventID: "e3", Type: domain.EventTypeEvolutionCreated, SubjectID: "evo-1", Ts: base + 2},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	got, err := store.ListEvents(ctx, "apr-1", 0, nil, 10)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if len(got[0].Recipients) != 1 || got[0].Recipients[0] != "subject_matter_expert" {
		t.Fatalf("recipients not preserved: %+v", got[0])
	}

	got, err = store.ListEvents(ctx, "", base, []string{string(domain.EventTypeEvolutionCreated)}, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "e3" {
		t.Fatalf("unexpected filtered events: %+v", got)
	}
}

func TestSQLiteStoreAgents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	agent := &domain.Agent{
		Name:         domain.AgentContentCreator,
		Endpoint:     "http://content-creator:8080",
		Capabilities: json.RawMessage(`{"tools":["create_workshop"]}`),
	}
	if err := store.UpsertAgent(ctx, agent); err != nil {
		t.Fatalf("UpsertAgent failed: %v", err)
	}
	agent.Endpoint = "http://content-creator:9090"
	if err := store.UpsertAgent(ctx, agent); err != nil {
		t.Fatalf("UpsertAgent (update) failed: %v", err)
	}

	gotAgent, err := store.GetAgent(ctx, domain.AgentContentCreator)
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if gotAgent == nil || gotAgent.Endpoint != "http://content-creator:9090" || gotAgent.Status != "registered" {
		t.Fatalf("unexpected agent: %+v", gotAgent)
	}

	agents, err := store.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(agents))
	}

	deleted, err := store.DeleteAgent(ctx, domain.AgentContentCreator)
	if err != nil || !deleted {
		t.Fatalf("DeleteAgent = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = store.DeleteAgent(ctx, domain.AgentContentCreator)
	if err != nil || deleted {
		t.Fatalf("second DeleteAgent = %v, %v; want false, nil", deleted, err)
	}
	if gotAgent, err := store.GetAgent(ctx, domain.AgentContentCreator); err != nil || gotAgent != nil {
		t.Fatalf("agent still present: %+v, %v", gotAgent, err)
	}
}
