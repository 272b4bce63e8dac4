package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApprovalAuditTrail(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	r := &ApprovalRequest{}
	assert.Nil(t, r.AuditLines())

	r.AppendAudit(at, "SUBMITTED", "alice", "")
	r.AppendAudit(at, "APPROVED", "bob", "looks good")

	lines := r.AuditLines()
	assert.Equal(t, []string{
		"[2026-03-04T05:06:07Z] SUBMITTED by alice: No details",
		"[2026-03-04T05:06:07Z] APPROVED by bob: looks good",
	}, lines)
}

func TestApprovalOverdueAndEscalation(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	r := &ApprovalRequest{
		Status:       ApprovalStatusPending,
		TimeoutAt:    now.Add(-time.Minute),
		EscalationAt: now.Add(-time.Hour),
	}
	assert.True(t, r.IsOverdue(now))
	assert.True(t, r.NeedsEscalation(now))

	r.Status = ApprovalStatusEscalated
	assert.False(t, r.NeedsEscalation(now))
	assert.True(t, r.IsOverdue(now))

	r.Status = ApprovalStatusApproved
	assert.False(t, r.IsOverdue(now))

	r.Status = ApprovalStatusTimeout
	assert.False(t, r.IsOverdue(now))
}

func TestApprovalCloneIsolated(t *testing.T) {
	r := &ApprovalRequest{
		Content: map[string]interface{}{"k": "v"},
		Context: map[string]string{"evolution_id": "e1"},
	}
	c := r.Clone()
	c.Content["k"] = "changed"
	c.Context["evolution_id"] = "e2"
	assert.Equal(t, "v", r.Content["k"])
	assert.Equal(t, "e1", r.Context["evolution_id"])
}

func TestApprovalTypeConfigDurations(t *testing.T) {
	c := ApprovalTypeConfig{TimeoutHours: 1.5, EscalationHours: 0.25}
	assert.Equal(t, 90*time.Minute, c.Timeout())
	assert.Equal(t, 15*time.Minute, c.Escalation())
}
