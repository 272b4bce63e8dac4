package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		from, to EvolutionPhase
		ok       bool
	}{
		{PhaseRequested, PhaseUnderReview, true},
		{PhaseRequested, PhaseCancelled, true},
		{PhaseRequested, PhaseApproved, false},
		{PhaseUnderReview, PhaseRejected, true},
		{PhaseApproved, PhaseImplementing, true},
		{PhaseImplementing, PhaseValidating, true},
		{PhaseImplementing, PhaseCancelled, true},
		{PhaseImplementing, PhaseDeployed, false},
		{PhaseValidating, PhaseFailed, true},
		{PhaseCompleted, PhaseCancelled, false},
		{PhaseDeployed, PhaseRolledBack, true},
		{PhaseCompleted, PhaseRequested, false},
		{PhaseCancelled, PhaseRequested, false},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
			continue
		}
		require.Error(t, err, "%s -> %s", tc.from, tc.to)
		assert.True(t, errors.Is(err, ErrInvalidState))
	}
}

func TestValidateTransitionUnknownPhase(t *testing.T) {
	err := ValidateTransition(PhaseRequested, EvolutionPhase("bogus"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPhaseClassification(t *testing.T) {
	for _, p := range AllPhases() {
		assert.True(t, p.Valid())
		assert.NotEmpty(t, p.Description())
		assert.False(t, p.IsSuccessful() && p.IsFailed(), p)
		if p.IsActive() {
			assert.False(t, p.IsTerminal(), p)
		}
	}
	assert.True(t, PhaseDeployed.StampsCompletion())
	assert.True(t, PhaseRejected.StampsCompletion())
	assert.False(t, PhaseCompleted.StampsCompletion())
	assert.True(t, PhaseApproved.CanBeCancelled())
	assert.False(t, PhaseImplementing.CanBeCancelled())

	next, ok := PhaseRequested.NextPhase()
	assert.True(t, ok)
	assert.Equal(t, PhaseUnderReview, next)
	_, ok = PhaseDeployed.NextPhase()
	assert.False(t, ok)

	assert.Equal(t, []EvolutionPhase{PhaseApproved, PhaseRejected, PhaseCancelled}, PhaseUnderReview.AllowedNext())
}

func TestEvolutionDurationAndRollback(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &Evolution{CreatedAt: created, Phase: PhaseDeployed}
	assert.Equal(t, int64(90), e.DurationMinutes(created.Add(90*time.Minute)))

	done := created.Add(30 * time.Minute)
	e.CompletedAt = &done
	assert.Equal(t, int64(30), e.DurationMinutes(created.Add(5*time.Hour)))

	e.RefreshRollback()
	assert.False(t, e.RollbackAvailable)
	e.BackupVersion = "v1"
	e.RefreshRollback()
	assert.True(t, e.RollbackAvailable)

	c := e.Clone()
	*c.CompletedAt = created
	assert.Equal(t, done, *e.CompletedAt)
}

func TestEvolutionTypeInfo(t *testing.T) {
	info, ok := EvolutionTypeSecurityUpdate.Info()
	require.True(t, ok)
	assert.Equal(t, PriorityUrgent, info.Priority)
	assert.False(t, EvolutionType("nope").Valid())
}
