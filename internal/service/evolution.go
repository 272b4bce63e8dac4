package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/internal/adapter/notify"
	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/metrics"
)

// EvolutionTracker manages the phase state machine of accepted workshop
// changes. It references approvals by id only.
type EvolutionTracker struct {
	mu         sync.Mutex
	evolutions map[string]*domain.Evolution

	emitter notify.Emitter
	log     zerolog.Logger
	clock   func() time.Time
}

// EvolutionOption configures an EvolutionTracker.
type EvolutionOption func(*EvolutionTracker)

// WithEvolutionClock overrides the time source (for tests).
func WithEvolutionClock(clock func() time.Time) EvolutionOption {
	return func(t *EvolutionTracker) { t.clock = clock }
}

// WithEvolutionEmitter sets the notification side channel.
func WithEvolutionEmitter(emitter notify.Emitter) EvolutionOption {
	return func(t *EvolutionTracker) { t.emitter = emitter }
}

// WithEvolutionLogger sets the logger.
func WithEvolutionLogger(log zerolog.Logger) EvolutionOption {
	return func(t *EvolutionTracker) { t.log = log }
}

// NewEvolutionTracker creates an empty tracker.
func NewEvolutionTracker(opts ...EvolutionOption) *EvolutionTracker {
	t := &EvolutionTracker{
		evolutions: make(map[string]*domain.Evolution),
		emitter:    notify.Discard,
		log:        zerolog.Nop(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create records a new evolution in the REQUESTED phase.
func (t *EvolutionTracker) Create(req domain.EvolutionRequest) (*domain.Evolution, error) {
	if strings.TrimSpace(req.WorkshopName) == "" {
		return nil, &domain.ValidationError{Field: "workshop_name", Message: "Workshop name is required"}
	}
	if !req.Type.Valid() {
		return nil, &domain.ValidationError{Field: "evolution_type", Message: fmt.Sprintf("Invalid evolution type: %s", req.Type)}
	}
	if strings.TrimSpace(req.RequestedBy) == "" {
		return nil, &domain.ValidationError{Field: "requested_by", Message: "Requester is required"}
	}

	now := t.clock()
	evo := &domain.Evolution{
		EvolutionID:      uuid.New().String(),
		WorkshopName:     req.WorkshopName,
		Type:             req.Type,
		Phase:            domain.PhaseRequested,
		RequestedBy:      req.RequestedBy,
		Description:      req.Description,
		ResearchBasis:    req.ResearchBasis,
		ImpactAssessment: req.ImpactAssessment,
		CreatedAt:        now,
		LastUpdated:      now,
	}

	t.mu.Lock()
	t.evolutions[evo.EvolutionID] = evo
	out := evo.Clone()
	t.mu.Unlock()

	metrics.RecordEvolutionTransition(string(out.Type), string(out.Phase))
	t.log.Info().
		Str("evolution_id", out.EvolutionID).
		Str("workshop", out.WorkshopName).
		Str("type", string(out.Type)).
		Msg("evolution created")
	t.emit(domain.EventTypeEvolutionCreated, out, out.RequestedBy)
	return out, nil
}

// Get returns a copy of the evolution.
func (t *EvolutionTracker) Get(id string) (*domain.Evolution, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	evo, ok := t.evolutions[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "evolution", ID: id}
	}
	return evo.Clone(), nil
}

// UpdateStatus moves an evolution to phase and applies the phase's side
// effects. Illegal transitions fail with a *domain.StateError. Requesting the
// current phase again changes nothing.
func (t *EvolutionTracker) UpdateStatus(id string, phase domain.EvolutionPhase, actor, message string) (*domain.Evolution, error) {
	return t.transition(id, "", phase, actor, message)
}

// Claim moves an evolution from exactly one phase to another. Unlike
// UpdateStatus it is not idempotent: when the evolution is no longer in from,
// it fails with a *domain.StateError, so only one caller can claim a phase.
func (t *EvolutionTracker) Claim(id string, from, to domain.EvolutionPhase, actor, message string) (*domain.Evolution, error) {
	return t.transition(id, from, to, actor, message)
}

// transition applies phase to the evolution. An empty expect accepts any
// current phase and treats the current phase as a no-op.
func (t *EvolutionTracker) transition(id string, expect, phase domain.EvolutionPhase, actor, message string) (*domain.Evolution, error) {
	if !phase.Valid() {
		return nil, &domain.ValidationError{Field: "phase", Message: fmt.Sprintf("Invalid evolution phase: %s", phase)}
	}

	t.mu.Lock()
	evo, ok := t.evolutions[id]
	if !ok {
		t.mu.Unlock()
		return nil, &domain.NotFoundError{Kind: "evolution", ID: id}
	}
	if expect != "" && evo.Phase != expect {
		current := evo.Phase
		t.mu.Unlock()
		return nil, &domain.StateError{
			Kind:    "evolution",
			ID:      id,
			Current: string(current),
			Message: fmt.Sprintf("evolution is not %s", expect),
		}
	}
	if evo.Phase == phase {
		out := evo.Clone()
		t.mu.Unlock()
		return out, nil
	}
	if err := domain.ValidateTransition(evo.Phase, phase); err != nil {
		t.mu.Unlock()
		var stateErr *domain.StateError
		if errors.As(err, &stateErr) {
			stateErr.ID = id
		}
		return nil, err
	}

	now := t.clock()
	previous := evo.Phase
	evo.Phase = phase
	evo.LastUpdated = now
	switch phase {
	case domain.PhaseApproved:
		evo.ApprovedAt = &now
		evo.ApprovedBy = actor
	case domain.PhaseImplementing:
		evo.ImplementedBy = actor
	case domain.PhaseCompleted:
		evo.ImplementedAt = &now
		evo.ContentUpdated = true
	case domain.PhaseDeployed:
		evo.DeploymentTriggered = true
	case domain.PhaseFailed, domain.PhaseRejected:
		evo.ErrorMessage = message
	case domain.PhaseRolledBack:
		evo.RollbackReason = message
	}
	if phase.StampsCompletion() && evo.CompletedAt == nil {
		evo.CompletedAt = &now
	}
	evo.RefreshRollback()
	out := evo.Clone()
	t.mu.Unlock()

	metrics.RecordEvolutionTransition(string(out.Type), string(phase))
	t.log.Info().
		Str("evolution_id", id).
		Str("from", string(previous)).
		Str("to", string(phase)).
		Str("actor", actor).
		Msg("evolution phase changed")
	t.emit(domain.EventTypeEvolutionPhaseChanged, out, actor)
	return out, nil
}

// UpdateImplementation records the changes and versions of an
// implementation. Versions must be semantic versions and the target must be
// newer than the current version.
func (t *EvolutionTracker) UpdateImplementation(id string, update domain.ImplementationUpdate) (*domain.Evolution, error) {
	if err := validateVersions(update); err != nil {
		return nil, err
	}
	return t.mutate(id, "", func(evo *domain.Evolution) {
		if update.ApprovedChanges != nil {
			evo.ApprovedChanges = append([]string(nil), update.ApprovedChanges...)
		}
		if update.CurrentVersion != "" {
			evo.CurrentVersion = update.CurrentVersion
		}
		if update.TargetVersion != "" {
			evo.TargetVersion = update.TargetVersion
		}
		if update.BackupVersion != "" {
			evo.BackupVersion = update.BackupVersion
		}
		if update.FilesModified != nil {
			evo.FilesModified = append([]string(nil), update.FilesModified...)
		}
	})
}

// LinkApproval records the approval gating an evolution.
func (t *EvolutionTracker) LinkApproval(id, approvalID string) (*domain.Evolution, error) {
	if strings.TrimSpace(approvalID) == "" {
		return nil, &domain.ValidationError{Field: "approval_id", Message: "Approval id is required"}
	}
	return t.mutate(id, "", func(evo *domain.Evolution) {
		evo.ApprovalID = approvalID
	})
}

// AddValidationResults appends validation results.
func (t *EvolutionTracker) AddValidationResults(id string, results []domain.ValidationResult) (*domain.Evolution, error) {
	if len(results) == 0 {
		return nil, &domain.ValidationError{Field: "results", Message: "At least one validation result is required"}
	}
	now := t.clock()
	return t.mutate(id, "", func(evo *domain.Evolution) {
		for _, r := range results {
			if r.RecordedAt.IsZero() {
				r.RecordedAt = now
			}
			evo.ValidationResults = append(evo.ValidationResults, r)
		}
	})
}

// RecordMetrics merges values into the evolution's metrics.
func (t *EvolutionTracker) RecordMetrics(id string, values map[string]interface{}) (*domain.Evolution, error) {
	return t.mutate(id, "", func(evo *domain.Evolution) {
		if evo.Metrics == nil {
			evo.Metrics = make(map[string]interface{}, len(values))
		}
		for k, v := range values {
			evo.Metrics[k] = v
		}
	})
}

// Cleanup removes terminal evolutions that completed before the retention
// window and returns their ids.
func (t *EvolutionTracker) Cleanup(retentionDays int) []string {
	cutoff := t.clock().AddDate(0, 0, -retentionDays)
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []string
	for id, evo := range t.evolutions {
		if !evo.Phase.IsTerminal() || evo.CompletedAt == nil {
			continue
		}
		if evo.CompletedAt.Before(cutoff) {
			delete(t.evolutions, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		t.log.Info().Int("removed", len(removed)).Int("retention_days", retentionDays).Msg("old evolutions cleaned up")
	}
	return removed
}

// Restore loads previously persisted evolutions. Existing ids are replaced.
func (t *EvolutionTracker) Restore(evolutions []*domain.Evolution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, evo := range evolutions {
		t.evolutions[evo.EvolutionID] = evo.Clone()
	}
}

func (t *EvolutionTracker) mutate(id, actor string, fn func(evo *domain.Evolution)) (*domain.Evolution, error) {
	t.mu.Lock()
	evo, ok := t.evolutions[id]
	if !ok {
		t.mu.Unlock()
		return nil, &domain.NotFoundError{Kind: "evolution", ID: id}
	}
	fn(evo)
	evo.LastUpdated = t.clock()
	evo.RefreshRollback()
	out := evo.Clone()
	t.mu.Unlock()

	t.emit(domain.EventTypeEvolutionUpdated, out, actor)
	return out, nil
}

func (t *EvolutionTracker) emit(eventType domain.EventType, evo *domain.Evolution, actor string) {
	t.emitter.Emit(notify.NewEvent(eventType, evo.EvolutionID, actor, evo.LastUpdated, evo))
}

func validateVersions(update domain.ImplementationUpdate) error {
	fields := []struct {
		name string
		raw  string
	}{
		{"current_version", update.CurrentVersion},
		{"target_version", update.TargetVersion},
		{"backup_version", update.BackupVersion},
	}
	parsed := make(map[string]*semver.Version, len(fields))
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := semver.NewVersion(f.raw)
		if err != nil {
			return &domain.ValidationError{Field: f.name, Message: fmt.Sprintf("Invalid %s %q: %v", strings.ReplaceAll(f.name, "_", " "), f.raw, err)}
		}
		parsed[f.name] = v
	}
	current, target := parsed["current_version"], parsed["target_version"]
	if current != nil && target != nil && !target.GreaterThan(current) {
		return &domain.ValidationError{
			Field:   "target_version",
			Message: fmt.Sprintf("Target version %s must be newer than current version %s", update.TargetVersion, update.CurrentVersion),
		}
	}
	return nil
}
