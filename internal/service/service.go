package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/config"
	"github.com/xiaot623/gogo/coordinator/internal/adapter/notify"
	"github.com/xiaot623/gogo/coordinator/internal/adapter/registry"
	"github.com/xiaot623/gogo/coordinator/internal/domain"
	store "github.com/xiaot623/gogo/coordinator/internal/repository"
	"github.com/xiaot623/gogo/coordinator/policy"
)

// contextKeyEvolution links an approval request back to its evolution.
const contextKeyEvolution = "evolution_id"

// persistTimeout bounds each best-effort snapshot write.
const persistTimeout = 2 * time.Second

// Service coordinates the approval engine, the evolution tracker and the agent
// bridge. The engines never call each other; every link between an approval
// and an evolution is made here.
type Service struct {
	store        store.Store
	approvals    *ApprovalEngine
	evolutions   *EvolutionTracker
	bridge       *Bridge
	agents       *registry.Registry
	policyEngine *policy.Engine
	emitter      notify.Emitter
	config       *config.Config
	log          zerolog.Logger

	// persistMu serializes approval snapshots so the decision count read
	// from the store and the appends that follow it cannot interleave.
	persistMu sync.Mutex
}

func New(st store.Store, approvals *ApprovalEngine, evolutions *EvolutionTracker, bridge *Bridge, agents *registry.Registry, policyEngine *policy.Engine, emitter notify.Emitter, cfg *config.Config, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = notify.Discard
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Service{
		store:        st,
		approvals:    approvals,
		evolutions:   evolutions,
		bridge:       bridge,
		agents:       agents,
		policyEngine: policyEngine,
		emitter:      emitter,
		config:       cfg,
		log:          log,
	}
}

// Approvals exposes the approval engine for read-only queries.
func (s *Service) Approvals() *ApprovalEngine { return s.approvals }

// Evolutions exposes the evolution tracker for read-only queries.
func (s *Service) Evolutions() *EvolutionTracker { return s.evolutions }

// Restore reloads persisted approvals, evolutions and agents into memory.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	requests, err := s.store.ListApprovals(ctx, "")
	if err != nil {
		return err
	}
	decisions, err := s.store.ListAllDecisions(ctx)
	if err != nil {
		return err
	}
	s.approvals.Restore(requests, decisions)

	evolutions, err := s.store.ListEvolutions(ctx)
	if err != nil {
		return err
	}
	s.evolutions.Restore(evolutions)

	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return err
	}
	for _, a := range agents {
		s.agents.Set(a.Name, a.Endpoint)
	}

	s.log.Info().
		Int("approvals", len(requests)).
		Int("evolutions", len(evolutions)).
		Int("agents", len(agents)).
		Msg("state restored")
	return nil
}

// persistApproval snapshots an approval and appends decisions the store has
// not seen yet. Failures are logged only.
func (s *Service) persistApproval(ctx context.Context, id string) {
	if s.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	req, err := s.approvals.Get(id)
	if err != nil {
		return
	}
	history, err := s.approvals.History(id)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.store.UpsertApproval(ctx, req); err != nil {
		s.log.Warn().Err(err).Str("approval_id", id).Msg("failed to persist approval")
		return
	}
	stored, err := s.store.ListDecisions(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("approval_id", id).Msg("failed to load persisted decisions")
		return
	}
	for i := len(stored); i < len(history); i++ {
		if err := s.store.AppendDecision(ctx, &history[i]); err != nil {
			s.log.Warn().Err(err).Str("approval_id", id).Msg("failed to persist decision")
			return
		}
	}
}

// persistEvolution snapshots an evolution. Failures are logged only.
func (s *Service) persistEvolution(ctx context.Context, evo *domain.Evolution) {
	if s.store == nil || evo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.store.UpsertEvolution(ctx, evo); err != nil {
		s.log.Warn().Err(err).Str("evolution_id", evo.EvolutionID).Msg("failed to persist evolution")
	}
}
