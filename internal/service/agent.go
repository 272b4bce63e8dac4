package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

const agentStatusConfigured = "configured"

// RegisterAgent registers or updates an agent endpoint and makes it
// immediately resolvable by the bridge.
func (s *Service) RegisterAgent(ctx context.Context, in domain.RegisterAgentRequest) (*domain.Agent, error) {
	name, endpoint := strings.TrimSpace(in.Name), strings.TrimSpace(in.Endpoint)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Message: "Agent name is required"}
	}
	if u, err := url.Parse(endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &domain.ValidationError{Field: "endpoint", Message: fmt.Sprintf("Invalid agent endpoint: %q", in.Endpoint)}
	}

	now := time.Now()
	agent := &domain.Agent{
		Name:         name,
		Endpoint:     endpoint,
		Capabilities: in.Capabilities,
		Status:       "registered",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.store != nil {
		if existing, err := s.store.GetAgent(ctx, name); err == nil && existing != nil {
			agent.CreatedAt = existing.CreatedAt
		}
		if err := s.store.UpsertAgent(ctx, agent); err != nil {
			return nil, fmt.Errorf("failed to register agent: %w", err)
		}
	}
	s.agents.Set(name, endpoint)

	s.log.Info().Str("agent", name).Str("endpoint", endpoint).Msg("agent registered")
	return agent, nil
}

// ListAgents lists registered agents plus endpoints only known from
// configuration.
func (s *Service) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	var agents []domain.Agent
	if s.store != nil {
		stored, err := s.store.ListAgents(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list agents: %w", err)
		}
		agents = stored
	}
	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[a.Name] = true
	}
	for _, name := range s.agents.Names() {
		if known[name] {
			continue
		}
		endpoint, _ := s.agents.Resolve(name)
		agents = append(agents, domain.Agent{Name: name, Endpoint: endpoint, Status: agentStatusConfigured})
	}
	if agents == nil {
		agents = []domain.Agent{}
	}
	return agents, nil
}

// RemoveAgent drops a registration and stops the bridge from resolving the
// agent. Endpoints seeded from configuration come back on the next restart.
func (s *Service) RemoveAgent(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	_, known := s.agents.Resolve(name)
	if s.store != nil {
		deleted, err := s.store.DeleteAgent(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to remove agent: %w", err)
		}
		known = known || deleted
	}
	if !known {
		return &domain.NotFoundError{Kind: "agent", ID: name}
	}
	s.agents.Remove(name)

	s.log.Info().Str("agent", name).Msg("agent removed")
	return nil
}

// GetAgent returns one agent by name.
func (s *Service) GetAgent(ctx context.Context, name string) (*domain.Agent, error) {
	if s.store != nil {
		agent, err := s.store.GetAgent(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get agent: %w", err)
		}
		if agent != nil {
			return agent, nil
		}
	}
	if endpoint, ok := s.agents.Resolve(name); ok {
		return &domain.Agent{Name: name, Endpoint: endpoint, Status: agentStatusConfigured}, nil
	}
	return nil, &domain.NotFoundError{Kind: "agent", ID: name}
}
