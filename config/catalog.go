package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// Catalog is the closed set of approval types, loaded once at startup.
type Catalog struct {
	types map[domain.ApprovalType]domain.ApprovalTypeConfig
}

type catalogFile struct {
	Types []domain.ApprovalTypeConfig `yaml:"approval_types"`
}

// DefaultCatalog returns the built-in approval type catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]domain.ApprovalTypeConfig{
		{Type: domain.ApprovalTypeClassification, Name: "Repository Classification Validation", TimeoutHours: 4, EscalationHours: 2, RequiredRole: "technical_lead"},
		{Type: domain.ApprovalTypeContentReview, Name: "Workshop Content Quality Review", TimeoutHours: 8, EscalationHours: 4, RequiredRole: "subject_matter_expert"},
		{Type: domain.ApprovalTypeDeploymentAuthorization, Name: "Production Deployment Authorization", TimeoutHours: 2, EscalationHours: 1, RequiredRole: "workshop_owner"},
		{Type: domain.ApprovalTypeConflictResolution, Name: "Agent Conflict Resolution", TimeoutHours: 1, EscalationHours: 0.5, RequiredRole: "system_administrator"},
		{Type: domain.ApprovalTypeRAGUpdate, Name: "RAG Knowledge Base Update", TimeoutHours: 24, EscalationHours: 12, RequiredRole: "content_curator"},
		{Type: domain.ApprovalTypeWorkshopEvolution, Name: "Workshop Evolution Request", TimeoutHours: 48, EscalationHours: 24, RequiredRole: "workshop_owner"},
		{Type: domain.ApprovalTypeResearchIntegration, Name: "Research Integration Approval", TimeoutHours: 72, EscalationHours: 36, RequiredRole: "subject_matter_expert"},
		{Type: domain.ApprovalTypeTechnologyRefresh, Name: "Technology Stack Refresh", TimeoutHours: 96, EscalationHours: 48, RequiredRole: "technical_lead"},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog validates entries and builds a catalog.
func NewCatalog(entries []domain.ApprovalTypeConfig) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("approval catalog is empty")
	}
	types := make(map[domain.ApprovalType]domain.ApprovalTypeConfig, len(entries))
	for _, e := range entries {
		if e.Type == "" {
			return nil, fmt.Errorf("approval catalog entry %q has no type", e.Name)
		}
		if _, dup := types[e.Type]; dup {
			return nil, fmt.Errorf("duplicate approval type %q", e.Type)
		}
		if e.TimeoutHours <= 0 || e.EscalationHours <= 0 {
			return nil, fmt.Errorf("approval type %q: hours must be positive", e.Type)
		}
		if e.EscalationHours >= e.TimeoutHours {
			return nil, fmt.Errorf("approval type %q: escalation (%vh) must come before timeout (%vh)", e.Type, e.EscalationHours, e.TimeoutHours)
		}
		if e.RequiredRole == "" {
			return nil, fmt.Errorf("approval type %q: required_role is missing", e.Type)
		}
		if e.Name == "" {
			e.Name = string(e.Type)
		}
		types[e.Type] = e
	}
	return &Catalog{types: types}, nil
}

// LoadCatalog reads the catalog from a YAML file. An empty path yields the
// built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load approval catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse approval catalog: %w", err)
	}
	return NewCatalog(file.Types)
}

// Lookup returns the configuration of an approval type.
func (c *Catalog) Lookup(t domain.ApprovalType) (domain.ApprovalTypeConfig, bool) {
	cfg, ok := c.types[t]
	return cfg, ok
}

// Types lists the catalog entries ordered by type name.
func (c *Catalog) Types() []domain.ApprovalTypeConfig {
	out := make([]domain.ApprovalTypeConfig, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
