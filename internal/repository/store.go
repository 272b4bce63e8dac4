// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// Store defines the interface for data persistence. The engines keep their
// working state in memory; the store holds snapshots used to restore them.
type Store interface {
	// Approval operations
	UpsertApproval(ctx context.Context, req *domain.ApprovalRequest) error
	GetApproval(ctx context.Context, approvalID string) (*domain.ApprovalRequest, error)
	ListApprovals(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error)
	AppendDecision(ctx context.Context, decision *domain.ApprovalDecision) error
	ListDecisions(ctx context.Context, approvalID string) ([]domain.ApprovalDecision, error)
	ListAllDecisions(ctx context.Context) (map[string][]domain.ApprovalDecision, error)

	// Evolution operations
	UpsertEvolution(ctx context.Context, evo *domain.Evolution) error
	GetEvolution(ctx context.Context, evolutionID string) (*domain.Evolution, error)
	ListEvolutions(ctx context.Context) ([]*domain.Evolution, error)
	DeleteEvolutions(ctx context.Context, ids []string) error

	// Event operations
	AppendEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context, subjectID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Agent operations
	UpsertAgent(ctx context.Context, agent *domain.Agent) error
	GetAgent(ctx context.Context, name string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	DeleteAgent(ctx context.Context, name string) (bool, error)

	Close() error
}
