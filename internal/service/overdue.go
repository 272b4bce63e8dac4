package service

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

const defaultOverdueSweep = time.Minute

// RunOverdueMonitor sweeps approvals on a fixed interval until ctx is done.
func (s *Service) RunOverdueMonitor(ctx context.Context) {
	interval := s.config.OverdueSweepEvery
	if interval <= 0 {
		interval = defaultOverdueSweep
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ProcessOverdue(ctx)
		}
	}
}

// ProcessOverdue escalates approvals past their escalation deadline. It is
// the only state change made without a human action: requests past their
// timeout stay pending and are reported as overdue, never expired.
func (s *Service) ProcessOverdue(ctx context.Context) domain.OverdueResult {
	result := domain.OverdueResult{Escalated: s.approvals.ProcessOverdue()}
	for _, id := range result.Escalated {
		s.persistApproval(ctx, id)
	}
	if len(result.Escalated) > 0 {
		s.log.Info().Int("escalated", len(result.Escalated)).Msg("overdue sweep")
	}
	return result
}
