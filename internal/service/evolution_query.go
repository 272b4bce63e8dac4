package service

import (
	"math"
	"sort"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// ListActive returns in-progress evolutions, oldest first.
func (t *EvolutionTracker) ListActive() []*domain.Evolution {
	out := t.filter(func(e *domain.Evolution) bool { return e.Phase.IsActive() })
	sortByCreated(out, true)
	return out
}

// ListByWorkshop returns a workshop's evolution history, newest first.
func (t *EvolutionTracker) ListByWorkshop(workshop string) []*domain.Evolution {
	out := t.filter(func(e *domain.Evolution) bool { return e.WorkshopName == workshop })
	sortByCreated(out, false)
	return out
}

// ListByType returns evolutions of one type, newest first.
func (t *EvolutionTracker) ListByType(evolutionType domain.EvolutionType) []*domain.Evolution {
	out := t.filter(func(e *domain.Evolution) bool { return e.Type == evolutionType })
	sortByCreated(out, false)
	return out
}

// ListByPhase returns evolutions currently in phase, oldest first.
func (t *EvolutionTracker) ListByPhase(phase domain.EvolutionPhase) []*domain.Evolution {
	out := t.filter(func(e *domain.Evolution) bool { return e.Phase == phase })
	sortByCreated(out, true)
	return out
}

// ListRecent returns evolutions created within the last days, newest first.
func (t *EvolutionTracker) ListRecent(days int) []*domain.Evolution {
	since := t.clock().AddDate(0, 0, -days)
	out := t.filter(func(e *domain.Evolution) bool { return !e.CreatedAt.Before(since) })
	sortByCreated(out, false)
	return out
}

// ListAll returns every evolution, newest first.
func (t *EvolutionTracker) ListAll() []*domain.Evolution {
	out := t.filter(func(*domain.Evolution) bool { return true })
	sortByCreated(out, false)
	return out
}

// Statistics aggregates counts, success rate and mean duration.
// Success rate is the percentage of terminal evolutions that succeeded,
// rounded to two decimals.
func (t *EvolutionTracker) Statistics() domain.EvolutionStatistics {
	now := t.clock()
	weekAgo := now.AddDate(0, 0, -7)

	t.mu.Lock()
	defer t.mu.Unlock()

	stats := domain.EvolutionStatistics{
		ByPhase:     make(map[domain.EvolutionPhase]int),
		ByType:      make(map[domain.EvolutionType]int),
		LastUpdated: now,
	}
	var terminal, successful int
	var totalMinutes int64
	for _, evo := range t.evolutions {
		stats.TotalEvolutions++
		stats.ByPhase[evo.Phase]++
		stats.ByType[evo.Type]++
		if evo.Phase.IsActive() {
			stats.ActiveEvolutions++
		}
		if !evo.CreatedAt.Before(weekAgo) {
			stats.RecentActivity7Days++
		}
		if evo.Phase.IsTerminal() {
			terminal++
			totalMinutes += evo.DurationMinutes(now)
			if evo.Phase.IsSuccessful() {
				successful++
			}
		}
	}
	if terminal > 0 {
		stats.SuccessRate = round2(float64(successful) / float64(terminal) * 100)
		stats.AverageDurationMinutes = round2(float64(totalMinutes) / float64(terminal))
	}
	return stats
}

// WorkshopSummary summarises one workshop's evolutions.
func (t *EvolutionTracker) WorkshopSummary(workshop string) domain.WorkshopSummary {
	history := t.ListByWorkshop(workshop)
	summary := domain.WorkshopSummary{
		WorkshopName:    workshop,
		TotalEvolutions: len(history),
		StatusCounts:    make(map[domain.EvolutionPhase]int),
	}
	if len(history) > 0 {
		summary.LatestEvolution = history[0]
	}
	for _, evo := range history {
		summary.StatusCounts[evo.Phase]++
		if evo.Phase.IsActive() {
			summary.ActiveCount++
		}
	}
	return summary
}

func (t *EvolutionTracker) filter(keep func(*domain.Evolution) bool) []*domain.Evolution {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*domain.Evolution, 0)
	for _, evo := range t.evolutions {
		if keep(evo) {
			out = append(out, evo.Clone())
		}
	}
	return out
}

func sortByCreated(evos []*domain.Evolution, ascending bool) {
	sort.SliceStable(evos, func(i, j int) bool {
		a, b := evos[i].CreatedAt, evos[j].CreatedAt
		if a.Equal(b) {
			return evos[i].EvolutionID < evos[j].EvolutionID
		}
		if ascending {
			return a.Before(b)
		}
		return a.After(b)
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
