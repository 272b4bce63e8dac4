package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// RequestEvolution creates an evolution and its gating approval.
// POST /api/v1/evolutions
func (h *Handler) RequestEvolution(c echo.Context) error {
	var req domain.EvolutionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	evo, approval, err := h.service.RequestEvolution(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"evolution_id": evo.EvolutionID,
		"approval_id":  approval.ApprovalID,
		"evolution":    evo,
	})
}

// ListEvolutions lists evolutions, optionally narrowed to one type and/or
// phase. A phase-only listing is oldest first; the others are newest first.
// GET /api/v1/evolutions?type=bug_fix&phase=APPROVED
func (h *Handler) ListEvolutions(c echo.Context) error {
	evolutionType := domain.EvolutionType(c.QueryParam("type"))
	if evolutionType != "" && !evolutionType.Valid() {
		return badRequest(c, "unknown evolution type: "+string(evolutionType))
	}
	phase := domain.EvolutionPhase(c.QueryParam("phase"))
	if phase != "" && !phase.Valid() {
		return badRequest(c, "unknown evolution phase: "+string(phase))
	}

	tracker := h.service.Evolutions()
	var evolutions []*domain.Evolution
	switch {
	case evolutionType != "":
		evolutions = tracker.ListByType(evolutionType)
		if phase != "" {
			filtered := make([]*domain.Evolution, 0, len(evolutions))
			for _, evo := range evolutions {
				if evo.Phase == phase {
					filtered = append(filtered, evo)
				}
			}
			evolutions = filtered
		}
	case phase != "":
		evolutions = tracker.ListByPhase(phase)
	default:
		evolutions = tracker.ListAll()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"evolutions": evolutions,
		"count":      len(evolutions),
	})
}

// CleanupEvolutions purges terminal evolutions older than the retention window.
// DELETE /api/v1/evolutions?retention_days=90
func (h *Handler) CleanupEvolutions(c echo.Context) error {
	days, err := queryInt(c, "retention_days", 90)
	if err != nil {
		return badRequest(c, "retention_days must be an integer")
	}
	result, err := h.service.CleanupEvolutions(c.Request().Context(), days)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListActiveEvolutions lists in-flight evolutions, oldest first.
// GET /api/v1/evolutions/active
func (h *Handler) ListActiveEvolutions(c echo.Context) error {
	evolutions := h.service.Evolutions().ListActive()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"evolutions": evolutions,
		"count":      len(evolutions),
	})
}

// EvolutionStatistics aggregates the tracked evolutions.
// GET /api/v1/evolutions/statistics
func (h *Handler) EvolutionStatistics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Evolutions().Statistics())
}

// ListRecentEvolutions lists evolutions created within the last N days.
// GET /api/v1/evolutions/recent?days=7
func (h *Handler) ListRecentEvolutions(c echo.Context) error {
	days, err := queryInt(c, "days", 7)
	if err != nil || days < 0 {
		return badRequest(c, "days must be a non-negative integer")
	}
	evolutions := h.service.Evolutions().ListRecent(days)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"evolutions": evolutions,
		"count":      len(evolutions),
	})
}

// GetEvolution returns one evolution.
// GET /api/v1/evolutions/:evolution_id
func (h *Handler) GetEvolution(c echo.Context) error {
	evo, err := h.service.Evolutions().Get(c.Param("evolution_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, evo)
}

// UpdateEvolutionStatus moves an evolution to another phase.
// PUT /api/v1/evolutions/:evolution_id/status
func (h *Handler) UpdateEvolutionStatus(c echo.Context) error {
	var req domain.PhaseUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	evo, err := h.service.UpdateEvolutionStatus(c.Request().Context(), c.Param("evolution_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, evo)
}

// UpdateImplementation records implementation details.
// PUT /api/v1/evolutions/:evolution_id/implementation
func (h *Handler) UpdateImplementation(c echo.Context) error {
	var req domain.ImplementationUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	evo, err := h.service.UpdateImplementation(c.Request().Context(), c.Param("evolution_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, evo)
}

// AddValidationResults appends validation results.
// POST /api/v1/evolutions/:evolution_id/validation
func (h *Handler) AddValidationResults(c echo.Context) error {
	var req domain.ValidationResultsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	evo, err := h.service.AddValidationResults(c.Request().Context(), c.Param("evolution_id"), req.Results)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, evo)
}

// ExecuteEvolution dispatches an approved evolution to an agent.
// POST /api/v1/evolutions/:evolution_id/execute
func (h *Handler) ExecuteEvolution(c echo.Context) error {
	var req domain.ExecuteEvolutionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	evo, inv, err := h.service.ExecuteEvolution(c.Request().Context(), c.Param("evolution_id"), req)
	if err != nil {
		if evo == nil {
			return errorResponse(c, err)
		}
		// The evolution was moved to FAILED.
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error":     err.Error(),
			"evolution": evo,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"evolution":  evo,
		"invocation": inv,
	})
}

// ListWorkshopEvolutions lists a workshop's evolutions, newest first.
// GET /api/v1/workshops/:workshop_name/evolutions
func (h *Handler) ListWorkshopEvolutions(c echo.Context) error {
	evolutions := h.service.Evolutions().ListByWorkshop(c.Param("workshop_name"))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"workshop_name": c.Param("workshop_name"),
		"evolutions":    evolutions,
		"count":         len(evolutions),
	})
}

// WorkshopSummary summarises a workshop's evolution history.
// GET /api/v1/workshops/:workshop_name/summary
func (h *Handler) WorkshopSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Evolutions().WorkshopSummary(c.Param("workshop_name")))
}
