// Package v1 provides the REST handlers of the workshop coordinator.
package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/service"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")

	// Approval workflow
	api.POST("/approvals", h.SubmitApproval)
	api.GET("/approvals/pending", h.ListPendingApprovals)
	api.GET("/approvals/stats", h.ApprovalStats)
	api.POST("/approvals/process-overdue", h.ProcessOverdue)
	api.GET("/approvals/:approval_id", h.GetApproval)
	api.GET("/approvals/:approval_id/status", h.GetApprovalStatus)
	api.GET("/approvals/:approval_id/history", h.GetApprovalHistory)
	api.POST("/approvals/:approval_id/approve", h.decide(domain.DecisionApproved))
	api.POST("/approvals/:approval_id/reject", h.decide(domain.DecisionRejected))
	api.POST("/approvals/:approval_id/changes", h.decide(domain.DecisionNeedsChanges))
	api.POST("/approvals/:approval_id/escalate", h.EscalateApproval)
	api.POST("/approvals/:approval_id/review", h.StartReview)
	api.POST("/approvals/:approval_id/revise", h.ReviseApproval)

	// Evolution lifecycle
	api.POST("/evolutions", h.RequestEvolution)
	api.GET("/evolutions", h.ListEvolutions)
	api.DELETE("/evolutions", h.CleanupEvolutions)
	api.GET("/evolutions/active", h.ListActiveEvolutions)
	api.GET("/evolutions/statistics", h.EvolutionStatistics)
	api.GET("/evolutions/recent", h.ListRecentEvolutions)
	api.GET("/evolutions/:evolution_id", h.GetEvolution)
	api.PUT("/evolutions/:evolution_id/status", h.UpdateEvolutionStatus)
	api.PUT("/evolutions/:evolution_id/implementation", h.UpdateImplementation)
	api.POST("/evolutions/:evolution_id/validation", h.AddValidationResults)
	api.POST("/evolutions/:evolution_id/execute", h.ExecuteEvolution)
	api.GET("/workshops/:workshop_name/evolutions", h.ListWorkshopEvolutions)
	api.GET("/workshops/:workshop_name/summary", h.WorkshopSummary)

	// Agent registry
	api.POST("/agents", h.RegisterAgent)
	api.GET("/agents", h.ListAgents)
	api.GET("/agents/:agent_name", h.GetAgent)
	api.DELETE("/agents/:agent_name", h.RemoveAgent)
	api.POST("/agents/:agent_name/invoke", h.InvokeAgent)

	// Event journal
	api.GET("/events", h.ListEvents)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

// errorResponse maps domain errors to HTTP status codes.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPolicyBlocked):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAgentUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrAgentCall):
		status = http.StatusBadGateway
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
