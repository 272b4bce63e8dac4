package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// RegisterAgent handles agent registration.
// POST /api/v1/agents
func (h *Handler) RegisterAgent(c echo.Context) error {
	var req domain.RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || req.Endpoint == "" {
		return badRequest(c, "name and endpoint are required")
	}

	agent, err := h.service.RegisterAgent(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":    true,
		"agent": agent,
	})
}

// ListAgents lists all agents.
// GET /api/v1/agents
func (h *Handler) ListAgents(c echo.Context) error {
	agents, err := h.service.ListAgents(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents": agents,
	})
}

// GetAgent returns one agent.
// GET /api/v1/agents/:agent_name
func (h *Handler) GetAgent(c echo.Context) error {
	agent, err := h.service.GetAgent(c.Request().Context(), c.Param("agent_name"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, agent)
}

// RemoveAgent deletes an agent registration.
// DELETE /api/v1/agents/:agent_name
func (h *Handler) RemoveAgent(c echo.Context) error {
	if err := h.service.RemoveAgent(c.Request().Context(), c.Param("agent_name")); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok": true,
	})
}

// InvokeAgent calls one tool on an agent through the retrying bridge.
// POST /api/v1/agents/:agent_name/invoke
func (h *Handler) InvokeAgent(c echo.Context) error {
	var req domain.InvokeAgentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	inv, err := h.service.InvokeAgent(c.Request().Context(), c.Param("agent_name"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, inv)
}
