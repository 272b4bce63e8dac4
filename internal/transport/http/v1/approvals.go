package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// SubmitApproval creates an approval request.
// POST /api/v1/approvals
func (h *Handler) SubmitApproval(c echo.Context) error {
	var req domain.ApprovalSubmission
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	approval, err := h.service.SubmitApproval(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, approval)
}

// ListPendingApprovals lists pending approvals, oldest first.
// GET /api/v1/approvals/pending?type=&priority=&reviewer=&role=
func (h *Handler) ListPendingApprovals(c echo.Context) error {
	filter := domain.ApprovalFilter{
		Type:     domain.ApprovalType(c.QueryParam("type")),
		Priority: domain.Priority(c.QueryParam("priority")),
		Reviewer: c.QueryParam("reviewer"),
		Role:     c.QueryParam("role"),
	}
	approvals := h.service.Approvals().ListPending(filter)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"approvals": approvals,
		"count":     len(approvals),
	})
}

// ApprovalStats aggregates approval counts.
// GET /api/v1/approvals/stats
func (h *Handler) ApprovalStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Approvals().Stats())
}

// ProcessOverdue runs one escalation and timeout sweep.
// POST /api/v1/approvals/process-overdue
func (h *Handler) ProcessOverdue(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ProcessOverdue(c.Request().Context()))
}

// GetApproval returns one approval.
// GET /api/v1/approvals/:approval_id
func (h *Handler) GetApproval(c echo.Context) error {
	approval, err := h.service.Approvals().Get(c.Param("approval_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, approval)
}

// GetApprovalStatus returns the deadline summary of an approval.
// GET /api/v1/approvals/:approval_id/status
func (h *Handler) GetApprovalStatus(c echo.Context) error {
	summary, err := h.service.Approvals().StatusSummary(c.Param("approval_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// GetApprovalHistory returns the decisions recorded for an approval.
// GET /api/v1/approvals/:approval_id/history
func (h *Handler) GetApprovalHistory(c echo.Context) error {
	history, err := h.service.Approvals().History(c.Param("approval_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"approval_id": c.Param("approval_id"),
		"decisions":   history,
	})
}

// decide returns the handler for one verdict.
// POST /api/v1/approvals/:approval_id/{approve,reject,changes}
func (h *Handler) decide(decision domain.DecisionValue) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.DecisionInput
		if err := c.Bind(&in); err != nil {
			return badRequest(c, "invalid request body")
		}
		approval, err := h.service.DecideApproval(c.Request().Context(), c.Param("approval_id"), decision, in)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, approval)
	}
}

// EscalateApproval escalates an approval by hand.
// POST /api/v1/approvals/:approval_id/escalate
func (h *Handler) EscalateApproval(c echo.Context) error {
	var in domain.EscalateRequest
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	if in.Reason == "" {
		return badRequest(c, "reason is required")
	}
	approval, err := h.service.EscalateApproval(c.Request().Context(), c.Param("approval_id"), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, approval)
}

// StartReview claims an approval for a reviewer.
// POST /api/v1/approvals/:approval_id/review
func (h *Handler) StartReview(c echo.Context) error {
	var in domain.StartReviewRequest
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	approval, err := h.service.StartReview(c.Request().Context(), c.Param("approval_id"), in.Reviewer)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, approval)
}

// ReviseApproval resubmits content after changes were requested.
// POST /api/v1/approvals/:approval_id/revise
func (h *Handler) ReviseApproval(c echo.Context) error {
	var in domain.ReviseRequest
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	approval, err := h.service.ReviseApproval(c.Request().Context(), c.Param("approval_id"), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, approval)
}
