package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const defaultEventLimit = 100

// ListEvents lists journaled events.
// GET /api/v1/events?subject_id=&after_ts=&types=a,b&limit=
func (h *Handler) ListEvents(c echo.Context) error {
	var afterTs int64
	if raw := c.QueryParam("after_ts"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest(c, "after_ts must be an integer")
		}
		afterTs = v
	}
	limit, err := queryInt(c, "limit", defaultEventLimit)
	if err != nil || limit <= 0 {
		return badRequest(c, "limit must be a positive integer")
	}
	var types []string
	if raw := c.QueryParam("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	events, err := h.service.ListEvents(c.Request().Context(), c.QueryParam("subject_id"), afterTs, types, limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
