package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// StreamRunEvents streams round progress for a run via SSE until the run
// reaches a terminal state or the client disconnects.
// GET /v1/runs/:run_id/events
func (h *Handler) StreamRunEvents(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return errorResponse(c, err)
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	events, unsubscribe := h.service.Subscribe(runID)
	defer unsubscribe()

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	if flusher, ok := c.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	for {
		select {
		case <-ctx.Done():
			// Client disconnected.
			return nil

		case progress, ok := <-events:
			if !ok {
				// Run finished and the service released its subscribers.
				if err := sendSSEEvent(c, "done", map[string]string{"run_id": runID}); err != nil {
					return err
				}
				return nil
			}
			if err := sendSSEEvent(c, "round", progress); err != nil {
				return err
			}
		}
	}
}

// sendSSEEvent writes one event in SSE format and flushes it.
func sendSSEEvent(c echo.Context, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if _, err := fmt.Fprintf(c.Response().Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	if flusher, ok := c.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
