package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/voicelab/scriptloop/internal/service"
)

// StartRun launches a new tuning run.
func (h *Handler) StartRun(c echo.Context) error {
	var req service.StartRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	run, err := h.service.StartRun(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, run)
}

// ListRuns lists stored runs, newest first.
func (h *Handler) ListRuns(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	runs, err := h.service.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetRun retrieves a run by ID, along with the latest round's metrics.
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()
	run, err := h.service.GetRun(ctx, c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	resp := map[string]interface{}{"run": run}
	rounds, err := h.service.ListRounds(ctx, run.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	if len(rounds) > 0 {
		latest := rounds[len(rounds)-1]
		resp["latest_metrics"] = latest.Metrics
		resp["latest_round"] = latest.Index
	}
	return c.JSON(http.StatusOK, resp)
}

// CancelRun requests cancellation of a running tuning run.
func (h *Handler) CancelRun(c echo.Context) error {
	cancelled, err := h.service.CancelRun(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// ListRounds retrieves the persisted rounds of a run.
func (h *Handler) ListRounds(c echo.Context) error {
	rounds, err := h.service.ListRounds(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"rounds": rounds})
}

// ListTranscripts retrieves the transcripts of one round.
func (h *Handler) ListTranscripts(c echo.Context) error {
	roundIndex, err := strconv.Atoi(c.Param("round_index"))
	if err != nil || roundIndex < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid round index"})
	}

	transcripts, err := h.service.ListTranscripts(c.Request().Context(), c.Param("run_id"), roundIndex)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transcripts": transcripts})
}

// GetBestScript retrieves the best script and metrics of a finished run.
func (h *Handler) GetBestScript(c echo.Context) error {
	script, metrics, err := h.service.BestScript(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if script == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no best script recorded yet"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"script":  script,
		"metrics": metrics,
	})
}
