package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initRunnerRoutes registers the engine invocation endpoints.
func (c *Controller) initRunnerRoutes() {
	c.Group.POST("/runner/run", c.RunEngine)
}

// runResponse is the JSON shape returned by both invocation endpoints.
type runResponse struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// RunEngine handles POST /api/v1/runner/run: one full engine pass, identical
// to a periodic scheduler tick.
func (c *Controller) RunEngine(ctx echo.Context) error {
	result := c.Runner.Run(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, runResponse{
		Success:   len(result.Errors) == 0,
		Processed: result.Processed,
		Sent:      result.Sent,
		Failed:    result.Failed,
		Errors:    result.Errors,
	})
}

// ProcessNotification handles POST /api/v1/notifications/:id/process,
// dispatching one specific notification without trigger evaluation.
func (c *Controller) ProcessNotification(ctx echo.Context) error {
	result, err := c.Runner.ProcessNotification(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to process notification")
	}
	return ctx.JSON(http.StatusOK, runResponse{
		Success:   len(result.Errors) == 0,
		Processed: result.Processed,
		Sent:      result.Sent,
		Failed:    result.Failed,
		Errors:    result.Errors,
	})
}
