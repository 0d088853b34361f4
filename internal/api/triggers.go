package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/errors"
	"github.com/nudgeworks/nudge-go/internal/trigger"
)

// initTriggerRoutes registers the trigger definition CRUD endpoints.
func (c *Controller) initTriggerRoutes() {
	group := c.Group.Group("/triggers")
	group.GET("", c.ListTriggers)
	group.POST("", c.CreateTrigger)
	group.GET("/:id", c.GetTrigger)
	group.PUT("/:id", c.UpdateTrigger)
	group.DELETE("/:id", c.DeleteTrigger)
	group.GET("/:id/stats", c.GetTriggerStats)
	group.GET("/:id/executions", c.ListTriggerExecutions)
}

// triggerRequest is the JSON body for creating or updating a trigger.
type triggerRequest struct {
	Name            string            `json:"name"`
	TriggerType     string            `json:"trigger_type"`
	ConditionConfig datastore.JSONMap `json:"condition_config"`
	MessageTitle    string            `json:"message_title"`
	MessageBody     string            `json:"message_body"`
	Active          bool              `json:"active"`
	Priority        int               `json:"priority"`
	TargetAudience  string            `json:"target_audience"`
}

// validate checks the request at the admin-write boundary so the runner can
// trust stored condition configs.
func (r *triggerRequest) validate() error {
	if r.Name == "" {
		return errors.Newf("trigger name is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if _, err := trigger.ParseConditionConfig(r.TriggerType, r.ConditionConfig); err != nil {
		return err
	}
	return nil
}

func (r *triggerRequest) apply(definition *datastore.TriggerDefinition) {
	definition.Name = r.Name
	definition.TriggerType = r.TriggerType
	definition.ConditionConfig = r.ConditionConfig
	definition.MessageTitle = r.MessageTitle
	definition.MessageBody = r.MessageBody
	definition.Active = r.Active
	definition.Priority = r.Priority
	definition.TargetAudience = r.TargetAudience
}

// ListTriggers handles GET /api/v1/triggers.
func (c *Controller) ListTriggers(ctx echo.Context) error {
	triggers, err := c.DS.ListTriggers()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list triggers", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, triggers)
}

// CreateTrigger handles POST /api/v1/triggers.
func (c *Controller) CreateTrigger(ctx echo.Context) error {
	var req triggerRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if err := req.validate(); err != nil {
		return c.HandleError(ctx, err, "Invalid trigger definition", http.StatusBadRequest)
	}

	definition := &datastore.TriggerDefinition{}
	req.apply(definition)
	if definition.Priority == 0 {
		definition.Priority = 5
	}
	if err := c.DS.SaveTrigger(definition); err != nil {
		return c.handleStoreError(ctx, err, "Failed to create trigger")
	}
	return ctx.JSON(http.StatusCreated, definition)
}

// GetTrigger handles GET /api/v1/triggers/:id.
func (c *Controller) GetTrigger(ctx echo.Context) error {
	definition, err := c.DS.GetTrigger(ctx.Param("id"))
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to get trigger")
	}
	return ctx.JSON(http.StatusOK, definition)
}

// UpdateTrigger handles PUT /api/v1/triggers/:id.
func (c *Controller) UpdateTrigger(ctx echo.Context) error {
	var req triggerRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if err := req.validate(); err != nil {
		return c.HandleError(ctx, err, "Invalid trigger definition", http.StatusBadRequest)
	}

	definition, err := c.DS.GetTrigger(ctx.Param("id"))
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to get trigger")
	}
	req.apply(definition)
	if err := c.DS.UpdateTrigger(definition); err != nil {
		return c.handleStoreError(ctx, err, "Failed to update trigger")
	}

	c.statsCache.Delete(definition.ID)
	return ctx.JSON(http.StatusOK, definition)
}

// DeleteTrigger handles DELETE /api/v1/triggers/:id. Execution history for
// the trigger is retained.
func (c *Controller) DeleteTrigger(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.DS.DeleteTrigger(id); err != nil {
		return c.handleStoreError(ctx, err, "Failed to delete trigger")
	}
	c.statsCache.Delete(id)
	return ctx.NoContent(http.StatusNoContent)
}

// GetTriggerStats handles GET /api/v1/triggers/:id/stats, serving cached
// aggregates since execution counts are append-only and stats queries scan
// the whole audit table.
func (c *Controller) GetTriggerStats(ctx echo.Context) error {
	id := ctx.Param("id")

	if cached, found := c.statsCache.Get(id); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	if _, err := c.DS.GetTrigger(id); err != nil {
		return c.handleStoreError(ctx, err, "Failed to get trigger")
	}
	stats, err := c.DS.GetTriggerStats(id)
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to get trigger stats")
	}

	c.statsCache.SetDefault(id, stats)
	return ctx.JSON(http.StatusOK, stats)
}

// ListTriggerExecutions handles GET /api/v1/triggers/:id/executions.
func (c *Controller) ListTriggerExecutions(ctx echo.Context) error {
	limit, offset := paginationParams(ctx)
	executions, err := c.DS.ListExecutions(ctx.Param("id"), limit, offset)
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to list executions")
	}
	return ctx.JSON(http.StatusOK, executions)
}
