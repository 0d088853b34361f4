package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initThrottleRoutes registers the throttle settings endpoints.
func (c *Controller) initThrottleRoutes() {
	c.Group.GET("/throttle", c.GetThrottleSettings)
	c.Group.PUT("/throttle", c.UpdateThrottleSettings)
}

// throttleRequest is the JSON body for updating throttle settings.
type throttleRequest struct {
	Enabled                   bool `json:"enabled"`
	MaxNotificationsPerDay    int  `json:"max_notifications_per_day"`
	CooldownHours             int  `json:"cooldown_hours"`
	PriorityOverrideThreshold int  `json:"priority_override_threshold"`
	RespectUserPreferences    bool `json:"respect_user_preferences"`
}

// GetThrottleSettings handles GET /api/v1/throttle.
func (c *Controller) GetThrottleSettings(ctx echo.Context) error {
	settings, err := c.DS.GetThrottleSettings()
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to get throttle settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}

// UpdateThrottleSettings handles PUT /api/v1/throttle. Changes take effect
// on the next throttle gate evaluation, never retroactively.
func (c *Controller) UpdateThrottleSettings(ctx echo.Context) error {
	var req throttleRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	settings, err := c.DS.GetThrottleSettings()
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to get throttle settings")
	}
	settings.Enabled = req.Enabled
	settings.MaxNotificationsPerDay = req.MaxNotificationsPerDay
	settings.CooldownHours = req.CooldownHours
	settings.PriorityOverrideThreshold = req.PriorityOverrideThreshold
	settings.RespectUserPreferences = req.RespectUserPreferences

	if err := c.DS.UpdateThrottleSettings(settings); err != nil {
		return c.handleStoreError(ctx, err, "Failed to update throttle settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}
