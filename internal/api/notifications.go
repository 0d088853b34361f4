package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nudgeworks/nudge-go/internal/datastore"
)

// initNotificationRoutes registers the scheduled notification endpoints.
func (c *Controller) initNotificationRoutes() {
	group := c.Group.Group("/notifications")
	group.GET("", c.ListNotifications)
	group.POST("", c.CreateNotification)
	group.GET("/:id", c.GetNotification)
	group.POST("/:id/cancel", c.CancelNotification)
	group.POST("/:id/process", c.ProcessNotification)

	c.Group.GET("/users/:id/history", c.ListUserHistory)
}

// notificationRequest is the JSON body for scheduling a notification.
type notificationRequest struct {
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	TargetAudience string            `json:"target_audience"`
	TargetUserID   *string           `json:"target_user_id,omitempty"`
	ScheduledFor   *time.Time        `json:"scheduled_for,omitempty"`
	Payload        datastore.JSONMap `json:"payload,omitempty"`
}

// ListNotifications handles GET /api/v1/notifications with an optional
// status filter.
func (c *Controller) ListNotifications(ctx echo.Context) error {
	limit, offset := paginationParams(ctx)
	notifications, err := c.DS.ListNotifications(ctx.QueryParam("status"), limit, offset)
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to list notifications")
	}
	return ctx.JSON(http.StatusOK, notifications)
}

// CreateNotification handles POST /api/v1/notifications. The notification is
// created pending; the periodic runner picks it up once its scheduled time
// passes, or it can be processed immediately via the process endpoint.
func (c *Controller) CreateNotification(ctx echo.Context) error {
	var req notificationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	notification := &datastore.ScheduledNotification{
		Title:          req.Title,
		Body:           req.Body,
		TargetAudience: req.TargetAudience,
		TargetUserID:   req.TargetUserID,
		Payload:        req.Payload,
	}
	if req.ScheduledFor != nil {
		notification.ScheduledFor = *req.ScheduledFor
	}
	if err := c.DS.CreateNotification(notification); err != nil {
		return c.handleStoreError(ctx, err, "Failed to create notification")
	}
	return ctx.JSON(http.StatusCreated, notification)
}

// GetNotification handles GET /api/v1/notifications/:id.
func (c *Controller) GetNotification(ctx echo.Context) error {
	notification, err := c.DS.GetNotification(ctx.Param("id"))
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to get notification")
	}
	return ctx.JSON(http.StatusOK, notification)
}

// CancelNotification handles POST /api/v1/notifications/:id/cancel. Only
// pending notifications can be cancelled.
func (c *Controller) CancelNotification(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.DS.TransitionNotificationStatus(id, datastore.StatusCancelled, nil); err != nil {
		return c.handleStoreError(ctx, err, "Failed to cancel notification")
	}

	notification, err := c.DS.GetNotification(id)
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to get notification")
	}
	return ctx.JSON(http.StatusOK, notification)
}

// ListUserHistory handles GET /api/v1/users/:id/history.
func (c *Controller) ListUserHistory(ctx echo.Context) error {
	limit, offset := paginationParams(ctx)
	history, err := c.DS.ListHistory(ctx.Param("id"), limit, offset)
	if err != nil {
		return c.handleStoreError(ctx, err, "Failed to list notification history")
	}
	return ctx.JSON(http.StatusOK, history)
}
