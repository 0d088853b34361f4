package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/errors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// paginationParams reads limit/offset query parameters with sane bounds.
func paginationParams(ctx echo.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := ctx.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}
	if raw := ctx.QueryParam("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// handleStoreError maps datastore errors onto HTTP statuses: sentinels for
// missing rows become 404, validation errors 400, everything else 500.
func (c *Controller) handleStoreError(ctx echo.Context, err error, message string) error {
	switch {
	case errors.Is(err, datastore.ErrTriggerNotFound),
		errors.Is(err, datastore.ErrNotificationNotFound),
		errors.Is(err, datastore.ErrUserNotFound),
		errors.Is(err, datastore.ErrHistoryNotFound):
		return c.HandleError(ctx, err, message, http.StatusNotFound)
	case errors.Is(err, datastore.ErrTerminalStatusTransition):
		return c.HandleError(ctx, err, message, http.StatusConflict)
	}

	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) && enhanced.GetCategory() == string(errors.CategoryValidation) {
		return c.HandleError(ctx, err, message, http.StatusBadRequest)
	}
	return c.HandleError(ctx, err, message, http.StatusInternalServerError)
}
