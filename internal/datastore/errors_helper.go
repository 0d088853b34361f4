// errors_helper.go: shared error constructors for datastore operations
package datastore

import (
	"github.com/nudgeworks/nudge-go/internal/errors"
)

// Sentinel errors for lookups that found nothing.
var (
	ErrUserNotFound            = errors.Newf("user not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrTriggerNotFound         = errors.Newf("trigger definition not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrNotificationNotFound    = errors.Newf("scheduled notification not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrHistoryNotFound         = errors.Newf("notification history not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrActivityNotFound        = errors.Newf("activity event not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrTerminalStatusTransition = errors.Newf("scheduled notification is in a terminal status").Component("datastore").Category(errors.CategoryState).Build()
)

// validationError builds a validation error with field context.
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}

// dbError wraps a database error with operation context.
func dbError(err error, operation, priority string, keyvals ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Priority(priority).
		Context("operation", operation)
	for i := 0; i+1 < len(keyvals); i += 2 {
		if key, ok := keyvals[i].(string); ok {
			builder = builder.Context(key, keyvals[i+1])
		}
	}
	return builder.Build()
}
