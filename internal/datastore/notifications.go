// notifications.go: Database operations for scheduled notifications
package datastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nudgeworks/nudge-go/internal/errors"
)

// CreateNotification inserts a new scheduled notification, always in the
// pending status.
func (ds *DataStore) CreateNotification(notification *ScheduledNotification) error {
	if notification == nil {
		return validationError("notification cannot be nil", "notification", nil)
	}
	if notification.Title == "" {
		return validationError("notification title cannot be empty", "title", "")
	}
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.Status == "" {
		notification.Status = StatusPending
	}
	if notification.Status != StatusPending {
		return validationError("new notifications must be pending", "status", notification.Status)
	}
	if notification.ScheduledFor.IsZero() {
		notification.ScheduledFor = time.Now()
	}
	if err := ds.DB.Create(notification).Error; err != nil {
		return dbError(err, "create_notification", errors.PriorityHigh,
			"notification_id", notification.ID)
	}
	return nil
}

// GetNotification retrieves a scheduled notification by id
func (ds *DataStore) GetNotification(id string) (*ScheduledNotification, error) {
	if id == "" {
		return nil, validationError("notification id cannot be empty", "id", "")
	}
	var notification ScheduledNotification
	if err := ds.DB.Where("id = ?", id).First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, dbError(err, "get_notification", errors.PriorityMedium,
			"notification_id", id)
	}
	return &notification, nil
}

// GetPendingNotifications returns pending notifications whose scheduled time
// has passed, oldest first.
func (ds *DataStore) GetPendingNotifications(now time.Time) ([]ScheduledNotification, error) {
	var notifications []ScheduledNotification
	err := ds.DB.
		Where("status = ?", StatusPending).
		Where("scheduled_for <= ?", now).
		Order("scheduled_for ASC").
		Find(&notifications).Error
	if err != nil {
		return nil, dbError(err, "get_pending_notifications", errors.PriorityHigh)
	}
	return notifications, nil
}

// TransitionNotificationStatus moves a notification from pending to a
// terminal status, applying the extra field updates atomically. The status
// machine is monotonic: rows never leave sent, failed or cancelled.
func (ds *DataStore) TransitionNotificationStatus(id, to string, fields map[string]any) error {
	if id == "" {
		return validationError("notification id cannot be empty", "id", "")
	}
	if !IsTerminalStatus(to) {
		return validationError("transition target must be a terminal status", "status", to)
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	for key, value := range fields {
		updates[key] = value
	}

	// The status guard in the WHERE clause makes the transition a single
	// conditional update, so two racing callers cannot both succeed.
	result := ds.DB.Model(&ScheduledNotification{}).
		Where("id = ?", id).
		Where("status = ?", StatusPending).
		Updates(updates)
	if result.Error != nil {
		return dbError(result.Error, "transition_notification_status", errors.PriorityHigh,
			"notification_id", id,
			"to_status", to)
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing row from a terminal one for callers.
		var existing ScheduledNotification
		if err := ds.DB.Where("id = ?", id).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotificationNotFound
			}
			return dbError(err, "transition_notification_status", errors.PriorityHigh,
				"notification_id", id)
		}
		return ErrTerminalStatusTransition
	}
	return nil
}

// ListNotifications returns notifications for the admin surface, newest
// first, optionally filtered by status.
func (ds *DataStore) ListNotifications(status string, limit, offset int) ([]ScheduledNotification, error) {
	query := ds.DB.Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var notifications []ScheduledNotification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, dbError(err, "list_notifications", errors.PriorityLow, "status", status)
	}
	return notifications, nil
}
