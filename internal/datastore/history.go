// history.go: Database operations for per-user notification send history.
// This is the sole input to throttle decisions, so a row exists if and only
// if a notification was actually dispatched to the delivery gateway.
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/nudgeworks/nudge-go/internal/errors"
)

// CreateHistory appends one history row for a delivered notification.
func (ds *DataStore) CreateHistory(history *UserNotificationHistory) error {
	if history == nil {
		return validationError("notification history cannot be nil", "history", nil)
	}
	if history.UserID == "" {
		return validationError("history user id cannot be empty", "user_id", "")
	}
	if history.NotificationID == "" {
		return validationError("history notification id cannot be empty", "notification_id", "")
	}
	if history.SentAt.IsZero() {
		history.SentAt = time.Now()
	}
	if history.ThrottleKey == "" {
		history.ThrottleKey = ThrottleKey(history.Category, history.SentAt)
	}

	if err := ds.DB.Create(history).Error; err != nil {
		return dbError(err, "create_notification_history", errors.PriorityHigh,
			"user_id", history.UserID,
			"notification_id", history.NotificationID,
			"throttle_key", history.ThrottleKey)
	}
	return nil
}

// CountHistorySince counts sends to one user after the given time. The
// throttle gate calls this with local midnight to enforce the daily cap.
func (ds *DataStore) CountHistorySince(userID string, since time.Time) (int64, error) {
	if userID == "" {
		return 0, validationError("user id cannot be empty", "user_id", "")
	}
	var count int64
	err := ds.DB.Model(&UserNotificationHistory{}).
		Where("user_id = ?", userID).
		Where("sent_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "count_history_since", errors.PriorityHigh,
			"user_id", userID,
			"since", since.Format(time.RFC3339))
	}
	return count, nil
}

// LatestHistory returns the most recent send to one user, any category. The
// throttle gate uses it to enforce the cooldown between campaigns.
func (ds *DataStore) LatestHistory(userID string) (*UserNotificationHistory, error) {
	if userID == "" {
		return nil, validationError("user id cannot be empty", "user_id", "")
	}
	var history UserNotificationHistory
	err := ds.DB.
		Where("user_id = ?", userID).
		Order("sent_at DESC").
		First(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHistoryNotFound
		}
		return nil, dbError(err, "latest_history", errors.PriorityHigh, "user_id", userID)
	}
	return &history, nil
}

// ListHistory returns history rows, newest first, optionally for one user.
func (ds *DataStore) ListHistory(userID string, limit, offset int) ([]UserNotificationHistory, error) {
	query := ds.DB.Order("sent_at DESC")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []UserNotificationHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, dbError(err, "list_history", errors.PriorityLow, "user_id", userID)
	}
	return rows, nil
}
