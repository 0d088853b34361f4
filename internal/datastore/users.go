// users.go: Database operations for user records
package datastore

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nudgeworks/nudge-go/internal/errors"
)

// GetUser retrieves a user by id
func (ds *DataStore) GetUser(id string) (*User, error) {
	if id == "" {
		return nil, validationError("user id cannot be empty", "id", id)
	}

	var user User
	if err := ds.DB.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, dbError(err, "get_user", errors.PriorityMedium, "user_id", id)
	}
	return &user, nil
}

// SaveUser inserts or updates a user record
func (ds *DataStore) SaveUser(user *User) error {
	if user == nil {
		return validationError("user cannot be nil", "user", nil)
	}
	if user.ID == "" {
		return validationError("user id cannot be empty", "id", "")
	}
	if err := ds.DB.Save(user).Error; err != nil {
		return dbError(err, "save_user", errors.PriorityMedium, "user_id", user.ID)
	}
	return nil
}

// GetInactiveUsers returns notifiable users with no activity event more
// recent than the given time. Users with no recorded activity at all also
// qualify.
func (ds *DataStore) GetInactiveUsers(since time.Time) ([]User, error) {
	var users []User
	err := ds.DB.
		Where("notifications_enabled = ?", true).
		Where("push_token IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM activity_events WHERE activity_events.user_id = users.id AND activity_events.created_at > ?)", since).
		Find(&users).Error
	if err != nil {
		return nil, dbError(err, "get_inactive_users", errors.PriorityMedium,
			"since", since.Format(time.RFC3339))
	}
	return users, nil
}

// GetIncompleteSignups returns notifiable users created before the given
// time whose profile name fields are still incomplete.
func (ds *DataStore) GetIncompleteSignups(before time.Time) ([]User, error) {
	var users []User
	err := ds.DB.
		Where("notifications_enabled = ?", true).
		Where("push_token IS NOT NULL").
		Where("created_at < ?", before).
		Where("first_name = '' OR last_name = ''").
		Find(&users).Error
	if err != nil {
		return nil, dbError(err, "get_incomplete_signups", errors.PriorityMedium,
			"before", before.Format(time.RFC3339))
	}
	return users, nil
}

// FilterNotifiableUsers narrows a set of user ids to those that are
// notification-enabled and have a delivery address.
func (ds *DataStore) FilterNotifiableUsers(ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []User
	err := ds.DB.
		Where("id IN ?", ids).
		Where("notifications_enabled = ?", true).
		Where("push_token IS NOT NULL").
		Find(&users).Error
	if err != nil {
		return nil, dbError(err, "filter_notifiable_users", errors.PriorityMedium,
			"candidate_count", len(ids))
	}
	return users, nil
}

// ResolveAudience expands a target-audience descriptor into concrete users
// with delivery addresses. Supported descriptors: "all" (or empty),
// "role:<role>", "user:<id>". Preference filtering is the caller's concern
// since admin-direct sends may ignore user preferences.
func (ds *DataStore) ResolveAudience(descriptor string) ([]User, error) {
	query := ds.DB.Where("push_token IS NOT NULL")

	switch {
	case descriptor == "" || descriptor == "all":
		// no further narrowing
	case strings.HasPrefix(descriptor, "role:"):
		query = query.Where("role = ?", strings.TrimPrefix(descriptor, "role:"))
	case strings.HasPrefix(descriptor, "user:"):
		query = query.Where("id = ?", strings.TrimPrefix(descriptor, "user:"))
	default:
		return nil, validationError("unknown audience descriptor", "target_audience", descriptor)
	}

	var users []User
	if err := query.Find(&users).Error; err != nil {
		return nil, dbError(err, "resolve_audience", errors.PriorityMedium,
			"descriptor", descriptor)
	}
	return users, nil
}
