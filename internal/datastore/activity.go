// activity.go: Read access to the append-only analytics event log
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/nudgeworks/nudge-go/internal/errors"
)

// SaveActivityEvent appends one event to the activity log. Events are never
// mutated after insertion.
func (ds *DataStore) SaveActivityEvent(event *ActivityEvent) error {
	if event == nil {
		return validationError("activity event cannot be nil", "event", nil)
	}
	if event.EventName == "" {
		return validationError("event name cannot be empty", "event_name", "")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := ds.DB.Create(event).Error; err != nil {
		return dbError(err, "save_activity_event", errors.PriorityMedium,
			"event_name", event.EventName)
	}
	return nil
}

// LatestActivityForUser returns the most recent event for one user, any
// event name.
func (ds *DataStore) LatestActivityForUser(userID string) (*ActivityEvent, error) {
	if userID == "" {
		return nil, validationError("user id cannot be empty", "user_id", userID)
	}
	var event ActivityEvent
	err := ds.DB.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, dbError(err, "latest_activity_for_user", errors.PriorityMedium,
			"user_id", userID)
	}
	return &event, nil
}

// LatestEventPerUser returns the most recent event with the given name for
// each user that has at least one. Anonymous events are excluded.
func (ds *DataStore) LatestEventPerUser(eventName string) ([]ActivityEvent, error) {
	if eventName == "" {
		return nil, validationError("event name cannot be empty", "event_name", "")
	}
	var events []ActivityEvent
	err := ds.DB.
		Where("event_name = ?", eventName).
		Where("user_id IS NOT NULL").
		Where(`created_at = (
			SELECT MAX(inner_events.created_at) FROM activity_events AS inner_events
			WHERE inner_events.user_id = activity_events.user_id
			AND inner_events.event_name = activity_events.event_name)`).
		Find(&events).Error
	if err != nil {
		return nil, dbError(err, "latest_event_per_user", errors.PriorityMedium,
			"event_name", eventName)
	}
	return events, nil
}

// GetEventsByNameSince returns all non-anonymous events with the given name
// recorded after the given time, oldest first.
func (ds *DataStore) GetEventsByNameSince(eventName string, since time.Time) ([]ActivityEvent, error) {
	if eventName == "" {
		return nil, validationError("event name cannot be empty", "event_name", "")
	}
	var events []ActivityEvent
	err := ds.DB.
		Where("event_name = ?", eventName).
		Where("user_id IS NOT NULL").
		Where("created_at > ?", since).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, dbError(err, "get_events_by_name_since", errors.PriorityMedium,
			"event_name", eventName,
			"since", since.Format(time.RFC3339))
	}
	return events, nil
}

// GetEventDaysByUser returns, per user, the distinct local calendar days on
// which the named event was recorded since the given time, sorted ascending.
// Used by streak computations.
func (ds *DataStore) GetEventDaysByUser(eventName string, since time.Time) (map[string][]time.Time, error) {
	events, err := ds.GetEventsByNameSince(eventName, since)
	if err != nil {
		return nil, err
	}

	days := make(map[string][]time.Time)
	seen := make(map[string]map[string]bool)
	for i := range events {
		event := &events[i]
		if event.UserID == nil {
			continue
		}
		userID := *event.UserID
		day := event.CreatedAt.Local()
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		key := day.Format("2006-01-02")
		if seen[userID] == nil {
			seen[userID] = make(map[string]bool)
		}
		if seen[userID][key] {
			continue
		}
		seen[userID][key] = true
		days[userID] = append(days[userID], day)
	}
	return days, nil
}
