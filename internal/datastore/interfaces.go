// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/nudgeworks/nudge-go/internal/conf"
)

// Interface abstracts the underlying database implementation and defines the
// operations available to the engine and the admin API.
type Interface interface {
	Open() error
	Close() error

	// users
	GetUser(id string) (*User, error)
	SaveUser(user *User) error
	GetInactiveUsers(since time.Time) ([]User, error)
	GetIncompleteSignups(before time.Time) ([]User, error)
	FilterNotifiableUsers(ids []string) ([]User, error)
	ResolveAudience(descriptor string) ([]User, error)

	// activity events
	SaveActivityEvent(event *ActivityEvent) error
	LatestActivityForUser(userID string) (*ActivityEvent, error)
	LatestEventPerUser(eventName string) ([]ActivityEvent, error)
	GetEventsByNameSince(eventName string, since time.Time) ([]ActivityEvent, error)
	GetEventDaysByUser(eventName string, since time.Time) (map[string][]time.Time, error)

	// trigger definitions
	SaveTrigger(trigger *TriggerDefinition) error
	UpdateTrigger(trigger *TriggerDefinition) error
	DeleteTrigger(id string) error
	GetTrigger(id string) (*TriggerDefinition, error)
	GetActiveTriggers() ([]TriggerDefinition, error)
	ListTriggers() ([]TriggerDefinition, error)

	// scheduled notifications
	CreateNotification(notification *ScheduledNotification) error
	GetNotification(id string) (*ScheduledNotification, error)
	GetPendingNotifications(now time.Time) ([]ScheduledNotification, error)
	TransitionNotificationStatus(id, to string, fields map[string]any) error
	ListNotifications(status string, limit, offset int) ([]ScheduledNotification, error)

	// trigger executions (append-only audit trail)
	CreateExecution(execution *TriggerExecution) error
	GetTriggerStats(triggerID string) (*TriggerStats, error)
	ListExecutions(triggerID string, limit, offset int) ([]TriggerExecution, error)

	// user notification history (append-only, throttle input)
	CreateHistory(history *UserNotificationHistory) error
	CountHistorySince(userID string, since time.Time) (int64, error)
	LatestHistory(userID string) (*UserNotificationHistory, error)
	ListHistory(userID string, limit, offset int) ([]UserNotificationHistory, error)

	// throttle settings singleton
	GetThrottleSettings() (*ThrottleSetting, error)
	UpdateThrottleSettings(settings *ThrottleSetting) error
}

// TriggerStats aggregates execution outcomes for one trigger, consumed by
// the admin analytics surface.
type TriggerStats struct {
	TriggerID    string     `json:"trigger_id"`
	Successes    int64      `json:"successes"`
	Failures     int64      `json:"failures"`
	LastExecuted *time.Time `json:"last_executed,omitempty"`
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB       *gorm.DB // GORM database instance
	Settings *conf.Settings
}

// New creates a new datastore instance based on the configured backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{Settings: settings},
		}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{Settings: settings},
		}
	default:
		return nil
	}
}
