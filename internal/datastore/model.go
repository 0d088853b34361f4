// model.go this code defines the data model for the nudge engine
package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a free-form key/value document stored as a JSON text column.
// Used for activity event properties, trigger condition configs and
// notification payloads.
type JSONMap map[string]any

// Value implements driver.Valuer, serializing the map to JSON for storage.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, deserializing a JSON text column.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// User represents an application user as seen by the engine. Users are
// created at signup and mutated by profile edits; the engine never deletes
// them.
type User struct {
	ID                   string  `gorm:"primaryKey" json:"id"`
	FirstName            string  `gorm:"type:varchar(100)" json:"first_name"`
	LastName             string  `gorm:"type:varchar(100)" json:"last_name"`
	Email                string  `gorm:"index:idx_users_email" json:"email"`
	PushToken            *string `json:"push_token,omitempty"` // delivery address, nil when the device never registered
	NotificationsEnabled bool    `gorm:"default:true" json:"notifications_enabled"`
	Role                 string  `gorm:"type:varchar(32);index:idx_users_role" json:"role"`
	CreatedAt            time.Time `gorm:"index:idx_users_created" json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// FullName joins the user's name parts, trimming when either is absent.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

// ActivityEvent is one row of the append-only analytics event log.
// UserID is nil for anonymous events.
type ActivityEvent struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	UserID     *string `gorm:"index:idx_activity_user_time" json:"user_id,omitempty"`
	EventName  string  `gorm:"type:varchar(100);index:idx_activity_name_time" json:"event_name"`
	Properties JSONMap `gorm:"type:text" json:"properties,omitempty"`
	CreatedAt  time.Time `gorm:"index:idx_activity_user_time;index:idx_activity_name_time" json:"created_at"`
}

// Well-known activity event names emitted by the mobile apps.
const (
	EventAppOpened         = "App_Opened"
	EventVideoProgress     = "Video_Progress"
	EventPracticeCompleted = "Practice_Completed"
	EventMilestoneReached  = "Milestone_Reached"
)

// TriggerDefinition is an admin-configured rule mapping a behavioral
// condition to a notification template.
type TriggerDefinition struct {
	ID              string  `gorm:"primaryKey" json:"id"`
	Name            string  `gorm:"type:varchar(200)" json:"name"`
	TriggerType     string  `gorm:"type:varchar(50);index:idx_triggers_type" json:"trigger_type"`
	ConditionConfig JSONMap `gorm:"type:text" json:"condition_config"`
	MessageTitle    string  `gorm:"type:varchar(255)" json:"message_title"`
	MessageBody     string  `gorm:"type:text" json:"message_body"`
	Active          bool    `gorm:"index:idx_triggers_active" json:"active"`
	Priority        int     `gorm:"default:5" json:"priority"` // 1-10, higher runs first and may bypass throttling
	TargetAudience  string  `gorm:"type:varchar(100)" json:"target_audience"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ScheduledNotification status values. Transitions are monotonic:
// pending may move to sent, failed or cancelled; terminal states never
// change again.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// IsTerminalStatus reports whether a notification status permits no further
// transitions.
func IsTerminalStatus(status string) bool {
	return status == StatusSent || status == StatusFailed || status == StatusCancelled
}

// ScheduledNotification is a notification either created directly by an
// admin (possibly targeting many users) or created by the dispatcher on
// behalf of a trigger (always targeting one user).
type ScheduledNotification struct {
	ID             string  `gorm:"primaryKey" json:"id"`
	Title          string  `gorm:"type:varchar(255)" json:"title"`
	Body           string  `gorm:"type:text" json:"body"`
	TargetAudience string  `gorm:"type:varchar(100)" json:"target_audience"`
	TargetUserID   *string `gorm:"index:idx_notifications_user" json:"target_user_id,omitempty"` // set for single-user trigger sends
	Status         string  `gorm:"type:varchar(20);index:idx_notifications_status" json:"status"`
	ScheduledFor   time.Time `gorm:"index:idx_notifications_scheduled" json:"scheduled_for"`
	Payload        JSONMap   `gorm:"type:text" json:"payload,omitempty"`
	DeliveredCount int       `json:"delivered_count"` // per-recipient outcomes are first-class, not a single boolean
	FailedCount    int       `json:"failed_count"`
	ErrorMessage   string `gorm:"type:text" json:"error_message,omitempty"` // failure detail, partial-failure summary, or empty-target note
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TriggerExecution is one recorded evaluation-to-send attempt for one user.
// Rows are append-only; the audit trail is never mutated.
type TriggerExecution struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	TriggerID      string  `gorm:"index:idx_executions_trigger" json:"trigger_id"`
	UserID         string  `gorm:"index:idx_executions_user" json:"user_id"`
	ExecutedAt     time.Time `gorm:"index:idx_executions_time" json:"executed_at"`
	Success        bool      `json:"success"`
	NotificationID *string   `json:"notification_id,omitempty"`
	ErrorMessage   string `gorm:"type:text" json:"error_message,omitempty"`
}

// UserNotificationHistory is the append-only log of notifications actually
// dispatched to a user. It is the sole input to throttle decisions.
type UserNotificationHistory struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         string `gorm:"index:idx_history_user_sent" json:"user_id"`
	NotificationID string  `json:"notification_id"`
	TriggerID      *string `json:"trigger_id,omitempty"` // nil for admin-initiated sends
	Category       string  `gorm:"type:varchar(50)" json:"category"`
	SentAt         time.Time `gorm:"index:idx_history_user_sent" json:"sent_at"`
	ThrottleKey    string    `gorm:"type:varchar(80);index:idx_history_throttle_key" json:"throttle_key"` // category + day
}

// ThrottleKey builds the category+day grouping key for a history row.
func ThrottleKey(category string, sentAt time.Time) string {
	return category + ":" + sentAt.Local().Format("2006-01-02")
}

// ThrottleSetting is the singleton throttle configuration row. Updates take
// effect on the next throttle gate evaluation, never retroactively.
type ThrottleSetting struct {
	ID                        uint `gorm:"primaryKey" json:"-"`
	Enabled                   bool `json:"enabled"`
	MaxNotificationsPerDay    int  `json:"max_notifications_per_day"`
	CooldownHours             int  `json:"cooldown_hours"`
	PriorityOverrideThreshold int  `json:"priority_override_threshold"`
	RespectUserPreferences    bool `json:"respect_user_preferences"`
	UpdatedAt                 time.Time `json:"updated_at"`
}
