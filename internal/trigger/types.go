// Package trigger implements the notification trigger engine: condition
// evaluators, the throttle gate, the dispatcher and the scheduler-facing
// runner.
package trigger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/errors"
)

// Trigger type identifiers stored on TriggerDefinition rows.
const (
	TypeUserInactive         = "user_inactive"
	TypeSignupIncomplete     = "signup_incomplete"
	TypeVideoAbandoned       = "video_abandoned"
	TypePracticeStreakBroken = "practice_streak_broken"
	TypeMilestoneReached     = "milestone_reached"
)

// Types lists every known trigger type, in no particular order.
var Types = []string{
	TypeUserInactive,
	TypeSignupIncomplete,
	TypeVideoAbandoned,
	TypePracticeStreakBroken,
	TypeMilestoneReached,
}

// KnownType reports whether triggerType names a supported trigger type.
func KnownType(triggerType string) bool {
	for _, t := range Types {
		if t == triggerType {
			return true
		}
	}
	return false
}

// Store is the slice of the datastore the engine needs. datastore.Interface
// satisfies it; tests may supply narrower fakes.
type Store interface {
	GetInactiveUsers(since time.Time) ([]datastore.User, error)
	GetIncompleteSignups(before time.Time) ([]datastore.User, error)
	FilterNotifiableUsers(ids []string) ([]datastore.User, error)
	ResolveAudience(descriptor string) ([]datastore.User, error)

	LatestEventPerUser(eventName string) ([]datastore.ActivityEvent, error)
	GetEventsByNameSince(eventName string, since time.Time) ([]datastore.ActivityEvent, error)
	GetEventDaysByUser(eventName string, since time.Time) (map[string][]time.Time, error)

	GetActiveTriggers() ([]datastore.TriggerDefinition, error)

	CreateNotification(notification *datastore.ScheduledNotification) error
	GetNotification(id string) (*datastore.ScheduledNotification, error)
	GetPendingNotifications(now time.Time) ([]datastore.ScheduledNotification, error)
	TransitionNotificationStatus(id, to string, fields map[string]any) error

	CreateExecution(execution *datastore.TriggerExecution) error

	CreateHistory(history *datastore.UserNotificationHistory) error
	CountHistorySince(userID string, since time.Time) (int64, error)
	LatestHistory(userID string) (*datastore.UserNotificationHistory, error)

	GetThrottleSettings() (*datastore.ThrottleSetting, error)
}

// ConditionConfig is the typed condition payload of one trigger definition.
// The concrete type depends on TriggerDefinition.TriggerType.
type ConditionConfig interface {
	Validate() error
}

// UserInactiveConfig selects users with no activity for DaysInactive days.
type UserInactiveConfig struct {
	DaysInactive int `json:"days_inactive"`
}

// Validate implements ConditionConfig.
func (c *UserInactiveConfig) Validate() error {
	if c.DaysInactive < 1 {
		return fmt.Errorf("days_inactive must be at least 1, got %d", c.DaysInactive)
	}
	return nil
}

// SignupIncompleteConfig selects users who signed up more than
// HoursSinceSignup hours ago and never finished their profile.
type SignupIncompleteConfig struct {
	HoursSinceSignup int `json:"hours_since_signup"`
}

// Validate implements ConditionConfig.
func (c *SignupIncompleteConfig) Validate() error {
	if c.HoursSinceSignup < 1 {
		return fmt.Errorf("hours_since_signup must be at least 1, got %d", c.HoursSinceSignup)
	}
	return nil
}

// VideoAbandonedConfig selects users whose most recent video-progress event
// stalled below WatchPercentageThreshold and is older than the recency
// window, meaning the view was abandoned rather than still in progress.
type VideoAbandonedConfig struct {
	WatchPercentageThreshold float64 `json:"watch_percentage_threshold"`
	RecencyWindowHours       int     `json:"recency_window_hours"`
}

// minWatchPercentage excludes users who barely opened a video; a view below
// this floor does not indicate real interest worth nudging.
const minWatchPercentage = 10.0

// Validate implements ConditionConfig.
func (c *VideoAbandonedConfig) Validate() error {
	if c.WatchPercentageThreshold <= minWatchPercentage || c.WatchPercentageThreshold > 100 {
		return fmt.Errorf("watch_percentage_threshold must be between %v and 100, got %v",
			minWatchPercentage, c.WatchPercentageThreshold)
	}
	if c.RecencyWindowHours < 1 {
		return fmt.Errorf("recency_window_hours must be at least 1, got %d", c.RecencyWindowHours)
	}
	return nil
}

// PracticeStreakBrokenConfig selects users who held a practice streak of at
// least MinStreakLength consecutive days and then stopped practicing more
// than DaysSinceBreak days ago.
type PracticeStreakBrokenConfig struct {
	MinStreakLength int `json:"min_streak_length"`
	DaysSinceBreak  int `json:"days_since_break"`
}

// Validate implements ConditionConfig.
func (c *PracticeStreakBrokenConfig) Validate() error {
	if c.MinStreakLength < 2 {
		return fmt.Errorf("min_streak_length must be at least 2, got %d", c.MinStreakLength)
	}
	if c.DaysSinceBreak < 1 {
		return fmt.Errorf("days_since_break must be at least 1, got %d", c.DaysSinceBreak)
	}
	return nil
}

// MilestoneReachedConfig selects users who crossed ThresholdValue of
// MilestoneType within the last CelebrationWindowHours.
type MilestoneReachedConfig struct {
	MilestoneType          string  `json:"milestone_type"`
	ThresholdValue         float64 `json:"threshold_value"`
	CelebrationWindowHours int     `json:"celebration_window_hours"`
}

// Validate implements ConditionConfig.
func (c *MilestoneReachedConfig) Validate() error {
	if c.MilestoneType == "" {
		return fmt.Errorf("milestone_type must not be empty")
	}
	if c.ThresholdValue <= 0 {
		return fmt.Errorf("threshold_value must be positive, got %v", c.ThresholdValue)
	}
	if c.CelebrationWindowHours < 1 {
		return fmt.Errorf("celebration_window_hours must be at least 1, got %d", c.CelebrationWindowHours)
	}
	return nil
}

// ParseConditionConfig decodes and validates the free-form condition payload
// of a trigger definition into its typed variant. Unknown trigger types and
// malformed payloads return a configuration error.
func ParseConditionConfig(triggerType string, config datastore.JSONMap) (ConditionConfig, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, configError(triggerType, err)
	}

	var parsed ConditionConfig
	switch triggerType {
	case TypeUserInactive:
		parsed = &UserInactiveConfig{}
	case TypeSignupIncomplete:
		parsed = &SignupIncompleteConfig{}
	case TypeVideoAbandoned:
		parsed = &VideoAbandonedConfig{}
	case TypePracticeStreakBroken:
		parsed = &PracticeStreakBrokenConfig{}
	case TypeMilestoneReached:
		parsed = &MilestoneReachedConfig{}
	default:
		return nil, configError(triggerType, fmt.Errorf("unknown trigger type %q", triggerType))
	}

	if err := json.Unmarshal(raw, parsed); err != nil {
		return nil, configError(triggerType, err)
	}
	if err := parsed.Validate(); err != nil {
		return nil, configError(triggerType, err)
	}
	return parsed, nil
}

func configError(triggerType string, err error) error {
	return errors.New(err).
		Component("trigger").
		Category(errors.CategoryConfiguration).
		Context("trigger_type", triggerType).
		Build()
}
