// throttle.go: The throttle settings singleton row. The gate re-reads it on
// every evaluation, so admin updates take effect on the next check, never
// retroactively.
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/nudgeworks/nudge-go/internal/errors"
)

// throttleSettingsID pins the singleton row.
const throttleSettingsID = 1

// GetThrottleSettings returns the throttle settings row, seeding it from the
// configured defaults when missing.
func (ds *DataStore) GetThrottleSettings() (*ThrottleSetting, error) {
	var settings ThrottleSetting
	err := ds.DB.Where("id = ?", throttleSettingsID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbError(err, "get_throttle_settings", errors.PriorityHigh)
	}

	seeded := ds.seedThrottleSettings()
	if createErr := ds.DB.Create(seeded).Error; createErr != nil {
		// A concurrent seeder may have won; read back before giving up.
		if readErr := ds.DB.Where("id = ?", throttleSettingsID).First(&settings).Error; readErr == nil {
			return &settings, nil
		}
		return nil, dbError(createErr, "seed_throttle_settings", errors.PriorityHigh)
	}
	return seeded, nil
}

// seedThrottleSettings builds the initial row from configuration defaults.
func (ds *DataStore) seedThrottleSettings() *ThrottleSetting {
	settings := &ThrottleSetting{
		ID:                        throttleSettingsID,
		Enabled:                   true,
		MaxNotificationsPerDay:    2,
		CooldownHours:             24,
		PriorityOverrideThreshold: 8,
		RespectUserPreferences:    true,
		UpdatedAt:                 time.Now(),
	}
	if ds.Settings != nil {
		defaults := &ds.Settings.Throttle
		settings.Enabled = defaults.Enabled
		settings.MaxNotificationsPerDay = defaults.MaxNotificationsPerDay
		settings.CooldownHours = defaults.CooldownHours
		settings.PriorityOverrideThreshold = defaults.PriorityOverrideThreshold
		settings.RespectUserPreferences = defaults.RespectUserPreferences
	}
	return settings
}

// UpdateThrottleSettings replaces the singleton row.
func (ds *DataStore) UpdateThrottleSettings(settings *ThrottleSetting) error {
	if settings == nil {
		return validationError("throttle settings cannot be nil", "settings", nil)
	}
	if settings.MaxNotificationsPerDay < 0 {
		return validationError("max notifications per day must not be negative",
			"max_notifications_per_day", settings.MaxNotificationsPerDay)
	}
	if settings.CooldownHours < 0 {
		return validationError("cooldown hours must not be negative",
			"cooldown_hours", settings.CooldownHours)
	}
	if settings.PriorityOverrideThreshold < 1 || settings.PriorityOverrideThreshold > 10 {
		return validationError("priority override threshold must be between 1 and 10",
			"priority_override_threshold", settings.PriorityOverrideThreshold)
	}

	settings.ID = throttleSettingsID
	settings.UpdatedAt = time.Now()
	if err := ds.DB.Save(settings).Error; err != nil {
		return dbError(err, "update_throttle_settings", errors.PriorityHigh)
	}
	return nil
}
