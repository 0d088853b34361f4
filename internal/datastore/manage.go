package datastore

import (
	"fmt"

	"gorm.io/gorm"
)

// performAutoMigration runs GORM auto-migration for all engine tables and
// seeds the throttle settings singleton when missing.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&User{},
		&ActivityEvent{},
		&TriggerDefinition{},
		&ScheduledNotification{},
		&TriggerExecution{},
		&UserNotificationHistory{},
		&ThrottleSetting{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		getLogger().Debug("database initialized",
			"type", dbType,
			"connection", connectionInfo)
	}

	return nil
}
