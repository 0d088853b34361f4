// triggers.go: Database operations for trigger definitions
package datastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nudgeworks/nudge-go/internal/errors"
)

// SaveTrigger inserts a new trigger definition, assigning an id when absent.
func (ds *DataStore) SaveTrigger(trigger *TriggerDefinition) error {
	if trigger == nil {
		return validationError("trigger cannot be nil", "trigger", nil)
	}
	if trigger.Name == "" {
		return validationError("trigger name cannot be empty", "name", "")
	}
	if trigger.Priority < 1 || trigger.Priority > 10 {
		return validationError("trigger priority must be between 1 and 10", "priority", trigger.Priority)
	}
	if trigger.ID == "" {
		trigger.ID = uuid.New().String()
	}
	if err := ds.DB.Create(trigger).Error; err != nil {
		return dbError(err, "save_trigger", errors.PriorityMedium,
			"trigger_id", trigger.ID,
			"trigger_type", trigger.TriggerType)
	}
	return nil
}

// UpdateTrigger persists changes to an existing trigger definition.
func (ds *DataStore) UpdateTrigger(trigger *TriggerDefinition) error {
	if trigger == nil || trigger.ID == "" {
		return validationError("trigger id cannot be empty", "id", "")
	}
	if trigger.Priority < 1 || trigger.Priority > 10 {
		return validationError("trigger priority must be between 1 and 10", "priority", trigger.Priority)
	}
	trigger.UpdatedAt = time.Now()
	result := ds.DB.Model(&TriggerDefinition{}).Where("id = ?", trigger.ID).Updates(trigger)
	if result.Error != nil {
		return dbError(result.Error, "update_trigger", errors.PriorityMedium,
			"trigger_id", trigger.ID)
	}
	if result.RowsAffected == 0 {
		return ErrTriggerNotFound
	}
	return nil
}

// DeleteTrigger removes a trigger definition. Execution history referencing
// the trigger is retained for audit purposes.
func (ds *DataStore) DeleteTrigger(id string) error {
	if id == "" {
		return validationError("trigger id cannot be empty", "id", "")
	}
	result := ds.DB.Where("id = ?", id).Delete(&TriggerDefinition{})
	if result.Error != nil {
		return dbError(result.Error, "delete_trigger", errors.PriorityMedium, "trigger_id", id)
	}
	if result.RowsAffected == 0 {
		return ErrTriggerNotFound
	}
	return nil
}

// GetTrigger retrieves a trigger definition by id
func (ds *DataStore) GetTrigger(id string) (*TriggerDefinition, error) {
	if id == "" {
		return nil, validationError("trigger id cannot be empty", "id", "")
	}
	var trigger TriggerDefinition
	if err := ds.DB.Where("id = ?", id).First(&trigger).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTriggerNotFound
		}
		return nil, dbError(err, "get_trigger", errors.PriorityMedium, "trigger_id", id)
	}
	return &trigger, nil
}

// GetActiveTriggers returns all active triggers ordered by priority
// descending, the order the runner processes them in.
func (ds *DataStore) GetActiveTriggers() ([]TriggerDefinition, error) {
	var triggers []TriggerDefinition
	err := ds.DB.
		Where("active = ?", true).
		Order("priority DESC, created_at ASC").
		Find(&triggers).Error
	if err != nil {
		return nil, dbError(err, "get_active_triggers", errors.PriorityHigh)
	}
	return triggers, nil
}

// ListTriggers returns all trigger definitions for the admin surface.
func (ds *DataStore) ListTriggers() ([]TriggerDefinition, error) {
	var triggers []TriggerDefinition
	if err := ds.DB.Order("created_at DESC").Find(&triggers).Error; err != nil {
		return nil, dbError(err, "list_triggers", errors.PriorityLow)
	}
	return triggers, nil
}
