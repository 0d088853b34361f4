// executions.go: Append-only audit trail of trigger execution attempts
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/nudgeworks/nudge-go/internal/errors"
)

// CreateExecution appends one execution record. Rows are never updated or
// deleted; the audit trail must reflect exactly what was attempted.
func (ds *DataStore) CreateExecution(execution *TriggerExecution) error {
	if execution == nil {
		return validationError("execution cannot be nil", "execution", nil)
	}
	if execution.TriggerID == "" {
		return validationError("execution trigger id cannot be empty", "trigger_id", "")
	}
	if execution.UserID == "" {
		return validationError("execution user id cannot be empty", "user_id", "")
	}
	if execution.ExecutedAt.IsZero() {
		execution.ExecutedAt = time.Now()
	}
	if err := ds.DB.Create(execution).Error; err != nil {
		return dbError(err, "create_execution", errors.PriorityHigh,
			"trigger_id", execution.TriggerID,
			"user_id", execution.UserID)
	}
	return nil
}

// GetTriggerStats aggregates execution outcomes for one trigger.
func (ds *DataStore) GetTriggerStats(triggerID string) (*TriggerStats, error) {
	if triggerID == "" {
		return nil, validationError("trigger id cannot be empty", "trigger_id", "")
	}

	stats := &TriggerStats{TriggerID: triggerID}

	if err := ds.DB.Model(&TriggerExecution{}).
		Where("trigger_id = ? AND success = ?", triggerID, true).
		Count(&stats.Successes).Error; err != nil {
		return nil, dbError(err, "get_trigger_stats", errors.PriorityLow, "trigger_id", triggerID)
	}
	if err := ds.DB.Model(&TriggerExecution{}).
		Where("trigger_id = ? AND success = ?", triggerID, false).
		Count(&stats.Failures).Error; err != nil {
		return nil, dbError(err, "get_trigger_stats", errors.PriorityLow, "trigger_id", triggerID)
	}

	var latest TriggerExecution
	err := ds.DB.
		Where("trigger_id = ?", triggerID).
		Order("executed_at DESC").
		First(&latest).Error
	switch {
	case err == nil:
		stats.LastExecuted = &latest.ExecutedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, dbError(err, "get_trigger_stats", errors.PriorityLow, "trigger_id", triggerID)
	}

	return stats, nil
}

// ListExecutions returns execution records for a trigger, newest first.
func (ds *DataStore) ListExecutions(triggerID string, limit, offset int) ([]TriggerExecution, error) {
	query := ds.DB.Order("executed_at DESC")
	if triggerID != "" {
		query = query.Where("trigger_id = ?", triggerID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var executions []TriggerExecution
	if err := query.Find(&executions).Error; err != nil {
		return nil, dbError(err, "list_executions", errors.PriorityLow, "trigger_id", triggerID)
	}
	return executions, nil
}
