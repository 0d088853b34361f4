package trigger

import (
	"time"

	"github.com/nudgeworks/nudge-go/internal/datastore"
)

// Recorder persists the engine's audit trail: one execution row per
// evaluation-to-send attempt and one history row per notification actually
// handed to the delivery gateway. It holds no business logic.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Execution appends one audit row for a trigger attempt against one user.
// A failed write is logged but never propagated: the attempt already
// happened and must not be retried because its record could not land.
func (r *Recorder) Execution(triggerID, userID string, success bool, notificationID *string, errorMessage string) {
	execution := &datastore.TriggerExecution{
		TriggerID:      triggerID,
		UserID:         userID,
		ExecutedAt:     time.Now(),
		Success:        success,
		NotificationID: notificationID,
		ErrorMessage:   errorMessage,
	}
	if err := r.store.CreateExecution(execution); err != nil {
		getLogger().Error("failed to record trigger execution",
			"trigger_id", triggerID,
			"user_id", userID,
			"success", success,
			"error", err)
	}
}

// History appends one throttle-relevant row recording that a notification
// was dispatched to the user. triggerID is nil for admin-initiated sends.
func (r *Recorder) History(userID, notificationID string, triggerID *string, category string, sentAt time.Time) error {
	return r.store.CreateHistory(&datastore.UserNotificationHistory{
		UserID:         userID,
		NotificationID: notificationID,
		TriggerID:      triggerID,
		Category:       category,
		SentAt:         sentAt,
		ThrottleKey:    datastore.ThrottleKey(category, sentAt),
	})
}
