package trigger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nudgeworks/nudge-go/internal/conf"
	"github.com/nudgeworks/nudge-go/internal/datastore"
)

// newTestStore opens an isolated SQLite database in a per-test temp
// directory with the full schema migrated and throttle defaults seeded.
func newTestStore(t *testing.T) datastore.Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "nudge-test.db")
	settings.Throttle.Enabled = true
	settings.Throttle.MaxNotificationsPerDay = 2
	settings.Throttle.CooldownHours = 24
	settings.Throttle.PriorityOverrideThreshold = 8
	settings.Throttle.RespectUserPreferences = true

	store := datastore.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func seedUser(t *testing.T, store datastore.Interface, id string, opts ...func(*datastore.User)) *datastore.User {
	t.Helper()
	user := &datastore.User{
		ID:                   id,
		FirstName:            "Asta",
		LastName:             "Virtanen",
		Email:                id + "@example.com",
		PushToken:            strPtr("token-" + id),
		NotificationsEnabled: true,
		Role:                 "member",
		CreatedAt:            time.Now().Add(-30 * 24 * time.Hour),
	}
	for _, opt := range opts {
		opt(user)
	}
	require.NoError(t, store.SaveUser(user))
	return user
}

func seedEvent(t *testing.T, store datastore.Interface, userID, name string, at time.Time, props datastore.JSONMap) {
	t.Helper()
	uid := userID
	require.NoError(t, store.SaveActivityEvent(&datastore.ActivityEvent{
		UserID:     &uid,
		EventName:  name,
		Properties: props,
		CreatedAt:  at,
	}))
}

func seedTrigger(t *testing.T, store datastore.Interface, id, triggerType string, config datastore.JSONMap, opts ...func(*datastore.TriggerDefinition)) *datastore.TriggerDefinition {
	t.Helper()
	definition := &datastore.TriggerDefinition{
		ID:              id,
		Name:            "test " + triggerType,
		TriggerType:     triggerType,
		ConditionConfig: config,
		MessageTitle:    "Hi {{firstName}}",
		MessageBody:     "We miss you, {{name}}.",
		Active:          true,
		Priority:        5,
		TargetAudience:  "all",
	}
	for _, opt := range opts {
		opt(definition)
	}
	require.NoError(t, store.SaveTrigger(definition))
	return definition
}

func seedHistory(t *testing.T, store datastore.Interface, userID string, sentAt time.Time) {
	t.Helper()
	require.NoError(t, store.CreateHistory(&datastore.UserNotificationHistory{
		UserID:         userID,
		NotificationID: "n-" + userID + sentAt.Format("150405.000"),
		Category:       "test",
		SentAt:         sentAt,
		ThrottleKey:    datastore.ThrottleKey("test", sentAt),
	}))
}
