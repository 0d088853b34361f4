package trigger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/gateway"
)

// fakeGateway records sends and fails recipients listed in failAddresses,
// or the whole batch when sendErr is set.
type fakeGateway struct {
	sendErr       error
	failAddresses map[string]string

	mu    sync.Mutex
	calls []fakeSend
}

type fakeSend struct {
	addresses []string
	title     string
	body      string
}

func (f *fakeGateway) Name() string          { return "fake" }
func (f *fakeGateway) ValidateConfig() error { return nil }

func (f *fakeGateway) Send(_ context.Context, addresses []string, title, body string, _ map[string]any) (*gateway.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeSend{addresses: addresses, title: title, body: body})
	f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	result := &gateway.Result{RecipientErrors: map[string]string{}}
	for _, address := range addresses {
		if message, failed := f.failAddresses[address]; failed {
			result.Failed++
			result.RecipientErrors[address] = message
			continue
		}
		result.Delivered++
	}
	return result, nil
}

func TestDispatchToUserSuccess(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "u1")
	definition := seedTrigger(t, store, "t1", TypeUserInactive,
		datastore.JSONMap{"days_inactive": 3})

	fake := &fakeGateway{}
	dispatcher := NewDispatcher(store, fake, nil)

	outcome, err := dispatcher.DispatchToUser(context.Background(), definition, user)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, outcome.Status)
	assert.Equal(t, 1, outcome.Delivered)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"token-u1"}, fake.calls[0].addresses)
	assert.Equal(t, "Hi Asta", fake.calls[0].title)
	assert.Equal(t, "We miss you, Asta Virtanen.", fake.calls[0].body)

	notification, err := store.GetNotification(outcome.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, notification.Status)
	assert.Equal(t, 1, notification.DeliveredCount)
	require.NotNil(t, notification.SentAt)
	require.NotNil(t, notification.TargetUserID)
	assert.Equal(t, "u1", *notification.TargetUserID)

	history, err := store.LatestHistory("u1")
	require.NoError(t, err)
	assert.Equal(t, outcome.NotificationID, history.NotificationID)
	require.NotNil(t, history.TriggerID)
	assert.Equal(t, "t1", *history.TriggerID)
	assert.Equal(t, TypeUserInactive, history.Category)
}

func TestDispatchToUserGatewayFailure(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "u1")
	definition := seedTrigger(t, store, "t1", TypeUserInactive,
		datastore.JSONMap{"days_inactive": 3})

	fake := &fakeGateway{failAddresses: map[string]string{"token-u1": "invalid token"}}
	dispatcher := NewDispatcher(store, fake, nil)

	outcome, err := dispatcher.DispatchToUser(context.Background(), definition, user)
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, datastore.StatusFailed, outcome.Status)

	notification, err := store.GetNotification(outcome.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusFailed, notification.Status)
	assert.Contains(t, notification.ErrorMessage, "invalid token")

	// A send that never landed must not count against the user's throttle.
	_, err = store.LatestHistory("u1")
	assert.ErrorIs(t, err, datastore.ErrHistoryNotFound)
}

func TestProcessScheduledBatchPartialFailure(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "u1")
	seedUser(t, store, "u2")
	seedUser(t, store, "u3")

	notification := &datastore.ScheduledNotification{
		Title:          "Maintenance tonight",
		Body:           "The studio closes at 22:00.",
		TargetAudience: "all",
	}
	require.NoError(t, store.CreateNotification(notification))

	fake := &fakeGateway{failAddresses: map[string]string{"token-u2": "unregistered device"}}
	dispatcher := NewDispatcher(store, fake, nil)

	outcome, err := dispatcher.ProcessScheduled(context.Background(), notification)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, outcome.Status)
	assert.Equal(t, 2, outcome.Delivered)
	assert.Equal(t, 1, outcome.Failed)

	stored, err := store.GetNotification(notification.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, stored.Status)
	assert.Equal(t, 2, stored.DeliveredCount)
	assert.Equal(t, 1, stored.FailedCount)
	assert.Contains(t, stored.ErrorMessage, "unregistered device")

	// One batched call, not one per recipient.
	require.Len(t, fake.calls, 1)
	assert.Len(t, fake.calls[0].addresses, 3)

	// History lands only for recipients the gateway confirmed.
	for userID, wantHistory := range map[string]bool{"u1": true, "u2": false, "u3": true} {
		history, err := store.LatestHistory(userID)
		if wantHistory {
			require.NoError(t, err, userID)
			assert.Equal(t, CategoryAdmin, history.Category)
			assert.Nil(t, history.TriggerID)
		} else {
			assert.ErrorIs(t, err, datastore.ErrHistoryNotFound, userID)
		}
	}
}

func TestProcessScheduledSkipsOptedOutUsers(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "u1")
	seedUser(t, store, "opted-out", func(u *datastore.User) { u.NotificationsEnabled = false })
	seedUser(t, store, "u3")

	notification := &datastore.ScheduledNotification{
		Title:          "Schedule change",
		Body:           "Morning classes move to 08:00.",
		TargetAudience: "all",
	}
	require.NoError(t, store.CreateNotification(notification))

	fake := &fakeGateway{}
	dispatcher := NewDispatcher(store, fake, nil)

	outcome, err := dispatcher.ProcessScheduled(context.Background(), notification)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, outcome.Status)
	assert.Equal(t, 2, outcome.Delivered)

	require.Len(t, fake.calls, 1)
	assert.ElementsMatch(t, []string{"token-u1", "token-u3"}, fake.calls[0].addresses)

	_, err = store.LatestHistory("opted-out")
	assert.ErrorIs(t, err, datastore.ErrHistoryNotFound)
}

func TestProcessScheduledIgnoresPreferencesWhenConfigured(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "opted-out", func(u *datastore.User) { u.NotificationsEnabled = false })

	settings, err := store.GetThrottleSettings()
	require.NoError(t, err)
	settings.RespectUserPreferences = false
	require.NoError(t, store.UpdateThrottleSettings(settings))

	notification := &datastore.ScheduledNotification{
		Title:          "Mandatory maintenance notice",
		Body:           "The studio closes at 22:00.",
		TargetAudience: "all",
	}
	require.NoError(t, store.CreateNotification(notification))

	fake := &fakeGateway{}
	dispatcher := NewDispatcher(store, fake, nil)

	outcome, err := dispatcher.ProcessScheduled(context.Background(), notification)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, outcome.Status)
	assert.Equal(t, 1, outcome.Delivered)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"token-opted-out"}, fake.calls[0].addresses)
}

func TestProcessScheduledAllTargetsOptedOut(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "opted-out", func(u *datastore.User) { u.NotificationsEnabled = false })

	notification := &datastore.ScheduledNotification{
		Title:          "Schedule change",
		Body:           "Morning classes move to 08:00.",
		TargetAudience: "all",
	}
	require.NoError(t, store.CreateNotification(notification))

	fake := &fakeGateway{}
	dispatcher := NewDispatcher(store, fake, nil)

	outcome, err := dispatcher.ProcessScheduled(context.Background(), notification)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, outcome.Status)
	assert.Equal(t, 0, outcome.Delivered)
	assert.Empty(t, fake.calls)

	stored, err := store.GetNotification(notification.ID)
	require.NoError(t, err)
	assert.Equal(t, emptyTargetMessage, stored.ErrorMessage)
}

func TestProcessScheduledTransportFailure(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "u1")

	notification := &datastore.ScheduledNotification{
		Title:          "Hello",
		Body:           "World",
		TargetAudience: "all",
	}
	require.NoError(t, store.CreateNotification(notification))

	fake := &fakeGateway{sendErr: assert.AnError}
	dispatcher := NewDispatcher(store, fake, nil)

	outcome, err := dispatcher.ProcessScheduled(context.Background(), notification)
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, datastore.StatusFailed, outcome.Status)

	stored, err := store.GetNotification(notification.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestProcessScheduledEmptyAudience(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "member")

	notification := &datastore.ScheduledNotification{
		Title:          "Coach briefing",
		Body:           "New curriculum is live.",
		TargetAudience: "role:coach",
	}
	require.NoError(t, store.CreateNotification(notification))

	fake := &fakeGateway{}
	dispatcher := NewDispatcher(store, fake, nil)

	outcome, err := dispatcher.ProcessScheduled(context.Background(), notification)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, outcome.Status)
	assert.Equal(t, 0, outcome.Delivered)
	assert.Empty(t, fake.calls)

	stored, err := store.GetNotification(notification.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusSent, stored.Status)
	assert.Equal(t, emptyTargetMessage, stored.ErrorMessage)
}

func TestProcessScheduledSingleRecipientPersonalizes(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "u1")

	notification := &datastore.ScheduledNotification{
		Title:        "Hi {{firstName}}",
		Body:         "See you soon, {{name}}.",
		TargetUserID: strPtr("u1"),
	}
	require.NoError(t, store.CreateNotification(notification))

	fake := &fakeGateway{}
	dispatcher := NewDispatcher(store, fake, nil)

	_, err := dispatcher.ProcessScheduled(context.Background(), notification)
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "Hi Asta", fake.calls[0].title)
	assert.Equal(t, "See you soon, Asta Virtanen.", fake.calls[0].body)
}

func TestProcessScheduledBatchUsesAnonymousFallbacks(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "u1")
	seedUser(t, store, "u2")

	notification := &datastore.ScheduledNotification{
		Title:          "Hi {{firstName}}",
		Body:           "Come back, {{name}}.",
		TargetAudience: "all",
	}
	require.NoError(t, store.CreateNotification(notification))

	fake := &fakeGateway{}
	dispatcher := NewDispatcher(store, fake, nil)

	_, err := dispatcher.ProcessScheduled(context.Background(), notification)
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "Hi there", fake.calls[0].title)
	assert.Equal(t, "Come back, there.", fake.calls[0].body)
}

func TestProcessScheduledRejectsTerminalNotification(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "u1")

	notification := &datastore.ScheduledNotification{
		Title:          "Old news",
		Body:           "Already handled.",
		TargetAudience: "all",
	}
	require.NoError(t, store.CreateNotification(notification))
	require.NoError(t, store.TransitionNotificationStatus(
		notification.ID, datastore.StatusCancelled, nil))

	cancelled, err := store.GetNotification(notification.ID)
	require.NoError(t, err)

	dispatcher := NewDispatcher(store, &fakeGateway{}, nil)
	_, err = dispatcher.ProcessScheduled(context.Background(), cancelled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already cancelled")

	// Still cancelled, untouched by the rejected dispatch.
	stored, err := store.GetNotification(notification.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusCancelled, stored.Status)
}
