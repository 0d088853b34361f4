package trigger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/errors"
	"github.com/nudgeworks/nudge-go/internal/gateway"
	"github.com/nudgeworks/nudge-go/internal/observability"
)

// CategoryAdmin is the history category recorded for admin-initiated sends;
// trigger sends use their trigger type as the category.
const CategoryAdmin = "admin"

// emptyTargetMessage is stored on notifications whose audience resolved to
// nobody. Empty targeting is a successful no-op, not a failure.
const emptyTargetMessage = "no eligible recipients"

// Outcome summarizes what one dispatch did to a notification row.
type Outcome struct {
	NotificationID string
	Status         string
	Delivered      int
	Failed         int
}

// Dispatcher personalizes, persists and delivers notifications. Trigger
// sends target one user each; admin-scheduled sends fan out to the whole
// resolved audience in a single gateway call.
type Dispatcher struct {
	store    Store
	gateway  gateway.Gateway
	recorder *Recorder
	metrics  *observability.EngineMetrics
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. gw may be nil, in which case sends are
// recorded without delivery; metrics may be nil.
func NewDispatcher(store Store, gw gateway.Gateway, metrics *observability.EngineMetrics) *Dispatcher {
	return &Dispatcher{
		store:    store,
		gateway:  gw,
		recorder: NewRecorder(store),
		metrics:  metrics,
		now:      time.Now,
	}
}

// DispatchToUser builds a personalized notification for one user on behalf
// of a trigger, persists it and delivers it. On delivery success the row is
// marked sent and a history row is written; on failure the row is marked
// failed and no history is written, so the user is not throttled for a send
// that never landed.
func (d *Dispatcher) DispatchToUser(ctx context.Context, def *datastore.TriggerDefinition, user *datastore.User) (*Outcome, error) {
	notification := &datastore.ScheduledNotification{
		Title:          Personalize(def.MessageTitle, user),
		Body:           Personalize(def.MessageBody, user),
		TargetAudience: "user:" + user.ID,
		TargetUserID:   &user.ID,
		Status:         datastore.StatusPending,
		ScheduledFor:   d.now(),
		Payload: datastore.JSONMap{
			"trigger_id":   def.ID,
			"trigger_type": def.TriggerType,
		},
	}
	if err := d.store.CreateNotification(notification); err != nil {
		return nil, err
	}

	if user.PushToken == nil {
		return d.finishEmpty(notification.ID)
	}

	result, err := d.deliver(ctx, []string{*user.PushToken}, notification.Title, notification.Body, notification.Payload)
	if err != nil || result.Delivered == 0 {
		return d.finishFailed(notification.ID, deliveryFailureMessage(result, err), err)
	}

	outcome, err := d.finishSent(notification.ID, result)
	if err != nil {
		return nil, err
	}
	if historyErr := d.recorder.History(user.ID, notification.ID, &def.ID, def.TriggerType, d.now()); historyErr != nil {
		// The send landed; a lost history row weakens throttling but must
		// not turn the dispatch into a failure.
		getLogger().Error("failed to record notification history",
			"notification_id", notification.ID,
			"user_id", user.ID,
			"error", historyErr)
	}
	return outcome, nil
}

// ProcessScheduled resolves a pending notification's audience and delivers
// to every resolved address in one batched gateway call. Per-recipient
// failures are aggregated into the row's counts and error summary; they fail
// the row only when nobody was delivered to.
func (d *Dispatcher) ProcessScheduled(ctx context.Context, notification *datastore.ScheduledNotification) (*Outcome, error) {
	if datastore.IsTerminalStatus(notification.Status) {
		return nil, errors.Newf("notification %s is already %s", notification.ID, notification.Status).
			Component("dispatcher").
			Category(errors.CategoryState).
			Context("notification_id", notification.ID).
			Build()
	}

	descriptor := notification.TargetAudience
	if notification.TargetUserID != nil {
		descriptor = "user:" + *notification.TargetUserID
	}
	targets, err := d.store.ResolveAudience(descriptor)
	if err != nil {
		return nil, err
	}
	targets, err = d.filterOptedOut(targets)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return d.finishEmpty(notification.ID)
	}

	// Placeholders personalize per user only when a single recipient is
	// targeted; batched sends go out with the anonymous fallbacks.
	var recipient *datastore.User
	if len(targets) == 1 {
		recipient = &targets[0]
	}
	title := Personalize(notification.Title, recipient)
	body := Personalize(notification.Body, recipient)

	addresses := make([]string, 0, len(targets))
	userByAddress := make(map[string]string, len(targets))
	for i := range targets {
		if targets[i].PushToken == nil {
			continue
		}
		addresses = append(addresses, *targets[i].PushToken)
		userByAddress[*targets[i].PushToken] = targets[i].ID
	}
	if len(addresses) == 0 {
		return d.finishEmpty(notification.ID)
	}

	result, err := d.deliver(ctx, addresses, title, body, notification.Payload)
	if err != nil || result.Delivered == 0 {
		return d.finishFailed(notification.ID, deliveryFailureMessage(result, err), err)
	}

	outcome, err := d.finishSent(notification.ID, result)
	if err != nil {
		return nil, err
	}

	sentAt := d.now()
	for _, address := range addresses {
		if _, failed := result.RecipientErrors[address]; failed {
			continue
		}
		userID := userByAddress[address]
		if historyErr := d.recorder.History(userID, notification.ID, nil, CategoryAdmin, sentAt); historyErr != nil {
			getLogger().Error("failed to record notification history",
				"notification_id", notification.ID,
				"user_id", userID,
				"error", historyErr)
		}
	}
	return outcome, nil
}

// filterOptedOut drops users with notifications disabled unless the throttle
// settings allow admin sends to ignore user preferences.
func (d *Dispatcher) filterOptedOut(targets []datastore.User) ([]datastore.User, error) {
	settings, err := d.store.GetThrottleSettings()
	if err != nil {
		return nil, err
	}
	if !settings.RespectUserPreferences {
		return targets, nil
	}

	kept := targets[:0]
	for i := range targets {
		if targets[i].NotificationsEnabled {
			kept = append(kept, targets[i])
		}
	}
	return kept, nil
}

// deliver hands one batch to the gateway, timing the call. A nil gateway
// records every recipient as delivered, which keeps development setups
// working without a push provider.
func (d *Dispatcher) deliver(ctx context.Context, addresses []string, title, body string, data map[string]any) (*gateway.Result, error) {
	if d.gateway == nil {
		getLogger().Warn("no delivery gateway configured, recording send without delivery",
			"recipients", len(addresses))
		return &gateway.Result{Delivered: len(addresses)}, nil
	}

	start := d.now()
	result, err := d.gateway.Send(ctx, addresses, title, body, data)
	d.metrics.RecordGatewayDelivery(d.gateway.Name(), time.Since(start))
	return result, err
}

func (d *Dispatcher) finishSent(notificationID string, result *gateway.Result) (*Outcome, error) {
	sentAt := d.now()
	fields := map[string]any{
		"sent_at":         sentAt,
		"delivered_count": result.Delivered,
		"failed_count":    result.Failed,
	}
	if result.Failed > 0 {
		summary := recipientErrorSummary(result)
		fields["error_message"] = summary
		getLogger().Warn("notification delivered with per-recipient failures",
			"notification_id", notificationID,
			"delivered", result.Delivered,
			"failed", result.Failed,
			"errors", summary)
	}
	if err := d.store.TransitionNotificationStatus(notificationID, datastore.StatusSent, fields); err != nil {
		return nil, err
	}

	d.metrics.RecordDispatch("sent", result.Delivered, result.Failed)
	return &Outcome{
		NotificationID: notificationID,
		Status:         datastore.StatusSent,
		Delivered:      result.Delivered,
		Failed:         result.Failed,
	}, nil
}

func (d *Dispatcher) finishFailed(notificationID, message string, cause error) (*Outcome, error) {
	fields := map[string]any{"error_message": message}
	if err := d.store.TransitionNotificationStatus(notificationID, datastore.StatusFailed, fields); err != nil {
		return nil, errors.Join(cause, err)
	}

	d.metrics.RecordDispatch("failed", 0, 0)
	outcome := &Outcome{NotificationID: notificationID, Status: datastore.StatusFailed}
	if cause == nil {
		cause = fmt.Errorf("%s", message)
	}
	return outcome, errors.New(cause).
		Component("dispatcher").
		Category(errors.CategoryDelivery).
		Context("notification_id", notificationID).
		Build()
}

// finishEmpty marks a notification sent with an informational note when its
// audience resolved to nobody with a delivery address.
func (d *Dispatcher) finishEmpty(notificationID string) (*Outcome, error) {
	fields := map[string]any{
		"sent_at":       d.now(),
		"error_message": emptyTargetMessage,
	}
	if err := d.store.TransitionNotificationStatus(notificationID, datastore.StatusSent, fields); err != nil {
		return nil, err
	}

	d.metrics.RecordDispatch("empty", 0, 0)
	getLogger().Info("notification had no eligible recipients", "notification_id", notificationID)
	return &Outcome{NotificationID: notificationID, Status: datastore.StatusSent}, nil
}

func deliveryFailureMessage(result *gateway.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	if result != nil && len(result.RecipientErrors) > 0 {
		return recipientErrorSummary(result)
	}
	return "delivery gateway reported no successful recipients"
}

// recipientErrorSummary flattens per-recipient errors into one stable,
// human-readable string for the notification row.
func recipientErrorSummary(result *gateway.Result) string {
	addresses := make([]string, 0, len(result.RecipientErrors))
	for address := range result.RecipientErrors {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	parts := make([]string, 0, len(addresses))
	for _, address := range addresses {
		parts = append(parts, fmt.Sprintf("%s: %s", address, result.RecipientErrors[address]))
	}
	return fmt.Sprintf("%d of %d recipients failed: %s",
		result.Failed, result.Delivered+result.Failed, strings.Join(parts, "; "))
}
