package trigger

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/observability"
)

// RunResult summarizes one runner invocation for callers and the admin API.
type RunResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`

	mu sync.Mutex
}

func (r *RunResult) recordSent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed++
	r.Sent++
}

func (r *RunResult) recordFailed(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed++
	r.Failed++
	r.Errors = append(r.Errors, message)
}

func (r *RunResult) recordError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, message)
}

// Runner drives one engine pass: drain pending scheduled notifications, then
// evaluate active triggers in priority order and dispatch to every eligible
// user that passes the throttle gate. A failure in one trigger or one user
// never aborts the rest of the run.
type Runner struct {
	store              Store
	dispatcher         *Dispatcher
	gate               *Gate
	recorder           *Recorder
	metrics            *observability.EngineMetrics
	maxConcurrentUsers int
	now                func() time.Time
}

// NewRunner creates a runner. maxConcurrentUsers bounds per-trigger dispatch
// concurrency; values below 2 mean sequential processing. metrics may be nil.
func NewRunner(store Store, dispatcher *Dispatcher, gate *Gate, metrics *observability.EngineMetrics, maxConcurrentUsers int) *Runner {
	return &Runner{
		store:              store,
		dispatcher:         dispatcher,
		gate:               gate,
		recorder:           NewRecorder(store),
		metrics:            metrics,
		maxConcurrentUsers: maxConcurrentUsers,
		now:                time.Now,
	}
}

// Run performs one full engine pass. The returned result is never nil; run
// errors surface as entries in Errors, not as a returned error, since a
// partial run still did real work.
func (r *Runner) Run(ctx context.Context) *RunResult {
	start := time.Now()
	result := &RunResult{}
	log := getLogger()

	r.processPending(ctx, result)
	r.processTriggers(ctx, result)

	outcome := "success"
	if len(result.Errors) > 0 {
		outcome = "partial"
	}
	r.metrics.RecordRun(outcome, time.Since(start))
	log.Info("runner pass complete",
		"processed", result.Processed,
		"sent", result.Sent,
		"failed", result.Failed,
		"errors", len(result.Errors),
		"elapsed", time.Since(start))
	return result
}

// processPending drains due scheduled notifications before trigger
// evaluation, so one periodic job serves both purposes.
func (r *Runner) processPending(ctx context.Context, result *RunResult) {
	pending, err := r.store.GetPendingNotifications(r.now())
	if err != nil {
		getLogger().Error("failed to fetch pending notifications", "error", err)
		result.recordError("fetch pending notifications: " + err.Error())
		return
	}

	for i := range pending {
		notification := &pending[i]
		outcome, err := r.dispatcher.ProcessScheduled(ctx, notification)
		if err != nil {
			getLogger().Error("failed to process scheduled notification",
				"notification_id", notification.ID,
				"error", err)
			result.recordFailed(err.Error())
			continue
		}
		if outcome.Status == datastore.StatusSent {
			result.recordSent()
		} else {
			result.recordFailed("notification " + notification.ID + " " + outcome.Status)
		}
	}
}

// processTriggers evaluates active triggers priority-descending. A malformed
// condition or a failing eligibility query skips that trigger only.
func (r *Runner) processTriggers(ctx context.Context, result *RunResult) {
	triggers, err := r.store.GetActiveTriggers()
	if err != nil {
		getLogger().Error("failed to fetch active triggers", "error", err)
		result.recordError("fetch active triggers: " + err.Error())
		return
	}

	for i := range triggers {
		trigger := &triggers[i]
		users, err := Evaluate(r.store, trigger, r.now())
		if err != nil {
			getLogger().Error("trigger evaluation failed",
				"trigger_id", trigger.ID,
				"trigger_type", trigger.TriggerType,
				"error", err)
			r.metrics.RecordTriggerFailure(trigger.TriggerType, "evaluation")
			result.recordError("trigger " + trigger.ID + ": " + err.Error())
			continue
		}
		r.metrics.RecordEvaluation(trigger.TriggerType, len(users))
		if len(users) == 0 {
			continue
		}

		r.dispatchEligible(ctx, trigger, users, result)
	}
}

// dispatchEligible gates and dispatches one trigger's eligible set. Users
// are processed concurrently up to the configured limit; the throttle gate
// re-reads fresh history per user either way.
func (r *Runner) dispatchEligible(ctx context.Context, trigger *datastore.TriggerDefinition, users []datastore.User, result *RunResult) {
	if r.maxConcurrentUsers < 2 || len(users) < 2 {
		for i := range users {
			r.dispatchOne(ctx, trigger, &users[i], result)
		}
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.maxConcurrentUsers)
	for i := range users {
		user := &users[i]
		group.Go(func() error {
			r.dispatchOne(groupCtx, trigger, user, result)
			return nil
		})
	}
	// Workers never return errors; failure bookkeeping is in the result.
	_ = group.Wait()
}

func (r *Runner) dispatchOne(ctx context.Context, trigger *datastore.TriggerDefinition, user *datastore.User, result *RunResult) {
	decision, err := r.gate.CanSend(user.ID, trigger.Priority)
	if err != nil {
		getLogger().Error("throttle check failed",
			"trigger_id", trigger.ID,
			"user_id", user.ID,
			"error", err)
		result.recordError("throttle check for user " + user.ID + ": " + err.Error())
		return
	}
	if !decision.Allowed {
		// A denial is a normal negative result, not a failed attempt; it
		// leaves no execution row.
		getLogger().Debug("send throttled",
			"trigger_id", trigger.ID,
			"user_id", user.ID,
			"reason", decision.Reason)
		return
	}
	if decision.Override {
		getLogger().Info("throttle limit bypassed by priority",
			"trigger_id", trigger.ID,
			"user_id", user.ID,
			"limit", decision.Reason,
			"priority", trigger.Priority)
	}

	outcome, err := r.dispatcher.DispatchToUser(ctx, trigger, user)
	if err != nil {
		var notificationID *string
		if outcome != nil && outcome.NotificationID != "" {
			notificationID = &outcome.NotificationID
		}
		r.recorder.Execution(trigger.ID, user.ID, false, notificationID, err.Error())
		result.recordFailed("trigger " + trigger.ID + " user " + user.ID + ": " + err.Error())
		return
	}

	r.recorder.Execution(trigger.ID, user.ID, true, &outcome.NotificationID, "")
	result.recordSent()
}

// ProcessNotification processes one specific scheduled notification by id,
// bypassing trigger evaluation entirely.
func (r *Runner) ProcessNotification(ctx context.Context, id string) (*RunResult, error) {
	notification, err := r.store.GetNotification(id)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	outcome, err := r.dispatcher.ProcessScheduled(ctx, notification)
	if err != nil {
		result.recordFailed(err.Error())
		return result, nil
	}
	if outcome.Status == datastore.StatusSent {
		result.recordSent()
	} else {
		result.recordFailed("notification " + id + " " + outcome.Status)
	}
	return result, nil
}
