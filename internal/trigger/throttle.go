package trigger

import (
	"time"

	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/errors"
	"github.com/nudgeworks/nudge-go/internal/observability"
)

// Throttle denial reasons reported in Decision.Reason.
const (
	ReasonDailyLimit = "daily limit"
	ReasonCooldown   = "cooldown"
)

// Decision is the outcome of one throttle gate evaluation.
type Decision struct {
	Allowed bool
	// Reason is set on denials, and on overridden allows to record which
	// limit was bypassed.
	Reason string
	// NextAvailableAt is set on cooldown denials.
	NextAvailableAt *time.Time
	// Override is true when the send was allowed past a limit because the
	// trigger priority met the override threshold.
	Override bool
}

// Gate rate-limits sends per user. It re-reads throttle settings and the
// user's notification history on every call, so settings updates take effect
// on the next evaluation and concurrent dispatches never share a cached
// counter.
type Gate struct {
	store   Store
	metrics *observability.EngineMetrics
	now     func() time.Time
}

// NewGate creates a throttle gate over the given store. metrics may be nil.
func NewGate(store Store, metrics *observability.EngineMetrics) *Gate {
	return &Gate{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

// CanSend decides whether a notification may be sent to the user right now.
// The decision order is fixed: daily cap first, then cooldown. A trigger
// priority at or above the override threshold bypasses both limits.
//
// The read-then-write window between this check and the history row landing
// is accepted: overlapping runs may each approve a send for the same user.
// The limits are measured in hours and days, so the impact is bounded.
func (g *Gate) CanSend(userID string, triggerPriority int) (*Decision, error) {
	settings, err := g.store.GetThrottleSettings()
	if err != nil {
		return nil, errors.New(err).
			Component("throttle").
			Category(errors.CategoryThrottle).
			Context("user_id", userID).
			Build()
	}

	if !settings.Enabled {
		return &Decision{Allowed: true}, nil
	}

	override := triggerPriority >= settings.PriorityOverrideThreshold

	now := g.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sentToday, err := g.store.CountHistorySince(userID, midnight)
	if err != nil {
		return nil, errors.New(err).
			Component("throttle").
			Category(errors.CategoryThrottle).
			Context("user_id", userID).
			Build()
	}

	if sentToday >= int64(settings.MaxNotificationsPerDay) {
		if override {
			g.metrics.RecordThrottleOverride()
			return &Decision{Allowed: true, Reason: ReasonDailyLimit, Override: true}, nil
		}
		g.metrics.RecordThrottleDenial("daily_limit")
		return &Decision{Allowed: false, Reason: ReasonDailyLimit}, nil
	}

	last, err := g.store.LatestHistory(userID)
	switch {
	case err == nil:
		next := last.SentAt.Add(time.Duration(settings.CooldownHours) * time.Hour)
		if now.Before(next) {
			if override {
				g.metrics.RecordThrottleOverride()
				return &Decision{Allowed: true, Reason: ReasonCooldown, Override: true}, nil
			}
			g.metrics.RecordThrottleDenial("cooldown")
			return &Decision{Allowed: false, Reason: ReasonCooldown, NextAvailableAt: &next}, nil
		}
	case errors.Is(err, datastore.ErrHistoryNotFound):
		// never notified, nothing to cool down from
	default:
		return nil, errors.New(err).
			Component("throttle").
			Category(errors.CategoryThrottle).
			Context("user_id", userID).
			Build()
	}

	return &Decision{Allowed: true}, nil
}
