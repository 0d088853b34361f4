package trigger

import (
	"sort"
	"time"

	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/errors"
)

// streakLookbackSlackDays widens the practice-event query window beyond the
// minimum needed to observe a qualifying streak, so streaks that started
// well before the break are still visible.
const streakLookbackSlackDays = 30

// Evaluate returns the set of users currently eligible for the trigger.
// Evaluators are pure reads: the same data yields the same set on every
// call, and deduplication against re-sending is the throttle gate's job.
func Evaluate(store Store, def *datastore.TriggerDefinition, now time.Time) ([]datastore.User, error) {
	cfg, err := ParseConditionConfig(def.TriggerType, def.ConditionConfig)
	if err != nil {
		return nil, err
	}

	var users []datastore.User
	switch c := cfg.(type) {
	case *UserInactiveConfig:
		users, err = evaluateUserInactive(store, c, now)
	case *SignupIncompleteConfig:
		users, err = evaluateSignupIncomplete(store, c, now)
	case *VideoAbandonedConfig:
		users, err = evaluateVideoAbandoned(store, c, now)
	case *PracticeStreakBrokenConfig:
		users, err = evaluatePracticeStreakBroken(store, c, now)
	case *MilestoneReachedConfig:
		users, err = evaluateMilestoneReached(store, c, now)
	}
	if err != nil {
		return nil, errors.New(err).
			Component("trigger").
			Category(errors.CategoryEvaluation).
			Context("trigger_id", def.ID).
			Context("trigger_type", def.TriggerType).
			Build()
	}

	return filterAudience(store, def.TargetAudience, users)
}

func evaluateUserInactive(store Store, cfg *UserInactiveConfig, now time.Time) ([]datastore.User, error) {
	return store.GetInactiveUsers(now.AddDate(0, 0, -cfg.DaysInactive))
}

func evaluateSignupIncomplete(store Store, cfg *SignupIncompleteConfig, now time.Time) ([]datastore.User, error) {
	return store.GetIncompleteSignups(now.Add(-time.Duration(cfg.HoursSinceSignup) * time.Hour))
}

// evaluateVideoAbandoned selects users whose most recent video-progress event
// sits in the abandoned band: watched at least the minimum but below the
// threshold, with no progress since the recency window. A recent low-percent
// event means the user may still be watching, so it does not qualify.
func evaluateVideoAbandoned(store Store, cfg *VideoAbandonedConfig, now time.Time) ([]datastore.User, error) {
	events, err := store.LatestEventPerUser(datastore.EventVideoProgress)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-time.Duration(cfg.RecencyWindowHours) * time.Hour)
	var ids []string
	for i := range events {
		event := &events[i]
		if event.UserID == nil || !event.CreatedAt.Before(cutoff) {
			continue
		}
		pct, ok := floatProperty(event.Properties, "watch_percentage")
		if !ok {
			continue
		}
		if pct >= minWatchPercentage && pct < cfg.WatchPercentageThreshold {
			ids = append(ids, *event.UserID)
		}
	}

	return store.FilterNotifiableUsers(ids)
}

// evaluatePracticeStreakBroken selects users whose last run of consecutive
// practice days reached the minimum streak length and ended more than the
// configured number of days ago.
func evaluatePracticeStreakBroken(store Store, cfg *PracticeStreakBrokenConfig, now time.Time) ([]datastore.User, error) {
	lookback := cfg.DaysSinceBreak + cfg.MinStreakLength + streakLookbackSlackDays
	daysByUser, err := store.GetEventDaysByUser(datastore.EventPracticeCompleted,
		now.AddDate(0, 0, -lookback))
	if err != nil {
		return nil, err
	}

	var ids []string
	for userID, days := range daysByUser {
		last, streak := trailingStreak(days)
		if streak < cfg.MinStreakLength {
			continue
		}
		brokenFor := int(now.Sub(last).Hours() / 24)
		if brokenFor >= cfg.DaysSinceBreak {
			ids = append(ids, userID)
		}
	}

	return store.FilterNotifiableUsers(ids)
}

// trailingStreak returns the most recent practice day and the length of the
// run of consecutive calendar days ending on it.
func trailingStreak(days []time.Time) (last time.Time, streak int) {
	if len(days) == 0 {
		return time.Time{}, 0
	}

	sorted := make([]time.Time, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	last = sorted[len(sorted)-1]
	streak = 1
	for i := len(sorted) - 2; i >= 0; i-- {
		// Days are midnight-truncated; compare calendar dates rather than
		// durations so DST shifts do not split a streak.
		if !sorted[i].AddDate(0, 0, 1).Equal(sorted[i+1]) {
			break
		}
		streak++
	}
	return last, streak
}

// evaluateMilestoneReached selects users who reported crossing the threshold
// of the configured milestone type inside the celebration window. Each user
// appears once regardless of how many qualifying events they emitted.
func evaluateMilestoneReached(store Store, cfg *MilestoneReachedConfig, now time.Time) ([]datastore.User, error) {
	events, err := store.GetEventsByNameSince(datastore.EventMilestoneReached,
		now.Add(-time.Duration(cfg.CelebrationWindowHours)*time.Hour))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for i := range events {
		event := &events[i]
		if event.UserID == nil || seen[*event.UserID] {
			continue
		}
		milestoneType, _ := event.Properties["milestone_type"].(string)
		if milestoneType != cfg.MilestoneType {
			continue
		}
		value, ok := floatProperty(event.Properties, "value")
		if !ok || value < cfg.ThresholdValue {
			continue
		}
		seen[*event.UserID] = true
		ids = append(ids, *event.UserID)
	}

	return store.FilterNotifiableUsers(ids)
}

// filterAudience narrows an eligible set to the trigger's target audience.
// "all" and the empty descriptor pass the set through unchanged.
func filterAudience(store Store, descriptor string, users []datastore.User) ([]datastore.User, error) {
	if descriptor == "" || descriptor == "all" || len(users) == 0 {
		return users, nil
	}

	audience, err := store.ResolveAudience(descriptor)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(audience))
	for i := range audience {
		allowed[audience[i].ID] = true
	}

	filtered := users[:0]
	for i := range users {
		if allowed[users[i].ID] {
			filtered = append(filtered, users[i])
		}
	}
	return filtered, nil
}

// floatProperty reads a numeric property from an activity event payload.
// JSON decoding yields float64 for numbers, but events written through Go
// code may carry native ints.
func floatProperty(props datastore.JSONMap, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
