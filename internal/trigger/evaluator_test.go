package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgeworks/nudge-go/internal/datastore"
)

func userIDs(users []datastore.User) []string {
	ids := make([]string, 0, len(users))
	for i := range users {
		ids = append(ids, users[i].ID)
	}
	return ids
}

func TestEvaluateUserInactive(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedUser(t, store, "dormant")
	seedEvent(t, store, "dormant", datastore.EventAppOpened, now.Add(-4*24*time.Hour), nil)

	seedUser(t, store, "active")
	seedEvent(t, store, "active", datastore.EventAppOpened, now.Add(-2*24*time.Hour), nil)

	definition := seedTrigger(t, store, "t1", TypeUserInactive,
		datastore.JSONMap{"days_inactive": 3})

	users, err := Evaluate(store, definition, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dormant"}, userIDs(users))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedUser(t, store, "dormant")
	seedEvent(t, store, "dormant", datastore.EventAppOpened, now.Add(-5*24*time.Hour), nil)

	definition := seedTrigger(t, store, "t1", TypeUserInactive,
		datastore.JSONMap{"days_inactive": 3})

	first, err := Evaluate(store, definition, now)
	require.NoError(t, err)
	second, err := Evaluate(store, definition, now)
	require.NoError(t, err)
	assert.Equal(t, userIDs(first), userIDs(second))
}

func TestEvaluateSignupIncomplete(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedUser(t, store, "incomplete", func(u *datastore.User) {
		u.FirstName = ""
		u.CreatedAt = now.Add(-72 * time.Hour)
	})
	seedUser(t, store, "complete", func(u *datastore.User) {
		u.CreatedAt = now.Add(-72 * time.Hour)
	})
	seedUser(t, store, "fresh", func(u *datastore.User) {
		u.FirstName = ""
		u.CreatedAt = now.Add(-2 * time.Hour)
	})

	definition := seedTrigger(t, store, "t1", TypeSignupIncomplete,
		datastore.JSONMap{"hours_since_signup": 48})

	users, err := Evaluate(store, definition, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"incomplete"}, userIDs(users))
}

func TestEvaluateVideoAbandoned(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	// Stalled at 40% five hours ago: abandoned.
	seedUser(t, store, "abandoned")
	seedEvent(t, store, "abandoned", datastore.EventVideoProgress,
		now.Add(-5*time.Hour), datastore.JSONMap{"watch_percentage": 40.0})

	// Stalled at 40% but only twenty minutes ago: may still be watching.
	seedUser(t, store, "watching")
	seedEvent(t, store, "watching", datastore.EventVideoProgress,
		now.Add(-20*time.Minute), datastore.JSONMap{"watch_percentage": 40.0})

	// Finished the video.
	seedUser(t, store, "finished")
	seedEvent(t, store, "finished", datastore.EventVideoProgress,
		now.Add(-5*time.Hour), datastore.JSONMap{"watch_percentage": 95.0})

	// Barely opened it: below the interest floor.
	seedUser(t, store, "peeked")
	seedEvent(t, store, "peeked", datastore.EventVideoProgress,
		now.Add(-5*time.Hour), datastore.JSONMap{"watch_percentage": 4.0})

	// Earlier abandoned view superseded by a later completed one: only the
	// most recent event counts.
	seedUser(t, store, "resumed")
	seedEvent(t, store, "resumed", datastore.EventVideoProgress,
		now.Add(-8*time.Hour), datastore.JSONMap{"watch_percentage": 30.0})
	seedEvent(t, store, "resumed", datastore.EventVideoProgress,
		now.Add(-4*time.Hour), datastore.JSONMap{"watch_percentage": 90.0})

	definition := seedTrigger(t, store, "t1", TypeVideoAbandoned, datastore.JSONMap{
		"watch_percentage_threshold": 70.0,
		"recency_window_hours":       2,
	})

	users, err := Evaluate(store, definition, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"abandoned"}, userIDs(users))
}

func seedPracticeDays(t *testing.T, store datastore.Interface, userID string, now time.Time, daysAgo ...int) {
	t.Helper()
	for _, back := range daysAgo {
		seedEvent(t, store, userID, datastore.EventPracticeCompleted,
			now.AddDate(0, 0, -back), nil)
	}
}

func TestEvaluatePracticeStreakBroken(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	// Five-day streak that ended four days ago.
	seedUser(t, store, "lapsed")
	seedPracticeDays(t, store, "lapsed", now, 8, 7, 6, 5, 4)

	// Long streak but still practicing.
	seedUser(t, store, "consistent")
	seedPracticeDays(t, store, "consistent", now, 4, 3, 2, 1, 0)

	// Scattered practice, never a real streak.
	seedUser(t, store, "sporadic")
	seedPracticeDays(t, store, "sporadic", now, 14, 10, 5)

	definition := seedTrigger(t, store, "t1", TypePracticeStreakBroken, datastore.JSONMap{
		"min_streak_length": 3,
		"days_since_break":  2,
	})

	users, err := Evaluate(store, definition, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lapsed"}, userIDs(users))
}

func TestEvaluateMilestoneReached(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedUser(t, store, "achiever")
	seedEvent(t, store, "achiever", datastore.EventMilestoneReached,
		now.Add(-2*time.Hour), datastore.JSONMap{
			"milestone_type": "practice_hours",
			"value":          120.0,
		})

	// Crossed the threshold, but too long ago to celebrate.
	seedUser(t, store, "stale")
	seedEvent(t, store, "stale", datastore.EventMilestoneReached,
		now.Add(-50*time.Hour), datastore.JSONMap{
			"milestone_type": "practice_hours",
			"value":          150.0,
		})

	// Recent milestone of a different type.
	seedUser(t, store, "other")
	seedEvent(t, store, "other", datastore.EventMilestoneReached,
		now.Add(-time.Hour), datastore.JSONMap{
			"milestone_type": "videos_watched",
			"value":          500.0,
		})

	// Below the threshold.
	seedUser(t, store, "short")
	seedEvent(t, store, "short", datastore.EventMilestoneReached,
		now.Add(-time.Hour), datastore.JSONMap{
			"milestone_type": "practice_hours",
			"value":          40.0,
		})

	definition := seedTrigger(t, store, "t1", TypeMilestoneReached, datastore.JSONMap{
		"milestone_type":           "practice_hours",
		"threshold_value":          100,
		"celebration_window_hours": 24,
	})

	users, err := Evaluate(store, definition, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"achiever"}, userIDs(users))
}

func TestEvaluateRespectsTargetAudience(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedUser(t, store, "member-dormant")
	seedUser(t, store, "coach-dormant", func(u *datastore.User) { u.Role = "coach" })

	definition := seedTrigger(t, store, "t1", TypeUserInactive,
		datastore.JSONMap{"days_inactive": 3},
		func(d *datastore.TriggerDefinition) { d.TargetAudience = "role:coach" })

	users, err := Evaluate(store, definition, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"coach-dormant"}, userIDs(users))
}

func TestEvaluateRejectsMalformedConfig(t *testing.T) {
	store := newTestStore(t)

	definition := seedTrigger(t, store, "t1", TypeUserInactive,
		datastore.JSONMap{"days_inactive": -1})

	_, err := Evaluate(store, definition, time.Now())
	require.Error(t, err)
}

func TestTrailingStreak(t *testing.T) {
	day := func(back int) time.Time {
		base := time.Date(2026, 5, 20, 0, 0, 0, 0, time.Local)
		return base.AddDate(0, 0, -back)
	}

	last, streak := trailingStreak([]time.Time{day(4), day(3), day(2)})
	assert.Equal(t, day(2), last)
	assert.Equal(t, 3, streak)

	// A gap resets the run.
	last, streak = trailingStreak([]time.Time{day(9), day(8), day(2), day(1)})
	assert.Equal(t, day(1), last)
	assert.Equal(t, 2, streak)

	_, streak = trailingStreak([]time.Time{day(5)})
	assert.Equal(t, 1, streak)

	_, streak = trailingStreak(nil)
	assert.Equal(t, 0, streak)
}
