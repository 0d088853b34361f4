package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgeworks/nudge-go/internal/datastore"
)

func TestParseConditionConfig(t *testing.T) {
	cfg, err := ParseConditionConfig(TypeUserInactive, datastore.JSONMap{"days_inactive": 3})
	require.NoError(t, err)
	inactive, ok := cfg.(*UserInactiveConfig)
	require.True(t, ok)
	assert.Equal(t, 3, inactive.DaysInactive)

	cfg, err = ParseConditionConfig(TypeVideoAbandoned, datastore.JSONMap{
		"watch_percentage_threshold": 70.0,
		"recency_window_hours":       2,
	})
	require.NoError(t, err)
	abandoned, ok := cfg.(*VideoAbandonedConfig)
	require.True(t, ok)
	assert.InDelta(t, 70.0, abandoned.WatchPercentageThreshold, 0.001)
	assert.Equal(t, 2, abandoned.RecencyWindowHours)

	cfg, err = ParseConditionConfig(TypeMilestoneReached, datastore.JSONMap{
		"milestone_type":           "practice_hours",
		"threshold_value":          100,
		"celebration_window_hours": 24,
	})
	require.NoError(t, err)
	milestone, ok := cfg.(*MilestoneReachedConfig)
	require.True(t, ok)
	assert.Equal(t, "practice_hours", milestone.MilestoneType)
}

func TestParseConditionConfigUnknownType(t *testing.T) {
	_, err := ParseConditionConfig("weekly_digest", datastore.JSONMap{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown trigger type")
}

func TestParseConditionConfigRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name        string
		triggerType string
		config      datastore.JSONMap
	}{
		{"zero days inactive", TypeUserInactive, datastore.JSONMap{"days_inactive": 0}},
		{"missing hours", TypeSignupIncomplete, datastore.JSONMap{}},
		{"threshold below floor", TypeVideoAbandoned, datastore.JSONMap{
			"watch_percentage_threshold": 5.0,
			"recency_window_hours":       2,
		}},
		{"threshold over 100", TypeVideoAbandoned, datastore.JSONMap{
			"watch_percentage_threshold": 150.0,
			"recency_window_hours":       2,
		}},
		{"single day streak", TypePracticeStreakBroken, datastore.JSONMap{
			"min_streak_length": 1,
			"days_since_break":  2,
		}},
		{"empty milestone type", TypeMilestoneReached, datastore.JSONMap{
			"threshold_value":          10,
			"celebration_window_hours": 24,
		}},
		{"wrong value type", TypeUserInactive, datastore.JSONMap{"days_inactive": "three"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConditionConfig(tc.triggerType, tc.config)
			assert.Error(t, err)
		})
	}
}

func TestKnownType(t *testing.T) {
	for _, triggerType := range Types {
		assert.True(t, KnownType(triggerType))
	}
	assert.False(t, KnownType("weekly_digest"))
	assert.False(t, KnownType(""))
}
