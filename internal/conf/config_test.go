package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSaveSettingsRoundTrip(t *testing.T) {
	settings := &Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = "nudge.db"
	settings.Throttle.MaxNotificationsPerDay = 3
	settings.Scheduler.Interval = 5 * time.Minute
	settings.WebServer.Port = "8080"

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveSettings(settings, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.True(t, loaded.Database.SQLite.Enabled)
	assert.Equal(t, "nudge.db", loaded.Database.SQLite.Path)
	assert.Equal(t, 3, loaded.Throttle.MaxNotificationsPerDay)
	assert.Equal(t, 5*time.Minute, loaded.Scheduler.Interval)
	assert.Equal(t, "8080", loaded.WebServer.Port)
}

func TestSaveSettingsCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "config.yaml")
	require.NoError(t, SaveSettings(&Settings{}, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}
