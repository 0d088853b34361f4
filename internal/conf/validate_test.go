package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Database.SQLite.Enabled = true
	s.Database.SQLite.Path = "nudge.db"
	s.Throttle.MaxNotificationsPerDay = 2
	s.Throttle.CooldownHours = 24
	s.Throttle.PriorityOverrideThreshold = 8
	s.Gateway.Provider = "webhook"
	s.Gateway.Webhook.Enabled = true
	s.Gateway.Webhook.Endpoint = "https://push.example.com/send"
	s.Scheduler.Enabled = true
	s.Scheduler.Interval = time.Minute
	s.Scheduler.MaxConcurrentUsers = 1
	s.WebServer.Enabled = true
	s.WebServer.Port = "8080"
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsBothDatabases(t *testing.T) {
	s := validSettings()
	s.Database.MySQL.Enabled = true
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one database backend")
}

func TestValidateSettingsRejectsNoDatabase(t *testing.T) {
	s := validSettings()
	s.Database.SQLite.Enabled = false
	require.Error(t, ValidateSettings(s))
}

func TestValidateSettingsRejectsBadOverrideThreshold(t *testing.T) {
	s := validSettings()
	s.Throttle.PriorityOverrideThreshold = 11
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "priorityoverridethreshold")
}

func TestValidateSettingsRejectsShoutrrrWithoutTokenPlaceholder(t *testing.T) {
	s := validSettings()
	s.Gateway.Provider = "shoutrrr"
	s.Gateway.Shoutrrr.Enabled = true
	s.Gateway.Shoutrrr.URLTemplate = "generic://push.example.com/static"
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{token}")
}

func TestValidateSettingsRejectsUnknownGateway(t *testing.T) {
	s := validSettings()
	s.Gateway.Provider = "carrier-pigeon"
	require.Error(t, ValidateSettings(s))
}

func TestValidateSettingsRejectsZeroSchedulerInterval(t *testing.T) {
	s := validSettings()
	s.Scheduler.Interval = 0
	require.Error(t, ValidateSettings(s))
}

func TestValidateSettingsRejectsBadPort(t *testing.T) {
	s := validSettings()
	s.WebServer.Port = "not-a-port"
	require.Error(t, ValidateSettings(s))
}
