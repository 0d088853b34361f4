// config.go: This file contains the configuration for the nudge engine. It
// defines the settings struct and functions to load and save the settings.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains settings for file log rotation.
type LogConfig struct {
	Enabled    bool   // true to enable file logging
	Path       string // path to the log directory
	MaxSizeMB  int    // log file size before rotation, megabytes
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to keep rotated files
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool   // true to enable sqlite
	Path    string // path to the sqlite database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool   // true to enable mysql
	Username string // mysql username
	Password string // mysql password
	Database string // mysql database name
	Host     string // mysql host
	Port     string // mysql port
}

// DatabaseSettings selects and configures the storage backend.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// ThrottleDefaults seeds the throttle settings row on first start. Runtime
// values live in the database and are editable through the admin API.
type ThrottleDefaults struct {
	Enabled                   bool // true to enable per-user throttling
	MaxNotificationsPerDay    int  // daily cap per user
	CooldownHours             int  // hours between sends to the same user
	PriorityOverrideThreshold int  // trigger priority at or above this bypasses limits
	RespectUserPreferences    bool // honor the per-user notifications_enabled flag
}

// ShoutrrrGatewaySettings configures the shoutrrr-backed delivery gateway.
// URLTemplate must contain the {token} placeholder which is substituted with
// each recipient's push token.
type ShoutrrrGatewaySettings struct {
	Enabled     bool
	URLTemplate string        // shoutrrr URL with a {token} placeholder
	Timeout     time.Duration // per send timeout
}

// WebhookGatewaySettings configures the HTTP webhook delivery gateway.
type WebhookGatewaySettings struct {
	Enabled  bool
	Endpoint string            // webhook URL receiving batched sends
	Headers  map[string]string // extra request headers, e.g. authorization
	Timeout  time.Duration     // per request timeout
}

// GatewaySettings selects and configures the push delivery gateway.
type GatewaySettings struct {
	Provider   string // "shoutrrr" or "webhook"
	MaxRetries int    // retry attempts for retryable transport errors
	Shoutrrr   ShoutrrrGatewaySettings
	Webhook    WebhookGatewaySettings
}

// SchedulerSettings controls the periodic runner invocation.
type SchedulerSettings struct {
	Enabled            bool
	Interval           time.Duration // time between runner invocations
	MaxConcurrentUsers int           // per-trigger user dispatch concurrency, 1 = sequential
}

// WebServerSettings contains settings for the admin HTTP API.
type WebServerSettings struct {
	Enabled bool
	Port    string
}

// Settings contains all configuration options for the nudge engine.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of the running node
		Log  LogConfig // file logging settings
	}

	Database  DatabaseSettings
	Throttle  ThrottleDefaults
	Gateway   GatewaySettings
	Scheduler SchedulerSettings
	WebServer WebServerSettings
}

var settingsMutex sync.Mutex

// Load reads the configuration, creating a default config file if none
// exists.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	initViper()

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	// First start with no config file: persist the defaults so admins have
	// a file to edit.
	if viper.ConfigFileUsed() == "" {
		path := defaultConfigWritePath()
		if err := writeSettingsFile(settings, path); err != nil {
			log.Printf("error writing default config file %s: %v", path, err)
		}
	}

	return settings, nil
}

// initViper sets up viper: defaults, config name and search paths.
func initViper() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths := configSearchPaths()
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			log.Printf("error reading config file: %v", err)
		}
		// Missing config file is fine, defaults apply.
	}
}

// configSearchPaths returns the directories searched for config.yaml,
// working directory first.
func configSearchPaths() []string {
	paths := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "nudge-go"))
	}
	return paths
}

// defaultConfigWritePath returns where a missing config file is created:
// the user config directory when resolvable, the working directory
// otherwise.
func defaultConfigWritePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "nudge-go", "config.yaml")
	}
	return "config.yaml"
}

// SaveSettings writes the given settings to the given path as YAML.
func SaveSettings(settings *Settings, path string) error {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	return writeSettingsFile(settings, path)
}

func writeSettingsFile(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to yaml: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory %s: %w", dir, err)
	}

	// Write to a temp file and rename so a crash never leaves a
	// half-written config behind.
	tmp, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temp config file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("error writing temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error closing temp config file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
