// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateThrottleDefaults(&settings.Throttle); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateGatewaySettings(&settings.Gateway); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSchedulerSettings(&settings.Scheduler); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(db *DatabaseSettings) error {
	if db.SQLite.Enabled && db.MySQL.Enabled {
		return fmt.Errorf("only one database backend may be enabled at a time")
	}
	if !db.SQLite.Enabled && !db.MySQL.Enabled {
		return fmt.Errorf("one of database.sqlite or database.mysql must be enabled")
	}
	if db.SQLite.Enabled && strings.TrimSpace(db.SQLite.Path) == "" {
		return fmt.Errorf("database.sqlite.path is required when sqlite is enabled")
	}
	if db.MySQL.Enabled {
		if db.MySQL.Host == "" || db.MySQL.Database == "" || db.MySQL.Username == "" {
			return fmt.Errorf("database.mysql requires host, database and username")
		}
		if _, err := strconv.Atoi(db.MySQL.Port); err != nil {
			return fmt.Errorf("database.mysql.port must be numeric: %s", db.MySQL.Port)
		}
	}
	return nil
}

func validateThrottleDefaults(t *ThrottleDefaults) error {
	if t.MaxNotificationsPerDay < 0 {
		return fmt.Errorf("throttle.maxnotificationsperday must not be negative")
	}
	if t.CooldownHours < 0 {
		return fmt.Errorf("throttle.cooldownhours must not be negative")
	}
	if t.PriorityOverrideThreshold < 1 || t.PriorityOverrideThreshold > 10 {
		return fmt.Errorf("throttle.priorityoverridethreshold must be between 1 and 10")
	}
	return nil
}

func validateGatewaySettings(g *GatewaySettings) error {
	switch g.Provider {
	case "shoutrrr":
		if g.Shoutrrr.Enabled && !strings.Contains(g.Shoutrrr.URLTemplate, "{token}") {
			return fmt.Errorf("gateway.shoutrrr.urltemplate must contain the {token} placeholder")
		}
	case "webhook":
		if g.Webhook.Enabled && strings.TrimSpace(g.Webhook.Endpoint) == "" {
			return fmt.Errorf("gateway.webhook.endpoint is required when webhook is enabled")
		}
	case "none", "":
		// Delivery disabled, runner still records eligibility outcomes.
	default:
		return fmt.Errorf("unknown gateway provider: %s", g.Provider)
	}
	if g.MaxRetries < 0 {
		return fmt.Errorf("gateway.maxretries must not be negative")
	}
	return nil
}

func validateSchedulerSettings(s *SchedulerSettings) error {
	if s.Enabled && s.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive when the scheduler is enabled")
	}
	if s.MaxConcurrentUsers < 1 {
		return fmt.Errorf("scheduler.maxconcurrentusers must be at least 1")
	}
	return nil
}

func validateWebServerSettings(ws *WebServerSettings) error {
	if !ws.Enabled {
		return nil
	}
	port, err := strconv.Atoi(ws.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port must be a number between 1 and 65535")
	}
	return nil
}
