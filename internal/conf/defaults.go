// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Nudge-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "nudge.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "nudge")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "nudge")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	viper.SetDefault("throttle.enabled", true)
	viper.SetDefault("throttle.maxnotificationsperday", 2)
	viper.SetDefault("throttle.cooldownhours", 24)
	viper.SetDefault("throttle.priorityoverridethreshold", 8)
	viper.SetDefault("throttle.respectuserpreferences", true)

	viper.SetDefault("gateway.provider", "webhook")
	viper.SetDefault("gateway.maxretries", 3)
	viper.SetDefault("gateway.shoutrrr.enabled", false)
	viper.SetDefault("gateway.shoutrrr.urltemplate", "")
	viper.SetDefault("gateway.shoutrrr.timeout", 10*time.Second)
	viper.SetDefault("gateway.webhook.enabled", false)
	viper.SetDefault("gateway.webhook.endpoint", "")
	viper.SetDefault("gateway.webhook.timeout", 10*time.Second)

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.interval", time.Minute)
	viper.SetDefault("scheduler.maxconcurrentusers", 1)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
}
