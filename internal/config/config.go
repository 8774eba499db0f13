package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// Telegram bot configuration
type BotConfig struct {
	Token          string        `mapstructure:"token"`
	Language       string        `mapstructure:"language"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Webhook        WebhookConfig `mapstructure:"webhook"`
}

// webhook server configuration, long polling is used when Endpoint is empty
type WebhookConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	ListenPort string `mapstructure:"listen_port"`
	DebugPath  string `mapstructure:"debug_path"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
}

// logging configuration
type LoggerConfig struct {
	Directory  string            `mapstructure:"directory"`
	Rotation   LogRotationConfig `mapstructure:"rotation"`
	Timezone   string            `mapstructure:"timezone"`
	Format     string            `mapstructure:"format"`
	TimeFormat string            `mapstructure:"time_format"`
	Level      string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// DatabaseConfig selects the store backend. Driver is "sqlite" (Path is used)
// or "mysql" (the network fields are used).
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	LogLevel string `mapstructure:"log_level"`
}

// BroadcastConfig holds the static destination list and the staff allow-list.
type BroadcastConfig struct {
	TargetGroups      []int64       `mapstructure:"target_groups"`
	AdminIDs          []int64       `mapstructure:"admin_ids"`
	ModIDs            []int64       `mapstructure:"mod_ids"`
	SendDelay         time.Duration `mapstructure:"send_delay"`
	NotifyOnScheduled bool          `mapstructure:"notify_on_scheduled"`
}

type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	UTCOffsetHours int           `mapstructure:"utc_offset_hours"`
	DateLayout     string        `mapstructure:"date_layout"`
}

type AuditConfig struct {
	ExportLimit int `mapstructure:"export_limit"`
}

// Location returns the fixed offset zone used for human-entered times and
// audit timestamps.
func (s SchedulerConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", s.UTCOffsetHours), s.UTCOffsetHours*3600)
}

// IsAdmin reports whether the user may broadcast and delete.
func (b BroadcastConfig) IsAdmin(userID int64) bool {
	return contains(b.AdminIDs, userID)
}

// IsStaff reports whether the user is an admin or a moderator.
func (b BroadcastConfig) IsStaff(userID int64) bool {
	return b.IsAdmin(userID) || contains(b.ModIDs, userID)
}

// StaffIDs returns admins followed by moderators.
func (b BroadcastConfig) StaffIDs() []int64 {
	ids := make([]int64, 0, len(b.AdminIDs)+len(b.ModIDs))
	ids = append(ids, b.AdminIDs...)
	return append(ids, b.ModIDs...)
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()

	setDefaults(v)

	if err := v.BindEnv("bot.token", "BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("error binding env: %w", err)
	}

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values the process cannot run without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %v", c.Scheduler.Interval)
	}
	if c.Scheduler.UTCOffsetHours < -12 || c.Scheduler.UTCOffsetHours > 14 {
		return fmt.Errorf("scheduler utc offset out of range: %d", c.Scheduler.UTCOffsetHours)
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.language", "en")
	v.SetDefault("bot.request_timeout", 15*time.Second)
	v.SetDefault("bot.webhook.listen_port", "8443")
	v.SetDefault("bot.webhook.debug_path", "/debug")
	v.SetDefault("bot.webhook.cert_file", "")
	v.SetDefault("bot.webhook.key_file", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.timezone", "Local")
	v.SetDefault("logger.format", "[%{level}] %{time} %{file}:%{line}: %{message}")
	v.SetDefault("logger.time_format", "2006/01/02 15:04:05")
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/bot_data.db")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.log_level", "WARNING")

	v.SetDefault("broadcast.send_delay", 100*time.Millisecond)
	v.SetDefault("broadcast.notify_on_scheduled", true)

	v.SetDefault("scheduler.interval", 60*time.Second)
	v.SetDefault("scheduler.utc_offset_hours", 7)
	v.SetDefault("scheduler.date_layout", "02.01.2006 15:04")

	v.SetDefault("audit.export_limit", 200)
}
