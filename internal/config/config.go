package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "FRIEND_REMINDER_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	sendGridAPIKeyEnv = "SENDGRID_API_KEY"
	redisAddrEnv      = "REDIS_ADDR"
	llmAPIKeyEnv      = "LLM_API_KEY"
	logLevelEnv       = "LOG_LEVEL"
	httpAddrEnv       = "HTTP_ADDR"
)

// Notification channels.
const (
	ChannelTelegram = "telegram"
	ChannelSendGrid = "sendgrid"
	ChannelConsole  = "console"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Reminders     RemindersConfig    `yaml:"reminders"`
	Notifications NotificationConfig `yaml:"notifications"`
	LLM           LLMConfig          `yaml:"llm"`
	HTTP          HTTPConfig         `yaml:"http"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig selects the SQL driver ("postgres" or "sqlite") and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when ticks run and in which timezone days are counted.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	Lock           LockConfig     `yaml:"lock"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LockConfig enables the Redis tick lock when RedisAddr is set.
type LockConfig struct {
	RedisAddr string        `yaml:"redisAddr"`
	Key       string        `yaml:"key"`
	TTL       time.Duration `yaml:"ttl"`
}

// RemindersConfig tunes the pipelines and the dispatcher.
type RemindersConfig struct {
	LookaheadDays   int           `yaml:"lookaheadDays"`
	PriorityDays    int           `yaml:"priorityDays"`
	NormalDays      int           `yaml:"normalDays"`
	DispatchTimeout time.Duration `yaml:"dispatchTimeout"`
	Concurrency     int           `yaml:"concurrency"`
	// Categories limits which pipelines run; empty means all.
	Categories []string `yaml:"categories"`
}

// NotificationConfig selects the outbound channel and holds its credentials.
type NotificationConfig struct {
	Channel  string         `yaml:"channel"`
	Telegram TelegramConfig `yaml:"telegram"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// SendGridConfig describes the mail channel.
type SendGridConfig struct {
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseUrl"`
	FromEmail string `yaml:"fromEmail"`
	FromName  string `yaml:"fromName"`
	ToEmail   string `yaml:"toEmail"`
	Subject   string `yaml:"subject"`
}

// LLMConfig defines how to contact the extraction model.
type LLMConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// HTTPConfig configures the admin API listener. An empty Addr disables it;
// a non-empty Token requires bearer authentication.
type HTTPConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit config path; an empty path uses defaults only.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(sendGridAPIKeyEnv); v != "" {
		c.Notifications.SendGrid.APIKey = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Scheduler.Lock.RedisAddr = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = strings.ToLower(override.Database.Driver)
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.Lock.RedisAddr != "" {
		base.Scheduler.Lock.RedisAddr = override.Scheduler.Lock.RedisAddr
	}
	if override.Scheduler.Lock.Key != "" {
		base.Scheduler.Lock.Key = override.Scheduler.Lock.Key
	}
	if override.Scheduler.Lock.TTL > 0 {
		base.Scheduler.Lock.TTL = override.Scheduler.Lock.TTL
	}

	if override.Reminders.LookaheadDays > 0 {
		base.Reminders.LookaheadDays = override.Reminders.LookaheadDays
	}
	if override.Reminders.PriorityDays > 0 {
		base.Reminders.PriorityDays = override.Reminders.PriorityDays
	}
	if override.Reminders.NormalDays > 0 {
		base.Reminders.NormalDays = override.Reminders.NormalDays
	}
	if override.Reminders.DispatchTimeout > 0 {
		base.Reminders.DispatchTimeout = override.Reminders.DispatchTimeout
	}
	if override.Reminders.Concurrency > 0 {
		base.Reminders.Concurrency = override.Reminders.Concurrency
	}
	if len(override.Reminders.Categories) > 0 {
		base.Reminders.Categories = override.Reminders.Categories
	}

	if override.Notifications.Channel != "" {
		base.Notifications.Channel = strings.ToLower(override.Notifications.Channel)
	}
	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.BaseURL != "" {
		base.Notifications.Telegram.BaseURL = override.Notifications.Telegram.BaseURL
	}
	sg := override.Notifications.SendGrid
	if sg.APIKey != "" {
		base.Notifications.SendGrid.APIKey = sg.APIKey
	}
	if sg.BaseURL != "" {
		base.Notifications.SendGrid.BaseURL = sg.BaseURL
	}
	if sg.FromEmail != "" {
		base.Notifications.SendGrid.FromEmail = sg.FromEmail
	}
	if sg.FromName != "" {
		base.Notifications.SendGrid.FromName = sg.FromName
	}
	if sg.ToEmail != "" {
		base.Notifications.SendGrid.ToEmail = sg.ToEmail
	}
	if sg.Subject != "" {
		base.Notifications.SendGrid.Subject = sg.Subject
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.HTTP.Token != "" {
		base.HTTP.Token = override.HTTP.Token
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "friendreminder.db"},
		Scheduler: SchedulerConfig{
			CronExpression: "0 9 * * *",
			Timezone:       defaultTimezone,
			Lock:           LockConfig{Key: "friendreminder:tick", TTL: 5 * time.Minute},
			location:       tz,
		},
		Reminders: RemindersConfig{
			LookaheadDays:   14,
			PriorityDays:    14,
			NormalDays:      28,
			DispatchTimeout: 10 * time.Second,
			Concurrency:     4,
		},
		Notifications: NotificationConfig{
			Channel:  ChannelConsole,
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
			SendGrid: SendGridConfig{
				BaseURL:  "https://api.sendgrid.com",
				FromName: "Friend Reminder",
				Subject:  "Friend reminder",
			},
		},
		LLM: LLMConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			Timeout:  30 * time.Second,
		},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}
