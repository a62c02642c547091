package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type TrackerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	HTTPTimeout string `mapstructure:"http_timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type DefinitionsConfig struct {
	File         string `mapstructure:"file"`
	SyncInterval string `mapstructure:"sync_interval"`
}

type NotifyConfig struct {
	Webhook string `mapstructure:"webhook"`
	Mention string `mapstructure:"mention"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Tracker     TrackerConfig     `mapstructure:"tracker"`
	Store       StoreConfig       `mapstructure:"store"`
	Definitions DefinitionsConfig `mapstructure:"definitions"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// HTTPTimeout returns the parsed checker pool timeout. Validate guarantees it parses.
func (c *Config) HTTPTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Tracker.HTTPTimeout)
	return d
}

// SyncInterval returns the parsed definitions file sync interval.
func (c *Config) SyncInterval() time.Duration {
	d, _ := time.ParseDuration(c.Definitions.SyncInterval)
	return d
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to read .env file", slog.String("error", err.Error()))
		return nil, err
	}

	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("tracker.concurrency", 0)
	viper.SetDefault("tracker.http_timeout", "2s")
	viper.SetDefault("store.driver", DriverSQLite)
	viper.SetDefault("store.dsn", "uptime.db")
	viper.SetDefault("definitions.file", "")
	viper.SetDefault("definitions.sync_interval", "5m")
	viper.SetDefault("notify.webhook", "")
	viper.SetDefault("notify.mention", "")
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = viper.BindEnv("notify.webhook", "NOTIFY_WEBHOOK", "WEBHOOK")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	return decode()
}

// Watch re-reads the config file whenever it changes and calls fn with every
// revision that passes validation. It is a no-op when no file was loaded.
func Watch(fn func(*Config)) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode()
		if err != nil {
			slog.Warn("ignoring invalid config change", slog.String("file", e.Name))
			return
		}
		slog.Info("config file changed", slog.String("file", e.Name))
		fn(cfg)
	})
	viper.WatchConfig()
}

func decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Tracker,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TrackerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TrackerConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.Concurrency, validation.Min(0)),
					validation.Field(&tc.HTTPTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Store,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StoreConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StoreConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Driver,
						validation.Required,
						validation.In(DriverSQLite, DriverPostgres),
					),
					validation.Field(&sc.DSN, validation.Required),
				)
			}),
		),
		validation.Field(&c.Definitions,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DefinitionsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DefinitionsConfig")
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.SyncInterval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Notify,
			validation.By(func(value interface{}) error {
				nc, ok := value.(NotifyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a NotifyConfig")
				}
				return validation.ValidateStruct(&nc,
					validation.Field(&nc.Webhook, validation.By(validateWebhookURL)),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

// validateWebhookURL accepts an empty value, which disables notifications.
func validateWebhookURL(value interface{}) error {
	webhook, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if webhook == "" {
		return nil
	}

	parsedURL, err := url.Parse(webhook)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
