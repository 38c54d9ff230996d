// Package config loads service settings from defaults, an optional YAML file,
// a local .env file and SHIFTBOT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Data          DataConfig          `mapstructure:"data"`
	Timezone      string              `mapstructure:"timezone"`
	Log           LogConfig           `mapstructure:"log"`
	Reminders     RemindersConfig     `mapstructure:"reminders"`
	Sweeps        SweepsConfig        `mapstructure:"sweeps"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// DataConfig locates persistent data.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RemindersConfig holds reminder defaults and misfire windows.
type RemindersConfig struct {
	DefaultLead    string        `mapstructure:"default_lead"`
	EventGrace     time.Duration `mapstructure:"event_grace"`
	ClassGrace     time.Duration `mapstructure:"class_grace"`
	FiredRetention time.Duration `mapstructure:"fired_retention"`
}

// SweepsConfig holds the cron specs, with a leading seconds field.
type SweepsConfig struct {
	DailyCron   string `mapstructure:"daily_cron"`
	NightlyCron string `mapstructure:"nightly_cron"`
}

// HomeAssistantConfig enables delivery through a Home Assistant notify service.
type HomeAssistantConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	Token           string        `mapstructure:"token"`
	SupervisorToken string        `mapstructure:"supervisor_token"`
	NotifyService   string        `mapstructure:"notify_service"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// EnvPrefix prefixes every environment override, e.g. SHIFTBOT_DATA_DIR.
const EnvPrefix = "SHIFTBOT"

// Load reads configuration. Precedence: environment > config file > defaults.
// An empty path searches ./config.yaml and ./config/config.yaml.
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("server.addr", ":8099")
	v.SetDefault("server.static_dir", "./static")
	v.SetDefault("data.dir", "/data")
	v.SetDefault("timezone", "Europe/Chisinau")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("reminders.default_lead", "30m")
	v.SetDefault("reminders.event_grace", "1h")
	v.SetDefault("reminders.class_grace", "30m")
	v.SetDefault("reminders.fired_retention", "48h")

	v.SetDefault("sweeps.daily_cron", "0 5 0 * * *")
	v.SetDefault("sweeps.nightly_cron", "0 0 20 * * *")

	v.SetDefault("homeassistant.enabled", false)
	v.SetDefault("homeassistant.url", "http://supervisor/core")
	v.SetDefault("homeassistant.token", "")
	v.SetDefault("homeassistant.supervisor_token", "")
	v.SetDefault("homeassistant.notify_service", "notify")
	v.SetDefault("homeassistant.timeout", "30s")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The add-on supervisor injects its token without our prefix.
	v.BindEnv("homeassistant.supervisor_token", EnvPrefix+"_HOMEASSISTANT_SUPERVISOR_TOKEN", "SUPERVISOR_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// cronParser accepts the same specs as the sweep scheduler.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks every key and reports all problems together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Data.Dir == "" {
		errs = append(errs, errors.New("data.dir must not be empty"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}

	durations := map[string]time.Duration{
		"reminders.event_grace":     c.Reminders.EventGrace,
		"reminders.class_grace":     c.Reminders.ClassGrace,
		"reminders.fired_retention": c.Reminders.FiredRetention,
	}
	for key, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	for key, spec := range map[string]string{
		"sweeps.daily_cron":   c.Sweeps.DailyCron,
		"sweeps.nightly_cron": c.Sweeps.NightlyCron,
	} {
		if _, err := cronParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", key, spec, err))
		}
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}

	if c.HomeAssistant.Enabled {
		if c.HomeAssistant.URL == "" {
			errs = append(errs, errors.New("homeassistant.url is required when enabled"))
		}
		if c.HomeAssistant.Token == "" && c.HomeAssistant.SupervisorToken == "" {
			errs = append(errs, errors.New("homeassistant.token or homeassistant.supervisor_token is required when enabled"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured default timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
