package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aweist/docket-watcher/scheduler"
)

// Channels the notifier can be built from.
const (
	ChannelDesktop = "desktop"
	ChannelBanner  = "banner"
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

var knownChannels = []string{ChannelDesktop, ChannelBanner, ChannelEmail, ChannelWebhook}

type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Notify    NotifyConfig    `koanf:"notify"`
	Web       WebConfig       `koanf:"web"`
	Log       LogConfig       `koanf:"log"`
}

type StorageConfig struct {
	DBPath      string `koanf:"db_path"`
	ArchivePath string `koanf:"archive_path"`
}

type SchedulerConfig struct {
	Interval time.Duration `koanf:"interval"`
	Slack    time.Duration `koanf:"slack"`
	Timezone string        `koanf:"timezone"`
	Windows  WindowsConfig `koanf:"windows"`
}

// WindowsConfig holds the reminder windows as half-open hour ranges.
type WindowsConfig struct {
	Morning HourRangeConfig `koanf:"morning"`
	Evening HourRangeConfig `koanf:"evening"`
}

type HourRangeConfig struct {
	Start int `koanf:"start"`
	End   int `koanf:"end"`
}

type NotifyConfig struct {
	Timeout  time.Duration `koanf:"timeout"`
	Channels []string      `koanf:"channels"`
	Desktop  DesktopConfig `koanf:"desktop"`
	Email    EmailConfig   `koanf:"email"`
	Webhook  WebhookConfig `koanf:"webhook"`
}

type DesktopConfig struct {
	Permission string `koanf:"permission"` // granted, denied or default
	Title      string `koanf:"title"`
}

type EmailConfig struct {
	SMTPHost   string   `koanf:"smtp_host"`
	SMTPPort   string   `koanf:"smtp_port"`
	Username   string   `koanf:"username"`
	Password   string   `koanf:"password"`
	From       string   `koanf:"from"`
	Recipients []string `koanf:"recipients"`
}

type WebhookConfig struct {
	URL string `koanf:"url"`
}

type WebConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load layers the defaults, the YAML file at configPath (when it exists) and
// DOCKET_ environment variables. Nested keys use a double underscore in the
// environment: DOCKET_SCHEDULER__SLACK=6h.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)
	cfg.Storage.ArchivePath = expandPath(cfg.Storage.ArchivePath)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Notify.Channels = normalizeList(cfg.Notify.Channels)
	cfg.Notify.Email.Recipients = normalizeList(cfg.Notify.Email.Recipients)

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks the configuration, reporting every invalid field.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("storage.db_path", c.Storage.DBPath, required),
		criterio.Run("storage.archive_path", c.Storage.ArchivePath, required),
		criterio.Run("scheduler.interval", c.Scheduler.Interval, positive),
		criterio.Run("scheduler.slack", c.Scheduler.Slack, nonNegative),
		criterio.Run("scheduler.timezone", c.Scheduler.Timezone, validTimezone),
		criterio.Run("scheduler.windows", c.Windows(), scheduler.Windows.Validate),
		criterio.Run("notify.timeout", c.Notify.Timeout, positive),
		criterio.Run("notify.desktop.permission", c.Notify.Desktop.Permission, validPermission),
		c.validateChannels(),
		c.validateWeb(),
		criterio.Run("log.level", c.Log.Level, validLevel),
	)
}

func (c *Config) validateChannels() error {
	var errs criterio.FieldErrorsBuilder

	for i, ch := range c.Notify.Channels {
		if !slices.Contains(knownChannels, ch) {
			errs = errs.Append(fmt.Sprintf("notify.channels[%d]", i),
				fmt.Errorf("unknown channel %q (supported: %s)", ch, strings.Join(knownChannels, ", ")))
		}
	}

	if c.HasChannel(ChannelEmail) {
		email := c.Notify.Email
		if email.SMTPHost == "" {
			errs = errs.Append("notify.email.smtp_host", errors.New("is required when the email channel is enabled"))
		}
		if email.From == "" {
			errs = errs.Append("notify.email.from", errors.New("is required when the email channel is enabled"))
		}
		if len(email.Recipients) == 0 {
			errs = errs.Append("notify.email.recipients", errors.New("is required when the email channel is enabled"))
		}
	}

	if c.HasChannel(ChannelWebhook) {
		if err := validURL(c.Notify.Webhook.URL); err != nil {
			errs = errs.Append("notify.webhook.url", err)
		}
	}

	return errs.ToError()
}

func (c *Config) validateWeb() error {
	if !c.Web.Enabled {
		return nil
	}
	return criterio.Run("web.addr", c.Web.Addr, func(addr string) error {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid listen address %q", addr)
		}
		return nil
	})
}

func (c *Config) HasChannel(name string) bool {
	return slices.Contains(c.Notify.Channels, name)
}

// Windows converts scheduler.windows into the scheduler's hour ranges.
func (c *Config) Windows() scheduler.Windows {
	w := c.Scheduler.Windows
	return scheduler.Windows{
		Morning: scheduler.HourRange{Start: w.Morning.Start, End: w.Morning.End},
		Evening: scheduler.HourRange{Start: w.Evening.Start, End: w.Evening.End},
	}
}

// Location resolves scheduler.timezone. "Local" and "" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Scheduler.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Scheduler.Timezone)
}

func required(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("is required")
	}
	return nil
}

func positive(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func nonNegative(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", d)
	}
	return nil
}

func validTimezone(tz string) error {
	c := Config{Scheduler: SchedulerConfig{Timezone: tz}}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("unknown timezone %q", tz)
	}
	return nil
}

func validPermission(p string) error {
	switch strings.ToLower(p) {
	case "", "granted", "denied", "default":
		return nil
	}
	return fmt.Errorf("must be granted, denied or default, got %q", p)
}

func validLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		return nil
	}
	return fmt.Errorf("unknown log level %q", level)
}

func validURL(raw string) error {
	if raw == "" {
		return errors.New("is required when the webhook channel is enabled")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http(s) URL, got %q", raw)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
