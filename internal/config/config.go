package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"untisbot/internal/timetable"
	"untisbot/internal/webhook"
)

// ICSConfig describes a single holiday ICS subscription.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// UntisConfig holds the WebUntis account the bot reads.
type UntisConfig struct {
	// Server is the WebUntis host, e.g. "neilo.webuntis.com".
	Server   string `yaml:"server" json:"server"`
	School   string `yaml:"school" json:"school"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	// Identity is sent as the client name. Empty means a random UUID per run.
	Identity string `yaml:"identity" json:"identity"`
}

// WebhookConfig selects the chat endpoint reports are posted to.
type WebhookConfig struct {
	// Kind is "discord" (default) or "slack".
	Kind      string `yaml:"kind" json:"kind"`
	URL       string `yaml:"url" json:"-"`
	Username  string `yaml:"username" json:"username"`
	AvatarURL string `yaml:"avatar_url" json:"avatar_url"`
}

// HolidayConfig controls how holidays are detected.
type HolidayConfig struct {
	// Untis enables the WebUntis getHolidays lookup.
	Untis bool `yaml:"untis" json:"untis"`
	// ICS lists additional holiday calendars. All-day events count as holidays.
	ICS []ICSConfig `yaml:"ics" json:"ics"`
	// CacheDir stores fetched ICS bodies for offline fallback.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the `serve` command.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the school day is evaluated in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Language picks the report labels: "de" or "en".
	Language string `yaml:"language" json:"language"`

	// Schedule is a standard 5-field cron expression for report runs.
	Schedule string `yaml:"schedule" json:"schedule"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Untis    UntisConfig    `yaml:"untis" json:"untis"`
	Webhook  WebhookConfig  `yaml:"webhook" json:"webhook"`
	Holidays HolidayConfig  `yaml:"holidays" json:"holidays"`
	Grid     timetable.Grid `yaml:"grid" json:"grid"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "Europe/Berlin"
	defaultSchedule = "30 6 * * 1-5"
	defaultCacheDir = "/var/cache/untisbot"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		Language: string(timetable.German),
		Schedule: defaultSchedule,
		LogLevel: "info",
		Webhook: WebhookConfig{
			Kind:     webhook.KindDiscord,
			Username: "Stundenplan",
		},
		Holidays: HolidayConfig{
			Untis:    true,
			ICS:      []ICSConfig{},
			CacheDir: defaultCacheDir,
		},
		Grid: timetable.DefaultGrid(),
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language == "" {
		c.Language = string(timetable.German)
	}
	if c.Schedule == "" {
		c.Schedule = defaultSchedule
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Webhook.Kind = strings.ToLower(strings.TrimSpace(c.Webhook.Kind))
	if c.Webhook.Kind == "" {
		c.Webhook.Kind = webhook.KindDiscord
	}
	if c.Holidays.ICS == nil {
		c.Holidays.ICS = []ICSConfig{}
	}
	for i := range c.Holidays.ICS {
		if c.Holidays.ICS[i].ID == "" {
			c.Holidays.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
	}
	if c.Holidays.CacheDir == "" {
		c.Holidays.CacheDir = defaultCacheDir
	}
	if len(c.Grid) == 0 {
		c.Grid = timetable.DefaultGrid()
	}
}

// Validate reports configuration errors that would make a run fail later.
// Missing credentials are not checked here; they may arrive via ApplyEnv.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	switch timetable.Language(c.Language) {
	case timetable.German, timetable.English:
	default:
		errs = append(errs, fmt.Errorf("language %q: want de or en", c.Language))
	}
	switch c.Webhook.Kind {
	case webhook.KindDiscord, webhook.KindSlack:
	default:
		errs = append(errs, fmt.Errorf("webhook kind %q: want discord or slack", c.Webhook.Kind))
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule %q: %w", c.Schedule, err))
	}
	if err := c.Grid.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("grid: %w", err))
	}
	for _, src := range c.Holidays.ICS {
		if src.URL == "" {
			errs = append(errs, fmt.Errorf("holiday feed %q: url is empty", src.ID))
		}
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone, or time.Local if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Environment variables that override the file.
const (
	EnvUntisServer   = "UNTIS_SERVER"
	EnvUntisSchool   = "UNTIS_SCHOOL"
	EnvUntisUsername = "UNTIS_USERNAME"
	EnvUntisPassword = "UNTIS_PASSWORD"
	EnvWebhookURL    = "WEBHOOK_URL"
	EnvWebhookKind   = "WEBHOOK_KIND"
)

// ApplyEnv overrides credentials and webhook settings from the environment.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Untis.Server, EnvUntisServer)
	set(&c.Untis.School, EnvUntisSchool)
	set(&c.Untis.Username, EnvUntisUsername)
	set(&c.Untis.Password, EnvUntisPassword)
	set(&c.Webhook.URL, EnvWebhookURL)
	set(&c.Webhook.Kind, EnvWebhookKind)
	c.Webhook.Kind = strings.ToLower(c.Webhook.Kind)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
// The parent directory is created with 0700 if missing.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".untisbot-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
