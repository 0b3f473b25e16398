package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// MaxPreviousDays bounds the look-back window fetched around a month.
const MaxPreviousDays = 28

// RedmineConfig holds the connection settings for the Redmine server.
type RedmineConfig struct {
	// BaseURL is the root URL of the Redmine instance.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// APIKey is optional; the keyring is preferred.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// ReadOnly turns every create/update/delete into a logged no-op.
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// PreviousDays is the look-back window in days, clamped to [0,28].
	PreviousDays int `mapstructure:"previous_days" yaml:"previous_days"`
}

// ScheduleConfig holds expected working hours per weekday name.
type ScheduleConfig struct {
	Hours map[string]float64 `mapstructure:"hours" yaml:"hours"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// AuditConfig locates the SQLite journal of mutating calls.
// An empty Path disables the journal.
type AuditConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Redmine  RedmineConfig  `mapstructure:"redmine" yaml:"redmine"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
}

// ConfigDir returns ~/.config/redtime, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "redtime")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func defaultWeekHours() map[string]float64 {
	return map[string]float64{
		"monday":    8,
		"tuesday":   8,
		"wednesday": 8,
		"thursday":  8,
		"friday":    8,
		"saturday":  0,
		"sunday":    0,
	}
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Redmine: RedmineConfig{
			PreviousDays: 7,
		},
		Schedule: ScheduleConfig{Hours: defaultWeekHours()},
		Log:      LogConfig{Level: "info"},
		Audit:    AuditConfig{Path: filepath.Join(ConfigDir(), "audit.db")},
	}
}

// ClampPreviousDays bounds n to [0, MaxPreviousDays].
func ClampPreviousDays(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxPreviousDays {
		return MaxPreviousDays
	}
	return n
}

// LoadConfig reads configuration from the YAML file at path. A missing
// file yields the defaults. REDTIME_* environment variables override
// file values (REDTIME_REDMINE_BASE_URL, REDTIME_REDMINE_READ_ONLY, ...).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("redtime")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultAppConfig()
	v.SetDefault("redmine.base_url", "")
	v.SetDefault("redmine.api_key", "")
	v.SetDefault("redmine.read_only", false)
	v.SetDefault("redmine.previous_days", def.Redmine.PreviousDays)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("audit.path", def.Audit.Path)

	cfg := def
	cfg.Schedule.Hours = nil
	if err := v.ReadInConfig(); err != nil {
		_, missingFile := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !missingFile && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Redmine.BaseURL = strings.TrimRight(cfg.Redmine.BaseURL, "/")
	cfg.Redmine.PreviousDays = ClampPreviousDays(cfg.Redmine.PreviousDays)
	if len(cfg.Schedule.Hours) == 0 {
		cfg.Schedule.Hours = defaultWeekHours()
	}

	return cfg, nil
}

// SaveConfig writes cfg as YAML to path, creating parent directories.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("redmine.base_url", cfg.Redmine.BaseURL)
	v.Set("redmine.read_only", cfg.Redmine.ReadOnly)
	v.Set("redmine.previous_days", ClampPreviousDays(cfg.Redmine.PreviousDays))
	if cfg.Redmine.APIKey != "" {
		v.Set("redmine.api_key", cfg.Redmine.APIKey)
	}
	v.Set("schedule.hours", cfg.Schedule.Hours)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("audit.path", cfg.Audit.Path)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
