package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/almanac/internal/journal"
	"github.com/starford/almanac/internal/noteservice"
	"github.com/starford/almanac/internal/notify"
	"github.com/starford/almanac/internal/periodic"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App               ApplicationConfig       `yaml:"app"`
	Vault             VaultConfig             `yaml:"vault"`
	SQLite            SQLiteConfig            `yaml:"sqlite"`
	Auth              AuthConfig              `yaml:"auth"`
	VaultManipulation VaultManipulationConfig `yaml:"vault_manipulation"`
	Periodic          PeriodicConfig          `yaml:"periodic"`
	Journal           journal.Config          `yaml:"journal"`
	Notification      NotificationConfig      `yaml:"notification"`
	Reminder          ReminderConfig          `yaml:"reminder"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Periodic.Daily.Validate(); err != nil {
		return fmt.Errorf("periodic.daily: %w", err)
	}
	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if err := c.Notification.Validate(); err != nil {
		return fmt.Errorf("notification: %w", err)
	}
	return c.Reminder.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// Timezone is an IANA zone name used to resolve "today" and reminder
	// times. Empty means the local zone.
	Timezone string `yaml:"timezone"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.By(validZone)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

func validZone(v any) error {
	name, _ := v.(string)
	if name == "" {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return errors.New("unknown time zone")
	}
	return nil
}

// Location returns the configured time zone.
func (c *ApplicationConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds the state database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// VaultManipulationConfig holds vault-wide file handling settings.
type VaultManipulationConfig struct {
	// ReplaceFiles is the journal's replace policy when the journal
	// section does not set its own.
	ReplaceFiles bool `yaml:"replace_files"`
}

// PeriodicConfig groups the periodic note generators.
type PeriodicConfig struct {
	Daily periodic.Config `yaml:"daily"`
}

// NotificationConfig controls where notifications are shown.
type NotificationConfig struct {
	Enabled     bool          `yaml:"enabled"`
	System      bool          `yaml:"system"`
	AppDuration time.Duration `yaml:"app_duration"`
	// Icon is an optional image path for OS notifications.
	Icon string `yaml:"icon"`
}

// Validate validates the notification configuration.
func (c *NotificationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AppDuration, validation.Min(time.Duration(0))),
	)
}

// Settings converts the section to dispatcher settings.
func (c *NotificationConfig) Settings() notify.Settings {
	return notify.Settings{Enabled: c.Enabled, System: c.System, AppDuration: c.AppDuration}
}

// ReminderConfig holds reminder defaults.
type ReminderConfig struct {
	DefaultSnooze time.Duration `yaml:"default_snooze"`
}

// Validate validates the reminder configuration.
func (c *ReminderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultSnooze, validation.Required, validation.Min(time.Second)),
	)
}

// ServiceSettings builds the note service settings from the feature sections.
func (c *Config) ServiceSettings() noteservice.Settings {
	return noteservice.Settings{
		Daily:         c.Periodic.Daily,
		Journal:       c.Journal,
		ReplaceFiles:  c.VaultManipulation.ReplaceFiles,
		Notification:  c.Notification.Settings(),
		DefaultSnooze: c.Reminder.DefaultSnooze,
		Location:      c.App.Location(),
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./almanac.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Periodic: PeriodicConfig{
			Daily: periodic.DefaultConfig(),
		},
		Journal: journal.DefaultConfig(),
		Notification: NotificationConfig{
			Enabled:     true,
			System:      true,
			AppDuration: time.Second,
		},
		Reminder: ReminderConfig{
			DefaultSnooze: noteservice.DefaultSnooze,
		},
	}
}
