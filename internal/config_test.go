package internal

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/almanac/internal/vault"
	pkgconfig "github.com/starford/almanac/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfig_FeatureSectionsValidated(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"daily reminder time", func(c *Config) { c.Periodic.Daily.ReminderOn = true; c.Periodic.Daily.ReminderTime = "25:00" }},
		{"daily replace policy", func(c *Config) { c.Periodic.Daily.ReplacePolicy = vault.Policy("sometimes") }},
		{"journal reminder time", func(c *Config) { c.Journal.ReminderTime = "9pm" }},
		{"negative app duration", func(c *Config) { c.Notification.AppDuration = -time.Second }},
		{"zero snooze", func(c *Config) { c.Reminder.DefaultSnooze = 0 }},
		{"unknown zone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApplicationConfig_Location(t *testing.T) {
	cfg := ApplicationConfig{Timezone: "Europe/Berlin"}
	if got := cfg.Location().String(); got != "Europe/Berlin" {
		t.Errorf("location = %s", got)
	}
	if (&ApplicationConfig{}).Location() != time.Local {
		t.Error("empty timezone should be local")
	}
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "periodic:\n  daily:\n    dir_path: Daily\njournal:\n  create_dailies: false\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Periodic.Daily.DirPath != "Daily" {
		t.Errorf("dir_path = %q", cfg.Periodic.Daily.DirPath)
	}
	if cfg.Periodic.Daily.NamingFormat != "Do ddd MMM YY" {
		t.Errorf("naming format lost its default: %q", cfg.Periodic.Daily.NamingFormat)
	}
	if cfg.Journal.CreateDailies {
		t.Error("create_dailies not applied")
	}
	if cfg.Journal.ReminderTime != "2300" {
		t.Errorf("journal reminder time = %q", cfg.Journal.ReminderTime)
	}
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	want := NewDefaultConfig()
	replace := true
	want.Journal.Replace = &replace
	want.Journal.HomeNotePath = "Home.md"
	want.App.Timezone = "UTC"
	want.Reminder.DefaultSnooze = 15 * time.Minute

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := pkgconfig.Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := NewDefaultConfig()
	if err := pkgconfig.Load(path, got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestServiceSettings(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.VaultManipulation.ReplaceFiles = true
	cfg.Notification.System = false
	cfg.App.Timezone = "UTC"

	s := cfg.ServiceSettings()
	if !s.ReplaceFiles || s.Notification.System || !s.Notification.Enabled {
		t.Errorf("settings = %+v", s)
	}
	if s.Location != time.UTC {
		t.Errorf("location = %v", s.Location)
	}
	if s.DefaultSnooze != cfg.Reminder.DefaultSnooze {
		t.Errorf("snooze = %s", s.DefaultSnooze)
	}
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg := &Config{}
	if err := pkgconfig.Load(filepath.Join("..", "config", "config.yaml"), cfg); err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	if want := NewDefaultConfig(); !reflect.DeepEqual(cfg, want) {
		t.Errorf("shipped config drifted from defaults:\n got %+v\nwant %+v", cfg, want)
	}
}
