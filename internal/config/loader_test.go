package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		t.Parallel()

		cfg, err := load(envMap(nil))
		if err != nil {
			t.Fatalf("load returned error: %v", err)
		}
		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "agenda.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC, got %v", cfg.Location)
		}
		if cfg.ICSTimeout != 10*time.Second || cfg.ICSPastDays != 31 || cfg.ICSFutureDays != 186 {
			t.Fatalf("unexpected ICS defaults: %v %d %d", cfg.ICSTimeout, cfg.ICSPastDays, cfg.ICSFutureDays)
		}
		if cfg.ViewIdleTTL != 30*time.Minute || cfg.ViewReapSchedule != "@every 5m" {
			t.Fatalf("unexpected view defaults: %v %q", cfg.ViewIdleTTL, cfg.ViewReapSchedule)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("expected info log level, got %v", cfg.LogLevel)
		}
		if err := cfg.RequireAPITokens(); err == nil {
			t.Fatalf("expected missing token error")
		}
	})

	t.Run("parses every variable", func(t *testing.T) {
		t.Parallel()

		cfg, err := load(envMap(map[string]string{
			"AGENDA_HTTP_PORT":          "9090",
			"AGENDA_SQLITE_DSN":         "/var/lib/agenda/agenda.db",
			"AGENDA_TIMEZONE":           "Etc/GMT-1",
			"AGENDA_ICS_URLS":           "personal=https://example.com/a.ics?x=1, church=https://example.com/b.ics",
			"AGENDA_ICS_TIMEOUT":        "3s",
			"AGENDA_ICS_PAST_DAYS":      "7",
			"AGENDA_ICS_FUTURE_DAYS":    "60",
			"AGENDA_API_TOKENS":         "pastor=$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA;secretary=$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			"AGENDA_VIEW_IDLE_TTL":      "10m",
			"AGENDA_VIEW_REAP_SCHEDULE": "*/2 * * * *",
			"AGENDA_LOG_LEVEL":          "debug",
		}))
		if err != nil {
			t.Fatalf("load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "/var/lib/agenda/agenda.db" {
			t.Fatalf("unexpected port or dsn: %d %q", cfg.HTTPPort, cfg.SQLiteDSN)
		}
		if cfg.Location.String() != "Etc/GMT-1" {
			t.Fatalf("unexpected location %v", cfg.Location)
		}
		if len(cfg.ICSSources) != 2 || cfg.ICSSources[0].ID != "church" || cfg.ICSSources[1].URL != "https://example.com/a.ics?x=1" {
			t.Fatalf("unexpected sources %#v", cfg.ICSSources)
		}
		if cfg.ICSTimeout != 3*time.Second || cfg.ICSPastDays != 7 || cfg.ICSFutureDays != 60 {
			t.Fatalf("unexpected ICS settings")
		}
		if actors := cfg.Actors(); len(actors) != 2 || actors[0] != "pastor" || actors[1] != "secretary" {
			t.Fatalf("unexpected actors %v", actors)
		}
		if !strings.HasPrefix(cfg.APITokens["pastor"], "$argon2id$v=19$m=65536,t=3,p=2$") {
			t.Fatalf("token hash was truncated: %q", cfg.APITokens["pastor"])
		}
		if err := cfg.RequireAPITokens(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ViewIdleTTL != 10*time.Minute || cfg.ViewReapSchedule != "*/2 * * * *" {
			t.Fatalf("unexpected view settings")
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("unexpected log level %v", cfg.LogLevel)
		}
	})

	t.Run("reports every invalid value together", func(t *testing.T) {
		t.Parallel()

		_, err := load(envMap(map[string]string{
			"AGENDA_HTTP_PORT":          "eighty",
			"AGENDA_TIMEZONE":           "Mars/Olympus",
			"AGENDA_ICS_URLS":           "missing-url",
			"AGENDA_ICS_TIMEOUT":        "-1s",
			"AGENDA_VIEW_REAP_SCHEDULE": "whenever",
			"AGENDA_LOG_LEVEL":          "chatty",
		}))
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"AGENDA_HTTP_PORT", "AGENDA_TIMEZONE", "AGENDA_ICS_URLS", "AGENDA_ICS_TIMEOUT", "AGENDA_VIEW_REAP_SCHEDULE", "AGENDA_LOG_LEVEL"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("error %q does not mention %s", err.Error(), key)
			}
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agenda.yaml")
	content := `
http_port: 7000
calendar_name: Grace Church
timezone: Etc/GMT-2
categories:
  choir: "#6a1b9a"
api_tokens:
  pastor: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"
ics:
  timeout: 4s
  past_days: 3
  sources:
    - id: google
      url: https://calendar.example.com/basic.ics
view:
  idle_ttl: 45m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := load(envMap(map[string]string{
		"AGENDA_CONFIG_FILE": path,
		"AGENDA_HTTP_PORT":   "7100",
	}))
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.HTTPPort != 7100 {
		t.Fatalf("environment must override the file, got %d", cfg.HTTPPort)
	}
	if cfg.CalendarName != "Grace Church" || cfg.Categories["choir"] != "#6a1b9a" {
		t.Fatalf("file values not applied: %#v", cfg)
	}
	if cfg.Location.String() != "Etc/GMT-2" {
		t.Fatalf("unexpected location %v", cfg.Location)
	}
	if len(cfg.ICSSources) != 1 || cfg.ICSSources[0].ID != "google" {
		t.Fatalf("unexpected sources %#v", cfg.ICSSources)
	}
	if cfg.ICSTimeout != 4*time.Second || cfg.ICSPastDays != 3 || cfg.ICSFutureDays != 186 {
		t.Fatalf("unexpected ICS settings %v %d %d", cfg.ICSTimeout, cfg.ICSPastDays, cfg.ICSFutureDays)
	}
	if cfg.ViewIdleTTL != 45*time.Minute {
		t.Fatalf("unexpected idle ttl %v", cfg.ViewIdleTTL)
	}
	if _, ok := cfg.APITokens["pastor"]; !ok {
		t.Fatalf("expected token from file")
	}
}

func TestLoader_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("AGENDA_HTTP_PORT", "9191")
	t.Setenv("AGENDA_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 9191 {
		t.Fatalf("expected HTTP port 9191, got %d", cfg.HTTPPort)
	}
}

func TestLoader_MissingConfigFile(t *testing.T) {
	t.Parallel()

	if _, err := load(envMap(map[string]string{"AGENDA_CONFIG_FILE": filepath.Join(t.TempDir(), "missing.yaml")})); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoader_LoadFileOverridesConfigFileVariable(t *testing.T) {
	t.Setenv("AGENDA_CONFIG_FILE", filepath.Join(t.TempDir(), "ignored.yaml"))
	t.Setenv("AGENDA_HTTP_PORT", "")

	path := filepath.Join(t.TempDir(), "agenda.yaml")
	if err := os.WriteFile(path, []byte("http_port: 7300\nlog_level: warn\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if cfg.HTTPPort != 7300 {
		t.Fatalf("expected HTTP port from file, got %d", cfg.HTTPPort)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Fatalf("expected warn level from file, got %v", cfg.LogLevel)
	}
}
