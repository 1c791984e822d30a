package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/example/church-agenda/internal/logging"
)

// ICSSource names one external iCalendar feed.
type ICSSource struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// Config captures the settings of the agenda service.
type Config struct {
	HTTPPort     int
	SQLiteDSN    string
	Location     *time.Location
	CalendarName string
	PublicDomain string
	LogLevel     slog.Level

	ICSSources    []ICSSource
	ICSTimeout    time.Duration
	ICSPastDays   int
	ICSFutureDays int

	// APITokens maps actor ids to argon2id hashes of their token secret.
	APITokens map[string]string
	// Categories maps category names to display colors.
	Categories map[string]string

	ViewIdleTTL      time.Duration
	ViewReapSchedule string
}

// fileConfig is the optional YAML layer named by AGENDA_CONFIG_FILE.
type fileConfig struct {
	HTTPPort     int               `yaml:"http_port"`
	SQLiteDSN    string            `yaml:"sqlite_dsn"`
	Timezone     string            `yaml:"timezone"`
	CalendarName string            `yaml:"calendar_name"`
	PublicDomain string            `yaml:"public_domain"`
	LogLevel     string            `yaml:"log_level"`
	Categories   map[string]string `yaml:"categories"`
	APITokens    map[string]string `yaml:"api_tokens"`
	ICS          struct {
		Timeout    string      `yaml:"timeout"`
		PastDays   *int        `yaml:"past_days"`
		FutureDays *int        `yaml:"future_days"`
		Sources    []ICSSource `yaml:"sources"`
	} `yaml:"ics"`
	View struct {
		IdleTTL      string `yaml:"idle_ttl"`
		ReapSchedule string `yaml:"reap_schedule"`
	} `yaml:"view"`
}

func defaults() Config {
	return Config{
		HTTPPort:         8080,
		SQLiteDSN:        "agenda.db",
		Location:         time.UTC,
		CalendarName:     "Agenda",
		PublicDomain:     "agenda.local",
		LogLevel:         slog.LevelInfo,
		ICSTimeout:       10 * time.Second,
		ICSPastDays:      31,
		ICSFutureDays:    186,
		APITokens:        map[string]string{},
		Categories:       map[string]string{},
		ViewIdleTTL:      30 * time.Minute,
		ViewReapSchedule: "@every 5m",
	}
}

// Load reads the optional YAML file named by AGENDA_CONFIG_FILE and then the
// AGENDA_* environment variables, which take precedence. Every invalid value
// is reported in one error.
func Load() (Config, error) {
	return load(os.Getenv)
}

// LoadFile behaves like Load but reads the YAML file at path instead of the
// one named by AGENDA_CONFIG_FILE.
func LoadFile(path string) (Config, error) {
	return load(func(key string) string {
		if key == "AGENDA_CONFIG_FILE" {
			return path
		}
		return os.Getenv(key)
	})
}

func load(getenv func(string) string) (Config, error) {
	cfg := defaults()
	invalid := make([]string, 0, 2)

	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if path := env("AGENDA_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path, &invalid); err != nil {
			return Config{}, err
		}
	}

	if value := env("AGENDA_HTTP_PORT"); value != "" {
		if port, err := strconv.Atoi(value); err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "AGENDA_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if dsn := env("AGENDA_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if name := env("AGENDA_TIMEZONE"); name != "" {
		if loc, err := time.LoadLocation(name); err != nil {
			invalid = append(invalid, "AGENDA_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}
	if value := env("AGENDA_LOG_LEVEL"); value != "" {
		if level, err := logging.ParseLevel(value); err != nil {
			invalid = append(invalid, "AGENDA_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}
	if name := env("AGENDA_CALENDAR_NAME"); name != "" {
		cfg.CalendarName = name
	}
	if value := env("AGENDA_ICS_URLS"); value != "" {
		if sources, ok := parseSources(value); !ok {
			invalid = append(invalid, "AGENDA_ICS_URLS")
		} else {
			cfg.ICSSources = sources
		}
	}
	if value := env("AGENDA_ICS_TIMEOUT"); value != "" {
		if timeout, ok := parsePositiveDuration(value); !ok {
			invalid = append(invalid, "AGENDA_ICS_TIMEOUT")
		} else {
			cfg.ICSTimeout = timeout
		}
	}
	if value := env("AGENDA_ICS_PAST_DAYS"); value != "" {
		if days, err := strconv.Atoi(value); err != nil || days < 0 {
			invalid = append(invalid, "AGENDA_ICS_PAST_DAYS")
		} else {
			cfg.ICSPastDays = days
		}
	}
	if value := env("AGENDA_ICS_FUTURE_DAYS"); value != "" {
		if days, err := strconv.Atoi(value); err != nil || days < 0 {
			invalid = append(invalid, "AGENDA_ICS_FUTURE_DAYS")
		} else {
			cfg.ICSFutureDays = days
		}
	}
	if value := env("AGENDA_API_TOKENS"); value != "" {
		if tokens, ok := parsePairs(value, ";"); !ok {
			invalid = append(invalid, "AGENDA_API_TOKENS")
		} else {
			cfg.APITokens = tokens
		}
	}
	if value := env("AGENDA_VIEW_IDLE_TTL"); value != "" {
		if ttl, ok := parsePositiveDuration(value); !ok {
			invalid = append(invalid, "AGENDA_VIEW_IDLE_TTL")
		} else {
			cfg.ViewIdleTTL = ttl
		}
	}
	if value := env("AGENDA_VIEW_REAP_SCHEDULE"); value != "" {
		cfg.ViewReapSchedule = value
	}
	if _, err := cron.ParseStandard(cfg.ViewReapSchedule); err != nil {
		invalid = append(invalid, "AGENDA_VIEW_REAP_SCHEDULE")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// RequireAPITokens reports an error when no actor can authenticate.
func (c Config) RequireAPITokens() error {
	if len(c.APITokens) == 0 {
		return fmt.Errorf("必須の環境変数が設定されていません: AGENDA_API_TOKENS")
	}
	return nil
}

// Actors lists the configured actor ids in sorted order.
func (c Config) Actors() []string {
	actors := make([]string, 0, len(c.APITokens))
	for actor := range c.APITokens {
		actors = append(actors, actor)
	}
	sort.Strings(actors)
	return actors
}

func applyFile(cfg *Config, path string, invalid *[]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if file.HTTPPort != 0 {
		cfg.HTTPPort = file.HTTPPort
	}
	if file.SQLiteDSN != "" {
		cfg.SQLiteDSN = file.SQLiteDSN
	}
	if file.Timezone != "" {
		if loc, err := time.LoadLocation(file.Timezone); err != nil {
			*invalid = append(*invalid, "timezone")
		} else {
			cfg.Location = loc
		}
	}
	if file.CalendarName != "" {
		cfg.CalendarName = file.CalendarName
	}
	if file.PublicDomain != "" {
		cfg.PublicDomain = file.PublicDomain
	}
	if file.LogLevel != "" {
		if level, err := logging.ParseLevel(file.LogLevel); err != nil {
			*invalid = append(*invalid, "log_level")
		} else {
			cfg.LogLevel = level
		}
	}
	for category, color := range file.Categories {
		cfg.Categories[category] = color
	}
	for actor, hash := range file.APITokens {
		cfg.APITokens[actor] = hash
	}
	if file.ICS.Timeout != "" {
		if timeout, ok := parsePositiveDuration(file.ICS.Timeout); !ok {
			*invalid = append(*invalid, "ics.timeout")
		} else {
			cfg.ICSTimeout = timeout
		}
	}
	if file.ICS.PastDays != nil {
		cfg.ICSPastDays = *file.ICS.PastDays
	}
	if file.ICS.FutureDays != nil {
		cfg.ICSFutureDays = *file.ICS.FutureDays
	}
	for _, source := range file.ICS.Sources {
		if strings.TrimSpace(source.ID) == "" || strings.TrimSpace(source.URL) == "" {
			*invalid = append(*invalid, "ics.sources")
			break
		}
		cfg.ICSSources = append(cfg.ICSSources, source)
	}
	if file.View.IdleTTL != "" {
		if ttl, ok := parsePositiveDuration(file.View.IdleTTL); !ok {
			*invalid = append(*invalid, "view.idle_ttl")
		} else {
			cfg.ViewIdleTTL = ttl
		}
	}
	if file.View.ReapSchedule != "" {
		cfg.ViewReapSchedule = file.View.ReapSchedule
	}
	return nil
}

// parseSources reads "id=url,id=url". Ids must be unique.
func parseSources(value string) ([]ICSSource, bool) {
	pairs, ok := parsePairs(value, ",")
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(pairs))
	for id := range pairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	sources := make([]ICSSource, 0, len(ids))
	for _, id := range ids {
		sources = append(sources, ICSSource{ID: id, URL: pairs[id]})
	}
	return sources, true
}

// parsePairs reads key=value pairs split by sep. Values may contain "=".
func parsePairs(value, sep string) (map[string]string, bool) {
	out := make(map[string]string)
	for _, item := range strings.Split(value, sep) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, val, ok := strings.Cut(item, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			return nil, false
		}
		if _, dup := out[key]; dup {
			return nil, false
		}
		out[key] = val
	}
	return out, len(out) > 0
}

func parsePositiveDuration(value string) (time.Duration, bool) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
