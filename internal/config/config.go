// Package config loads dropin settings from defaults, ~/.dropin/config.toml and DROPIN_* env vars.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".dropin"
	envPrefix  = "DROPIN"
)

const (
	CourtsBackendAPI    = "api"
	CourtsBackendMemory = "memory"

	StoreBackendMemory = "memory"
	StoreBackendTOML   = "toml"
	StoreBackendRedis  = "redis"
)

type Config struct {
	Session    SessionConfig
	Settlement SettlementConfig
	Courts     CourtsConfig
	Store      StoreConfig
	Schedule   ScheduleConfig
	HTTP       HTTPConfig
	Log        LogConfig
}

type SessionConfig struct {
	Capacity        int
	RequiredUnits   int
	HoldAmountCents int64
	Location        string
}

type SettlementConfig struct {
	AvailabilityTimeout time.Duration
	ReservationTimeout  time.Duration
}

type CourtsConfig struct {
	Backend        string
	BaseURL        string
	TokenKey       string
	RequestTimeout time.Duration
	MemoryCourts   int
}

type StoreConfig struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

type ScheduleConfig struct {
	Slots    []string
	Cron     string
	Timezone string
}

type HTTPConfig struct {
	Addr      string
	RateLimit float64
	Burst     int
}

type LogConfig struct {
	Level  string
	Format string
}

// Dir is the directory holding the config file, snapshots and file secrets.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, configDir), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("session.capacity", domain.DefaultCapacity)
	v.SetDefault("session.required_units", domain.DefaultRequiredUnits)
	v.SetDefault("session.hold_amount_cents", domain.DefaultHoldAmountCents)
	v.SetDefault("session.location", "Royal Club")

	v.SetDefault("settlement.availability_timeout", 5*time.Second)
	v.SetDefault("settlement.reservation_timeout", 10*time.Second)

	v.SetDefault("courts.backend", CourtsBackendMemory)
	v.SetDefault("courts.base_url", "https://api.royalbadmintonclub.com:4000/api")
	v.SetDefault("courts.token_key", "courts/api-token")
	v.SetDefault("courts.request_timeout", 15*time.Second)
	v.SetDefault("courts.memory_courts", 2)

	v.SetDefault("store.backend", StoreBackendTOML)
	v.SetDefault("store.path", filepath.Join(dir, "sessions.toml"))
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "dropin")

	defaultSlots := make([]string, 0, len(domain.DefaultSlots()))
	for _, slot := range domain.DefaultSlots() {
		defaultSlots = append(defaultSlots, slot.String())
	}
	v.SetDefault("schedule.slots", defaultSlots)
	v.SetDefault("schedule.cron", "0 6 * * *")
	v.SetDefault("schedule.timezone", "Local")

	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.rate_limit", 20.0)
	v.SetDefault("http.burst", 40)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. A missing config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}

	setDefaults(v, dir)
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Session: SessionConfig{
			Capacity:        v.GetInt("session.capacity"),
			RequiredUnits:   v.GetInt("session.required_units"),
			HoldAmountCents: v.GetInt64("session.hold_amount_cents"),
			Location:        v.GetString("session.location"),
		},
		Settlement: SettlementConfig{
			AvailabilityTimeout: v.GetDuration("settlement.availability_timeout"),
			ReservationTimeout:  v.GetDuration("settlement.reservation_timeout"),
		},
		Courts: CourtsConfig{
			Backend:        strings.ToLower(strings.TrimSpace(v.GetString("courts.backend"))),
			BaseURL:        strings.TrimSpace(v.GetString("courts.base_url")),
			TokenKey:       v.GetString("courts.token_key"),
			RequestTimeout: v.GetDuration("courts.request_timeout"),
			MemoryCourts:   v.GetInt("courts.memory_courts"),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(strings.TrimSpace(v.GetString("store.backend"))),
			Path:          v.GetString("store.path"),
			RedisAddr:     v.GetString("store.redis_addr"),
			RedisPassword: v.GetString("store.redis_password"),
			RedisDB:       v.GetInt("store.redis_db"),
			RedisPrefix:   v.GetString("store.redis_prefix"),
		},
		Schedule: ScheduleConfig{
			Slots:    v.GetStringSlice("schedule.slots"),
			Cron:     v.GetString("schedule.cron"),
			Timezone: v.GetString("schedule.timezone"),
		},
		HTTP: HTTPConfig{
			Addr:      v.GetString("http.addr"),
			RateLimit: v.GetFloat64("http.rate_limit"),
			Burst:     v.GetInt("http.burst"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Session.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("session.capacity must be positive, got %d", c.Session.Capacity))
	}
	if c.Session.RequiredUnits <= 0 {
		errs = append(errs, fmt.Errorf("session.required_units must be positive, got %d", c.Session.RequiredUnits))
	}
	if c.Session.HoldAmountCents < 0 {
		errs = append(errs, fmt.Errorf("session.hold_amount_cents must not be negative"))
	}
	if c.Settlement.AvailabilityTimeout <= 0 || c.Settlement.ReservationTimeout <= 0 {
		errs = append(errs, errors.New("settlement timeouts must be positive"))
	}

	switch c.Courts.Backend {
	case CourtsBackendMemory:
		if c.Courts.MemoryCourts < 0 {
			errs = append(errs, fmt.Errorf("courts.memory_courts must not be negative"))
		}
	case CourtsBackendAPI:
		if err := validateBaseURL(c.Courts.BaseURL); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported courts.backend %q", c.Courts.Backend))
	}

	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendTOML:
		if strings.TrimSpace(c.Store.Path) == "" {
			errs = append(errs, errors.New("store.path is empty"))
		}
	case StoreBackendRedis:
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			errs = append(errs, errors.New("store.redis_addr is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.backend %q", c.Store.Backend))
	}

	if _, err := c.Schedule.ParsedSlots(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Schedule.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.Burst < 0 {
		errs = append(errs, errors.New("http rate limit and burst must not be negative"))
	}

	return errors.Join(errs...)
}

func (s ScheduleConfig) ParsedSlots() ([]domain.Slot, error) {
	slots, err := domain.ParseSlots(s.Slots)
	if err != nil {
		return nil, fmt.Errorf("schedule.slots: %w", err)
	}
	return slots, nil
}

func (s ScheduleConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

func validateBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("courts.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("courts.base_url must use http or https, got %q", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("courts.base_url has no host: %q", raw)
	}
	return nil
}
