package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines server and gateway configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DB         DBConfig         `yaml:"db"`
	Log        LogConfig        `yaml:"log"`
	Transport  TransportConfig  `yaml:"transport"`
	Auth       AuthConfig       `yaml:"auth"`
	Profile    ProfileConfig    `yaml:"profile"`
	Plan       PlanConfig       `yaml:"plan"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Generation GenerationConfig `yaml:"generation"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type TransportConfig struct {
	// Mode is "http" or "stdio".
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ProfileConfig struct {
	// Local is the profile used when auth is off.
	Local string `yaml:"local"`
}

type PlanConfig struct {
	// Override forces every profile onto a tier, for QA.
	Override string `yaml:"override"`
}

type CalendarConfig struct {
	// Timezone names the IANA location whose midnight starts a new usage day.
	// Empty means the host's local time.
	Timezone string `yaml:"timezone"`
}

type GenerationConfig struct {
	BaseURL       string        `yaml:"base_url"`
	InterpretPath string        `yaml:"interpret_path"`
	ImagePath     string        `yaml:"image_path"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

type GatewayConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	TextModel  string        `yaml:"text_model"`
	ImageModel string        `yaml:"image_model"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	Timeout    time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "reverie.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Profile: ProfileConfig{
			Local: "local",
		},
		Generation: GenerationConfig{
			InterpretPath: "/api/interpret",
			ImagePath:     "/api/generate-image",
			Timeout:       20 * time.Second,
			Burst:         1,
		},
		Gateway: GatewayConfig{
			Host:       "0.0.0.0",
			Port:       8787,
			TextModel:  "gemini-2.5-flash",
			ImageModel: "imagen-3.0-generate-002",
			CacheTTL:   30 * time.Minute,
			Timeout:    60 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "reverie",
		},
	}
}

// Load reads configuration from an optional .env file, an optional YAML
// file and environment variables, in increasing precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()

	if path := os.Getenv("REVERIE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	if c.Profile.Local == "" {
		return fmt.Errorf("local profile must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the calendar timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Calendar.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = n
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = b
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = d
		return nil
	}

	str("REVERIE_SERVER_HOST", &cfg.Server.Host)
	str("REVERIE_DB_PATH", &cfg.DB.Path)
	str("REVERIE_LOG_LEVEL", &cfg.Log.Level)
	str("REVERIE_LOG_PATH", &cfg.Log.Path)
	str("REVERIE_TRANSPORT_MODE", &cfg.Transport.Mode)
	str("REVERIE_PROFILE", &cfg.Profile.Local)
	str("REVERIE_PLAN_OVERRIDE", &cfg.Plan.Override)
	str("REVERIE_TIMEZONE", &cfg.Calendar.Timezone)
	str("REVERIE_GENERATION_URL", &cfg.Generation.BaseURL)
	str("REVERIE_GATEWAY_HOST", &cfg.Gateway.Host)
	str("GEMINI_API_KEY", &cfg.Gateway.APIKey)
	str("REVERIE_GATEWAY_API_KEY", &cfg.Gateway.APIKey)
	str("REVERIE_GATEWAY_TEXT_MODEL", &cfg.Gateway.TextModel)
	str("REVERIE_GATEWAY_IMAGE_MODEL", &cfg.Gateway.ImageModel)
	str("REVERIE_METRICS_NAMESPACE", &cfg.Metrics.Namespace)

	for _, fn := range []func() error{
		func() error { return integer("REVERIE_SERVER_PORT", &cfg.Server.Port) },
		func() error { return integer("REVERIE_GENERATION_BURST", &cfg.Generation.Burst) },
		func() error { return integer("REVERIE_GATEWAY_PORT", &cfg.Gateway.Port) },
		func() error { return boolean("REVERIE_AUTH_ENABLED", &cfg.Auth.Enabled) },
		func() error { return boolean("REVERIE_METRICS_ENABLED", &cfg.Metrics.Enabled) },
		func() error { return duration("REVERIE_GENERATION_TIMEOUT", &cfg.Generation.Timeout) },
		func() error { return duration("REVERIE_GATEWAY_CACHE_TTL", &cfg.Gateway.CacheTTL) },
		func() error { return duration("REVERIE_GATEWAY_TIMEOUT", &cfg.Gateway.Timeout) },
	} {
		if err := fn(); err != nil {
			return err
		}
	}

	if v := os.Getenv("REVERIE_GENERATION_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid REVERIE_GENERATION_RATE: %w", err)
		}
		cfg.Generation.RatePerSecond = r
	}

	cfg.Transport.Mode = strings.ToLower(cfg.Transport.Mode)
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
