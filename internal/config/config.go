package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Address         string  `yaml:"address"`
		Mode            string  `yaml:"mode"` // gin mode: debug, release, test
		RateLimitRPS    float64 `yaml:"rate_limit_rps"`
		RateLimitBurst  int     `yaml:"rate_limit_burst"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	} `yaml:"server"`

	API struct {
		BaseURL         string  `yaml:"base_url"`
		Token           string  `yaml:"token"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		RateLimitRPS    float64 `yaml:"rate_limit_rps"`
		RateLimitBurst  int     `yaml:"rate_limit_burst"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		HealthPath      string  `yaml:"health_path"`
	} `yaml:"api"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret       string      `yaml:"jwt_secret"`
		TokenTTLMinutes int         `yaml:"token_ttl_minutes"`
		Users           []StaffUser `yaml:"users"`
	} `yaml:"auth"`

	Booking struct {
		AvailabilitySource    string `yaml:"availability_source"` // local, remote, consensus
		ContactThreshold      int    `yaml:"contact_threshold"`
		SlotGranularity       int    `yaml:"slot_granularity_minutes"`
		SessionTimeoutMinutes int    `yaml:"session_timeout_minutes"`
	} `yaml:"booking"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Telegram struct {
		BotToken   string  `yaml:"bot_token"`
		Debug      bool    `yaml:"debug"`
		Managers   []int64 `yaml:"managers"`
		DigestHour *int    `yaml:"digest_hour"` // local hour for tomorrow's summary; unset disables it
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"log"`

	Setup struct {
		Path                 string `yaml:"path"`
		Sync                 bool   `yaml:"sync"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"setup"`
}

// StaffUser is a login allowed to use the staff API.
type StaffUser struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	Role         string `yaml:"role"`
}

// LoadDotEnv loads KEY=VALUE pairs from path (".env" when empty) into the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Journal.Path == "" {
		cfg.Journal.Path = "data/tablebook.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Booking.AvailabilitySource {
	case "", "local", "remote", "consensus":
	default:
		return fmt.Errorf("booking.availability_source: unknown value %q", c.Booking.AvailabilitySource)
	}
	if len(c.Auth.Users) > 0 && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.users are set")
	}
	seen := make(map[string]bool)
	for i, u := range c.Auth.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("auth.users[%d]: username and password_hash are required", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("auth.users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = true
	}
	if h := c.Telegram.DigestHour; h != nil && (*h < 0 || *h > 23) {
		return fmt.Errorf("telegram.digest_hour must be 0..23")
	}
	if c.Booking.ContactThreshold < 0 {
		return fmt.Errorf("booking.contact_threshold cannot be negative")
	}
	return nil
}

func (c *Config) ServerAddress() string {
	if c.Server.Address == "" {
		return ":8080"
	}
	return c.Server.Address
}

func (c *Config) ServerCacheTTL() time.Duration {
	if c.Server.CacheTTLSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.CacheTTLSeconds) * time.Second
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// APICacheTTL is zero when Redis caching of upstream reads is disabled.
func (c *Config) APICacheTTL() time.Duration {
	if c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

func (c *Config) AvailabilitySource() string {
	if c.Booking.AvailabilitySource == "" {
		return "consensus"
	}
	return c.Booking.AvailabilitySource
}

func (c *Config) SlotGranularity() int {
	if c.Booking.SlotGranularity <= 0 {
		return 30
	}
	return c.Booking.SlotGranularity
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Booking.SessionTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 14 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func (c *Config) BackupPath() string {
	if c.Backup.Path == "" {
		return "backups"
	}
	return c.Backup.Path
}

func (c *Config) SetupWatchInterval() time.Duration {
	if c.Setup.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Setup.WatchIntervalSeconds) * time.Second
}

// FindUser returns the staff user with username, or nil.
func (c *Config) FindUser(username string) *StaffUser {
	for i := range c.Auth.Users {
		if c.Auth.Users[i].Username == username {
			return &c.Auth.Users[i]
		}
	}
	return nil
}
