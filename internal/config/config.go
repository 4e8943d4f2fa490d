package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tejusbharadwaj/meterclient/internal/apierr"
	"github.com/tejusbharadwaj/meterclient/internal/models"
)

// Config holds all configuration for our application
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type APIConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	APIKey       string `mapstructure:"api_key"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

type PaginationConfig struct {
	ChunkDays          int `mapstructure:"chunk_days"`
	MeterInfoCacheSize int `mapstructure:"meter_info_cache_size"`
}

type TransportConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	CacheDir  string        `mapstructure:"cache_dir"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	// CacheEnabled turns on the response cache for closed date windows.
	CacheEnabled bool `mapstructure:"cache_enabled"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode, d.ConnectionTimeout)
}

type SchedulerConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Spec        string   `mapstructure:"spec"`
	RecentDays  int      `mapstructure:"recent_days"`
	Meters      []string `mapstructure:"meters"`
	SeriesTypes []string `mapstructure:"series_types"`
	Bootstrap   bool     `mapstructure:"bootstrap"`
}

type ServerConfig struct {
	Port         int     `mapstructure:"port"`
	Host         string  `mapstructure:"host"`
	RateLimit    float64 `mapstructure:"rate_limit"`
	RateBurst    int     `mapstructure:"rate_burst"`
	CacheSize    int     `mapstructure:"cache_size"`
	MaxRangeDays int     `mapstructure:"max_range_days"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
//
// ${VAR} references inside the file are expanded first. Any key can then be
// overridden with an APP_ prefixed variable, e.g. APP_DATABASE_HOST.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the settings the client cannot run without.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return apierr.Validationf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Delay < 0 {
		return apierr.Validationf("retry.delay must not be negative, got %s", c.Retry.Delay)
	}
	if c.Transport.Timeout < time.Second {
		return apierr.Validationf("transport.timeout must be at least 1s, got %s", c.Transport.Timeout)
	}
	if c.Pagination.ChunkDays < 1 {
		return apierr.Validationf("pagination.chunk_days must be at least 1, got %d", c.Pagination.ChunkDays)
	}
	for _, st := range c.Scheduler.SeriesTypes {
		if !models.SeriesType(st).Valid() {
			return apierr.Validationf("scheduler.series_types: invalid series type %q", st)
		}
	}
	return nil
}

// Types returns the configured series types.
func (s SchedulerConfig) Types() []models.SeriesType {
	out := make([]models.SeriesType, len(s.SeriesTypes))
	for i, st := range s.SeriesTypes {
		out[i] = models.SeriesType(st)
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.wstw.at/gateway/WN_SMART_METER_API/1.0/")
	v.SetDefault("api.token_url", "https://log.wien/auth/realms/logwien/protocol/openid-connect/token")
	v.SetDefault("api.client_id", "")
	v.SetDefault("api.client_secret", "")
	v.SetDefault("api.api_key", "")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", 5*time.Second)

	v.SetDefault("pagination.chunk_days", 30)
	v.SetDefault("pagination.meter_info_cache_size", 64)

	v.SetDefault("transport.timeout", 30*time.Second)
	v.SetDefault("transport.rate_limit", 5.0)
	v.SetDefault("transport.rate_burst", 5)
	v.SetDefault("transport.cache_enabled", false)
	v.SetDefault("transport.cache_dir", "")
	v.SetDefault("transport.cache_ttl", 24*time.Hour)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "0 */6 * * *")
	v.SetDefault("scheduler.recent_days", 3)
	v.SetDefault("scheduler.meters", []string{})
	v.SetDefault("scheduler.series_types", []string{string(models.QuarterHour)})
	v.SetDefault("scheduler.bootstrap", true)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cache_size", 1000)
	v.SetDefault("server.max_range_days", 3*366)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
