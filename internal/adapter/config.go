package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SourceConfig holds the streaming service endpoint configuration
type SourceConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the service
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests" validate:"gte=1"`
	Interval         time.Duration `mapstructure:"interval" validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	FailureThreshold float64       `mapstructure:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `mapstructure:"min_requests"`
}

// CacheConfig holds cache configuration. Bucket definitions are compiled in;
// only the TTLs and the invalidation mode are configurable.
type CacheConfig struct {
	Dir         string        `mapstructure:"dir" validate:"required"`
	TTL         time.Duration `mapstructure:"ttl" validate:"gt=0"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl" validate:"gt=0"`

	// InvalidateOnMyListModify clears the whole cache after a my list change
	// instead of only the affected entries
	InvalidateOnMyListModify bool `mapstructure:"invalidate_on_mylist_modify"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"` // "-" logs to stderr, empty disables logging
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN WARNING ERROR debug info warn warning error"`
}

// TelemetryConfig selects OpenTelemetry exporters
type TelemetryConfig struct {
	Metrics string `mapstructure:"metrics" validate:"oneof=none stdout otlp"`
	Tracing string `mapstructure:"tracing" validate:"oneof=none stdout otlp"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Timeout: 30 * time.Second,
			Breaker: BreakerConfig{
				MaxRequests:      1,
				Interval:         30 * time.Second,
				Timeout:          60 * time.Second,
				FailureThreshold: 0.6,
				MinRequests:      5,
			},
		},
		Cache: CacheConfig{
			Dir:         defaultCachePath(),
			TTL:         40 * time.Minute,
			MetadataTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
		Telemetry: TelemetryConfig{
			Metrics: "none",
			Tracing: "none",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reel", "reel.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reel", "reel.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reel")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "reel")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "reel", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reel", "cache")
	}
}

// LoadConfig loads configuration from a config.yaml in the given directories
// (the default config directory and "." when none are given) and from
// REEL_* environment variables, e.g. REEL_CACHE_TTL=15m.
func LoadConfig(dirs ...string) (*Config, error) {
	if len(dirs) == 0 {
		dirs = []string{defaultConfigPath(), "."}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	// Environment variable overrides
	v.SetEnvPrefix("REEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables can override keys
// missing from the config file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("source.url", cfg.Source.URL)
	v.SetDefault("source.token", cfg.Source.Token)
	v.SetDefault("source.timeout", cfg.Source.Timeout)
	v.SetDefault("source.breaker.max_requests", cfg.Source.Breaker.MaxRequests)
	v.SetDefault("source.breaker.interval", cfg.Source.Breaker.Interval)
	v.SetDefault("source.breaker.timeout", cfg.Source.Breaker.Timeout)
	v.SetDefault("source.breaker.failure_threshold", cfg.Source.Breaker.FailureThreshold)
	v.SetDefault("source.breaker.min_requests", cfg.Source.Breaker.MinRequests)

	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.metadata_ttl", cfg.Cache.MetadataTTL)
	v.SetDefault("cache.invalidate_on_mylist_modify", cfg.Cache.InvalidateOnMyListModify)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)

	v.SetDefault("telemetry.metrics", cfg.Telemetry.Metrics)
	v.SetDefault("telemetry.tracing", cfg.Telemetry.Tracing)
}

// SaveConfig writes cfg to config.yaml in dir, or the default config
// directory when dir is empty, and returns the file path
func SaveConfig(cfg *Config, dir string) (string, error) {
	if dir == "" {
		dir = defaultConfigPath()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, cfg)
	// Durations are written in their readable form
	v.Set("source.timeout", cfg.Source.Timeout.String())
	v.Set("source.breaker.interval", cfg.Source.Breaker.Interval.String())
	v.Set("source.breaker.timeout", cfg.Source.Breaker.Timeout.String())
	v.Set("cache.ttl", cfg.Cache.TTL.String())
	v.Set("cache.metadata_ttl", cfg.Cache.MetadataTTL.String())

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

// IsConfigured returns true if the service URL is set
func (c *Config) IsConfigured() bool {
	return c.Source.URL != ""
}

var validate = validator.New()

// Validate checks the configuration against its field constraints
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// formatFieldError formats a single field validation error
func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt", "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
