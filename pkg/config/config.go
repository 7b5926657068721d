package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the archiver
type Config struct {
	// API request settings
	API APIConfig `yaml:"api" json:"api"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behavior for failed requests
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Scrape fallback settings
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Streaming settings
	Stream StreamConfig `yaml:"stream" json:"stream"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Credential selection
	Auth AuthConfig `yaml:"auth" json:"auth"`
}

// APIConfig holds settings for regular API requests
type APIConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds quota tracking and pacing configuration
type RateLimitConfig struct {
	PaceInterval time.Duration `yaml:"pace_interval" json:"pace_interval"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	ResetMargin  time.Duration `yaml:"reset_margin" json:"reset_margin"`
}

// RetryConfig holds retry budget and backoff configuration
type RetryConfig struct {
	MaxAttempts      int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase      time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffIncrement time.Duration `yaml:"backoff_increment" json:"backoff_increment"`
	BackoffMax       time.Duration `yaml:"backoff_max" json:"backoff_max"`
}

// ScrapeConfig holds settings for the unauthenticated scrape fallback
type ScrapeConfig struct {
	JitterMin time.Duration `yaml:"jitter_min" json:"jitter_min"`
	JitterMax time.Duration `yaml:"jitter_max" json:"jitter_max"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// StreamConfig holds settings for the streaming endpoint
type StreamConfig struct {
	MaxLineBytes int `yaml:"max_line_bytes" json:"max_line_bytes"`
}

// OutputConfig holds archive output configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// AuthConfig selects which stored credential profile to use when the
// environment does not provide credentials
type AuthConfig struct {
	Profile string `yaml:"profile" json:"profile"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			PaceInterval: time.Second,
			PollInterval: time.Second,
			ResetMargin:  5 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:      5,
			BackoffBase:      2 * time.Second,
			BackoffIncrement: 2 * time.Second,
			BackoffMax:       0, // 0 means no cap
		},
		Scrape: ScrapeConfig{
			JitterMin: 3 * time.Second,
			JitterMax: 8 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 6.3; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/37.0.2049.0 Safari/537.36",
		},
		Stream: StreamConfig{
			MaxLineBytes: 1 << 20,
		},
		Output: OutputConfig{
			Directory: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Auth: AuthConfig{
			Profile: "", // empty means environment first, then the default stored profile
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if timeout := os.Getenv("TWARCHIVE_API_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			c.API.Timeout = d
		}
	}

	if pace := os.Getenv("TWARCHIVE_PACE_INTERVAL"); pace != "" {
		if d, err := time.ParseDuration(pace); err == nil && d > 0 {
			c.RateLimit.PaceInterval = d
		}
	}

	if attempts := os.Getenv("TWARCHIVE_MAX_ATTEMPTS"); attempts != "" {
		var val int
		fmt.Sscanf(attempts, "%d", &val)
		if val > 0 {
			c.Retry.MaxAttempts = val
		}
	}

	if ua := os.Getenv("TWARCHIVE_SCRAPE_USER_AGENT"); ua != "" {
		c.Scrape.UserAgent = ua
	}

	if outputDir := os.Getenv("TWARCHIVE_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}

	if logLevel := os.Getenv("TWARCHIVE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFile := os.Getenv("TWARCHIVE_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	if profile := os.Getenv("TWARCHIVE_PROFILE"); profile != "" {
		c.Auth.Profile = profile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".twarchive.yaml",
		".twarchive.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "twarchive", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "twarchive", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".twarchive.yaml"),
		filepath.Join(os.Getenv("HOME"), ".twarchive.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	if c.RateLimit.PollInterval <= 0 {
		errs = append(errs, errors.New("quota poll interval must be positive"))
	}
	if c.RateLimit.ResetMargin < 0 {
		errs = append(errs, errors.New("quota reset margin cannot be negative"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.Retry.BackoffBase <= 0 {
		errs = append(errs, errors.New("backoff base must be positive"))
	}
	if c.Retry.BackoffIncrement < 0 {
		errs = append(errs, errors.New("backoff increment cannot be negative"))
	}

	if c.Scrape.JitterMin < 0 {
		errs = append(errs, errors.New("scrape jitter minimum cannot be negative"))
	}
	if c.Scrape.JitterMax < c.Scrape.JitterMin {
		errs = append(errs, errors.New("scrape jitter maximum must not be below the minimum"))
	}
	if c.Scrape.UserAgent == "" {
		errs = append(errs, errors.New("scrape user agent is required"))
	}

	if c.Stream.MaxLineBytes <= 0 {
		errs = append(errs, errors.New("stream line buffer size must be positive"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output-dir"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
	if profile, ok := flags["profile"].(string); ok && profile != "" {
		c.Auth.Profile = profile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".twarchive.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
