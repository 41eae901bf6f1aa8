package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	AI struct {
		APIKey       string `yaml:"apiKey"`
		Tier         string `yaml:"tier"`
		FastModel    string `yaml:"fastModel"`
		CapableModel string `yaml:"capableModel"`
	} `yaml:"ai"`

	Retry struct {
		MaxAttempts          int   `yaml:"maxAttempts"`
		BaseDelayMs          int64 `yaml:"baseDelayMs"`
		RateLimitBaseDelayMs int64 `yaml:"rateLimitBaseDelayMs"`
		MaxDelayMs           int64 `yaml:"maxDelayMs"`
	} `yaml:"retry"`

	Upload struct {
		MaxFileSizeBytes int64  `yaml:"maxFileSizeBytes"`
		TempDir          string `yaml:"tempDir"`
	} `yaml:"upload"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads the yaml config file, applies defaults, and overlays the
// provider credential from OPENAI_API_KEY when set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("ai api key missing: set ai.apiKey or OPENAI_API_KEY")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.AI.Tier == "" {
		c.AI.Tier = "fast"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMs == 0 {
		c.Retry.BaseDelayMs = 1000
	}
	if c.Retry.RateLimitBaseDelayMs == 0 {
		c.Retry.RateLimitBaseDelayMs = 5000
	}
	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = 30000
	}
	if c.Upload.MaxFileSizeBytes == 0 {
		c.Upload.MaxFileSizeBytes = 10 << 20
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// BaseDelay returns the 5xx backoff seed as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

// RateLimitBaseDelay returns the 429 backoff seed as a duration.
func (c *Config) RateLimitBaseDelay() time.Duration {
	return time.Duration(c.Retry.RateLimitBaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff cap as a duration.
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMs) * time.Millisecond
}
