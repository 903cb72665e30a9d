package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the WetMap device client.
type Config struct {
	ServerURL           string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	SyncInterval        time.Duration
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	RetryAttempts       int
	LogLevel            string
	LogFormat           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080/api"
	c.DatabasePath = "wetmap.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 30 * time.Second
	c.SyncInterval = 15 * time.Minute
	c.RetryBaseDelay = time.Second
	c.RetryMaxDelay = 5 * time.Minute
	c.RetryAttempts = 3
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Load builds a Config from defaults, then the optional config file, then
// command-line flags. Later sources take precedence over earlier ones.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
