package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/wetmap/internal/flagx"
	"github.com/dmitrijs2005/wetmap/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the DTO for config files. Absent fields keep the value
// already in Config.
type FileConfig struct {
	ServerURL           string          `json:"server_url" yaml:"server_url"`
	DatabasePath        string          `json:"database_path" yaml:"database_path"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	SyncInterval        *timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	Retry               struct {
		BaseDelay *timex.Duration `json:"base_delay" yaml:"base_delay"`
		MaxDelay  *timex.Duration `json:"max_delay" yaml:"max_delay"`
		Attempts  *int            `json:"attempts" yaml:"attempts"`
	} `json:"retry" yaml:"retry"`
	Log struct {
		Level  string `json:"level" yaml:"level"`
		Format string `json:"format" yaml:"format"`
	} `json:"log" yaml:"log"`
}

func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return err
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	if fc.ServerURL != "" {
		cfg.ServerURL = fc.ServerURL
	}
	if fc.DatabasePath != "" {
		cfg.DatabasePath = fc.DatabasePath
	}
	if fc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.SyncInterval != nil {
		cfg.SyncInterval = fc.SyncInterval.Duration
	}
	if fc.Retry.BaseDelay != nil {
		cfg.RetryBaseDelay = fc.Retry.BaseDelay.Duration
	}
	if fc.Retry.MaxDelay != nil {
		cfg.RetryMaxDelay = fc.Retry.MaxDelay.Duration
	}
	if fc.Retry.Attempts != nil {
		cfg.RetryAttempts = *fc.Retry.Attempts
	}
	if fc.Log.Level != "" {
		cfg.LogLevel = fc.Log.Level
	}
	if fc.Log.Format != "" {
		cfg.LogFormat = fc.Log.Format
	}
}
