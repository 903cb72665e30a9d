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

// FileConfig is the DTO for config files; timex.Duration accepts "24h" or
// nanoseconds. Absent fields keep the value already in Config.
type FileConfig struct {
	ListenAddr            string          `json:"listen_addr" yaml:"listen_addr"`
	DatabaseDSN           string          `json:"database_dsn" yaml:"database_dsn"`
	SecretKey             string          `json:"secret_key" yaml:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration" yaml:"token_validity_duration"`
	AdminUsername         string          `json:"admin_username" yaml:"admin_username"`
	AdminPassword         string          `json:"admin_password" yaml:"admin_password"`
	ShutdownTimeout       *timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel              string          `json:"log_level" yaml:"log_level"`
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

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.ListenAddr, fc.ListenAddr)
	set(&cfg.DatabaseDSN, fc.DatabaseDSN)
	set(&cfg.SecretKey, fc.SecretKey)
	set(&cfg.AdminUsername, fc.AdminUsername)
	set(&cfg.AdminPassword, fc.AdminPassword)
	set(&cfg.LogLevel, fc.LogLevel)
	if fc.TokenValidityDuration != nil {
		cfg.TokenValidityDuration = fc.TokenValidityDuration.Duration
	}
	if fc.ShutdownTimeout != nil {
		cfg.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
	return nil
}
