package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/flagx"
	"github.com/dmitrijs2005/tallysync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for decoding config files. Intervals
// use timex.Duration so they can be written as "60s" or as nanoseconds.
type FileConfig struct {
	DatabasePath  string                  `json:"database_path" yaml:"database_path"`
	OfflineMode   bool                    `json:"offline_mode" yaml:"offline_mode"`
	SyncInterval  timex.Duration          `json:"sync_interval" yaml:"sync_interval"`
	ProbeAddr     string                  `json:"probe_addr" yaml:"probe_addr"`
	ProbeInterval timex.Duration          `json:"probe_interval" yaml:"probe_interval"`
	SubmitTimeout timex.Duration          `json:"submit_timeout" yaml:"submit_timeout"`
	StatusAddr    string                  `json:"status_addr" yaml:"status_addr"`
	AuthToken     string                  `json:"auth_token" yaml:"auth_token"`
	LogFormat     string                  `json:"log_format" yaml:"log_format"`
	LogLevel      string                  `json:"log_level" yaml:"log_level"`
	Collections   []models.CollectionSpec `json:"collections" yaml:"collections"`
	S3            S3                      `json:"s3" yaml:"s3"`
}

// parseFile overlays cfg with the file named by -c/-config. The DTO starts
// from the current values, so keys absent from the file keep them.
//
// Panics on read or decode errors, like the flag parser.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := toFile(cfg)
	if flagx.IsYAML(path) {
		err = yaml.Unmarshal(data, &fc)
	} else {
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}
	fromFile(cfg, &fc)
}

func toFile(c *Config) FileConfig {
	return FileConfig{
		DatabasePath:  c.DatabasePath,
		OfflineMode:   c.OfflineMode,
		SyncInterval:  timex.Duration{Duration: c.SyncInterval},
		ProbeAddr:     c.ProbeAddr,
		ProbeInterval: timex.Duration{Duration: c.ProbeInterval},
		SubmitTimeout: timex.Duration{Duration: c.SubmitTimeout},
		StatusAddr:    c.StatusAddr,
		AuthToken:     c.AuthToken,
		LogFormat:     c.LogFormat,
		LogLevel:      c.LogLevel,
		Collections:   c.Collections,
		S3:            c.S3,
	}
}

func fromFile(c *Config, fc *FileConfig) {
	c.DatabasePath = fc.DatabasePath
	c.OfflineMode = fc.OfflineMode
	c.SyncInterval = fc.SyncInterval.Duration
	c.ProbeAddr = fc.ProbeAddr
	c.ProbeInterval = fc.ProbeInterval.Duration
	c.SubmitTimeout = fc.SubmitTimeout.Duration
	c.StatusAddr = fc.StatusAddr
	c.AuthToken = fc.AuthToken
	c.LogFormat = fc.LogFormat
	c.LogLevel = fc.LogLevel
	c.Collections = fc.Collections
	c.S3 = fc.S3
}
