// Package config handles configuration for the collector, including
// defaults, a JSON or YAML file overlay, and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/common"
)

// Config holds runtime settings for the collector.
//
// Fields:
//   - HTTPAddr: bind address of the record API.
//   - GRPCAddr: bind address of the gRPC health service; empty disables it.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps records in memory.
//   - SecretKey: HMAC secret for bearer tokens (HS256). Empty disables auth.
//   - TokenTTL: lifetime of tokens issued with -issue-token; zero never expires.
//   - Collections: names accepted under /api/v1/{collection}.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	DatabaseDSN string
	SecretKey   string
	TokenTTL    time.Duration
	Collections []string
	LogFormat   string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCAddr = ":3200"
	c.DatabaseDSN = ""
	c.SecretKey = ""
	c.TokenTTL = 30 * 24 * time.Hour
	c.Collections = []string{"clients", "accounts", "ledger"}
	c.LogFormat = "json"
}

// Validate rejects configurations the collector cannot start with.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr is empty", common.ErrConfig)
	}
	if len(c.Collections) == 0 {
		return fmt.Errorf("%w: no collections configured", common.ErrConfig)
	}
	seen := make(map[string]struct{}, len(c.Collections))
	for _, n := range c.Collections {
		n = strings.TrimSpace(n)
		if n == "" {
			return fmt.Errorf("%w: collection with empty name", common.ErrConfig)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: duplicate collection %q", common.ErrConfig, n)
		}
		seen[n] = struct{}{}
	}
	if c.TokenTTL < 0 {
		return fmt.Errorf("%w: token_ttl must not be negative", common.ErrConfig)
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file and finally from command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
