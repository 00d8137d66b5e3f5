package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/common"
)

// S3 holds the object storage settings used by s3:// collection endpoints.
type S3 struct {
	Region       string `json:"region" yaml:"region"`
	BaseEndpoint string `json:"base_endpoint" yaml:"base_endpoint"`
	AccessKey    string `json:"access_key" yaml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
}

// Config holds runtime settings for the tallysync client.
type Config struct {
	DatabasePath string

	// OfflineMode gates every sync trigger. Local writes work either way.
	OfflineMode bool

	SyncInterval  time.Duration
	ProbeAddr     string
	ProbeInterval time.Duration
	SubmitTimeout time.Duration
	StatusAddr    string
	AuthToken     string
	LogFormat     string
	LogLevel      string
	Collections   []models.CollectionSpec
	S3            S3
}

// DefaultCollections mirrors the collections the application ships with.
func DefaultCollections(baseURL string) []models.CollectionSpec {
	return []models.CollectionSpec{
		{Name: "clients", Endpoint: baseURL + "/clients", Required: []string{"name"}},
		{Name: "accounts", Endpoint: baseURL + "/accounts", Required: []string{"clientId", "amount"}},
		{Name: "ledger", Endpoint: baseURL + "/ledger", Required: []string{"accountId", "type", "amount", "date"}},
	}
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "tallysync.db"
	c.OfflineMode = true
	c.SyncInterval = 60 * time.Second
	c.ProbeAddr = "grpc://127.0.0.1:3200"
	c.ProbeInterval = 5 * time.Second
	c.SubmitTimeout = 15 * time.Second
	c.StatusAddr = "127.0.0.1:8081"
	c.LogFormat = "text"
	c.LogLevel = "info"
	c.Collections = DefaultCollections("http://127.0.0.1:8080/api/v1")
	c.S3 = S3{Region: "us-east-1"}
}

// Validate rejects configurations the client cannot start with.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database_path is empty", common.ErrConfig)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("%w: sync_interval must be positive", common.ErrConfig)
	}
	if c.ProbeAddr != "" && c.ProbeInterval <= 0 {
		return fmt.Errorf("%w: probe_interval must be positive", common.ErrConfig)
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("%w: submit_timeout must be positive", common.ErrConfig)
	}
	if len(c.Collections) == 0 {
		return fmt.Errorf("%w: no collections configured", common.ErrConfig)
	}
	if _, err := models.NewCollectionSet(c.Collections); err != nil {
		return err
	}
	for _, spec := range c.Collections {
		if spec.Endpoint == "" {
			return fmt.Errorf("%w: collection %s has no endpoint", common.ErrConfig, spec.Name)
		}
		if _, err := url.Parse(spec.Endpoint); err != nil {
			return fmt.Errorf("%w: collection %s: %v", common.ErrConfig, spec.Name, err)
		}
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if any) and command-line flags. Later sources take
// precedence over earlier ones. The result is validated.
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
