package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"tallysync"}, args...)
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "tallysync.db", c.DatabasePath)
	assert.True(t, c.OfflineMode)
	assert.Equal(t, 60*time.Second, c.SyncInterval)
	assert.Equal(t, 15*time.Second, c.SubmitTimeout)
	require.Len(t, c.Collections, 3)
	assert.Equal(t, []string{"clientId", "amount"}, c.Collections[1].Required)
	assert.Equal(t, "http://127.0.0.1:8080/api/v1/ledger", c.Collections[2].Endpoint)
	require.NoError(t, c.Validate())
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectPanic bool
		mutate      func(c *Config)
	}{
		{
			name: "all flags",
			args: []string{"-d", "/tmp/t.db", "-o=false", "-i", "10", "-p", "http://h/health", "-s", "", "-l", "zap"},
			mutate: func(c *Config) {
				c.DatabasePath = "/tmp/t.db"
				c.OfflineMode = false
				c.SyncInterval = 10 * time.Second
				c.ProbeAddr = "http://h/health"
				c.StatusAddr = ""
				c.LogFormat = "zap"
			},
		},
		{
			name:   "foreign flags are ignored",
			args:   []string{"-x", "1", "-i", "5"},
			mutate: func(c *Config) { c.SyncInterval = 5 * time.Second },
		},
		{name: "incorrect interval", args: []string{"-i", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)
			cfg := defaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg) })
				return
			}

			want := defaults()
			tt.mutate(want)
			require.NotPanics(t, func() { parseFlags(cfg) })
			assert.Empty(t, cmp.Diff(want, cfg))
		})
	}
}

func TestParseFile_JSON(t *testing.T) {
	path := writeFile(t, "cfg.json", `{
		"database_path": "data/app.db",
		"sync_interval": "2m",
		"submit_timeout": 5000000000,
		"collections": [{"name": "clients", "endpoint": "http://x/clients", "required": ["name"]}]
	}`)
	withArgs(t, "-config", path)

	cfg := defaults()
	parseFile(cfg)

	want := defaults()
	want.DatabasePath = "data/app.db"
	want.SyncInterval = 2 * time.Minute
	want.SubmitTimeout = 5 * time.Second
	want.Collections = []models.CollectionSpec{{Name: "clients", Endpoint: "http://x/clients", Required: []string{"name"}}}
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestParseFile_YAML(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
offline_mode: false
probe_addr: grpc://collector:3200
probe_interval: 10s
s3:
  region: eu-north-1
  base_endpoint: http://minio:9000
collections:
  - name: ledger
    endpoint: s3://archive/tally
`)
	withArgs(t, "-c", path)

	cfg := defaults()
	parseFile(cfg)

	assert.False(t, cfg.OfflineMode)
	assert.Equal(t, "grpc://collector:3200", cfg.ProbeAddr)
	assert.Equal(t, 10*time.Second, cfg.ProbeInterval)
	assert.Equal(t, S3{Region: "eu-north-1", BaseEndpoint: "http://minio:9000"}, cfg.S3)
	require.Len(t, cfg.Collections, 1)
	assert.Equal(t, "s3://archive/tally", cfg.Collections[0].Endpoint)
	assert.Equal(t, 60*time.Second, cfg.SyncInterval, "absent keys keep defaults")
}

func TestParseFile_NoFile(t *testing.T) {
	withArgs(t)
	cfg := defaults()
	parseFile(cfg)
	assert.Empty(t, cmp.Diff(defaults(), cfg))
}

func TestParseFile_Invalid(t *testing.T) {
	withArgs(t, "-config", writeFile(t, "bad.json", `{ this is not valid json`))
	require.Panics(t, func() { parseFile(defaults()) })

	withArgs(t, "-config", filepath.Join(t.TempDir(), "missing.json"))
	require.Panics(t, func() { parseFile(defaults()) })
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "cfg.json", `{"database_path": "from-file.db", "sync_interval": "30s"}`)
	withArgs(t, "-c", path, "-d", "from-flag.db")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-flag.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
}

func TestLoadConfig_SubSecondIntervalSurvives(t *testing.T) {
	withArgs(t, "-c", writeFile(t, "cfg.json", `{"sync_interval": "500ms"}`))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.SyncInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty db path", func(c *Config) { c.DatabasePath = "" }},
		{"zero interval", func(c *Config) { c.SyncInterval = 0 }},
		{"zero probe interval", func(c *Config) { c.ProbeInterval = 0 }},
		{"zero submit timeout", func(c *Config) { c.SubmitTimeout = -time.Second }},
		{"no collections", func(c *Config) { c.Collections = nil }},
		{"duplicate collection", func(c *Config) { c.Collections = append(c.Collections, c.Collections[0]) }},
		{"missing endpoint", func(c *Config) { c.Collections[0].Endpoint = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			require.ErrorIs(t, c.Validate(), common.ErrConfig)
		})
	}

	t.Run("probe disabled needs no interval", func(t *testing.T) {
		c := defaults()
		c.ProbeAddr = ""
		c.ProbeInterval = 0
		require.NoError(t, c.Validate())
	})
}
