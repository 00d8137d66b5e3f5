package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tallysync/internal/flagx"
	"github.com/dmitrijs2005/tallysync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the DTO read from the -c/-config file. TokenTTL uses
// timex.Duration, so "720h" and integer nanoseconds both work.
type FileConfig struct {
	HTTPAddr    string         `json:"http_addr" yaml:"http_addr"`
	GRPCAddr    string         `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey   string         `json:"secret_key" yaml:"secret_key"`
	TokenTTL    timex.Duration `json:"token_ttl" yaml:"token_ttl"`
	Collections []string       `json:"collections" yaml:"collections"`
	LogFormat   string         `json:"log_format" yaml:"log_format"`
}

// parseFile overlays config with the file named by -c or -config. Keys the
// file leaves out keep their current value. Panics on read or decode errors.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := FileConfig{
		HTTPAddr:    config.HTTPAddr,
		GRPCAddr:    config.GRPCAddr,
		DatabaseDSN: config.DatabaseDSN,
		SecretKey:   config.SecretKey,
		TokenTTL:    timex.Duration{Duration: config.TokenTTL},
		Collections: config.Collections,
		LogFormat:   config.LogFormat,
	}
	if flagx.IsYAML(path) {
		err = yaml.Unmarshal(data, &fc)
	} else {
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	config.HTTPAddr = fc.HTTPAddr
	config.GRPCAddr = fc.GRPCAddr
	config.DatabaseDSN = fc.DatabaseDSN
	config.SecretKey = fc.SecretKey
	config.TokenTTL = fc.TokenTTL.Duration
	config.Collections = fc.Collections
	config.LogFormat = fc.LogFormat
}
