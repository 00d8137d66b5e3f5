package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-o", "-i", "-p", "-s", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database")
	fs.BoolVar(&cfg.OfflineMode, "o", cfg.OfflineMode, "offline mode (sync) enabled")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.StringVar(&cfg.ProbeAddr, "p", cfg.ProbeAddr, "connectivity probe address")
	fs.StringVar(&cfg.StatusAddr, "s", cfg.StatusAddr, "status server address")
	fs.StringVar(&cfg.LogFormat, "l", cfg.LogFormat, "log format: text, json or zap")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// only an explicit -i overrides, so sub-second file values survive
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
		}
	})
}
