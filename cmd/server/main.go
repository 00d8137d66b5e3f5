package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/tallysync/internal/flagx"
	"github.com/dmitrijs2005/tallysync/internal/logging"
	"github.com/dmitrijs2005/tallysync/internal/server"
	"github.com/dmitrijs2005/tallysync/internal/server/auth"
	"github.com/dmitrijs2005/tallysync/internal/server/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	// -issue-token <device> prints a bearer token for a client and exits.
	var device string
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.StringVar(&device, "issue-token", "", "issue a bearer token for the given device id")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-issue-token"}))
	if device != "" {
		if cfg.SecretKey == "" {
			log.Fatal("secret key is required to issue tokens")
		}
		token, err := auth.GenerateToken(device, []byte(cfg.SecretKey), cfg.TokenTTL)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(token)
		return
	}

	logger, err := logging.New(os.Stdout, cfg.LogFormat, "info")
	if err != nil {
		log.Fatalf("%v", err)
	}
	if z, ok := logger.(*logging.ZapLogger); ok {
		defer func() { _ = z.Sync() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
