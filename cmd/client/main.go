package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophsync/internal/client/cli"
	"github.com/dmitrijs2005/gophsync/internal/client/config"
	"github.com/dmitrijs2005/gophsync/internal/logging"
)

func main() {
	cfg := config.LoadConfig()

	// The REPL owns stdout, so logs go to a rotated file under the data dir.
	if err := os.MkdirAll(cfg.LogDir(), 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "create log dir: %v\n", err)
		os.Exit(1)
	}
	logger, logCloser := logging.NewFileLogger(cfg.LogFilePath(), cfg.LogLevel)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "client init failed", "error", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Run(ctx)
}
