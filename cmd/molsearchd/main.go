// Command molsearchd runs the HTTP search API and, when kafka is enabled,
// the index-event consumer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/molsearch/internal/app"
	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/interfaces/cli"
)

const defaultConfigPath = "configs/molsearch.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s not readable, using environment and defaults\n", path)
		path = ""
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise", logging.Err(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown incomplete", logging.Err(err))
		}
	}()

	logger.Info("starting molsearchd",
		logging.String("version", app.Version),
		logging.String("addr", cfg.Server.Addr()),
		logging.Bool("kafka", cfg.Kafka.Enabled))
	if err := cli.Serve(ctx, a, path); err != nil {
		logger.Error("server failed", logging.Err(err))
		stop()
		_ = a.Close()
		os.Exit(1)
	}
}
