// Command fraudgraph polls the fraud gateway's network snapshot, lays it
// out and serves the animated view over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/cluso-fraudgraph/pkg/config"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/metrics"
)

const uptimeInterval = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults plus FRAUDGRAPH_* env when empty)")
	addr := flag.String("addr", "", "HTTP listen address, overrides the config")
	logLevel := flag.String("log-level", "", "debug, info, warn or error, overrides the config")
	printEnv := flag.Bool("print-env", false, "list recognised environment variables and exit")
	flag.Parse()

	if *printEnv {
		for _, name := range config.EnvNames() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	logging.SetDefaultLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fraudgraph exited with error", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	a, err := build(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer a.close()

	logger.Info("fraudgraph starting",
		logging.String("feed", cfg.Feed.URL()),
		logging.String("addr", cfg.Server.Addr),
		logging.Duration("refresh_interval", cfg.Feed.RefreshInterval),
		logging.Bool("relax", cfg.Layout.Relax))

	g, ctx := errgroup.WithContext(ctx)

	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		a.engine.Stop()
		return nil
	})

	g.Go(func() error {
		return a.server.ListenAndServe(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(uptimeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				reg.UpdateUptime()
			}
		}
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("fraudgraph stopped")
	return nil
}
