// Command fraudgraph-tui draws the fraud network in the terminal. It runs
// its own engine against the gateway, independent of the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"

	"github.com/dd0wney/cluso-fraudgraph/pkg/config"
	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/explain"
	"github.com/dd0wney/cluso-fraudgraph/pkg/feed"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults plus FRAUDGRAPH_* env when empty)")
	logFile := flag.String("log-file", "", "write JSON logs here; logging is off when empty")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewNopLogger()
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		logger = logging.NewJSONLogger(f, logging.ParseLevel(cfg.Logging.Level))
	}

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "fraudgraph-tui: %v\n", err)
		os.Exit(1)
	}
}

func newEngine(cfg *config.Config, logger logging.Logger) (*engine.Engine, *redis.Client) {
	source := feed.NewHTTPSource(cfg.Feed, &http.Client{Timeout: cfg.Feed.Timeout}, logger)
	adapter := feed.NewAdapter(source, feed.WithLogger(logger))

	var ex explain.Explainer = explain.NewHTTPClient(cfg.Feed.GatewayURL, cfg.Explain, nil, logger)
	var rdb *redis.Client
	if cfg.Explain.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Explain.RedisAddr})
		ex = explain.NewCachedExplainer(ex, explain.NewRedisCache(rdb, cfg.Explain.CacheTTL), logger)
	}
	return engine.New(adapter, ex, cfg.Engine(), engine.WithLogger(logger)), rdb
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, rdb := newEngine(cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()

	var streams []<-chan engine.View
	for _, topic := range []string{engine.TopicFrame, engine.TopicRefresh, engine.TopicInteraction} {
		sub, err := eng.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
		streams = append(streams, sub.Channel())
	}

	p := tea.NewProgram(newModel(eng, streams...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
