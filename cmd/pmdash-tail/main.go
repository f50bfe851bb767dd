// pmdash-tail is a diagnostic client: it loads the default project list,
// follows the push stream and logs every change the cache reconciles.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/cache"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/client"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/config"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(cfg.API.BaseURL, logger)

	result, err := c.Queries.LoadList(ctx, project.ListQuery{})
	if err != nil {
		logger.Error("initial list load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("loaded project list", "total", result.Total, "page_items", len(result.Items))
	for _, p := range result.Items {
		logger.Info("project", "id", p.ID, "title", p.Title, "status", p.Status, "version", p.Version)
	}

	// Log every cache write the push stream causes.
	unsubscribe := c.Cache.Subscribe("", func(key cache.Key) {
		logger.Info("cache updated", "key", string(key))
	})
	defer unsubscribe()

	c.StartPush(ctx)
	logger.Info("following push stream", "base_url", cfg.API.BaseURL)

	<-ctx.Done()
	c.Drain()
	logger.Info("stopped")
}
