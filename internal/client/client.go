// Package client bundles the synchronization core into one handle: the
// entity cache, the read and write coordinators, the bulk resolver and the
// push reconciler, all sharing a single cache and remote transport.
package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/bulk"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/cache"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/mutation"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/push"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/query"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/transport"
)

const pushBuffer = 64

// Client is a connected synchronization core. All sub-coordinators operate
// on the same cache, so a write confirmed by one is immediately visible to
// reads through another.
type Client struct {
	Cache     *cache.Store
	Queries   *query.Coordinator
	Mutations *mutation.Coordinator
	Bulk      *bulk.Resolver

	api        *transport.Client
	reconciler *push.Reconciler
	logger     *slog.Logger
}

// New builds a client against the store at baseURL. A nil logger discards
// log output.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	api := transport.NewClient(baseURL, logger)
	store := cache.New()
	queries := query.New(api, store, logger)

	return &Client{
		Cache:      store,
		Queries:    queries,
		Mutations:  mutation.New(api, store, logger),
		Bulk:       bulk.New(api, store, queries, logger),
		api:        api,
		reconciler: push.New(store, logger),
		logger:     logger,
	}
}

// StartPush connects the one-way push stream and applies its messages to
// the cache until ctx is cancelled. Reconnection with backoff is handled
// by the transport.
func (c *Client) StartPush(ctx context.Context) {
	msgs := make(chan json.RawMessage, pushBuffer)
	go c.api.Tail(ctx, msgs)
	go c.reconciler.Run(ctx, msgs)
}

// Drain blocks until in-flight background reconciliation finishes. Call it
// before tearing the client down in tests.
func (c *Client) Drain() {
	c.Bulk.Wait()
}
