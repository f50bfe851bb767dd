// Package push consumes the one-way server event stream and translates
// typed messages into cache effects. Push deltas are authoritative: the
// server is the arbiter of recency, so they bypass the cache's version
// guard. Delivery is at-most-once; messages lost while disconnected are
// not recovered here.
package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/cache"
)

// Reconciler applies push messages to the entity cache.
type Reconciler struct {
	store  *cache.Store
	logger *slog.Logger
}

// New creates a reconciler over the given cache.
func New(store *cache.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{store: store, logger: logger}
}

// Run consumes raw payloads until the channel closes or ctx ends, applying
// each successfully decoded message exactly once, in arrival order.
func (r *Reconciler) Run(ctx context.Context, msgs <-chan json.RawMessage) {
	for {
		select {
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			msg, ok := Decode(raw)
			if !ok {
				droppedTotal.Inc()
				continue
			}
			r.Apply(msg)
		case <-ctx.Done():
			return
		}
	}
}

// Apply performs the cache mutation for one message. Unrecognized types are
// dropped silently, keeping the stream forward-compatible.
func (r *Reconciler) Apply(msg Message) {
	switch msg.Type {
	case TypeProjectCreated, TypeProjectRecovered:
		// The client cannot synthesize a full entity from a bare
		// notification; stale pages are refetched on their next read.
		r.store.InvalidateLists()

	case TypeProjectUpdated:
		if len(msg.Patch) == 0 {
			break
		}
		r.store.PatchProject(msg.ID, msg.Patch)
		r.store.PatchProjectInLists(msg.ID, msg.Patch)

	case TypeProjectDeleted:
		r.store.RemoveProjectFromLists(msg.ID)
		// The detail entry stays addressable so an open view can render
		// its deleted state.
		r.store.PatchProject(msg.ID, map[string]any{
			"deleted_at": time.Now().UTC().Format(time.RFC3339),
		})

	case TypeEventCreated:
		if msg.Event == nil {
			break
		}
		ev := *msg.Event
		if ev.ProjectID == 0 {
			ev.ProjectID = msg.ProjectID
		}
		if ev.Kind == "" {
			ev.Kind = "update"
		}
		r.store.PrependEvent(msg.ProjectID, ev)

	default:
		droppedTotal.Inc()
		r.logger.Debug("dropping unrecognized push message", "type", msg.Type)
		return
	}

	appliedTotal.WithLabelValues(msg.Type).Inc()
}
