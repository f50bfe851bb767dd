// Package bulk executes multi-entity mutations under per-entity
// expected-version checks and applies only the confirmed subset to the
// cache. Conflicts are a first-class outcome, not errors: each id resolves
// independently to exactly one of applied or conflicted.
package bulk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/cache"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/remote"
)

const refreshTimeout = 10 * time.Second

// Refresher triggers the authoritative refetch that reconciles any drift
// the bulk call didn't know about. The query coordinator implements it.
type Refresher interface {
	ActiveQuery() (project.ListQuery, bool)
	RefreshList(ctx context.Context, q project.ListQuery) (project.ListResult, error)
	RefreshProject(ctx context.Context, id int64) (project.Project, error)
}

// Outcome is the per-id result of a bulk mutation. Conflicted ids retain
// their pre-request cached value; the caller re-snapshots versions and
// retries just those.
type Outcome struct {
	UpdatedCount int
	Applied      []int64
	Conflicts    []project.BulkConflict
}

// Resolver submits bulk requests and reconciles the cache with their
// outcome.
type Resolver struct {
	api       remote.BulkWriter
	store     *cache.Store
	refresher Refresher
	logger    *slog.Logger

	// Tracks the background reconciliation goroutines so tests and
	// shutdown can wait for them.
	refreshes sync.WaitGroup
}

// New creates a bulk resolver.
func New(api remote.BulkWriter, store *cache.Store, refresher Refresher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{api: api, store: store, refresher: refresher, logger: logger}
}

// Execute submits the request and applies the confirmed subset to the
// cache as an immediate best-effort patch, then kicks off a background
// authoritative refetch whose result always wins over the patch.
func (r *Resolver) Execute(ctx context.Context, req project.BulkRequest) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}

	resp, err := r.api.BulkUpdate(ctx, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("bulk %s: %w", req.Action, err)
	}

	conflicted := make(map[int64]bool, len(resp.Conflicts))
	for _, c := range resp.Conflicts {
		conflicted[c.ID] = true
	}

	outcome := Outcome{UpdatedCount: resp.UpdatedCount, Conflicts: resp.Conflicts}
	for _, id := range req.IDs {
		if conflicted[id] {
			continue
		}
		outcome.Applied = append(outcome.Applied, id)
		r.patch(id, req)
	}

	r.refreshes.Add(1)
	go r.reconcile(req.IDs)

	if len(resp.Conflicts) > 0 {
		r.logger.Info("bulk partially applied",
			"action", req.Action,
			"updated", resp.UpdatedCount,
			"conflicts", len(resp.Conflicts))
	}
	return outcome, nil
}

// Wait blocks until every pending background reconciliation has finished.
func (r *Resolver) Wait() {
	r.refreshes.Wait()
}

// patch applies the action semantics to the cached copies of one confirmed
// id: the detail entry and every list row. The patch only lands when the
// cache still holds the version the request was snapshotted against; if a
// push delta advanced it in the meantime, the refetch is the sole
// reconciler.
func (r *Resolver) patch(id int64, req project.BulkRequest) {
	expected := req.ExpectedVersions[id]
	apply := func(p project.Project) project.Project {
		if p.Version != expected {
			return p
		}
		switch req.Action {
		case project.BulkUpdateStatus:
			p.Status = req.NewStatus
		case project.BulkAddTag:
			if !p.HasTag(req.Tag) {
				p.Tags = append(p.Tags, req.Tag)
			}
		case project.BulkRemoveTag:
			kept := p.Tags[:0:0]
			for _, t := range p.Tags {
				if t != req.Tag {
					kept = append(kept, t)
				}
			}
			p.Tags = kept
		}
		p.Version = expected + 1
		return p
	}

	r.store.MutateProject(id, apply)
	r.store.MutateProjectInLists(id, apply)
}

// reconcile refetches the affected views in the background. The bulk call
// has already returned; this closes the gap against concurrent writes the
// per-id patches could not see. Conflicted ids are included because a
// conflict means the cached copy is definitely behind the server.
func (r *Resolver) reconcile(ids []int64) {
	defer r.refreshes.Done()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if q, ok := r.refresher.ActiveQuery(); ok {
		if _, err := r.refresher.RefreshList(ctx, q); err != nil {
			r.logger.Warn("bulk list reconciliation failed", "error", err)
		}
	}
	for _, id := range ids {
		// Only views somebody has open are worth refreshing.
		if _, ok, _ := r.store.Peek(cache.ProjectKey(id)); !ok {
			continue
		}
		if _, err := r.refresher.RefreshProject(ctx, id); err != nil {
			r.logger.Warn("bulk detail reconciliation failed", "id", id, "error", err)
		}
	}
}
