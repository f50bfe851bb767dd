// Package query turns read intents into cache lookups plus de-duplicated
// fetches. Concurrent callers for the same key share one in-flight request,
// and a completion whose target is no longer the last-requested one is
// handed to its caller but never written into the cache.
package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/cache"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/remote"
)

// Detail aggregates everything the detail view renders. Sub-resources
// degrade to empty collections when their fetch fails; only the project
// itself can fail the aggregate.
type Detail struct {
	Project    project.Project
	Milestones []project.Milestone
	Team       []project.TeamMember
	Events     []project.EventItem
}

// Coordinator serves reads from the cache and fills misses from the remote
// store. Safe for concurrent use.
type Coordinator struct {
	api    remote.Reader
	store  *cache.Store
	logger *slog.Logger
	group  singleflight.Group

	// Stale-response guard state: the last-requested detail id and list
	// key. A zero id / empty key means no target is active and every
	// completion may be applied.
	activeProject atomic.Int64
	activeList    atomic.Value // string
}

// New creates a coordinator over the given remote reader and cache.
func New(api remote.Reader, store *cache.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Coordinator{api: api, store: store, logger: logger}
	c.activeList.Store("")
	return c
}

// LoadProject returns the project from cache, fetching on a miss. Failures
// of this primary read propagate to the caller.
func (c *Coordinator) LoadProject(ctx context.Context, id int64) (project.Project, error) {
	key := cache.ProjectKey(id)
	if v, ok := c.store.Get(key); ok {
		return v.(project.Project), nil
	}

	v, err, _ := c.group.Do(string(key), func() (any, error) {
		p, err := c.api.GetProject(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading project %d: %w", id, err)
		}
		if c.projectStillActive(id) {
			c.store.Put(key, p)
		}
		return p, nil
	})
	if err != nil {
		return project.Project{}, err
	}
	return v.(project.Project), nil
}

// LoadMilestones returns the milestone collection for a project. A fetch
// failure degrades to an empty collection and is never surfaced.
func (c *Coordinator) LoadMilestones(ctx context.Context, id int64) []project.Milestone {
	key := cache.MilestonesKey(id)
	if v, ok := c.store.Get(key); ok {
		return v.([]project.Milestone)
	}

	v, err, _ := c.group.Do(string(key), func() (any, error) {
		ms, err := c.api.GetMilestones(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.projectStillActive(id) {
			c.store.Put(key, ms)
		}
		return ms, nil
	})
	if err != nil {
		c.logger.Warn("milestones fetch degraded to empty", "project_id", id, "error", err)
		return []project.Milestone{}
	}
	return v.([]project.Milestone)
}

// LoadTeam returns the team roster for a project, degrading to empty on
// failure.
func (c *Coordinator) LoadTeam(ctx context.Context, id int64) []project.TeamMember {
	key := cache.TeamKey(id)
	if v, ok := c.store.Get(key); ok {
		return v.([]project.TeamMember)
	}

	v, err, _ := c.group.Do(string(key), func() (any, error) {
		team, err := c.api.GetTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.projectStillActive(id) {
			c.store.Put(key, team)
		}
		return team, nil
	})
	if err != nil {
		c.logger.Warn("team fetch degraded to empty", "project_id", id, "error", err)
		return []project.TeamMember{}
	}
	return v.([]project.TeamMember)
}

// LoadEvents returns the event timeline for a project, degrading to empty
// on failure.
func (c *Coordinator) LoadEvents(ctx context.Context, id int64) []project.EventItem {
	key := cache.EventsKey(id)
	if v, ok := c.store.Get(key); ok {
		return v.([]project.EventItem)
	}

	v, err, _ := c.group.Do(string(key), func() (any, error) {
		events, err := c.api.GetEvents(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.projectStillActive(id) {
			c.store.Put(key, events)
		}
		return events, nil
	})
	if err != nil {
		c.logger.Warn("events fetch degraded to empty", "project_id", id, "error", err)
		return []project.EventItem{}
	}
	return v.([]project.EventItem)
}

// LoadList returns one page of projects for the query, fetching on a miss
// or after invalidation. The query becomes the active list target; a
// result landing after another query took over is not cached.
func (c *Coordinator) LoadList(ctx context.Context, q project.ListQuery) (project.ListResult, error) {
	q = q.Normalize()
	key := cache.ListKey(q)
	c.activeList.Store(q.Key())

	if v, ok := c.store.Get(key); ok {
		return v.(project.ListResult), nil
	}

	v, err, _ := c.group.Do(string(key), func() (any, error) {
		res, err := c.api.ListProjects(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("loading project list: %w", err)
		}
		if c.listStillActive(q) {
			c.store.Put(key, res)
		}
		return res, nil
	})
	if err != nil {
		return project.ListResult{}, err
	}
	return v.(project.ListResult), nil
}

// LoadDetail makes id the active detail target and fans out the project,
// milestone, team and event fetches concurrently. It resolves when all four
// settle; sub-resource failures degrade, a project failure fails the whole
// load.
func (c *Coordinator) LoadDetail(ctx context.Context, id int64) (Detail, error) {
	c.activeProject.Store(id)

	var detail Detail
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.LoadProject(ctx, id)
		detail.Project = p
		return err
	})
	g.Go(func() error {
		detail.Milestones = c.LoadMilestones(ctx, id)
		return nil
	})
	g.Go(func() error {
		detail.Team = c.LoadTeam(ctx, id)
		return nil
	})
	g.Go(func() error {
		detail.Events = c.LoadEvents(ctx, id)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// CloseDetail clears the active detail target. Any in-flight fetch for the
// closed view completes without touching the cache.
func (c *Coordinator) CloseDetail() {
	c.activeProject.Store(0)
}

// ActiveQuery returns the active list query when one is set. The bulk
// resolver refreshes it after a partial success.
func (c *Coordinator) ActiveQuery() (project.ListQuery, bool) {
	key := c.activeList.Load().(string)
	if key == "" {
		return project.ListQuery{}, false
	}
	q, err := project.ParseListKey(key)
	if err != nil {
		return project.ListQuery{}, false
	}
	return q, true
}

// RefreshProject bypasses the cache and fetches the authoritative entity,
// overwriting whatever the cache holds. Used for post-bulk reconciliation;
// the server result always wins over a local patch.
func (c *Coordinator) RefreshProject(ctx context.Context, id int64) (project.Project, error) {
	p, err := c.api.GetProject(ctx, id)
	if err != nil {
		return project.Project{}, fmt.Errorf("refreshing project %d: %w", id, err)
	}
	c.store.PutAuthoritative(cache.ProjectKey(id), p)
	return p, nil
}

// RefreshList bypasses the cache and refetches a list page, overwriting the
// cached entry.
func (c *Coordinator) RefreshList(ctx context.Context, q project.ListQuery) (project.ListResult, error) {
	q = q.Normalize()
	res, err := c.api.ListProjects(ctx, q)
	if err != nil {
		return project.ListResult{}, fmt.Errorf("refreshing project list: %w", err)
	}
	c.store.PutAuthoritative(cache.ListKey(q), res)
	return res, nil
}

// projectStillActive reports whether a completion for id may be applied to
// the cache: either no detail target is active, or id is still the target.
func (c *Coordinator) projectStillActive(id int64) bool {
	active := c.activeProject.Load()
	return active == 0 || active == id
}

func (c *Coordinator) listStillActive(q project.ListQuery) bool {
	active := c.activeList.Load().(string)
	return active == "" || active == q.Key()
}
