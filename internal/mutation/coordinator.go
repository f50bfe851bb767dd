// Package mutation executes single-entity writes against the remote store.
// The contract is confirm-then-apply: nothing touches the cache until the
// server has accepted the mutation, so there is no rollback logic.
package mutation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/cache"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/remote"
)

// Coordinator applies server-confirmed mutation results to the cache.
type Coordinator struct {
	api    remote.Writer
	store  *cache.Store
	logger *slog.Logger
}

// New creates a mutation coordinator.
func New(api remote.Writer, store *cache.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{api: api, store: store, logger: logger}
}

// Create posts a new project, caches the returned entity and invalidates
// every list page: the new entity may match any filter or sort.
func (c *Coordinator) Create(ctx context.Context, draft project.Draft) (project.Project, error) {
	p, err := c.api.CreateProject(ctx, draft)
	if err != nil {
		return project.Project{}, fmt.Errorf("creating project: %w", err)
	}

	c.store.Put(cache.ProjectKey(p.ID), p)
	c.store.InvalidateLists()
	c.logger.Info("project created", "id", p.ID, "title", p.Title)
	return p, nil
}

// Update applies a partial update. On success the cached entity is replaced
// wholesale with the server's representation; locally computed fields are
// never merged in. On failure the cache is untouched and the error reaches
// the caller.
func (c *Coordinator) Update(ctx context.Context, id int64, patch map[string]any) (project.Project, error) {
	p, err := c.api.UpdateProject(ctx, id, patch)
	if err != nil {
		return project.Project{}, fmt.Errorf("updating project %d: %w", id, err)
	}

	// List rows catch up through the server's own project_updated push.
	c.store.Put(cache.ProjectKey(id), p)
	return p, nil
}

// SoftDelete marks a project deleted. The endpoint returns no body, so the
// cached entity is patched directly; the server's own timestamp lands with
// the next refetch or push delta. List pages are invalidated.
func (c *Coordinator) SoftDelete(ctx context.Context, id int64) error {
	if err := c.api.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("deleting project %d: %w", id, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	c.store.PatchProject(id, map[string]any{"deleted_at": now})
	c.store.InvalidateLists()
	c.logger.Info("project soft-deleted", "id", id)
	return nil
}

// Recover clears a project's soft-delete mark. Symmetric to creation for
// invalidation purposes: the entity may reappear in any list page.
func (c *Coordinator) Recover(ctx context.Context, id int64) (project.Project, error) {
	p, err := c.api.RecoverProject(ctx, id)
	if err != nil {
		return project.Project{}, fmt.Errorf("recovering project %d: %w", id, err)
	}

	c.store.Put(cache.ProjectKey(id), p)
	c.store.InvalidateLists()
	c.logger.Info("project recovered", "id", id)
	return p, nil
}
