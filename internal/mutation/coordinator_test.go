package mutation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/cache"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/mutation"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/remote/mocks"
)

func TestCoordinator_Create_CachesEntityAndInvalidatesLists(t *testing.T) {
	ctx := context.Background()
	store := cache.New()
	api := &mocks.API{}

	listKey := cache.ListKey(project.ListQuery{Page: 1})
	store.Put(listKey, project.ListResult{Total: 3})

	created := project.Project{ID: 42, Title: "Zephyr", Version: 1}
	api.On("CreateProject", ctx, mock.Anything).Return(created, nil)

	c := mutation.New(api, store, nil)
	p, err := c.Create(ctx, project.Draft{Title: "Zephyr"})
	require.NoError(t, err)
	require.Equal(t, int64(42), p.ID)

	cached, ok := store.Get(cache.ProjectKey(42))
	require.True(t, ok)
	require.Equal(t, "Zephyr", cached.(project.Project).Title)

	_, ok = store.Get(listKey)
	require.False(t, ok, "list pages must be stale after create")
}

func TestCoordinator_Update_ReplacesWithServerRepresentation(t *testing.T) {
	ctx := context.Background()
	store := cache.New()
	api := &mocks.API{}

	store.Put(cache.ProjectKey(7), project.Project{ID: 7, Title: "old", Progress: 10, Version: 3})

	// The server bumped more than the caller asked for; its representation
	// replaces the cached entity wholesale.
	server := project.Project{ID: 7, Title: "old", Progress: 60, Version: 4}
	api.On("UpdateProject", ctx, int64(7), map[string]any{"progress": 60}).Return(server, nil)

	c := mutation.New(api, store, nil)
	p, err := c.Update(ctx, 7, map[string]any{"progress": 60})
	require.NoError(t, err)
	require.Equal(t, server, p)

	cached, _ := store.Get(cache.ProjectKey(7))
	require.Equal(t, server, cached.(project.Project))
}

func TestCoordinator_Update_FailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	store := cache.New()
	api := &mocks.API{}

	before := project.Project{ID: 7, Title: "old", Version: 3}
	store.Put(cache.ProjectKey(7), before)
	api.On("UpdateProject", ctx, int64(7), mock.Anything).
		Return(project.Project{}, errors.New("boom"))

	c := mutation.New(api, store, nil)
	_, err := c.Update(ctx, 7, map[string]any{"title": "new"})
	require.Error(t, err)

	cached, ok := store.Get(cache.ProjectKey(7))
	require.True(t, ok)
	require.Equal(t, before, cached.(project.Project))
}

func TestCoordinator_SoftDelete_MarksDeletedAndInvalidatesLists(t *testing.T) {
	ctx := context.Background()
	store := cache.New()
	api := &mocks.API{}

	store.Put(cache.ProjectKey(7), project.Project{ID: 7, Version: 3})
	listKey := cache.ListKey(project.ListQuery{Page: 1})
	store.Put(listKey, project.ListResult{Total: 1})

	api.On("DeleteProject", ctx, int64(7)).Return(nil)

	c := mutation.New(api, store, nil)
	require.NoError(t, c.SoftDelete(ctx, 7))

	cached, ok := store.Get(cache.ProjectKey(7))
	require.True(t, ok, "soft delete keeps the entity addressable")
	require.True(t, cached.(project.Project).Deleted())

	_, ok = store.Get(listKey)
	require.False(t, ok)
}

func TestCoordinator_SoftDelete_FailurePropagates(t *testing.T) {
	ctx := context.Background()
	store := cache.New()
	api := &mocks.API{}
	store.Put(cache.ProjectKey(7), project.Project{ID: 7, Version: 3})
	api.On("DeleteProject", ctx, int64(7)).Return(errors.New("boom"))

	c := mutation.New(api, store, nil)
	require.Error(t, c.SoftDelete(ctx, 7))

	cached, _ := store.Get(cache.ProjectKey(7))
	require.False(t, cached.(project.Project).Deleted())
}

func TestCoordinator_Recover_ReplacesEntityAndInvalidatesLists(t *testing.T) {
	ctx := context.Background()
	store := cache.New()
	api := &mocks.API{}

	listKey := cache.ListKey(project.ListQuery{Page: 1})
	store.Put(listKey, project.ListResult{Total: 1})

	recovered := project.Project{ID: 7, Title: "back", Version: 5}
	api.On("RecoverProject", ctx, int64(7)).Return(recovered, nil)

	c := mutation.New(api, store, nil)
	p, err := c.Recover(ctx, 7)
	require.NoError(t, err)
	require.False(t, p.Deleted())

	cached, _ := store.Get(cache.ProjectKey(7))
	require.Equal(t, recovered, cached.(project.Project))

	_, ok := store.Get(listKey)
	require.False(t, ok, "recovery is symmetric to creation for invalidation")
}
