package server_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/server"
)

func newStore(t *testing.T) *server.Store {
	t.Helper()
	db, err := server.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return server.NewStore(db)
}

func mustCreate(t *testing.T, s *server.Store, d project.Draft) project.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), d)
	require.NoError(t, err)
	return p
}

func TestCreateProjectDefaults(t *testing.T) {
	s := newStore(t)

	p := mustCreate(t, s, project.Draft{Title: "Alpha"})
	require.Equal(t, project.StatusActive, p.Status)
	require.Equal(t, project.HealthGreen, p.Health)
	require.Equal(t, []string{}, p.Tags)
	require.Equal(t, int64(1), p.Version)

	events, err := s.Events(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "created", events[0].Kind)
}

func TestCreateProjectRejectsBlankTitle(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateProject(context.Background(), project.Draft{Title: "  "})
	require.ErrorIs(t, err, project.ErrInvalidInput)
}

func TestCreateProjectDeduplicatesTags(t *testing.T) {
	s := newStore(t)
	p := mustCreate(t, s, project.Draft{Title: "Alpha", Tags: []string{"b", "a", "b", " "}})
	require.Equal(t, []string{"a", "b"}, p.Tags)
}

func TestUpdateProjectBumpsVersionAndReportsChanges(t *testing.T) {
	s := newStore(t)
	p := mustCreate(t, s, project.Draft{Title: "Alpha"})

	updated, changed, err := s.UpdateProject(context.Background(), p.ID,
		map[string]any{"status": "completed", "progress": float64(100)}, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"status", "progress"}, changed)
	require.Equal(t, project.StatusCompleted, updated.Status)
	require.Equal(t, 100, updated.Progress)
	require.Equal(t, int64(2), updated.Version)
}

func TestUpdateProjectNoopDoesNotBump(t *testing.T) {
	s := newStore(t)
	p := mustCreate(t, s, project.Draft{Title: "Alpha", Owner: "ada"})

	updated, changed, err := s.UpdateProject(context.Background(), p.ID,
		map[string]any{"owner": "ada"}, nil)
	require.NoError(t, err)
	require.Empty(t, changed)
	require.Equal(t, int64(1), updated.Version)
}

func TestUpdateProjectVersionPrecondition(t *testing.T) {
	s := newStore(t)
	p := mustCreate(t, s, project.Draft{Title: "Alpha"})

	wrong := p.Version + 5
	_, _, err := s.UpdateProject(context.Background(), p.ID,
		map[string]any{"title": "Beta"}, &wrong)
	require.ErrorIs(t, err, project.ErrVersionMismatch)

	right := p.Version
	updated, _, err := s.UpdateProject(context.Background(), p.ID,
		map[string]any{"title": "Beta"}, &right)
	require.NoError(t, err)
	require.Equal(t, "Beta", updated.Title)
}

func TestUpdateProjectRejectsBadValues(t *testing.T) {
	s := newStore(t)
	p := mustCreate(t, s, project.Draft{Title: "Alpha"})

	_, _, err := s.UpdateProject(context.Background(), p.ID,
		map[string]any{"status": "paused"}, nil)
	require.ErrorIs(t, err, project.ErrInvalidInput)

	_, _, err = s.UpdateProject(context.Background(), p.ID,
		map[string]any{"progress": float64(150)}, nil)
	require.ErrorIs(t, err, project.ErrInvalidInput)
}

func TestSoftDeleteAndRecover(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p := mustCreate(t, s, project.Draft{Title: "Alpha"})

	require.NoError(t, s.SoftDeleteProject(ctx, p.ID))

	_, err := s.GetProject(ctx, p.ID, false)
	require.ErrorIs(t, err, project.ErrNotFound)

	got, err := s.GetProject(ctx, p.ID, true)
	require.NoError(t, err)
	require.True(t, got.Deleted())

	recovered, err := s.RecoverProject(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, recovered.Deleted())

	_, err = s.RecoverProject(ctx, p.ID)
	require.ErrorIs(t, err, project.ErrNotRecoverable)
}

func TestListProjectsFiltersAndPaging(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	mustCreate(t, s, project.Draft{Title: "Alpha", Owner: "ada", Tags: []string{"infra"}})
	mustCreate(t, s, project.Draft{Title: "Beta", Owner: "ada", Status: project.StatusPlanning})
	mustCreate(t, s, project.Draft{Title: "Gamma", Owner: "grace", Tags: []string{"infrastructure"}})

	byOwner, err := s.ListProjects(ctx, project.ListQuery{Owner: "ada"})
	require.NoError(t, err)
	require.Equal(t, 2, byOwner.Total)

	// Tag matching is exact, not substring.
	byTag, err := s.ListProjects(ctx, project.ListQuery{Tag: "infra"})
	require.NoError(t, err)
	require.Equal(t, 1, byTag.Total)
	require.Equal(t, "Alpha", byTag.Items[0].Title)

	paged, err := s.ListProjects(ctx, project.ListQuery{Page: 2, PageSize: 2, SortBy: "title", SortDir: "asc"})
	require.NoError(t, err)
	require.Equal(t, 3, paged.Total)
	require.Len(t, paged.Items, 1)
	require.Equal(t, "Gamma", paged.Items[0].Title)
}

func TestListProjectsSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	mustCreate(t, s, project.Draft{Title: "Billing revamp", Description: "invoices"})
	mustCreate(t, s, project.Draft{Title: "Search", Description: "ranking"})

	res, err := s.ListProjects(ctx, project.ListQuery{Search: "INVOICE"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Equal(t, "Billing revamp", res.Items[0].Title)
}

func TestListProjectsExcludesDeletedByDefault(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p := mustCreate(t, s, project.Draft{Title: "Alpha"})
	mustCreate(t, s, project.Draft{Title: "Beta"})
	require.NoError(t, s.SoftDeleteProject(ctx, p.ID))

	res, err := s.ListProjects(ctx, project.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)

	all, err := s.ListProjects(ctx, project.ListQuery{IncludeDeleted: true})
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)
}

func TestBulkUpdateAppliesPerID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := mustCreate(t, s, project.Draft{Title: "Alpha"})
	b := mustCreate(t, s, project.Draft{Title: "Beta"})
	c := mustCreate(t, s, project.Draft{Title: "Gamma"})

	// Drift b so its expected version no longer matches.
	_, _, err := s.UpdateProject(ctx, b.ID, map[string]any{"owner": "grace"}, nil)
	require.NoError(t, err)

	resp, patches, err := s.BulkUpdate(ctx, project.BulkRequest{
		Action:    project.BulkUpdateStatus,
		IDs:       []int64{a.ID, b.ID, c.ID},
		NewStatus: project.StatusCompleted,
		ExpectedVersions: map[int64]int64{
			a.ID: 1, b.ID: 1, c.ID: 1,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.UpdatedCount)
	require.Len(t, resp.Conflicts, 1)
	require.Equal(t, b.ID, resp.Conflicts[0].ID)
	require.Equal(t, int64(2), resp.Conflicts[0].Found)

	require.Contains(t, patches, a.ID)
	require.NotContains(t, patches, b.ID)
	require.Equal(t, "completed", patches[a.ID]["status"])
	require.Equal(t, int64(2), patches[a.ID]["version"])

	// The conflicting project kept its status.
	got, err := s.GetProject(ctx, b.ID, false)
	require.NoError(t, err)
	require.Equal(t, project.StatusActive, got.Status)
}

func TestBulkUpdateMissingProjectIsConflict(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := mustCreate(t, s, project.Draft{Title: "Alpha"})

	resp, _, err := s.BulkUpdate(ctx, project.BulkRequest{
		Action:           project.BulkAddTag,
		IDs:              []int64{a.ID, 999},
		Tag:              "q3",
		ExpectedVersions: map[int64]int64{a.ID: 1, 999: 4},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.UpdatedCount)
	require.Len(t, resp.Conflicts, 1)
	require.Equal(t, int64(999), resp.Conflicts[0].ID)
	require.Equal(t, int64(-1), resp.Conflicts[0].Found)
}

func TestBulkTagOperations(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p := mustCreate(t, s, project.Draft{Title: "Alpha", Tags: []string{"infra"}})

	resp, _, err := s.BulkUpdate(ctx, project.BulkRequest{
		Action:           project.BulkAddTag,
		IDs:              []int64{p.ID},
		Tag:              "q3",
		ExpectedVersions: map[int64]int64{p.ID: 1},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.UpdatedCount)

	got, err := s.GetProject(ctx, p.ID, false)
	require.NoError(t, err)
	require.Equal(t, []string{"infra", "q3"}, got.Tags)

	resp, _, err = s.BulkUpdate(ctx, project.BulkRequest{
		Action:           project.BulkRemoveTag,
		IDs:              []int64{p.ID},
		Tag:              "infra",
		ExpectedVersions: map[int64]int64{p.ID: 2},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.UpdatedCount)

	got, err = s.GetProject(ctx, p.ID, false)
	require.NoError(t, err)
	require.Equal(t, []string{"q3"}, got.Tags)
	require.Equal(t, int64(3), got.Version)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Seed(ctx))
	first, err := s.ListProjects(ctx, project.ListQuery{IncludeDeleted: true, PageSize: 100})
	require.NoError(t, err)
	require.NotEmpty(t, first.Items)

	require.NoError(t, s.Seed(ctx))
	second, err := s.ListProjects(ctx, project.ListQuery{IncludeDeleted: true, PageSize: 100})
	require.NoError(t, err)
	require.Equal(t, first.Total, second.Total)
}
