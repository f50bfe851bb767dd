package mocks

import (
	"context"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/stretchr/testify/mock"
)

// API is a mock for remote.API.
type API struct {
	mock.Mock
}

func (m *API) ListProjects(ctx context.Context, query project.ListQuery) (project.ListResult, error) {
	args := m.Called(ctx, query)
	if res, ok := args.Get(0).(project.ListResult); ok {
		return res, args.Error(1)
	}
	return project.ListResult{}, args.Error(1)
}

func (m *API) GetProject(ctx context.Context, id int64) (project.Project, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(project.Project); ok {
		return p, args.Error(1)
	}
	return project.Project{}, args.Error(1)
}

func (m *API) GetMilestones(ctx context.Context, projectID int64) ([]project.Milestone, error) {
	args := m.Called(ctx, projectID)
	if ms, ok := args.Get(0).([]project.Milestone); ok {
		return ms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *API) GetTeam(ctx context.Context, projectID int64) ([]project.TeamMember, error) {
	args := m.Called(ctx, projectID)
	if team, ok := args.Get(0).([]project.TeamMember); ok {
		return team, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *API) GetEvents(ctx context.Context, projectID int64) ([]project.EventItem, error) {
	args := m.Called(ctx, projectID)
	if events, ok := args.Get(0).([]project.EventItem); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *API) CreateProject(ctx context.Context, draft project.Draft) (project.Project, error) {
	args := m.Called(ctx, draft)
	if p, ok := args.Get(0).(project.Project); ok {
		return p, args.Error(1)
	}
	return project.Project{}, args.Error(1)
}

func (m *API) UpdateProject(ctx context.Context, id int64, patch map[string]any) (project.Project, error) {
	args := m.Called(ctx, id, patch)
	if p, ok := args.Get(0).(project.Project); ok {
		return p, args.Error(1)
	}
	return project.Project{}, args.Error(1)
}

func (m *API) DeleteProject(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *API) RecoverProject(ctx context.Context, id int64) (project.Project, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(project.Project); ok {
		return p, args.Error(1)
	}
	return project.Project{}, args.Error(1)
}

func (m *API) BulkUpdate(ctx context.Context, req project.BulkRequest) (project.BulkResponse, error) {
	args := m.Called(ctx, req)
	if res, ok := args.Get(0).(project.BulkResponse); ok {
		return res, args.Error(1)
	}
	return project.BulkResponse{}, args.Error(1)
}
