// Package remote declares the surface of the remote project store as the
// synchronization core consumes it. The HTTP client in internal/transport
// implements it; tests substitute the testify mocks in remote/mocks.
package remote

import (
	"context"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
)

// Reader covers the request/response read surface of the store.
type Reader interface {
	ListProjects(ctx context.Context, query project.ListQuery) (project.ListResult, error)
	GetProject(ctx context.Context, id int64) (project.Project, error)
	GetMilestones(ctx context.Context, projectID int64) ([]project.Milestone, error)
	GetTeam(ctx context.Context, projectID int64) ([]project.TeamMember, error)
	GetEvents(ctx context.Context, projectID int64) ([]project.EventItem, error)
}

// Writer covers single-entity mutations. Every successful call returns the
// server's authoritative representation where the protocol provides one.
type Writer interface {
	CreateProject(ctx context.Context, draft project.Draft) (project.Project, error)
	UpdateProject(ctx context.Context, id int64, patch map[string]any) (project.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	RecoverProject(ctx context.Context, id int64) (project.Project, error)
}

// BulkWriter executes multi-entity mutations under per-entity version checks.
type BulkWriter interface {
	BulkUpdate(ctx context.Context, req project.BulkRequest) (project.BulkResponse, error)
}

// API is the full remote surface the coordinators are wired against.
type API interface {
	Reader
	Writer
	BulkWriter
}
