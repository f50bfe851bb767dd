// Package transport is the thin HTTP wrapper around the remote project
// store. It implements remote.API: request building, JSON decoding, the
// error-body contract, and per-entity normalization at the boundary.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
)

const defaultTimeout = 30 * time.Second

// Client talks to the remote store over HTTP. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the store at baseURL. A nil logger
// discards log output.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    trimTrailingSlash(baseURL),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// ListProjects fetches one page of projects.
func (c *Client) ListProjects(ctx context.Context, query project.ListQuery) (project.ListResult, error) {
	var out project.ListResult
	if err := c.do(ctx, http.MethodGet, "/projects", query.Values(), nil, &out); err != nil {
		return project.ListResult{}, err
	}
	project.NormalizeList(&out)
	return out, nil
}

// GetProject fetches a single project by id.
func (c *Client) GetProject(ctx context.Context, id int64) (project.Project, error) {
	var out project.Project
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d", id), nil, nil, &out); err != nil {
		return project.Project{}, err
	}
	project.Normalize(&out)
	return out, nil
}

// GetMilestones fetches the milestone collection of a project.
func (c *Client) GetMilestones(ctx context.Context, projectID int64) ([]project.Milestone, error) {
	var out []project.Milestone
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/milestones", projectID), nil, nil, &out); err != nil {
		return nil, err
	}
	return project.NormalizeMilestones(out), nil
}

// GetTeam fetches the team roster of a project.
func (c *Client) GetTeam(ctx context.Context, projectID int64) ([]project.TeamMember, error) {
	var out []project.TeamMember
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/team", projectID), nil, nil, &out); err != nil {
		return nil, err
	}
	return project.NormalizeTeam(out), nil
}

// GetEvents fetches the event timeline of a project.
func (c *Client) GetEvents(ctx context.Context, projectID int64) ([]project.EventItem, error) {
	var out []project.EventItem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/events", projectID), nil, nil, &out); err != nil {
		return nil, err
	}
	return project.NormalizeEvents(out), nil
}

// CreateProject creates a project and returns the server representation.
func (c *Client) CreateProject(ctx context.Context, draft project.Draft) (project.Project, error) {
	var out project.Project
	if err := c.do(ctx, http.MethodPost, "/projects", nil, draft, &out); err != nil {
		return project.Project{}, err
	}
	project.Normalize(&out)
	return out, nil
}

// UpdateProject applies a partial update and returns the server
// representation of the whole entity.
func (c *Client) UpdateProject(ctx context.Context, id int64, patch map[string]any) (project.Project, error) {
	var out project.Project
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/projects/%d", id), nil, patch, &out); err != nil {
		return project.Project{}, err
	}
	project.Normalize(&out)
	return out, nil
}

// DeleteProject soft-deletes a project. The endpoint returns no body.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/projects/%d", id), nil, nil, nil)
}

// RecoverProject clears a project's soft-delete mark and returns the
// server representation.
func (c *Client) RecoverProject(ctx context.Context, id int64) (project.Project, error) {
	var out project.Project
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/recover", id), nil, nil, &out); err != nil {
		return project.Project{}, err
	}
	project.Normalize(&out)
	return out, nil
}

// BulkUpdate submits a multi-entity mutation and returns its per-id outcome.
func (c *Client) BulkUpdate(ctx context.Context, req project.BulkRequest) (project.BulkResponse, error) {
	var out project.BulkResponse
	if err := c.do(ctx, http.MethodPost, "/projects/bulk", nil, req, &out); err != nil {
		return project.BulkResponse{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{Status: resp.StatusCode, Message: collapseDetail(resp.StatusCode, raw)}
		c.logger.Debug("request failed", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response for %s %s: %w", method, path, err)
	}
	return nil
}
