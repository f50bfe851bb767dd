package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
)

// Store is the sqlite persistence layer of the reference backend.
type Store struct {
	db *DB
}

// NewStore creates a Store over an open database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// tagsToStr flattens a tag list into the stored form: sorted, deduplicated,
// comma-joined.
func tagsToStr(tags []string) string {
	set := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = true
		}
	}
	cleaned := make([]string, 0, len(set))
	for t := range set {
		cleaned = append(cleaned, t)
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, ",")
}

func strToTags(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

const projectColumns = "id, title, description, owner, status, health, tags, progress, last_updated, deleted_at, version"

func scanProject(row interface{ Scan(...any) error }) (project.Project, error) {
	var p project.Project
	var tags string
	var deletedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Owner,
		&p.Status, &p.Health, &tags, &p.Progress,
		&p.LastUpdated, &deletedAt, &p.Version,
	)
	if err != nil {
		return project.Project{}, err
	}
	p.Tags = strToTags(tags)
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return p, nil
}

var sortColumns = map[string]string{
	"title":        "title",
	"owner":        "owner",
	"status":       "status",
	"health":       "health",
	"progress":     "progress",
	"last_updated": "last_updated",
}

// ListProjects returns one filtered, sorted page of projects.
func (s *Store) ListProjects(ctx context.Context, q project.ListQuery) (project.ListResult, error) {
	q = q.Normalize()

	var where []string
	var args []any
	if !q.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, q.Owner)
	}
	if q.Health != "" {
		where = append(where, "health = ?")
		args = append(args, string(q.Health))
	}
	if q.Tag != "" {
		where = append(where, "(',' || tags || ',') LIKE ?")
		args = append(args, "%,"+q.Tag+",%")
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		where = append(where, "(lower(title) LIKE ? OR lower(description) LIKE ? OR lower(tags) LIKE ? OR lower(owner) LIKE ?)")
		args = append(args, like, like, like, like)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects"+clause, args...).Scan(&total); err != nil {
		return project.ListResult{}, fmt.Errorf("counting projects: %w", err)
	}

	dir := "DESC"
	if q.SortDir == "asc" {
		dir = "ASC"
	}
	// The id tiebreak keeps pages deterministic for equal sort values.
	order := fmt.Sprintf(" ORDER BY %s %s, id %s", sortColumns[q.SortBy], dir, dir)
	limit := " LIMIT ? OFFSET ?"
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := s.db.QueryContext(ctx, "SELECT "+projectColumns+" FROM projects"+clause+order+limit, args...)
	if err != nil {
		return project.ListResult{}, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	items := []project.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return project.ListResult{}, fmt.Errorf("scanning project: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return project.ListResult{}, err
	}

	return project.ListResult{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// GetProject fetches one project. Soft-deleted projects are only visible
// when includeDeleted is set.
func (s *Store) GetProject(ctx context.Context, id int64, includeDeleted bool) (project.Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, project.ErrNotFound
	}
	if err != nil {
		return project.Project{}, fmt.Errorf("getting project %d: %w", id, err)
	}
	if p.Deleted() && !includeDeleted {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

var validStatus = map[project.Status]bool{
	project.StatusActive: true, project.StatusPlanning: true,
	project.StatusCompleted: true, project.StatusInactive: true,
}

var validHealth = map[project.Health]bool{
	project.HealthGreen: true, project.HealthYellow: true, project.HealthRed: true,
}

// CreateProject inserts a new project and its creation event.
func (s *Store) CreateProject(ctx context.Context, draft project.Draft) (project.Project, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return project.Project{}, fmt.Errorf("%w: title is required", project.ErrInvalidInput)
	}
	p := project.Project{
		Title:       draft.Title,
		Description: draft.Description,
		Owner:       draft.Owner,
		Status:      draft.Status,
		Health:      draft.Health,
		Tags:        draft.Tags,
		Progress:    draft.Progress,
		LastUpdated: time.Now().UTC(),
	}
	project.Normalize(&p)
	if !validStatus[p.Status] {
		return project.Project{}, fmt.Errorf("%w: unknown status %q", project.ErrInvalidInput, p.Status)
	}
	if !validHealth[p.Health] {
		return project.Project{}, fmt.Errorf("%w: unknown health %q", project.ErrInvalidInput, p.Health)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (title, description, owner, status, health, tags, progress, last_updated, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		p.Title, p.Description, p.Owner, string(p.Status), string(p.Health),
		tagsToStr(p.Tags), p.Progress, p.LastUpdated,
	)
	if err != nil {
		return project.Project{}, fmt.Errorf("creating project: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return project.Project{}, err
	}
	p.Version = 1
	p.Tags = strToTags(tagsToStr(p.Tags))

	s.appendEvent(ctx, p.ID, "created", fmt.Sprintf("Project %q created", p.Title), p.LastUpdated)
	return p, nil
}

// Updatable fields and their change detection, shared by single and bulk
// updates.
func applyField(p *project.Project, field string, value any) (bool, error) {
	switch field {
	case "title":
		if s, ok := value.(string); ok && s != p.Title {
			p.Title = s
			return true, nil
		}
	case "description":
		if s, ok := value.(string); ok && s != p.Description {
			p.Description = s
			return true, nil
		}
	case "owner":
		if s, ok := value.(string); ok && s != p.Owner {
			p.Owner = s
			return true, nil
		}
	case "status":
		s, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("%w: status must be a string", project.ErrInvalidInput)
		}
		if !validStatus[project.Status(s)] {
			return false, fmt.Errorf("%w: unknown status %q", project.ErrInvalidInput, s)
		}
		if project.Status(s) != p.Status {
			p.Status = project.Status(s)
			return true, nil
		}
	case "health":
		s, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("%w: health must be a string", project.ErrInvalidInput)
		}
		if !validHealth[project.Health(s)] {
			return false, fmt.Errorf("%w: unknown health %q", project.ErrInvalidInput, s)
		}
		if project.Health(s) != p.Health {
			p.Health = project.Health(s)
			return true, nil
		}
	case "progress":
		n, ok := value.(float64)
		if !ok {
			return false, fmt.Errorf("%w: progress must be a number", project.ErrInvalidInput)
		}
		v := int(n)
		if v < 0 || v > 100 {
			return false, fmt.Errorf("%w: progress must be 0..100", project.ErrInvalidInput)
		}
		if v != p.Progress {
			p.Progress = v
			return true, nil
		}
	case "tags":
		raw, ok := value.([]any)
		if !ok {
			return false, fmt.Errorf("%w: tags must be a list of strings", project.ErrInvalidInput)
		}
		tags := make([]string, 0, len(raw))
		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				return false, fmt.Errorf("%w: tags must be a list of strings", project.ErrInvalidInput)
			}
			tags = append(tags, s)
		}
		next := tagsToStr(tags)
		if next != tagsToStr(p.Tags) {
			p.Tags = strToTags(next)
			return true, nil
		}
	}
	// Unknown fields are ignored, matching lenient partial updates.
	return false, nil
}

// UpdateProject applies a partial update. When expected is non-nil the
// project's live version must match it. Returns the updated project and the
// list of fields that actually changed.
func (s *Store) UpdateProject(ctx context.Context, id int64, patch map[string]any, expected *int64) (project.Project, []string, error) {
	p, err := s.GetProject(ctx, id, false)
	if err != nil {
		return project.Project{}, nil, err
	}
	if expected != nil && *expected != p.Version {
		return project.Project{}, nil, fmt.Errorf("%w: expected %d, found %d", project.ErrVersionMismatch, *expected, p.Version)
	}

	var changed []string
	for _, field := range []string{"title", "description", "owner", "status", "health", "progress", "tags"} {
		value, ok := patch[field]
		if !ok {
			continue
		}
		did, err := applyField(&p, field, value)
		if err != nil {
			return project.Project{}, nil, err
		}
		if did {
			changed = append(changed, field)
		}
	}

	if len(changed) == 0 {
		return p, nil, nil
	}

	p.Version++
	p.LastUpdated = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE projects
		SET title = ?, description = ?, owner = ?, status = ?, health = ?, tags = ?, progress = ?, last_updated = ?, version = ?
		WHERE id = ?`,
		p.Title, p.Description, p.Owner, string(p.Status), string(p.Health),
		tagsToStr(p.Tags), p.Progress, p.LastUpdated, p.Version, id,
	)
	if err != nil {
		return project.Project{}, nil, fmt.Errorf("updating project %d: %w", id, err)
	}

	s.appendEvent(ctx, id, "updated", "Updated: "+strings.Join(changed, ", "), p.LastUpdated)
	return p, changed, nil
}

// SoftDeleteProject marks a project deleted and bumps its version.
func (s *Store) SoftDeleteProject(ctx context.Context, id int64) error {
	p, err := s.GetProject(ctx, id, false)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		"UPDATE projects SET deleted_at = ?, version = ? WHERE id = ?",
		now, p.Version+1, id,
	)
	if err != nil {
		return fmt.Errorf("deleting project %d: %w", id, err)
	}
	s.appendEvent(ctx, id, "deleted", "Soft deleted", now)
	return nil
}

// RecoverProject clears the soft-delete mark. Recovering a live project is
// an error.
func (s *Store) RecoverProject(ctx context.Context, id int64) (project.Project, error) {
	p, err := s.GetProject(ctx, id, true)
	if err != nil {
		return project.Project{}, err
	}
	if !p.Deleted() {
		return project.Project{}, project.ErrNotRecoverable
	}
	p.DeletedAt = nil
	p.Version++
	p.LastUpdated = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		"UPDATE projects SET deleted_at = NULL, version = ?, last_updated = ? WHERE id = ?",
		p.Version, p.LastUpdated, id,
	)
	if err != nil {
		return project.Project{}, fmt.Errorf("recovering project %d: %w", id, err)
	}
	s.appendEvent(ctx, id, "recovered", "Recovered from soft delete", p.LastUpdated)
	return p, nil
}

// BulkUpdate attempts the action on every id independently: when the live
// version matches the expected one the action is applied and the version
// bumped, otherwise the id is reported as a conflict and left untouched.
// The returned patches map carries, per updated id, the field patch to
// broadcast on the push stream.
func (s *Store) BulkUpdate(ctx context.Context, req project.BulkRequest) (project.BulkResponse, map[int64]map[string]any, error) {
	if err := req.Validate(); err != nil {
		return project.BulkResponse{}, nil, err
	}
	if req.Action == project.BulkUpdateStatus && !validStatus[req.NewStatus] {
		return project.BulkResponse{}, nil, fmt.Errorf("%w: unknown status %q", project.ErrInvalidInput, req.NewStatus)
	}

	now := time.Now().UTC()
	var resp project.BulkResponse
	patches := make(map[int64]map[string]any)

	for _, id := range req.IDs {
		p, err := s.GetProject(ctx, id, false)
		if errors.Is(err, project.ErrNotFound) {
			resp.Conflicts = append(resp.Conflicts, project.BulkConflict{
				ID: id, Expected: req.ExpectedVersions[id], Found: -1,
			})
			continue
		}
		if err != nil {
			return project.BulkResponse{}, nil, err
		}
		if p.Version != req.ExpectedVersions[id] {
			resp.Conflicts = append(resp.Conflicts, project.BulkConflict{
				ID: id, Expected: req.ExpectedVersions[id], Found: p.Version,
			})
			continue
		}

		patch := map[string]any{}
		switch req.Action {
		case project.BulkUpdateStatus:
			p.Status = req.NewStatus
			patch["status"] = string(p.Status)
		case project.BulkAddTag:
			if !p.HasTag(req.Tag) {
				p.Tags = append(p.Tags, req.Tag)
			}
			p.Tags = strToTags(tagsToStr(p.Tags))
			patch["tags"] = p.Tags
		case project.BulkRemoveTag:
			kept := p.Tags[:0:0]
			for _, t := range p.Tags {
				if t != req.Tag {
					kept = append(kept, t)
				}
			}
			p.Tags = kept
			patch["tags"] = p.Tags
		}

		p.Version++
		p.LastUpdated = now
		_, err = s.db.ExecContext(ctx,
			"UPDATE projects SET status = ?, tags = ?, last_updated = ?, version = ? WHERE id = ?",
			string(p.Status), tagsToStr(p.Tags), p.LastUpdated, p.Version, id,
		)
		if err != nil {
			return project.BulkResponse{}, nil, fmt.Errorf("bulk updating project %d: %w", id, err)
		}
		s.appendEvent(ctx, id, "bulk", fmt.Sprintf("Bulk %s", req.Action), now)

		patch["version"] = p.Version
		patch["last_updated"] = p.LastUpdated.Format(time.RFC3339)
		patches[id] = patch
		resp.UpdatedCount++
	}

	return resp, patches, nil
}

// Milestones returns the milestones of a project.
func (s *Store) Milestones(ctx context.Context, projectID int64) ([]project.Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, project_id, title, done FROM milestones WHERE project_id = ? ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	defer rows.Close()

	out := []project.Milestone{}
	for rows.Next() {
		var m project.Milestone
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Done); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMilestone inserts a milestone, used by seeding and tests.
func (s *Store) AddMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO milestones (project_id, title, done) VALUES (?, ?, ?)",
		m.ProjectID, m.Title, m.Done)
	if err != nil {
		return project.Milestone{}, fmt.Errorf("adding milestone: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return m, err
}

// Team returns the team roster of a project.
func (s *Store) Team(ctx context.Context, projectID int64) ([]project.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, project_id, name, role, capacity FROM team_members WHERE project_id = ? ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing team: %w", err)
	}
	defer rows.Close()

	out := []project.TeamMember{}
	for rows.Next() {
		var m project.TeamMember
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Role, &m.Capacity); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddTeamMember inserts a team member, used by seeding and tests.
func (s *Store) AddTeamMember(ctx context.Context, m project.TeamMember) (project.TeamMember, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO team_members (project_id, name, role, capacity) VALUES (?, ?, ?, ?)",
		m.ProjectID, m.Name, m.Role, m.Capacity)
	if err != nil {
		return project.TeamMember{}, fmt.Errorf("adding team member: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return m, err
}

// Events returns the event timeline of a project, newest first.
func (s *Store) Events(ctx context.Context, projectID int64) ([]project.EventItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, project_id, kind, message, at FROM events WHERE project_id = ? ORDER BY at DESC, id DESC", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	out := []project.EventItem{}
	for rows.Next() {
		var e project.EventItem
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Kind, &e.Message, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestEvent returns the newest event of a project, for broadcasting after
// a write.
func (s *Store) LatestEvent(ctx context.Context, projectID int64) (project.EventItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, project_id, kind, message, at FROM events WHERE project_id = ? ORDER BY at DESC, id DESC LIMIT 1", projectID)
	var e project.EventItem
	err := row.Scan(&e.ID, &e.ProjectID, &e.Kind, &e.Message, &e.At)
	if errors.Is(err, sql.ErrNoRows) {
		return project.EventItem{}, project.ErrNotFound
	}
	return e, err
}

// appendEvent records a timeline entry; failures are swallowed because the
// primary write already committed.
func (s *Store) appendEvent(ctx context.Context, projectID int64, kind, message string, at time.Time) {
	_, _ = s.db.ExecContext(ctx,
		"INSERT INTO events (project_id, kind, message, at) VALUES (?, ?, ?, ?)",
		projectID, kind, message, at)
}
