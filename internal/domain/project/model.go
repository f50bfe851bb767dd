package project

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusActive    Status = "active"
	StatusPlanning  Status = "planning"
	StatusCompleted Status = "completed"
	StatusInactive  Status = "inactive"
)

// Health is the traffic-light health indicator of a project.
type Health string

const (
	HealthGreen  Health = "green"
	HealthYellow Health = "yellow"
	HealthRed    Health = "red"
)

// Project is the server-derived representation of a project. Version is the
// optimistic concurrency token; it strictly increases on every accepted
// mutation, and the cache rejects overwrites that do not advance it.
type Project struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Owner       string     `json:"owner"`
	Status      Status     `json:"status"`
	Health      Health     `json:"health"`
	Tags        []string   `json:"tags"`
	Progress    int        `json:"progress"`
	LastUpdated time.Time  `json:"last_updated"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	Version     int64      `json:"version"`
}

// Deleted reports whether the project is soft-deleted.
func (p Project) Deleted() bool {
	return p.DeletedAt != nil
}

// HasTag reports whether the project carries the given tag.
func (p Project) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy of the project with its own tags slice, so cached
// values never share mutable state with callers.
func (p Project) Clone() Project {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// Draft carries the caller-supplied fields for project creation.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Health      Health   `json:"health,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Progress    int      `json:"progress,omitempty"`
}

// Milestone belongs to a project via ProjectID; the reference is not an
// ownership edge.
type Milestone struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Title     string `json:"title"`
	Done      bool   `json:"done"`
}

// TeamMember is a person assigned to a project with a fractional capacity.
type TeamMember struct {
	ID        int64   `json:"id"`
	ProjectID int64   `json:"project_id"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	Capacity  float64 `json:"capacity"`
}

// EventItem is one entry of a project's append-only activity timeline.
type EventItem struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// SortEventsDesc orders events newest-first, breaking timestamp ties by
// descending id so the order is deterministic.
func SortEventsDesc(events []EventItem) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.After(events[j].At)
		}
		return events[i].ID > events[j].ID
	})
}

// ListResult is one page of projects together with the total match count.
type ListResult struct {
	Items    []Project `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// Clone deep-copies the result so cached pages can be patched in place
// without aliasing values already handed to callers.
func (r ListResult) Clone() ListResult {
	out := r
	out.Items = make([]Project, len(r.Items))
	for i, p := range r.Items {
		out.Items[i] = p.Clone()
	}
	return out
}
