package project

// Default values filled in for fields the server omitted or zeroed. Applied
// exactly once, where server data enters the process, never at call sites.
const (
	defaultStatus    = StatusActive
	defaultHealth    = HealthGreen
	defaultVersion   = 1
	defaultEventKind = "update"
)

// Normalize fills safe defaults on a decoded project in place.
func Normalize(p *Project) {
	if p.Status == "" {
		p.Status = defaultStatus
	}
	if p.Health == "" {
		p.Health = defaultHealth
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Progress < 0 {
		p.Progress = 0
	}
	if p.Progress > 100 {
		p.Progress = 100
	}
	if p.Version < defaultVersion {
		p.Version = defaultVersion
	}
}

// NormalizeMilestones replaces a nil decode result with an empty collection.
func NormalizeMilestones(ms []Milestone) []Milestone {
	if ms == nil {
		return []Milestone{}
	}
	return ms
}

// NormalizeTeam replaces a nil decode result with an empty collection and
// clamps capacities into the 0..1 range.
func NormalizeTeam(team []TeamMember) []TeamMember {
	if team == nil {
		return []TeamMember{}
	}
	for i := range team {
		if team[i].Capacity < 0 {
			team[i].Capacity = 0
		}
		if team[i].Capacity > 1 {
			team[i].Capacity = 1
		}
	}
	return team
}

// NormalizeEvents replaces a nil decode result with an empty collection,
// fills the default kind, and sorts newest-first.
func NormalizeEvents(events []EventItem) []EventItem {
	if events == nil {
		return []EventItem{}
	}
	for i := range events {
		if events[i].Kind == "" {
			events[i].Kind = defaultEventKind
		}
	}
	SortEventsDesc(events)
	return events
}

// NormalizeList normalizes every item of a decoded list page.
func NormalizeList(r *ListResult) {
	if r.Items == nil {
		r.Items = []Project{}
	}
	for i := range r.Items {
		Normalize(&r.Items[i])
	}
}
