package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
)

// Key addresses one cache entry. Keys are typed by entity class through
// their prefix.
type Key string

// Key prefixes, usable with Subscribe.
const (
	PrefixProject    = "project:"
	PrefixMilestones = "milestones:"
	PrefixTeam       = "team:"
	PrefixEvents     = "events:"
	PrefixList       = "list:"
)

// ProjectKey addresses the detail entry for one project.
func ProjectKey(id int64) Key {
	return Key(fmt.Sprintf("%s%d", PrefixProject, id))
}

// MilestonesKey addresses the milestone collection of one project.
func MilestonesKey(projectID int64) Key {
	return Key(fmt.Sprintf("%s%d", PrefixMilestones, projectID))
}

// TeamKey addresses the team collection of one project.
func TeamKey(projectID int64) Key {
	return Key(fmt.Sprintf("%s%d", PrefixTeam, projectID))
}

// EventsKey addresses the event timeline of one project.
func EventsKey(projectID int64) Key {
	return Key(fmt.Sprintf("%s%d", PrefixEvents, projectID))
}

// ListKey addresses the cached page for a normalized list query.
func ListKey(q project.ListQuery) Key {
	sum := sha256.Sum256([]byte(q.Key()))
	return Key(PrefixList + hex.EncodeToString(sum[:8]))
}

// HasPrefix reports whether the key belongs to the given entity class.
func (k Key) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(k), prefix)
}

func (k Key) kind() string {
	if i := strings.IndexByte(string(k), ':'); i >= 0 {
		return string(k[:i])
	}
	return string(k)
}
