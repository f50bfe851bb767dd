package push

import (
	"encoding/json"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
)

// Message types carried by the server push stream.
const (
	TypeProjectCreated   = "project_created"
	TypeProjectUpdated   = "project_updated"
	TypeProjectDeleted   = "project_deleted"
	TypeProjectRecovered = "project_recovered"
	TypeEventCreated     = "event_created"
)

// Message is one discriminated push payload. Only the fields matching its
// Type are populated.
type Message struct {
	Type      string             `json:"type"`
	ID        int64              `json:"id,omitempty"`
	ProjectID int64              `json:"project_id,omitempty"`
	Changed   []string           `json:"changed,omitempty"`
	Patch     map[string]any     `json:"patch,omitempty"`
	Event     *project.EventItem `json:"event,omitempty"`
}

// Decode parses a raw push payload. It returns false for malformed JSON and
// for objects lacking a string `type` discriminator; such messages are
// dropped without terminating the stream.
func Decode(raw json.RawMessage) (Message, bool) {
	var probe struct {
		Type any `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Message{}, false
	}
	if _, ok := probe.Type.(string); !ok {
		return Message{}, false
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, false
	}
	return msg, true
}
