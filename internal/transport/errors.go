package transport

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-success response from the remote store, with the error
// body collapsed into one human-readable message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
}

// collapseDetail turns an error body into a single string. The contract:
// the body carries a `detail` field that is either a string or a list of
// objects each exposing `msg`; the list case is joined with "; ". Anything
// else falls back to a generic message carrying the status code.
func collapseDetail(status int, body []byte) string {
	fallback := fmt.Sprintf("request failed (HTTP %d)", status)
	if len(body) == 0 {
		return fallback
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []map[string]any
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if msg, ok := item["msg"].(string); ok && msg != "" {
				parts = append(parts, msg)
				continue
			}
			if msg, ok := item["detail"].(string); ok && msg != "" {
				parts = append(parts, msg)
				continue
			}
			raw, _ := json.Marshal(item)
			parts = append(parts, string(raw))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}

	return string(envelope.Detail)
}
