package project

import "time"

// ApplyPatch shallow-merges a wire-format field patch into a copy of the
// project and returns it. Field names match the JSON representation; fields
// missing from the patch are left untouched, unknown fields and values of
// the wrong shape are ignored. Applying the same patch twice yields the same
// result as applying it once.
func ApplyPatch(p Project, patch map[string]any) Project {
	out := p.Clone()
	for field, value := range patch {
		switch field {
		case "title":
			if s, ok := value.(string); ok {
				out.Title = s
			}
		case "description":
			if s, ok := value.(string); ok {
				out.Description = s
			}
		case "owner":
			if s, ok := value.(string); ok {
				out.Owner = s
			}
		case "status":
			if s, ok := value.(string); ok {
				out.Status = Status(s)
			}
		case "health":
			if s, ok := value.(string); ok {
				out.Health = Health(s)
			}
		case "tags":
			if tags, ok := toStringSlice(value); ok {
				out.Tags = tags
			}
		case "progress":
			if n, ok := toInt64(value); ok {
				out.Progress = int(n)
			}
		case "version":
			if n, ok := toInt64(value); ok {
				out.Version = n
			}
		case "last_updated":
			if t, ok := toTime(value); ok {
				out.LastUpdated = t
			}
		case "deleted_at":
			if value == nil {
				out.DeletedAt = nil
			} else if t, ok := toTime(value); ok {
				out.DeletedAt = &t
			}
		}
	}
	return out
}

func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
