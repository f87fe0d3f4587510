package conventions

import (
	"strings"

	"github.com/metrico/qryn-ai/writer/model"
)

// parseJSONOrRaw decodes s when it holds a JSON object or array and returns
// s untouched otherwise.
func parseJSONOrRaw(s string) any {
	t := strings.TrimSpace(s)
	if t == "" || (t[0] != '{' && t[0] != '[') {
		return s
	}
	var v model.Value
	if err := v.UnmarshalJSON([]byte(t)); err != nil {
		return s
	}
	return v.Any()
}

// messagesOf turns a flat prompt/completion attribute into a message list.
// Plain text becomes a single message of the given role.
func messagesOf(v model.Value, role string) any {
	var raw any
	if s, ok := v.Str(); ok {
		raw = parseJSONOrRaw(s)
	} else {
		raw = v.Any()
	}
	switch r := raw.(type) {
	case nil:
		return nil
	case []any:
		return r
	case map[string]any:
		return []any{r}
	case string:
		if r == "" {
			return nil
		}
		return []any{map[string]any{"role": role, "content": r}}
	default:
		return []any{map[string]any{"role": role, "content": r}}
	}
}

// IsEmpty reports nil, empty strings and empty collections.
func IsEmpty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []map[string]any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}
