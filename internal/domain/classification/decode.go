package classification

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode coerces a parsed JSON value into a Classification without rejecting odd shapes.
// Fields with an unexpected type are left blank; WithDefaults fills them at consumption time.
func Decode(v any) Classification {
	obj, ok := v.(map[string]any)
	if !ok {
		return Classification{}
	}
	return Classification{
		URLType:              stringField(obj, "urlType"),
		ContentFormat:        stringField(obj, "contentFormat"),
		ContentTypeHierarchy: listField(obj, "contentTypeHierarchy"),
		PrimaryLanguage:      stringField(obj, "primaryLanguage"),
		Confidence:           Confidence(stringField(obj, "confidence")),
		Keywords:             listField(obj, "keywords"),
	}
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// listField accepts a JSON array of strings or a single comma separated string.
func listField(obj map[string]any, key string) []string {
	switch v := obj[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	default:
		return nil
	}
}
