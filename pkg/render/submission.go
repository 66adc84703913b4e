package render

import (
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// HiddenField is a hidden input emitted once per page, outside every form
// namespace, so it is never prefixed.
type HiddenField struct {
	Name  string
	Value string
}

// Hidden builds a HiddenField, stringifying value.
func Hidden(name string, value any) HiddenField {
	text, err := cast.ToStringE(value)
	if err != nil {
		text = ""
	}
	return HiddenField{Name: strings.TrimSpace(name), Value: text}
}

// CSRFToken builds the hidden field carrying a CSRF token under the input
// name the backend expects, such as "_csrf" or "csrfmiddlewaretoken".
func CSRFToken(name, token string) HiddenField {
	return Hidden(name, token)
}

// NormalizeHiddenFields drops fields without a name, keeps the last value
// for repeated names and sorts by name.
func NormalizeHiddenFields(fields ...HiddenField) []HiddenField {
	byName := make(map[string]string, len(fields))
	for _, field := range fields {
		if name := strings.TrimSpace(field.Name); name != "" {
			byName[name] = field.Value
		}
	}
	if len(byName) == 0 {
		return nil
	}

	out := make([]HiddenField, 0, len(byName))
	for name, value := range byName {
		out = append(out, HiddenField{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
