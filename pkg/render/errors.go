package render

import (
	"sort"
	"strings"

	"github.com/goliatone/go-multiform/pkg/model"
)

// NonFieldKey is the error key used for form-level messages.
const NonFieldKey = "__all__"

// ErrorMapping splits an error payload into messages per field and
// form-level messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// MergeFormErrors appends extras to existing, trimming blanks and dropping
// repeats while keeping first-seen order.
func MergeFormErrors(existing []string, extras ...string) []string {
	return dedupe(append(append([]string(nil), existing...), extras...))
}

// MapErrorPayload assigns every payload key to one of fields. A key may be
// the field name, the prefixed input name ("postform-title"), the input id
// ("id_postform-title") or a dotted or slash separated path whose last
// matching segment names the field ("/body/title", "$.data.title").
// Anything else, NonFieldKey included, is form-level. Keys are visited in
// sorted order so the result is deterministic.
func MapErrorPayload(fields []model.Field, prefix string, payload map[string][]string) ErrorMapping {
	var mapping ErrorMapping
	if len(payload) == 0 {
		return mapping
	}

	known := make(map[string]bool, len(fields))
	for _, field := range fields {
		if name := strings.TrimSpace(field.Name); name != "" {
			known[name] = true
		}
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fieldErrs := make(map[string][]string)
	for _, key := range keys {
		messages := dedupe(payload[key])
		if len(messages) == 0 {
			continue
		}
		if name, ok := resolveErrorKey(key, prefix, known); ok {
			fieldErrs[name] = append(fieldErrs[name], messages...)
			continue
		}
		mapping.Form = append(mapping.Form, messages...)
	}

	for name, messages := range fieldErrs {
		fieldErrs[name] = dedupe(messages)
	}
	if len(fieldErrs) > 0 {
		mapping.Fields = fieldErrs
	}
	mapping.Form = dedupe(mapping.Form)
	return mapping
}

func resolveErrorKey(key, prefix string, known map[string]bool) (string, bool) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "id_")
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		key = strings.TrimPrefix(key, prefix+"-")
	}
	if key == NonFieldKey {
		return "", false
	}
	if known[key] {
		return key, true
	}

	segments := strings.FieldsFunc(key, func(r rune) bool {
		return r == '.' || r == '/' || r == '[' || r == ']'
	})
	for i := len(segments) - 1; i >= 0; i-- {
		if known[segments[i]] {
			return segments[i], true
		}
	}
	return "", false
}

func dedupe(messages []string) []string {
	var out []string
	seen := make(map[string]bool, len(messages))
	for _, message := range messages {
		message = strings.TrimSpace(message)
		if message == "" || seen[message] {
			continue
		}
		seen[message] = true
		out = append(out, message)
	}
	return out
}
