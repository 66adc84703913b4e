package form

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotModelBacked is returned by Save on forms without a model binding.
	ErrNotModelBacked = errors.New("form: definition is not model-backed")
	// ErrInvalid is returned by Save when the form did not validate.
	ErrInvalid = errors.New("form: form is not valid")
	// ErrInvalidDefinition wraps every definition construction failure.
	ErrInvalidDefinition = errors.New("form: invalid definition")
)

// NonFieldErrorsKey is the Errors key for messages not tied to a field.
const NonFieldErrorsKey = "__all__"

// ValidationErrors carries messages keyed by field name. Clean hooks return
// it to attach errors to specific fields; the empty key and
// NonFieldErrorsKey address the form as a whole.
type ValidationErrors map[string][]string

// NewValidationError builds a ValidationErrors holding messages for field.
func NewValidationError(field string, messages ...string) ValidationErrors {
	return ValidationErrors{field: append([]string(nil), messages...)}
}

// Add appends messages for field.
func (v ValidationErrors) Add(field string, messages ...string) {
	v[field] = append(v[field], messages...)
}

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		name := key
		if name == "" {
			name = NonFieldErrorsKey
		}
		parts = append(parts, name+": "+strings.Join(v[key], "; "))
	}
	return "form: validation failed: " + strings.Join(parts, ", ")
}
