package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/goliatone/go-multiform/internal/record"
	"github.com/goliatone/go-multiform/pkg/model"
	"github.com/goliatone/go-multiform/pkg/render"
)

// Config carries the per-request inputs of a form instance. A form is bound
// when Bound is set or Data or Files is non-nil; an empty but non-nil
// url.Values therefore yields a bound form with no submitted values.
type Config struct {
	Prefix   string
	Initial  map[string]any
	Data     url.Values
	Files    map[string][]*multipart.FileHeader
	Instance any
	Bound    bool
}

// Option customises a Form.
type Option func(*Form)

// WithValidator replaces the shared validator used for format checks and
// field rules.
func WithValidator(v *validator.Validate) Option {
	return func(f *Form) {
		if v != nil {
			f.validate = v
		}
	}
}

// Form is one definition bound to one request. Forms are not safe for
// concurrent use; build a fresh one per request.
type Form struct {
	def      *Definition
	prefix   string
	initial  map[string]any
	data     url.Values
	files    map[string][]*multipart.FileHeader
	instance any
	bound    bool
	validate *validator.Validate

	checked bool
	cleaned map[string]any
	errors  map[string][]string
}

// New binds def to cfg. The prefix defaults to the definition key. An
// instance is only accepted for model-backed definitions.
func New(def *Definition, cfg Config, opts ...Option) (*Form, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: definition is nil", ErrInvalidDefinition)
	}
	if cfg.Instance != nil && !def.ModelBacked() {
		return nil, fmt.Errorf("form: %s: instance supplied: %w", def.name, ErrNotModelBacked)
	}

	f := &Form{
		def:      def,
		prefix:   strings.TrimSpace(cfg.Prefix),
		initial:  cloneValues(cfg.Initial),
		data:     cfg.Data,
		files:    cfg.Files,
		instance: cfg.Instance,
		bound:    cfg.Bound || cfg.Data != nil || cfg.Files != nil,
		validate: defaultValidator(),
	}
	if f.prefix == "" {
		f.prefix = def.key
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Definition returns the form's definition.
func (f *Form) Definition() *Definition { return f.def }

// Prefix returns the input-name prefix.
func (f *Form) Prefix() string { return f.prefix }

// Key returns the definition's namespace key.
func (f *Form) Key() string { return f.def.key }

// IsBound reports whether the form carries submitted data.
func (f *Form) IsBound() bool { return f.bound }

// Instance returns the record being edited, if any.
func (f *Form) Instance() any { return f.instance }

// HTMLName returns the submitted input name for a field: "<prefix>-<field>".
func (f *Form) HTMLName(field string) string {
	if f.prefix == "" {
		return field
	}
	return f.prefix + "-" + field
}

// FieldID returns the DOM id for a field: "id_<prefix>-<field>".
func (f *Form) FieldID(field string) string {
	return "id_" + f.HTMLName(field)
}

// IsValid cleans the form on first call and reports whether it is bound and
// free of errors. Later calls reuse the cached outcome.
func (f *Form) IsValid(ctx context.Context) bool {
	if !f.bound {
		return false
	}
	f.fullClean(ctx)
	return len(f.errors) == 0
}

// Errors returns messages keyed by field name, with form-level messages
// under NonFieldErrorsKey. Unbound forms have no errors.
func (f *Form) Errors() map[string][]string {
	if !f.bound {
		return nil
	}
	f.fullClean(context.Background())
	if len(f.errors) == 0 {
		return nil
	}
	out := make(map[string][]string, len(f.errors))
	for key, messages := range f.errors {
		out[key] = append([]string(nil), messages...)
	}
	return out
}

// NonFieldErrors returns the form-level messages.
func (f *Form) NonFieldErrors() []string {
	return f.Errors()[NonFieldErrorsKey]
}

// Cleaned returns a copy of the cleaned values. It is empty until the form
// has been validated.
func (f *Form) Cleaned() map[string]any {
	return cloneValues(f.cleaned)
}

// AddError attaches messages to field, or to the form when field is empty or
// unknown. The field's cleaned value is dropped.
func (f *Form) AddError(field string, messages ...string) {
	f.MergeErrors(map[string][]string{field: messages})
}

// MergeErrors attaches an external error payload, typically returned by a
// backend, to the form. Keys may be bare field names, prefixed input names,
// dotted paths or JSON pointers.
func (f *Form) MergeErrors(payload map[string][]string) {
	if len(payload) == 0 {
		return
	}
	if f.bound {
		f.fullClean(context.Background())
	}
	if f.errors == nil {
		f.errors = make(map[string][]string)
	}

	mapping := render.MapErrorPayload(f.def.fields, f.prefix, payload)
	for name, messages := range mapping.Fields {
		f.errors[name] = render.MergeFormErrors(f.errors[name], messages...)
		delete(f.cleaned, name)
	}
	if len(mapping.Form) > 0 {
		f.errors[NonFieldErrorsKey] = render.MergeFormErrors(f.errors[NonFieldErrorsKey], mapping.Form...)
	}
}

func (f *Form) fullClean(ctx context.Context) {
	if f.checked {
		return
	}
	f.checked = true
	f.errors = make(map[string][]string)
	f.cleaned = make(map[string]any, len(f.def.fields))

	for _, field := range f.def.fields {
		value, messages := f.cleanField(field)
		if len(messages) > 0 {
			f.errors[field.Name] = messages
			continue
		}
		f.cleaned[field.Name] = value
	}

	if f.def.clean == nil {
		return
	}
	if err := f.def.clean(ctx, f.cleaned); err != nil {
		f.applyCleanError(err)
	}
}

func (f *Form) applyCleanError(err error) {
	var formLevel []string
	for _, part := range multierr.Errors(err) {
		var verrs ValidationErrors
		if !errors.As(part, &verrs) {
			formLevel = append(formLevel, part.Error())
			continue
		}
		mapping := render.MapErrorPayload(f.def.fields, f.prefix, verrs)
		for name, messages := range mapping.Fields {
			f.errors[name] = render.MergeFormErrors(f.errors[name], messages...)
			delete(f.cleaned, name)
		}
		formLevel = append(formLevel, mapping.Form...)
	}
	if merged := render.MergeFormErrors(f.errors[NonFieldErrorsKey], formLevel...); len(merged) > 0 {
		f.errors[NonFieldErrorsKey] = merged
	}
}

// Value returns the display value of a field: submitted data for bound
// forms, otherwise initial, then the instance's field, then the default.
// Files are never echoed back.
func (f *Form) Value(name string) any {
	field, ok := f.def.Field(name)
	if !ok {
		return nil
	}
	if f.bound {
		switch field.Type {
		case model.FieldTypeFile:
			return nil
		case model.FieldTypeBoolean:
			return checkboxValue(f.data, f.HTMLName(name))
		}
		return f.data.Get(f.HTMLName(name))
	}
	if value, ok := f.initial[name]; ok {
		return value
	}
	if f.instance != nil {
		if value, ok := record.Lookup(f.instance, name); ok {
			return value
		}
	}
	return field.Default
}

// BoundField is the render view of one field.
type BoundField struct {
	Name        string        `json:"name"`
	HTMLName    string        `json:"html_name"`
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	Type        string        `json:"type"`
	Widget      string        `json:"widget"`
	Help        string        `json:"help,omitempty"`
	Placeholder string        `json:"placeholder,omitempty"`
	Required    bool          `json:"required"`
	Value       any           `json:"value"`
	Checked     bool          `json:"checked,omitempty"`
	Errors      []string      `json:"errors,omitempty"`
	Choices     []BoundChoice `json:"choices,omitempty"`
}

// BoundChoice is a choice option with its selection state.
type BoundChoice struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// Fields returns the render view of every field in definition order.
func (f *Form) Fields() []BoundField {
	errs := f.Errors()
	out := make([]BoundField, 0, len(f.def.fields))
	for _, field := range f.def.fields {
		value := f.Value(field.Name)
		bound := BoundField{
			Name:        field.Name,
			HTMLName:    f.HTMLName(field.Name),
			ID:          f.FieldID(field.Name),
			Label:       field.Label,
			Type:        string(field.Type),
			Widget:      widgetFor(field.Type),
			Help:        field.Help,
			Placeholder: field.Placeholder,
			Required:    field.Required,
			Value:       displayValue(value),
			Errors:      errs[field.Name],
		}
		if field.Type == model.FieldTypeBoolean {
			bound.Checked = truthy(value)
		}
		if len(field.Choices) > 0 {
			current := fmt.Sprint(bound.Value)
			bound.Choices = make([]BoundChoice, 0, len(field.Choices))
			for _, choice := range field.Choices {
				bound.Choices = append(bound.Choices, BoundChoice{
					Value:    choice.Value,
					Label:    choice.Label,
					Selected: bound.Value != nil && choice.Value == current,
				})
			}
		}
		out = append(out, bound)
	}
	return out
}

// View is the serialisable snapshot of a form handed to renderers.
type View struct {
	Name           string              `json:"name"`
	Key            string              `json:"key"`
	Prefix         string              `json:"prefix"`
	Label          string              `json:"label"`
	Bound          bool                `json:"bound"`
	Valid          bool                `json:"valid"`
	Fields         []BoundField        `json:"fields"`
	Errors         map[string][]string `json:"errors,omitempty"`
	NonFieldErrors []string            `json:"non_field_errors,omitempty"`
}

// View snapshots the form. It triggers cleaning on bound forms.
func (f *Form) View() View {
	errs := f.Errors()
	return View{
		Name:           f.def.name,
		Key:            f.def.key,
		Prefix:         f.prefix,
		Label:          f.def.label,
		Bound:          f.bound,
		Valid:          f.bound && len(errs) == 0,
		Fields:         f.Fields(),
		Errors:         errs,
		NonFieldErrors: errs[NonFieldErrorsKey],
	}
}

// MarshalJSON encodes the form as its View.
func (f *Form) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.View())
}

// ErrorKeys returns the sorted field names carrying errors.
func (f *Form) ErrorKeys() []string {
	errs := f.Errors()
	keys := make([]string, 0, len(errs))
	for key := range errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var (
	sharedValidator     *validator.Validate
	sharedValidatorOnce sync.Once
)

func defaultValidator() *validator.Validate {
	sharedValidatorOnce.Do(func() {
		sharedValidator = NewValidator()
	})
	return sharedValidator
}

func cloneValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func widgetFor(t model.FieldType) string {
	switch t {
	case model.FieldTypeText:
		return "textarea"
	case model.FieldTypeBoolean:
		return "checkbox"
	case model.FieldTypeChoice:
		return "select"
	case model.FieldTypeInteger, model.FieldTypeNumber:
		return "number"
	case model.FieldTypeEmail:
		return "email"
	case model.FieldTypeURL:
		return "url"
	case model.FieldTypeDate:
		return "date"
	case model.FieldTypeFile:
		return "file"
	default:
		return "text"
	}
}
