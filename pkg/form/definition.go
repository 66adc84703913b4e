package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-multiform/pkg/model"
	"github.com/goliatone/go-multiform/pkg/store"
)

// CleanFunc is the form-level validation hook. It runs after every field has
// been cleaned and receives the cleaned values of the fields that passed;
// changes to the map are kept. Returning ValidationErrors (possibly combined
// with multierr) attaches messages to fields, any other error becomes a
// form-level message.
type CleanFunc func(ctx context.Context, cleaned map[string]any) error

// Model makes a definition model-backed: New builds an empty record when the
// form has no instance, Saver persists it.
type Model struct {
	New   func() any
	Saver store.Saver
}

// Definition is the immutable description of a form.
type Definition struct {
	name     string
	key      string
	label    string
	fields   []model.Field
	index    map[string]int
	clean    CleanFunc
	model    *Model
	labeler  func(string) string
	metadata map[string]string
}

// DefinitionOption customises a Definition at construction time.
type DefinitionOption func(*Definition)

// WithClean installs the form-level clean hook.
func WithClean(fn CleanFunc) DefinitionOption {
	return func(d *Definition) {
		d.clean = fn
	}
}

// WithModel binds the definition to a record type and its saver.
func WithModel(newRecord func() any, saver store.Saver) DefinitionOption {
	return func(d *Definition) {
		d.model = &Model{New: newRecord, Saver: saver}
	}
}

// WithLabel sets the human-readable form label. Defaults to the labeled name.
func WithLabel(label string) DefinitionOption {
	return func(d *Definition) {
		d.label = strings.TrimSpace(label)
	}
}

// WithLabeler overrides model.DefaultLabeler for fields without a label.
func WithLabeler(fn func(string) string) DefinitionOption {
	return func(d *Definition) {
		if fn != nil {
			d.labeler = fn
		}
	}
}

// WithMetadata attaches free-form metadata exposed to renderers.
func WithMetadata(metadata map[string]string) DefinitionOption {
	return func(d *Definition) {
		if len(metadata) == 0 {
			return
		}
		if d.metadata == nil {
			d.metadata = make(map[string]string, len(metadata))
		}
		for key, value := range metadata {
			d.metadata[key] = value
		}
	}
}

// NewDefinition validates and freezes a form definition. The name is
// required and yields the namespace key; field names must be unique and
// field types known.
func NewDefinition(name string, fields []model.Field, opts ...DefinitionOption) (*Definition, error) {
	def := &Definition{
		name:    strings.TrimSpace(name),
		labeler: model.DefaultLabeler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(def)
		}
	}

	if def.name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	def.key = model.Key(def.name)
	if def.label == "" {
		def.label = def.labeler(def.name)
	}

	def.fields = make([]model.Field, 0, len(fields))
	def.index = make(map[string]int, len(fields))
	for i, raw := range fields {
		field := model.NormalizeField(raw, def.labeler)
		if field.Name == "" {
			return nil, fmt.Errorf("%w: %s: field %d has no name", ErrInvalidDefinition, def.name, i)
		}
		if _, exists := def.index[field.Name]; exists {
			return nil, fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidDefinition, def.name, field.Name)
		}
		if !field.Type.Known() {
			return nil, fmt.Errorf("%w: %s: field %q has unknown type %q", ErrInvalidDefinition, def.name, field.Name, field.Type)
		}
		def.index[field.Name] = len(def.fields)
		def.fields = append(def.fields, field)
	}

	if def.model != nil {
		if def.model.New == nil {
			return nil, fmt.Errorf("%w: %s: model constructor is required", ErrInvalidDefinition, def.name)
		}
		if def.model.Saver == nil {
			return nil, fmt.Errorf("%w: %s: model saver is required", ErrInvalidDefinition, def.name)
		}
	}
	return def, nil
}

// MustDefinition is NewDefinition that panics on error, for package-level
// declarations.
func MustDefinition(name string, fields []model.Field, opts ...DefinitionOption) *Definition {
	def, err := NewDefinition(name, fields, opts...)
	if err != nil {
		panic(err)
	}
	return def
}

// FromSchema builds a Definition from a declarative schema. Options are
// applied after the schema's label and metadata.
func FromSchema(schema model.Schema, opts ...DefinitionOption) (*Definition, error) {
	base := []DefinitionOption{
		WithLabel(schema.Label),
		WithMetadata(schema.Metadata),
	}
	return NewDefinition(schema.Name, schema.Fields, append(base, opts...)...)
}

// Name returns the declared form name.
func (d *Definition) Name() string { return d.name }

// Key returns the namespace key: the lowercased name.
func (d *Definition) Key() string { return d.key }

// Label returns the human-readable form label.
func (d *Definition) Label() string { return d.label }

// Fields returns a copy of the ordered fields.
func (d *Definition) Fields() []model.Field {
	return append([]model.Field(nil), d.fields...)
}

// Field looks up a field by name.
func (d *Definition) Field(name string) (model.Field, bool) {
	idx, ok := d.index[name]
	if !ok {
		return model.Field{}, false
	}
	return d.fields[idx], true
}

// ModelBacked reports whether Save is available for forms of this definition.
func (d *Definition) ModelBacked() bool { return d.model != nil }

// Schema returns the declarative schema the definition was built from, with
// labels and types filled in.
func (d *Definition) Schema() model.Schema {
	out := model.Schema{
		Name:   d.name,
		Label:  d.label,
		Fields: d.Fields(),
	}
	if len(d.metadata) > 0 {
		out.Metadata = make(map[string]string, len(d.metadata))
		for key, value := range d.metadata {
			out.Metadata[key] = value
		}
	}
	return out
}
