package model

import "strings"

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeText    FieldType = "text"
	FieldTypeInteger FieldType = "integer"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeEmail   FieldType = "email"
	FieldTypeSlug    FieldType = "slug"
	FieldTypeURL     FieldType = "url"
	FieldTypeDate    FieldType = "date"
	FieldTypeChoice  FieldType = "choice"
	FieldTypeFile    FieldType = "file"
)

// Known reports whether t is one of the supported field kinds. The empty
// type is treated as FieldTypeString by Normalize.
func (t FieldType) Known() bool {
	switch t {
	case FieldTypeString, FieldTypeText, FieldTypeInteger, FieldTypeNumber,
		FieldTypeBoolean, FieldTypeEmail, FieldTypeSlug, FieldTypeURL,
		FieldTypeDate, FieldTypeChoice, FieldTypeFile:
		return true
	default:
		return false
	}
}

// Choice is a selectable value for FieldTypeChoice fields.
type Choice struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Field models an individual input inside a form definition. Struct fields
// are annotated so schemas can be loaded from and serialised to JSON/YAML.
type Field struct {
	Name        string            `json:"name" yaml:"name"`
	Type        FieldType         `json:"type,omitempty" yaml:"type,omitempty"`
	Required    bool              `json:"required,omitempty" yaml:"required,omitempty"`
	Label       string            `json:"label,omitempty" yaml:"label,omitempty"`
	Help        string            `json:"help,omitempty" yaml:"help,omitempty"`
	Placeholder string            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Default     any               `json:"default,omitempty" yaml:"default,omitempty"`
	Choices     []Choice          `json:"choices,omitempty" yaml:"choices,omitempty"`
	Rules       string            `json:"rules,omitempty" yaml:"rules,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Schema is the declarative description of one form: its identifying name
// and ordered fields.
type Schema struct {
	Name     string            `json:"name" yaml:"name"`
	Label    string            `json:"label,omitempty" yaml:"label,omitempty"`
	Fields   []Field           `json:"fields" yaml:"fields"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Key derives the namespace key for a form name. The key doubles as the
// input prefix and the lookup key in rendering contexts.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Normalize returns a copy of the schema with trimmed names, default field
// types, and labels derived through labeler (DefaultLabeler when nil).
func Normalize(schema Schema, labeler func(string) string) Schema {
	if labeler == nil {
		labeler = DefaultLabeler
	}
	out := Schema{
		Name:     strings.TrimSpace(schema.Name),
		Label:    strings.TrimSpace(schema.Label),
		Metadata: cloneStrings(schema.Metadata),
	}
	if len(schema.Fields) > 0 {
		out.Fields = make([]Field, 0, len(schema.Fields))
	}
	for _, field := range schema.Fields {
		out.Fields = append(out.Fields, NormalizeField(field, labeler))
	}
	return out
}

// NormalizeField applies the same defaults as Normalize to a single field.
func NormalizeField(field Field, labeler func(string) string) Field {
	if labeler == nil {
		labeler = DefaultLabeler
	}
	field.Name = strings.TrimSpace(field.Name)
	if field.Type == "" {
		field.Type = FieldTypeString
		if len(field.Choices) > 0 {
			field.Type = FieldTypeChoice
		}
	}
	if strings.TrimSpace(field.Label) == "" {
		field.Label = labeler(field.Name)
	}
	field.Rules = strings.TrimSpace(field.Rules)
	if len(field.Choices) > 0 {
		field.Choices = append([]Choice(nil), field.Choices...)
		for i := range field.Choices {
			if field.Choices[i].Label == "" {
				field.Choices[i].Label = field.Choices[i].Value
			}
		}
	}
	field.Metadata = cloneStrings(field.Metadata)
	return field
}

func cloneStrings(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
