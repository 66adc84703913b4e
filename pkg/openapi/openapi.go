package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/goliatone/go-multiform/pkg/definition"
	"github.com/goliatone/go-multiform/pkg/model"
)

// ExtensionKey is the vendor extension read on schemas and properties.
const ExtensionKey = "x-multiform"

// ErrNoSchemas reports a document without usable component schemas.
var ErrNoSchemas = errors.New("openapi: no object schemas in components")

// Option customises schema derivation.
type Option func(*config)

type config struct {
	components []string
	validate   bool
	suffix     string
}

// WithComponents limits derivation to the named component schemas, in the
// given order.
func WithComponents(names ...string) Option {
	return func(cfg *config) {
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				cfg.components = append(cfg.components, name)
			}
		}
	}
}

// WithValidation validates the document before deriving schemas.
func WithValidation(enabled bool) Option {
	return func(cfg *config) {
		cfg.validate = enabled
	}
}

// WithNameSuffix appends suffix to component names to form names, for
// example "Form" turns "Post" into "PostForm".
func WithNameSuffix(suffix string) Option {
	return func(cfg *config) {
		cfg.suffix = strings.TrimSpace(suffix)
	}
}

// schemaExtension is the x-multiform payload on a component schema.
type schemaExtension struct {
	Name   string             `mapstructure:"name"`
	Label  string             `mapstructure:"label"`
	Model  string             `mapstructure:"model"`
	Order  []string           `mapstructure:"order"`
	Skip   bool               `mapstructure:"skip"`
	Checks []definition.Check `mapstructure:"checks"`
}

// fieldExtension is the x-multiform payload on a property.
type fieldExtension struct {
	Type        string `mapstructure:"type"`
	Label       string `mapstructure:"label"`
	Help        string `mapstructure:"help"`
	Placeholder string `mapstructure:"placeholder"`
	Rules       string `mapstructure:"rules"`
	Skip        bool   `mapstructure:"skip"`
}

// LoadFile reads an OpenAPI document from disk and derives its entries.
func LoadFile(ctx context.Context, path string, opts ...Option) ([]definition.Entry, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("openapi: load %s: %w", path, err)
	}
	return Entries(ctx, doc, path, opts...)
}

// Parse decodes an OpenAPI document and derives its entries. source names
// the document in entries and errors.
func Parse(ctx context.Context, data []byte, source string, opts ...Option) ([]definition.Entry, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load %s: %w", source, err)
	}
	return Entries(ctx, doc, source, opts...)
}

// Entries derives one entry per object component schema, sorted by
// component name unless WithComponents fixes the order.
func Entries(ctx context.Context, doc *openapi3.T, source string, opts ...Option) ([]definition.Entry, error) {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if doc == nil || doc.Components == nil || len(doc.Components.Schemas) == 0 {
		return nil, ErrNoSchemas
	}
	if cfg.validate {
		if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate %s: %w", source, err)
		}
	}

	names := cfg.components
	if len(names) == 0 {
		for name := range doc.Components.Schemas {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var entries []definition.Entry
	for _, name := range names {
		ref, ok := doc.Components.Schemas[name]
		if !ok || ref == nil || ref.Value == nil {
			if len(cfg.components) > 0 {
				return nil, fmt.Errorf("openapi: component %q not found in %s", name, source)
			}
			continue
		}
		entry, ok, err := convertComponent(name, ref.Value, source, cfg)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return nil, ErrNoSchemas
	}
	return entries, nil
}

func convertComponent(name string, schema *openapi3.Schema, source string, cfg config) (definition.Entry, bool, error) {
	if !isObject(schema) {
		return definition.Entry{}, false, nil
	}
	var ext schemaExtension
	if err := decodeExtension(schema.Extensions, &ext); err != nil {
		return definition.Entry{}, false, fmt.Errorf("openapi: %s %s: %w", source, name, err)
	}
	if ext.Skip {
		return definition.Entry{}, false, nil
	}

	formName := ext.Name
	if formName == "" {
		formName = name + cfg.suffix
	}
	label := ext.Label
	if label == "" {
		label = schema.Title
	}

	required := make(map[string]bool, len(schema.Required))
	for _, prop := range schema.Required {
		required[prop] = true
	}

	var fields []model.Field
	for _, prop := range propertyOrder(schema, ext.Order) {
		ref := schema.Properties[prop]
		if ref == nil || ref.Value == nil {
			continue
		}
		field, ok, err := convertProperty(prop, ref.Value, required[prop])
		if err != nil {
			return definition.Entry{}, false, fmt.Errorf("openapi: %s %s.%s: %w", source, name, prop, err)
		}
		if ok {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return definition.Entry{}, false, nil
	}

	return definition.Entry{
		Schema: model.Schema{
			Name:   formName,
			Label:  label,
			Fields: fields,
			Metadata: map[string]string{
				"component": name,
			},
		},
		Model:  ext.Model,
		Checks: ext.Checks,
		Source: source,
	}, true, nil
}

// propertyOrder lists the explicitly ordered properties first, then the
// rest alphabetically.
func propertyOrder(schema *openapi3.Schema, order []string) []string {
	seen := make(map[string]bool, len(schema.Properties))
	out := make([]string, 0, len(schema.Properties))
	for _, name := range order {
		if _, ok := schema.Properties[name]; ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var rest []string
	for name := range schema.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func convertProperty(name string, schema *openapi3.Schema, required bool) (model.Field, bool, error) {
	var ext fieldExtension
	if err := decodeExtension(schema.Extensions, &ext); err != nil {
		return model.Field{}, false, err
	}
	if ext.Skip || schema.ReadOnly {
		return model.Field{}, false, nil
	}

	fieldType, ok := fieldTypeOf(schema)
	if !ok {
		return model.Field{}, false, nil
	}
	if ext.Type != "" {
		fieldType = model.FieldType(ext.Type)
	}

	field := model.Field{
		Name:        name,
		Type:        fieldType,
		Required:    required,
		Label:       firstNonEmpty(ext.Label, schema.Title),
		Help:        firstNonEmpty(ext.Help, schema.Description),
		Placeholder: ext.Placeholder,
		Default:     schema.Default,
		Rules:       joinRules(rulesOf(schema, fieldType), ext.Rules),
	}
	for _, value := range schema.Enum {
		choice := cast.ToString(value)
		field.Choices = append(field.Choices, model.Choice{Value: choice})
	}
	return field, true, nil
}

func fieldTypeOf(schema *openapi3.Schema) (model.FieldType, bool) {
	switch {
	case len(schema.Enum) > 0:
		return model.FieldTypeChoice, true
	case schema.Type.Is(openapi3.TypeBoolean):
		return model.FieldTypeBoolean, true
	case schema.Type.Is(openapi3.TypeInteger):
		return model.FieldTypeInteger, true
	case schema.Type.Is(openapi3.TypeNumber):
		return model.FieldTypeNumber, true
	case schema.Type.Is(openapi3.TypeString):
		switch schema.Format {
		case "email":
			return model.FieldTypeEmail, true
		case "uri", "url":
			return model.FieldTypeURL, true
		case "date":
			return model.FieldTypeDate, true
		case "binary":
			return model.FieldTypeFile, true
		case "slug":
			return model.FieldTypeSlug, true
		case "textarea":
			return model.FieldTypeText, true
		}
		return model.FieldTypeString, true
	default:
		return "", false
	}
}

// rulesOf translates numeric and length bounds into validator tags.
// Formats already covered by the field type add no rule.
func rulesOf(schema *openapi3.Schema, fieldType model.FieldType) []string {
	var rules []string
	switch fieldType {
	case model.FieldTypeInteger, model.FieldTypeNumber:
		if schema.Min != nil {
			tag := "gte"
			if schema.ExclusiveMin {
				tag = "gt"
			}
			rules = append(rules, tag+"="+formatFloat(*schema.Min))
		}
		if schema.Max != nil {
			tag := "lte"
			if schema.ExclusiveMax {
				tag = "lt"
			}
			rules = append(rules, tag+"="+formatFloat(*schema.Max))
		}
	case model.FieldTypeString, model.FieldTypeText, model.FieldTypeSlug, model.FieldTypeEmail, model.FieldTypeURL:
		if schema.MinLength > 0 {
			rules = append(rules, "min="+strconv.FormatUint(schema.MinLength, 10))
		}
		if schema.MaxLength != nil {
			rules = append(rules, "max="+strconv.FormatUint(*schema.MaxLength, 10))
		}
	}
	return rules
}

func joinRules(derived []string, extra string) string {
	if extra = strings.TrimSpace(extra); extra != "" {
		derived = append(derived, extra)
	}
	return strings.Join(derived, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isObject(schema *openapi3.Schema) bool {
	if schema == nil {
		return false
	}
	if schema.Type.Is(openapi3.TypeObject) {
		return true
	}
	return schema.Type == nil && len(schema.Properties) > 0
}

func decodeExtension(extensions map[string]any, target any) error {
	raw, ok := extensions[ExtensionKey]
	if !ok || raw == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decode %s: %w", ExtensionKey, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
