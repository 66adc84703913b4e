package form

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/goliatone/go-multiform/internal/record"
	"github.com/goliatone/go-multiform/pkg/model"
)

// Save writes the cleaned values onto the form's instance, or onto a new
// record from the model constructor, and hands it to the model's saver. The
// saved record is returned. With an instance the existing record is edited
// in place.
func (f *Form) Save(ctx context.Context) (any, error) {
	if !f.def.ModelBacked() {
		return nil, fmt.Errorf("form: save %s: %w", f.def.name, ErrNotModelBacked)
	}
	if !f.IsValid(ctx) {
		return nil, fmt.Errorf("form: save %s: %w", f.def.name, ErrInvalid)
	}

	target := f.instance
	if target == nil {
		target = f.def.model.New()
	}
	if target == nil {
		return nil, fmt.Errorf("form: save %s: model constructor returned nil", f.def.name)
	}

	if err := f.apply(target); err != nil {
		return nil, fmt.Errorf("form: save %s: %w", f.def.name, err)
	}
	if err := f.def.model.Saver.Save(ctx, target); err != nil {
		return nil, fmt.Errorf("form: save %s: %w", f.def.name, err)
	}
	return target, nil
}

// apply decodes the cleaned values onto target. Maps receive the values
// as-is; structs go through mapstructure with `form` tags, except files,
// which are assigned directly so the upload handle is kept.
func (f *Form) apply(target any) error {
	if m, ok := target.(map[string]any); ok {
		for key, value := range f.cleaned {
			m[key] = value
		}
		return nil
	}

	values := make(map[string]any, len(f.cleaned))
	var files []string
	for _, field := range f.def.fields {
		value, ok := f.cleaned[field.Name]
		if !ok {
			continue
		}
		if field.Type == model.FieldTypeFile {
			files = append(files, field.Name)
			continue
		}
		values[field.Name] = value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          record.TagName,
		WeaklyTypedInput: true,
		Result:           target,
		DecodeHook:       mapstructure.StringToTimeHookFunc(DateLayout),
	})
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	for _, name := range files {
		value := f.cleaned[name]
		if value == nil {
			continue
		}
		record.Assign(target, name, value)
	}
	return nil
}
