package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/model"
	"github.com/goliatone/go-multiform/pkg/store"
)

// ErrUnknownForm reports a form name missing from a catalog.
var ErrUnknownForm = errors.New("definition: unknown form")

// Entry is one loaded form schema.
type Entry struct {
	Schema model.Schema
	// Model names the record kind saved by the form; empty for forms
	// without a model.
	Model  string
	Checks []Check
	Source string
}

// Key returns the namespace key of the entry.
func (e Entry) Key() string { return model.Key(e.Schema.Name) }

// Catalog holds loaded entries in load order: files in lexical order, forms
// in file order.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// ModelBinder resolves a model kind to the saver persisting its records.
type ModelBinder func(kind string) (store.Saver, error)

type documentFile struct {
	Forms    []formFile `json:"forms" yaml:"forms"`
	formFile `yaml:",inline"`
}

type formFile struct {
	Name     string            `json:"name" yaml:"name"`
	Label    string            `json:"label" yaml:"label"`
	Model    string            `json:"model" yaml:"model"`
	Fields   []model.Field     `json:"fields" yaml:"fields"`
	Checks   []Check           `json:"checks" yaml:"checks"`
	Metadata map[string]string `json:"metadata" yaml:"metadata"`
}

// LoadFS walks fsys and parses every .json, .yaml and .yml file. A nil fsys
// yields an empty catalog. Two forms sharing a namespace key are an error.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	catalog := &Catalog{index: make(map[string]int)}
	if fsys == nil {
		return catalog, nil
	}

	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() && isSchemaFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("definition: walk: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("definition: read %s: %w", path, err)
		}
		forms, err := parseDocument(data, path)
		if err != nil {
			return nil, err
		}
		for _, raw := range forms {
			if err := catalog.add(raw, path); err != nil {
				return nil, err
			}
		}
	}
	return catalog, nil
}

// Parse reads a single document. source names it in error messages.
func Parse(data []byte, source string) (*Catalog, error) {
	catalog := &Catalog{index: make(map[string]int)}
	forms, err := parseDocument(data, source)
	if err != nil {
		return nil, err
	}
	for _, raw := range forms {
		if err := catalog.add(raw, source); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// NewCatalog builds a catalog from entries derived elsewhere, such as an
// OpenAPI document. Entries keep their order; duplicate keys are an error.
func NewCatalog(entries ...Entry) (*Catalog, error) {
	catalog := &Catalog{index: make(map[string]int, len(entries))}
	for _, entry := range entries {
		if err := catalog.insert(entry); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Merge returns a catalog holding the entries of c followed by those of
// others.
func (c *Catalog) Merge(others ...*Catalog) (*Catalog, error) {
	entries := c.Entries()
	for _, other := range others {
		entries = append(entries, other.Entries()...)
	}
	return NewCatalog(entries...)
}

func (c *Catalog) add(raw formFile, source string) error {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return fmt.Errorf("definition: file %s defines a form without a name", source)
	}
	entry := Entry{
		Schema: model.Schema{
			Name:     name,
			Label:    strings.TrimSpace(raw.Label),
			Fields:   append([]model.Field(nil), raw.Fields...),
			Metadata: raw.Metadata,
		},
		Model:  strings.TrimSpace(raw.Model),
		Checks: append([]Check(nil), raw.Checks...),
		Source: source,
	}
	return c.insert(entry)
}

func (c *Catalog) insert(entry Entry) error {
	if strings.TrimSpace(entry.Schema.Name) == "" {
		return fmt.Errorf("definition: %s defines a form without a name", entry.Source)
	}
	key := entry.Key()
	if prev, exists := c.index[key]; exists {
		return fmt.Errorf("definition: duplicate form key %q (%s and %s)", key, c.entries[prev].Source, entry.Source)
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, entry)
	return nil
}

func parseDocument(data []byte, source string) ([]formFile, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("definition: file %s is empty", source)
	}

	var doc documentFile
	if err := json.Unmarshal(data, &doc); err != nil {
		doc = documentFile{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("definition: parse %s: invalid JSON or YAML", source)
		}
	}

	forms := doc.Forms
	if strings.TrimSpace(doc.Name) != "" {
		forms = append([]formFile{doc.formFile}, forms...)
	}
	if len(forms) == 0 {
		return nil, fmt.Errorf("definition: file %s defines no forms", source)
	}
	return forms, nil
}

func isSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Entries returns the entries in load order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	return append([]Entry(nil), c.entries...)
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Lookup finds an entry by form name or namespace key.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	idx, ok := c.index[model.Key(name)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// Subset returns a catalog holding the named forms in the given order. No
// names returns the catalog itself.
func (c *Catalog) Subset(names ...string) (*Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}
	out := &Catalog{index: make(map[string]int, len(names))}
	for _, name := range names {
		entry, ok := c.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownForm, name)
		}
		if _, dup := out.index[entry.Key()]; dup {
			continue
		}
		out.index[entry.Key()] = len(out.entries)
		out.entries = append(out.entries, entry)
	}
	return out, nil
}

// Definitions builds one form definition per entry. Entries naming a model
// are bound through bind and save map[string]any records; bind may be nil
// only when no entry names a model. opts apply to every definition.
func (c *Catalog) Definitions(bind ModelBinder, opts ...form.DefinitionOption) ([]*form.Definition, error) {
	defs := make([]*form.Definition, 0, c.Len())
	for _, entry := range c.Entries() {
		def, err := entry.Definition(bind, opts...)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Definition builds the form definition for the entry.
func (e Entry) Definition(bind ModelBinder, opts ...form.DefinitionOption) (*form.Definition, error) {
	var local []form.DefinitionOption
	if len(e.Checks) > 0 {
		clean, err := CleanFunc(e.Checks)
		if err != nil {
			return nil, fmt.Errorf("definition: %s (%s): %w", e.Schema.Name, e.Source, err)
		}
		local = append(local, form.WithClean(clean))
	}
	if e.Model != "" {
		if bind == nil {
			return nil, fmt.Errorf("definition: %s (%s): model %q needs a binder", e.Schema.Name, e.Source, e.Model)
		}
		saver, err := bind(e.Model)
		if err != nil {
			return nil, fmt.Errorf("definition: %s (%s): bind model %q: %w", e.Schema.Name, e.Source, e.Model, err)
		}
		local = append(local, form.WithModel(func() any { return map[string]any{} }, saver))
	}
	def, err := form.FromSchema(e.Schema, append(local, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("definition: %s (%s): %w", e.Schema.Name, e.Source, err)
	}
	return def, nil
}
