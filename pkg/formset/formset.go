// Package formset groups form definitions under unique namespace keys and
// binds them together to one request.
package formset

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-multiform/pkg/form"
)

var (
	// ErrDuplicateKey reports two definitions sharing a namespace key.
	ErrDuplicateKey = errors.New("formset: duplicate namespace key")
	// ErrInvalidDefinition reports a nil or unusable definition.
	ErrInvalidDefinition = errors.New("formset: invalid definition")
)

// ContextKeyForms is the rendering-context entry holding the ordered forms.
const ContextKeyForms = "forms"

// reservedKeys are rendering-context entries a form key may not shadow.
var reservedKeys = map[string]struct{}{
	ContextKeyForms: {},
	"messages":      {},
	"hidden":        {},
	"state":         {},
}

// Request is the transport-neutral view of an incoming request.
type Request struct {
	Method string
	Data   url.Values
	Files  map[string][]*multipart.FileHeader
	// Handle identifies the client across requests, for example a session
	// id used by message stores.
	Handle string
}

// IsWrite reports whether method submits forms. PUT is treated as POST.
func IsWrite(method string) bool {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case http.MethodPost, http.MethodPut:
		return true
	default:
		return false
	}
}

// FromHTTP extracts a Request from r, parsing urlencoded or multipart
// bodies for write verbs. maxMemory bounds in-memory multipart storage.
func FromHTTP(r *http.Request, maxMemory int64) (Request, error) {
	req := Request{Method: strings.ToUpper(r.Method)}
	if !IsWrite(req.Method) {
		return req, nil
	}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return req, fmt.Errorf("formset: parse multipart body: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("formset: parse form body: %w", err)
	}

	req.Data = url.Values{}
	for key, values := range r.PostForm {
		req.Data[key] = append([]string(nil), values...)
	}
	if r.MultipartForm != nil && len(r.MultipartForm.File) > 0 {
		req.Files = make(map[string][]*multipart.FileHeader, len(r.MultipartForm.File))
		for key, headers := range r.MultipartForm.File {
			req.Files[key] = append([]*multipart.FileHeader(nil), headers...)
		}
	}
	return req, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// Registry is an ordered set of definitions with unique keys.
type Registry struct {
	defs  []*form.Definition
	index map[string]int
	opts  []form.Option
}

// New validates definitions at configuration time.
func New(defs ...*form.Definition) (*Registry, error) {
	reg := &Registry{index: make(map[string]int, len(defs))}
	for i, def := range defs {
		if def == nil {
			return nil, fmt.Errorf("%w: definition %d is nil", ErrInvalidDefinition, i)
		}
		key := def.Key()
		if key == "" {
			return nil, fmt.Errorf("%w: definition %d has no name", ErrInvalidDefinition, i)
		}
		if _, reserved := reservedKeys[key]; reserved {
			return nil, fmt.Errorf("%w: key %q is reserved", ErrInvalidDefinition, key)
		}
		if prev, exists := reg.index[key]; exists {
			return nil, fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateKey, key, reg.defs[prev].Name(), def.Name())
		}
		reg.index[key] = len(reg.defs)
		reg.defs = append(reg.defs, def)
	}
	return reg, nil
}

// WithFormOptions returns a copy of the registry that passes opts to every
// form it binds.
func (r *Registry) WithFormOptions(opts ...form.Option) *Registry {
	clone := *r
	clone.opts = append(append([]form.Option(nil), r.opts...), opts...)
	return &clone
}

// Definitions returns the definitions in declaration order.
func (r *Registry) Definitions() []*form.Definition {
	return append([]*form.Definition(nil), r.defs...)
}

// Keys returns the namespace keys in declaration order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		keys = append(keys, def.Key())
	}
	return keys
}

// Definition looks a definition up by key.
func (r *Registry) Definition(key string) (*form.Definition, bool) {
	idx, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.defs[idx], true
}

// BindOptions supplies per-request initial values and instances, keyed by
// namespace key. Keys without an entry get none.
type BindOptions struct {
	Initial   map[string]map[string]any
	Instances map[string]any
}

// Bind builds fresh forms for req. Write requests bind the submitted data to
// every form, even when nothing was submitted for it.
func (r *Registry) Bind(req Request, opts BindOptions) (*Forms, error) {
	for key := range opts.Instances {
		def, ok := r.Definition(key)
		if !ok {
			return nil, fmt.Errorf("formset: instance for unknown key %q", key)
		}
		if !def.ModelBacked() {
			return nil, fmt.Errorf("formset: instance for %q: %w", key, form.ErrNotModelBacked)
		}
	}

	write := IsWrite(req.Method)
	out := &Forms{
		forms: make([]*form.Form, 0, len(r.defs)),
		index: make(map[string]int, len(r.defs)),
	}
	for _, def := range r.defs {
		key := def.Key()
		cfg := form.Config{
			Prefix:   key,
			Initial:  opts.Initial[key],
			Instance: opts.Instances[key],
		}
		if write {
			cfg.Data = req.Data
			if cfg.Data == nil {
				cfg.Data = url.Values{}
			}
			cfg.Files = req.Files
			cfg.Bound = true
		}
		f, err := form.New(def, cfg, r.opts...)
		if err != nil {
			return nil, fmt.Errorf("formset: bind %s: %w", key, err)
		}
		out.index[key] = len(out.forms)
		out.forms = append(out.forms, f)
	}
	return out, nil
}

// Forms is the ordered collection of forms bound to one request.
type Forms struct {
	forms []*form.Form
	index map[string]int
}

// All returns the forms in declaration order.
func (fs *Forms) All() []*form.Form {
	return append([]*form.Form(nil), fs.forms...)
}

// Keys returns the namespace keys in declaration order.
func (fs *Forms) Keys() []string {
	keys := make([]string, 0, len(fs.forms))
	for _, f := range fs.forms {
		keys = append(keys, f.Key())
	}
	return keys
}

// Get returns the form bound under key.
func (fs *Forms) Get(key string) (*form.Form, bool) {
	idx, ok := fs.index[key]
	if !ok {
		return nil, false
	}
	return fs.forms[idx], true
}

// Len returns the number of forms.
func (fs *Forms) Len() int { return len(fs.forms) }

// Validate cleans every form, then reports whether all of them are valid.
// No form is skipped, so each one carries its own errors afterwards.
func (fs *Forms) Validate(ctx context.Context) bool {
	valid := true
	for _, f := range fs.forms {
		if !f.IsValid(ctx) {
			valid = false
		}
	}
	return valid
}

// Invalid returns the keys of forms that failed validation.
func (fs *Forms) Invalid(ctx context.Context) []string {
	var keys []string
	for _, f := range fs.forms {
		if f.IsBound() && !f.IsValid(ctx) {
			keys = append(keys, f.Key())
		}
	}
	return keys
}

// Errors returns each form's errors keyed by namespace key. Forms without
// errors are omitted.
func (fs *Forms) Errors() map[string]map[string][]string {
	out := make(map[string]map[string][]string)
	for _, f := range fs.forms {
		if errs := f.Errors(); len(errs) > 0 {
			out[f.Key()] = errs
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Context returns the rendering context: the ordered forms under "forms"
// plus one entry per namespace key.
func (fs *Forms) Context() map[string]any {
	ctx := make(map[string]any, len(fs.forms)+1)
	ctx[ContextKeyForms] = fs.All()
	for _, f := range fs.forms {
		ctx[f.Key()] = f
	}
	return ctx
}
