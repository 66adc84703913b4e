// Package html renders form groups as an HTML page using pongo2 templates.
// The embedded bundle provides a "forms" page template plus form and field
// partials; callers can replace the bundle or the engine.
package html

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/goliatone/go-multiform/pkg/render"
	rendertemplate "github.com/goliatone/go-multiform/pkg/render/template"
	"github.com/goliatone/go-multiform/pkg/render/template/pongo"
)

const (
	// Name is the registry name of the renderer.
	Name = "html"
	// ContentType is written with every rendered page.
	ContentType = "text/html; charset=utf-8"
)

// Option customises the renderer.
type Option func(*config)

type config struct {
	templatesFS fs.FS
	engine      rendertemplate.Engine
	globals     map[string]any
}

// WithTemplatesFS replaces the embedded template bundle.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		if files != nil {
			cfg.templatesFS = files
		}
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path != "" {
			cfg.templatesFS = os.DirFS(path)
		}
	}
}

// WithEngine injects a template engine, bypassing the pongo2 default.
func WithEngine(engine rendertemplate.Engine) Option {
	return func(cfg *config) {
		if engine != nil {
			cfg.engine = engine
		}
	}
}

// WithGlobals seeds values every template can see, such as a page title.
func WithGlobals(globals map[string]any) Option {
	return func(cfg *config) {
		if len(globals) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(globals))
		}
		for key, value := range globals {
			cfg.globals[key] = value
		}
	}
}

// Renderer renders the rendering context through a template engine.
type Renderer struct {
	engine rendertemplate.Engine
}

var _ render.Renderer = (*Renderer)(nil)

// New builds a Renderer.
func New(options ...Option) (*Renderer, error) {
	cfg := config{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	engine := cfg.engine
	if engine == nil {
		files := cfg.templatesFS
		if files == nil {
			files = TemplatesFS()
		}
		built, err := pongo.New(pongo.WithFS(files))
		if err != nil {
			return nil, fmt.Errorf("html: template engine: %w", err)
		}
		engine = built
	}
	if len(cfg.globals) > 0 {
		if err := engine.GlobalContext(cfg.globals); err != nil {
			return nil, fmt.Errorf("html: globals: %w", err)
		}
	}
	return &Renderer{engine: engine}, nil
}

// Name implements render.Renderer.
func (r *Renderer) Name() string { return Name }

// ContentType implements render.Renderer.
func (r *Renderer) ContentType() string { return ContentType }

// Render executes the named template against data.
func (r *Renderer) Render(_ context.Context, template string, data map[string]any) ([]byte, error) {
	if r == nil || r.engine == nil {
		return nil, errors.New("html: renderer is not configured")
	}
	if template == "" {
		return nil, errors.New("html: template name is required")
	}
	out, err := r.engine.RenderTemplate(template, data)
	if err != nil {
		return nil, fmt.Errorf("html: render %q: %w", template, err)
	}
	return []byte(out), nil
}
