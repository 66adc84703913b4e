// Package jsonapi renders the rendering context as JSON for API clients.
// The document carries "forms" in declaration order, one entry per
// namespace key and the state, messages and hidden inputs.
package jsonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-multiform/pkg/render"
)

const (
	// Name is the registry name of the renderer.
	Name = "json"
	// ContentType is written with every rendered document.
	ContentType = "application/json; charset=utf-8"
)

// Option customises the renderer.
type Option func(*Renderer)

// WithIndent pretty-prints documents using indent.
func WithIndent(indent string) Option {
	return func(r *Renderer) {
		r.indent = indent
	}
}

// WithOmit drops context entries by name, for example extra context that
// must not reach API clients.
func WithOmit(keys ...string) Option {
	return func(r *Renderer) {
		for _, key := range keys {
			if key = strings.TrimSpace(key); key != "" {
				r.omit[key] = struct{}{}
			}
		}
	}
}

// Renderer encodes the rendering context as a JSON object.
type Renderer struct {
	indent string
	omit   map[string]struct{}
}

var _ render.Renderer = (*Renderer)(nil)

// New builds a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{omit: make(map[string]struct{})}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Name implements render.Renderer.
func (r *Renderer) Name() string { return Name }

// ContentType implements render.Renderer.
func (r *Renderer) ContentType() string { return ContentType }

// Render encodes data. The template name is ignored.
func (r *Renderer) Render(_ context.Context, _ string, data map[string]any) ([]byte, error) {
	doc := make(map[string]any, len(data))
	for key, value := range data {
		if _, skip := r.omit[key]; skip {
			continue
		}
		doc[key] = value
	}
	if hidden, ok := doc[render.KeyHidden].([]render.HiddenField); ok {
		doc[render.KeyHidden] = hiddenObject(hidden)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if r.indent != "" {
		enc.SetIndent("", r.indent)
	}
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("jsonapi: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func hiddenObject(fields []render.HiddenField) map[string]string {
	out := make(map[string]string, len(fields))
	for _, field := range fields {
		out[field.Name] = field.Value
	}
	return out
}
