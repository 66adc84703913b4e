package render

import (
	"errors"
	"fmt"
	"mime"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrUnknownRenderer is returned for names nobody registered.
	ErrUnknownRenderer = errors.New("render: unknown renderer")
	// ErrDuplicateRenderer is returned when a name is registered twice.
	ErrDuplicateRenderer = errors.New("render: renderer already registered")
)

// Registry holds renderers by name and picks one per request from the
// Accept header.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry creates a registry holding renderers.
func NewRegistry(renderers ...Renderer) (*Registry, error) {
	r := &Registry{renderers: make(map[string]Renderer, len(renderers))}
	for _, renderer := range renderers {
		if err := r.Register(renderer); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds renderer under its Name().
func (r *Registry) Register(renderer Renderer) error {
	if renderer == nil {
		return fmt.Errorf("render: renderer is required")
	}
	name := strings.TrimSpace(renderer.Name())
	if name == "" {
		return fmt.Errorf("render: renderer name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRenderer, name)
	}
	r.renderers[name] = renderer
	return nil
}

// Get returns the renderer registered under name.
func (r *Registry) Get(name string) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRenderer, name)
	}
	return renderer, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Negotiate returns the renderer whose media type the Accept header ranks
// highest. Ties keep header order; q=0 excludes a type. Wildcards, unknown
// types and an empty header resolve to fallback.
func (r *Registry) Negotiate(accept, fallback string) (Renderer, error) {
	byType := make(map[string]Renderer)
	r.mu.RLock()
	for _, name := range sortedKeys(r.renderers) {
		renderer := r.renderers[name]
		mediaType, _, err := mime.ParseMediaType(renderer.ContentType())
		if err != nil {
			continue
		}
		if _, exists := byType[mediaType]; !exists {
			byType[mediaType] = renderer
		}
	}
	r.mu.RUnlock()

	var best Renderer
	bestQ := 0.0
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		renderer, ok := byType[mediaType]
		if !ok {
			continue
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				q = parsed
			}
		}
		if q > bestQ {
			best, bestQ = renderer, q
		}
	}
	if best != nil {
		return best, nil
	}
	return r.Get(fallback)
}

func sortedKeys(m map[string]Renderer) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
