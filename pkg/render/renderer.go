package render

import (
	"context"
)

// Context keys every renderer can rely on.
const (
	// KeyForms holds the ordered collection of form instances.
	KeyForms = "forms"
	// KeyMessages holds pending notification messages for the request.
	KeyMessages = "messages"
	// KeyHidden holds the sorted page-level hidden inputs, such as a CSRF token.
	KeyHidden = "hidden"
	// KeyState holds the terminal state name of the dispatch.
	KeyState = "state"
)

// Renderer turns a rendering context into a response body. The context
// carries KeyForms plus one entry per form namespace key; template names the
// template to use and may be ignored by data-only renderers.
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, template string, data map[string]any) ([]byte, error)
}
