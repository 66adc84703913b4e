// Package template defines the template engine seam HTML renderers depend on.
package template

import "io"

// Engine renders named templates or inline template strings against a data
// context. Implementations must be safe for concurrent use.
type Engine interface {
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	RenderString(content string, data any, out ...io.Writer) (string, error)
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
	GlobalContext(data any) error
}
