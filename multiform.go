// Package multiform puts several independent forms on one page and drives
// them through a single request/response cycle. The heavy lifting lives in
// pkg/orchestrator; this package offers shortcuts for the common setups.
package multiform

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/goliatone/go-multiform/pkg/definition"
	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/openapi"
	"github.com/goliatone/go-multiform/pkg/orchestrator"
	"github.com/goliatone/go-multiform/pkg/renderers/html"
)

// View aliases orchestrator.View.
type View = orchestrator.View

// Option aliases orchestrator.Option.
type Option = orchestrator.Option

// Result aliases orchestrator.Result.
type Result = orchestrator.Result

// New builds a view over defs.
func New(defs []*form.Definition, opts ...Option) (*View, error) {
	return orchestrator.New(defs, opts...)
}

// FromFS loads JSON/YAML definitions from fsys and builds a view over the
// named forms, or every loaded form when names is empty. Forms naming a
// model are bound through bind.
func FromFS(fsys fs.FS, bind definition.ModelBinder, names []string, opts ...Option) (*View, error) {
	catalog, err := definition.LoadFS(fsys)
	if err != nil {
		return nil, err
	}
	return fromCatalog(catalog, bind, names, opts...)
}

// FromOpenAPI derives forms from the component schemas of an OpenAPI
// document and builds a view over them.
func FromOpenAPI(ctx context.Context, data []byte, bind definition.ModelBinder, schemaOpts []openapi.Option, opts ...Option) (*View, error) {
	entries, err := openapi.Parse(ctx, data, "openapi", schemaOpts...)
	if err != nil {
		return nil, err
	}
	catalog, err := definition.NewCatalog(entries...)
	if err != nil {
		return nil, err
	}
	return fromCatalog(catalog, bind, nil, opts...)
}

func fromCatalog(catalog *definition.Catalog, bind definition.ModelBinder, names []string, opts ...Option) (*View, error) {
	subset, err := catalog.Subset(names...)
	if err != nil {
		return nil, fmt.Errorf("multiform: %w", err)
	}
	defs, err := subset.Definitions(bind)
	if err != nil {
		return nil, fmt.Errorf("multiform: %w", err)
	}
	return orchestrator.New(defs, opts...)
}

// EmbeddedTemplates exposes the built-in page templates so callers can copy
// or extend them.
func EmbeddedTemplates() fs.FS {
	return html.TemplatesFS()
}
