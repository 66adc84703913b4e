// Package model defines the declarative schema consumed by form definitions.
// A Schema names a form and lists its fields; each Field carries the input
// kind, display hints, and an optional validator tag string in Rules
// ("max=255", "gte=1") that the form package evaluates after coercing the
// submitted value. Schemas are plain data so they can be declared in Go,
// loaded from YAML/JSON documents (pkg/definition), or derived from OpenAPI
// component schemas (pkg/openapi).
package model
