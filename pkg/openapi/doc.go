// Package openapi derives form schemas from the object schemas declared
// under components.schemas of an OpenAPI 3 document. Scalar properties
// become fields; nested objects and arrays are skipped. An optional
// "x-multiform" extension on a schema or property overrides the derived
// values.
package openapi
