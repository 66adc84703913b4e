// Package form implements form definitions and per-request form instances.
//
// A Definition is the immutable description of one form: its name, ordered
// fields, an optional form-level clean hook and, for model-backed forms, how
// to build and persist a record. A Form binds a Definition to one request:
// it owns a prefix, initial values, submitted data and files, an optional
// instance being edited, and the cached outcome of cleaning.
package form
