// Package definition loads form schemas from JSON or YAML files and turns
// them into form definitions. A file holds either one form at its top level
// or a list under "forms". Forms may name a model kind, which a ModelBinder
// maps to a saver, and declare field comparisons enforced as the form-level
// clean step.
package definition
