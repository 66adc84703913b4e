package definition

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/formset"
	"github.com/goliatone/go-multiform/pkg/model"
)

// Issue is one lint finding.
type Issue struct {
	Source  string
	Form    string
	Field   string
	Message string
}

func (i Issue) String() string {
	location := i.Form
	if i.Field != "" {
		location += "." + i.Field
	}
	return fmt.Sprintf("%s: %s -> %s", i.Source, location, i.Message)
}

// Lint checks every entry for problems that would surface at runtime:
// unusable definitions, unknown validation rules, broken checks and keys
// the orchestrator refuses. Issues are sorted by source, form and field.
func Lint(c *Catalog) []Issue {
	var issues []Issue
	validate := form.NewValidator()

	var defs []*form.Definition
	for _, entry := range c.Entries() {
		report := func(field, format string, args ...any) {
			issues = append(issues, Issue{
				Source:  entry.Source,
				Form:    entry.Schema.Name,
				Field:   field,
				Message: fmt.Sprintf(format, args...),
			})
		}

		names := make(map[string]struct{}, len(entry.Schema.Fields))
		for _, raw := range entry.Schema.Fields {
			field := model.NormalizeField(raw, nil)
			names[field.Name] = struct{}{}
			if field.Type == model.FieldTypeChoice && len(field.Choices) == 0 {
				report(field.Name, "choice field has no choices")
			}
			if field.Type != model.FieldTypeChoice && len(field.Choices) > 0 {
				report(field.Name, "choices are ignored for %s fields", field.Type)
			}
			if field.Type == model.FieldTypeBoolean && field.Required {
				report(field.Name, "required checkbox must be ticked to submit")
			}
			if field.Rules != "" {
				if err := ruleError(validate, field.Rules); err != nil {
					report(field.Name, "rules %q: %v", field.Rules, err)
				}
			}
		}

		for _, check := range entry.Checks {
			if err := check.Validate(); err != nil {
				report("", "%v", err)
				continue
			}
			for _, name := range []string{check.Field, check.Other, check.Attach} {
				if _, ok := names[name]; name != "" && !ok {
					report(name, "check references an unknown field")
				}
			}
		}

		// Models are not bound while linting.
		unbound := entry
		unbound.Model = ""
		unbound.Checks = nil
		def, err := unbound.Definition(nil)
		if err != nil {
			report("", "%v", err)
			continue
		}
		defs = append(defs, def)
	}

	if _, err := formset.New(defs...); err != nil {
		issues = append(issues, Issue{Source: "catalog", Message: err.Error()})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Form != b.Form {
			return a.Form < b.Form
		}
		return a.Field < b.Field
	})
	return issues
}

// ruleError reports whether validator accepts the rule tags. Unknown tags
// make validator panic, so the panic is turned into an error.
func ruleError(validate *validator.Validate, rules string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	_ = validate.Var("", rules)
	return nil
}
