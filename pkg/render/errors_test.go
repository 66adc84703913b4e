package render_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-multiform/pkg/model"
	"github.com/goliatone/go-multiform/pkg/render"
)

func TestMapErrorPayload(t *testing.T) {
	fields := []model.Field{
		{Name: "minimum", Type: model.FieldTypeInteger},
		{Name: "maximum", Type: model.FieldTypeInteger},
		{Name: "email_address", Type: model.FieldTypeEmail},
	}
	payload := map[string][]string{
		"minimum":                      {"Too big."},
		"$.data.minimum":               {"Too big."},
		"numbersform-maximum":          {" Too small. ", "Too small."},
		"id_numbersform-email_address": {"Taken."},
		"/body/email_address":          {"Invalid."},
		"__all__":                      {"Form level."},
		"numbersform-unknown":          {"Unknown field."},
		"":                             {"Unscoped."},
		"items[0]":                     {"  "},
	}

	mapped := render.MapErrorPayload(fields, "numbersform", payload)

	wantFields := map[string][]string{
		"minimum":       {"Too big."},
		"maximum":       {"Too small."},
		"email_address": {"Invalid.", "Taken."},
	}
	if diff := cmp.Diff(wantFields, mapped.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
	wantForm := []string{"Unscoped.", "Form level.", "Unknown field."}
	if diff := cmp.Diff(wantForm, mapped.Form); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestMapErrorPayload_Empty(t *testing.T) {
	mapped := render.MapErrorPayload(nil, "form", nil)
	if mapped.Fields != nil || mapped.Form != nil {
		t.Fatalf("expected empty mapping, got %#v", mapped)
	}
}

func TestMergeFormErrors(t *testing.T) {
	merged := render.MergeFormErrors([]string{" First ", "Second"}, "Second", "third", "  ")
	if diff := cmp.Diff([]string{"First", "Second", "third"}, merged); diff != "" {
		t.Fatalf("merged form errors mismatch (-want +got):\n%s", diff)
	}
}
