package jsonapi_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/formset"
	"github.com/goliatone/go-multiform/pkg/render"
	"github.com/goliatone/go-multiform/pkg/renderers/jsonapi"
	"github.com/goliatone/go-multiform/pkg/testsupport"
)

type document struct {
	State  string            `json:"state"`
	Hidden map[string]string `json:"hidden"`
	Forms  []form.View       `json:"forms"`
	Number *form.View        `json:"numbersform"`
	Secret string            `json:"secret"`
}

func TestRenderer_EncodesFormsAndKeys(t *testing.T) {
	registry, err := formset.New(testsupport.NumbersForm(), testsupport.EmailForm())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	forms, err := registry.Bind(formset.Request{
		Method: "POST",
		Data: testsupport.Values(
			"numbersform-minimum", "10",
			"numbersform-maximum", "2",
			"emailform-email_address", "ada@example.com",
			"emailform-message", "hi",
		),
	}, formset.BindOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	forms.Validate(context.Background())

	data := forms.Context()
	data[render.KeyState] = "rendered_with_errors"
	data[render.KeyHidden] = []render.HiddenField{render.CSRFToken("_csrf", "tok")}
	data["secret"] = "internal"

	renderer := jsonapi.New(jsonapi.WithOmit("secret"))
	if renderer.Name() != "json" || renderer.ContentType() != "application/json; charset=utf-8" {
		t.Fatalf("unexpected identity %q %q", renderer.Name(), renderer.ContentType())
	}
	out, err := renderer.Render(context.Background(), "ignored", data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var doc document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}

	if doc.State != "rendered_with_errors" {
		t.Fatalf("unexpected state %q", doc.State)
	}
	if diff := cmp.Diff(map[string]string{"_csrf": "tok"}, doc.Hidden); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}
	if doc.Secret != "" {
		t.Fatalf("omitted key leaked: %q", doc.Secret)
	}

	var keys []string
	for _, view := range doc.Forms {
		keys = append(keys, view.Key)
	}
	if diff := cmp.Diff([]string{"numbersform", "emailform"}, keys); diff != "" {
		t.Fatalf("form order mismatch (-want +got):\n%s", diff)
	}
	if doc.Number == nil {
		t.Fatalf("expected per-key entry for numbersform")
	}
	if diff := cmp.Diff([]string{testsupport.NumbersMessage}, doc.Number.NonFieldErrors); diff != "" {
		t.Fatalf("non-field errors mismatch (-want +got):\n%s", diff)
	}
	if !doc.Forms[1].Valid {
		t.Fatalf("expected emailform to be valid")
	}
}
