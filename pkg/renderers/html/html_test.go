package html_test

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/formset"
	"github.com/goliatone/go-multiform/pkg/render"
	"github.com/goliatone/go-multiform/pkg/renderers/html"
	"github.com/goliatone/go-multiform/pkg/testsupport"
)

func renderContext(t *testing.T, req formset.Request) map[string]any {
	t.Helper()
	registry, err := formset.New(
		testsupport.PostForm(&testsupport.RecordingSaver{}),
		testsupport.AuthorForm(&testsupport.RecordingSaver{}),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	forms, err := registry.Bind(req, formset.BindOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	forms.Validate(context.Background())

	data := forms.Context()
	data[render.KeyHidden] = []render.HiddenField{render.CSRFToken("_csrf", "tok")}
	data[render.KeyMessages] = []map[string]string{{"level": "success", "text": "Saved"}}
	return data
}

func TestRenderer_UnboundPage(t *testing.T) {
	renderer, err := html.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if renderer.Name() != "html" {
		t.Fatalf("unexpected name %q", renderer.Name())
	}
	if renderer.ContentType() != "text/html; charset=utf-8" {
		t.Fatalf("unexpected content type %q", renderer.ContentType())
	}

	out, err := renderer.Render(context.Background(), "forms", renderContext(t, formset.Request{Method: "GET"}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	page := string(out)

	for _, want := range []string{
		`<legend>Post form</legend>`,
		`<legend>Author form</legend>`,
		`name="postform-title" id="id_postform-title"`,
		`<input type="checkbox" name="postform-published" id="id_postform-published" value="on">`,
		`<textarea name="postform-content" id="id_postform-content">`,
		`name="authorform-name"`,
		`<input type="hidden" name="_csrf" value="tok">`,
		`<div class="message message-success" role="status">Saved</div>`,
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q\n%s", want, page)
		}
	}
	if strings.Contains(page, `class="errorlist"`) {
		t.Fatalf("unbound page should not render errors\n%s", page)
	}
	if strings.Index(page, "postform-title") > strings.Index(page, "authorform-name") {
		t.Fatalf("forms rendered out of order\n%s", page)
	}
}

func TestRenderer_BoundPageShowsErrorsAndEscapesValues(t *testing.T) {
	renderer, err := html.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	req := formset.Request{
		Method: "POST",
		Data: testsupport.Values(
			"postform-title", "<b>Hi</b>",
			"postform-published", "on",
		),
	}

	out, err := renderer.Render(context.Background(), "forms", renderContext(t, req))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	page := string(out)

	for _, want := range []string{
		`value="&lt;b&gt;Hi&lt;/b&gt;"`,
		`value="on" checked>`,
		`<li>` + form.MsgRequired + `</li>`,
		`class="field field-text has-error"`,
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q\n%s", want, page)
		}
	}
	if strings.Contains(page, "<b>Hi</b>") {
		t.Fatalf("submitted markup was not escaped\n%s", page)
	}
}

func TestRenderer_CustomTemplates(t *testing.T) {
	files := fstest.MapFS{
		"summary.tpl": {Data: []byte(`{% for form in forms %}{{ form.key }}={{ form.valid }};{% endfor %}`)},
	}
	renderer, err := html.New(html.WithTemplatesFS(files))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	req := formset.Request{Method: "POST", Data: testsupport.Values("postform-title", "Hi", "authorform-name", "Ada")}

	out, err := renderer.Render(context.Background(), "summary", renderContext(t, req))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got, want := string(out), "postform=True;authorform=True;"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestRenderer_RequiresTemplateName(t *testing.T) {
	renderer, err := html.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := renderer.Render(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error for empty template name")
	}
}
