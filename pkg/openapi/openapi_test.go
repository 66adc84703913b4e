package openapi_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-multiform/pkg/definition"
	"github.com/goliatone/go-multiform/pkg/model"
	"github.com/goliatone/go-multiform/pkg/openapi"
)

const blogDocument = `
openapi: 3.0.3
info:
  title: Blog
  version: 1.0.0
paths: {}
components:
  schemas:
    Post:
      type: object
      title: Post form
      required: [title]
      x-multiform:
        model: posts
        order: [title, slug, body]
      properties:
        id:
          type: string
          readOnly: true
        title:
          type: string
          maxLength: 120
        slug:
          type: string
          format: slug
        body:
          type: string
          format: textarea
          description: Markdown is allowed.
        status:
          type: string
          enum: [draft, published]
        tags:
          type: array
          items:
            type: string
    Author:
      type: object
      required: [name, email]
      properties:
        name:
          type: string
          minLength: 2
        email:
          type: string
          format: email
        age:
          type: integer
          minimum: 0
          maximum: 150
          exclusiveMaximum: true
        newsletter:
          type: boolean
          x-multiform:
            label: Send me news
    Numbers:
      type: object
      x-multiform:
        checks:
          - field: minimum
            op: lt
            other: maximum
            message: Minimum must be less than maximum.
      properties:
        minimum:
          type: number
        maximum:
          type: number
    Tag:
      type: string
`

func TestParse_DerivesObjectSchemas(t *testing.T) {
	entries, err := openapi.Parse(context.Background(), []byte(blogDocument), "blog.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Schema.Name)
	}
	if diff := cmp.Diff([]string{"Author", "Numbers", "Post"}, names); diff != "" {
		t.Fatalf("entry names mismatch (-want +got):\n%s", diff)
	}

	post := entries[2]
	if post.Model != "posts" || post.Schema.Label != "Post form" || post.Source != "blog.yaml" {
		t.Fatalf("unexpected post entry %+v", post)
	}
	wantPost := []model.Field{
		{Name: "title", Type: model.FieldTypeString, Required: true, Rules: "max=120"},
		{Name: "slug", Type: model.FieldTypeSlug},
		{Name: "body", Type: model.FieldTypeText, Help: "Markdown is allowed."},
		{Name: "status", Type: model.FieldTypeChoice, Choices: []model.Choice{{Value: "draft"}, {Value: "published"}}},
	}
	if diff := cmp.Diff(wantPost, post.Schema.Fields); diff != "" {
		t.Fatalf("post fields mismatch (-want +got):\n%s", diff)
	}

	wantAuthor := []model.Field{
		{Name: "age", Type: model.FieldTypeInteger, Rules: "gte=0,lt=150"},
		{Name: "email", Type: model.FieldTypeEmail, Required: true},
		{Name: "name", Type: model.FieldTypeString, Required: true, Rules: "min=2"},
		{Name: "newsletter", Type: model.FieldTypeBoolean, Label: "Send me news"},
	}
	if diff := cmp.Diff(wantAuthor, entries[0].Schema.Fields); diff != "" {
		t.Fatalf("author fields mismatch (-want +got):\n%s", diff)
	}

	wantChecks := []definition.Check{{Field: "minimum", Op: "lt", Other: "maximum", Message: "Minimum must be less than maximum."}}
	if diff := cmp.Diff(wantChecks, entries[1].Checks); diff != "" {
		t.Fatalf("numbers checks mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ComponentsAndSuffix(t *testing.T) {
	entries, err := openapi.Parse(context.Background(), []byte(blogDocument), "blog.yaml",
		openapi.WithComponents("Post", "Author"),
		openapi.WithNameSuffix("Form"),
		openapi.WithValidation(true),
	)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 2 || entries[0].Schema.Name != "PostForm" || entries[1].Schema.Name != "AuthorForm" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].Key() != "postform" || entries[0].Schema.Metadata["component"] != "Post" {
		t.Fatalf("unexpected post entry %+v", entries[0])
	}

	catalog, err := definition.NewCatalog(entries...)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if _, ok := catalog.Lookup("authorform"); !ok {
		t.Fatalf("expected authorform in catalog")
	}
}

func TestParse_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := openapi.Parse(ctx, []byte(blogDocument), "blog.yaml", openapi.WithComponents("Missing")); err == nil || !strings.Contains(err.Error(), `"Missing"`) {
		t.Fatalf("expected missing component error, got %v", err)
	}

	empty := "openapi: 3.0.3\ninfo: {title: x, version: '1'}\npaths: {}\n"
	if _, err := openapi.Parse(ctx, []byte(empty), "empty.yaml"); !errors.Is(err, openapi.ErrNoSchemas) {
		t.Fatalf("expected ErrNoSchemas, got %v", err)
	}

	if _, err := openapi.Parse(ctx, []byte("openapi: ["), "broken.yaml"); err == nil {
		t.Fatalf("expected load error")
	}
}
