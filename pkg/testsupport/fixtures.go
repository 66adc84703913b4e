// Package testsupport holds fixtures and helpers shared by package tests:
// the sample forms used across the orchestrator suites, a recording saver,
// request builders and golden-file helpers.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/model"
	"github.com/goliatone/go-multiform/pkg/store"
)

// User is the record behind UserForm.
type User struct {
	ID        string `form:"id"`
	Username  string `form:"username"`
	FirstName string `form:"first_name"`
	LastName  string `form:"last_name"`
}

func (u *User) RecordID() string { return u.ID }
func (u *User) SetRecordID(id string) { u.ID = id }

// Group is the record behind GroupForm.
type Group struct {
	ID   string `form:"id"`
	Name string `form:"name"`
}

func (g *Group) RecordID() string { return g.ID }
func (g *Group) SetRecordID(id string) { g.ID = id }

// Post is the record behind PostForm.
type Post struct {
	ID        string `form:"id"`
	Title     string `form:"title"`
	Slug      string `form:"slug"`
	Published bool   `form:"published"`
	Content   string `form:"content"`
}

// Author is the record behind AuthorForm.
type Author struct {
	ID   string `form:"id"`
	Name string `form:"name"`
}

// RecordingSaver remembers every saved record. FailOn makes saves of records
// with that concrete type fail with Err.
type RecordingSaver struct {
	mu      sync.Mutex
	records []any
	FailOn  any
	Err     error
}

// Save implements store.Saver.
func (s *RecordingSaver) Save(_ context.Context, rec any) error {
	if rec == nil {
		return store.ErrNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOn != nil && fmt.Sprintf("%T", rec) == fmt.Sprintf("%T", s.FailOn) {
		if s.Err != nil {
			return s.Err
		}
		return errors.New("testsupport: save failed")
	}
	s.records = append(s.records, rec)
	return nil
}

// Records returns the saved records in save order.
func (s *RecordingSaver) Records() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.records...)
}

// UserForm edits a User: username is required.
func UserForm(saver store.Saver) *form.Definition {
	return form.MustDefinition("UserForm", []model.Field{
		{Name: "username", Type: model.FieldTypeSlug, Required: true, Rules: "max=150"},
		{Name: "first_name"},
		{Name: "last_name"},
	}, form.WithModel(func() any { return &User{} }, saver))
}

// GroupForm edits a Group.
func GroupForm(saver store.Saver) *form.Definition {
	return form.MustDefinition("GroupForm", []model.Field{
		{Name: "name", Required: true, Rules: "max=150"},
	}, form.WithModel(func() any { return &Group{} }, saver))
}

// PostForm edits a Post.
func PostForm(saver store.Saver) *form.Definition {
	return form.MustDefinition("PostForm", []model.Field{
		{Name: "title", Required: true, Rules: "max=100"},
		{Name: "slug", Type: model.FieldTypeSlug},
		{Name: "published", Type: model.FieldTypeBoolean},
		{Name: "content", Type: model.FieldTypeText},
	}, form.WithModel(func() any { return &Post{} }, saver))
}

// AuthorForm edits an Author.
func AuthorForm(saver store.Saver) *form.Definition {
	return form.MustDefinition("AuthorForm", []model.Field{
		{Name: "name", Required: true},
	}, form.WithModel(func() any { return &Author{} }, saver))
}

// NumbersMessage is the form-level error NumbersForm reports.
const NumbersMessage = "minimum cannot be greater than or equal to maximum"

// NumbersForm is a plain form whose clean hook requires minimum < maximum.
func NumbersForm() *form.Definition {
	return form.MustDefinition("NumbersForm", []model.Field{
		{Name: "minimum", Type: model.FieldTypeInteger, Required: true},
		{Name: "maximum", Type: model.FieldTypeInteger, Required: true},
	}, form.WithClean(func(_ context.Context, cleaned map[string]any) error {
		minimum, okMin := cleaned["minimum"].(int)
		maximum, okMax := cleaned["maximum"].(int)
		if okMin && okMax && minimum >= maximum {
			return errors.New(NumbersMessage)
		}
		return nil
	}))
}

// EmailForm is a plain form with an email and a textarea.
func EmailForm() *form.Definition {
	return form.MustDefinition("EmailForm", []model.Field{
		{Name: "email_address", Type: model.FieldTypeEmail, Required: true},
		{Name: "message", Type: model.FieldTypeText, Required: true},
	})
}
