package form_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/model"
	"github.com/goliatone/go-multiform/pkg/testsupport"
)

func mustForm(t *testing.T, def *form.Definition, cfg form.Config) *form.Form {
	t.Helper()
	f, err := form.New(def, cfg)
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	return f
}

func TestForm_Names(t *testing.T) {
	f := mustForm(t, testsupport.EmailForm(), form.Config{})

	if f.Prefix() != "emailform" {
		t.Fatalf("unexpected prefix %q", f.Prefix())
	}
	if got := f.HTMLName("email_address"); got != "emailform-email_address" {
		t.Fatalf("unexpected html name %q", got)
	}
	if got := f.FieldID("message"); got != "id_emailform-message" {
		t.Fatalf("unexpected id %q", got)
	}

	custom := mustForm(t, testsupport.EmailForm(), form.Config{Prefix: "contact"})
	if got := custom.HTMLName("message"); got != "contact-message" {
		t.Fatalf("unexpected custom html name %q", got)
	}
}

func TestForm_UnboundIsInvalidWithoutErrors(t *testing.T) {
	f := mustForm(t, testsupport.EmailForm(), form.Config{})

	if f.IsBound() {
		t.Fatalf("expected unbound form")
	}
	if f.IsValid(context.Background()) {
		t.Fatalf("unbound form must not be valid")
	}
	if errs := f.Errors(); errs != nil {
		t.Fatalf("unbound form reported errors: %v", errs)
	}
}

func TestForm_EmptyDataIsBound(t *testing.T) {
	f := mustForm(t, testsupport.EmailForm(), form.Config{Data: url.Values{}})

	if !f.IsBound() {
		t.Fatalf("expected bound form")
	}
	if f.IsValid(context.Background()) {
		t.Fatalf("expected required errors")
	}
	want := map[string][]string{
		"email_address": {form.MsgRequired},
		"message":       {form.MsgRequired},
	}
	if diff := cmp.Diff(want, f.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestForm_FieldCleaning(t *testing.T) {
	def := form.MustDefinition("Kitchen", []model.Field{
		{Name: "count", Type: model.FieldTypeInteger},
		{Name: "ratio", Type: model.FieldTypeNumber},
		{Name: "when", Type: model.FieldTypeDate},
		{Name: "site", Type: model.FieldTypeURL},
		{Name: "handle", Type: model.FieldTypeSlug},
		{Name: "size", Choices: []model.Choice{{Value: "s"}, {Value: "m"}}},
		{Name: "nick", Rules: "max=3"},
		{Name: "age", Type: model.FieldTypeInteger, Rules: "gte=18"},
		{Name: "note"},
		{Name: "agree", Type: model.FieldTypeBoolean},
	})

	cases := []struct {
		name   string
		field  string
		raw    string
		want   any
		errors []string
	}{
		{name: "integer", field: "count", raw: " 42 ", want: 42},
		{name: "integer invalid", field: "count", raw: "4.5x", errors: []string{form.MsgInteger}},
		{name: "integer leading zero is decimal", field: "count", raw: "010", want: 10},
		{name: "integer leading zero eight", field: "count", raw: "08", want: 8},
		{name: "integer hex rejected", field: "count", raw: "0x10", errors: []string{form.MsgInteger}},
		{name: "integer signed", field: "count", raw: "-7", want: -7},
		{name: "number", field: "ratio", raw: "0.25", want: 0.25},
		{name: "number leading zero", field: "ratio", raw: "010.5", want: 10.5},
		{name: "number invalid", field: "ratio", raw: "abc", errors: []string{form.MsgNumber}},
		{name: "number nan", field: "ratio", raw: "NaN", errors: []string{form.MsgNumber}},
		{name: "number inf", field: "ratio", raw: "Inf", errors: []string{form.MsgNumber}},
		{name: "number negative inf", field: "ratio", raw: "-Infinity", errors: []string{form.MsgNumber}},
		{name: "date", field: "when", raw: "2024-05-01", want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{name: "date invalid", field: "when", raw: "someday", errors: []string{form.MsgDate}},
		{name: "url", field: "site", raw: "https://example.com", want: "https://example.com"},
		{name: "url invalid", field: "site", raw: "not a url", errors: []string{form.MsgURL}},
		{name: "slug", field: "handle", raw: "kj_son-1", want: "kj_son-1"},
		{name: "slug invalid", field: "handle", raw: "k j", errors: []string{form.MsgSlug}},
		{name: "choice", field: "size", raw: "m", want: "m"},
		{name: "choice invalid", field: "size", raw: "xl", errors: []string{"Select a valid choice. xl is not one of the available choices."}},
		{name: "rule max", field: "nick", raw: "abcd", errors: []string{"Ensure this value has at most 3 characters (it has 4)."}},
		{name: "rule gte", field: "age", raw: "12", errors: []string{"Ensure this value is greater than or equal to 18."}},
		{name: "optional empty string", field: "note", raw: "", want: ""},
		{name: "optional empty integer", field: "count", raw: "", want: nil},
		{name: "checkbox on", field: "agree", raw: "on", want: true},
		{name: "checkbox off", field: "agree", raw: "off", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := mustForm(t, def, form.Config{Data: testsupport.Values("kitchen-"+tc.field, tc.raw)})
			valid := f.IsValid(context.Background())

			if diff := cmp.Diff(tc.errors, f.Errors()[tc.field]); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
			if tc.errors != nil {
				if valid {
					t.Fatalf("expected invalid form")
				}
				if _, ok := f.Cleaned()[tc.field]; ok {
					t.Fatalf("invalid field kept in cleaned data")
				}
				return
			}
			if diff := cmp.Diff(tc.want, f.Cleaned()[tc.field]); diff != "" {
				t.Fatalf("cleaned mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestForm_MissingCheckboxIsFalse(t *testing.T) {
	f := mustForm(t, testsupport.PostForm(&testsupport.RecordingSaver{}), form.Config{
		Data: testsupport.Values("postform-title", "Hello"),
	})
	if !f.IsValid(context.Background()) {
		t.Fatalf("unexpected errors: %v", f.Errors())
	}
	if got := f.Cleaned()["published"]; got != false {
		t.Fatalf("expected unchecked checkbox to clean to false, got %v", got)
	}
}

func TestForm_CleanHookFormLevel(t *testing.T) {
	f := mustForm(t, testsupport.NumbersForm(), form.Config{
		Data: testsupport.Values("numbersform-minimum", "10", "numbersform-maximum", "5"),
	})

	if f.IsValid(context.Background()) {
		t.Fatalf("expected clean hook to reject the form")
	}
	want := map[string][]string{form.NonFieldErrorsKey: {testsupport.NumbersMessage}}
	if diff := cmp.Diff(want, f.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{testsupport.NumbersMessage}, f.NonFieldErrors()); diff != "" {
		t.Fatalf("non-field errors mismatch (-want +got):\n%s", diff)
	}
}

func TestForm_CleanHookRunsOnce(t *testing.T) {
	calls := 0
	def := form.MustDefinition("Counter", []model.Field{{Name: "a"}}, form.WithClean(func(context.Context, map[string]any) error {
		calls++
		return nil
	}))
	f := mustForm(t, def, form.Config{Data: url.Values{}})

	f.IsValid(context.Background())
	f.IsValid(context.Background())
	f.Errors()
	if calls != 1 {
		t.Fatalf("expected one clean pass, got %d", calls)
	}
}

func TestForm_CleanHookFieldErrors(t *testing.T) {
	def := form.MustDefinition("Range", []model.Field{
		{Name: "low", Type: model.FieldTypeInteger},
		{Name: "high", Type: model.FieldTypeInteger},
	}, form.WithClean(func(_ context.Context, cleaned map[string]any) error {
		cleaned["span"] = "computed"
		verrs := form.NewValidationError("range-low", "Too low")
		verrs.Add("unknown", "Lost field")
		return multierr.Combine(verrs, errors.New("Generic failure"))
	}))

	f := mustForm(t, def, form.Config{Data: testsupport.Values("range-low", "1", "range-high", "2")})
	if f.IsValid(context.Background()) {
		t.Fatalf("expected invalid form")
	}

	want := map[string][]string{
		"low":                  {"Too low"},
		form.NonFieldErrorsKey: {"Lost field", "Generic failure"},
	}
	if diff := cmp.Diff(want, f.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	cleaned := f.Cleaned()
	if _, ok := cleaned["low"]; ok {
		t.Fatalf("field with clean error kept in cleaned data")
	}
	if cleaned["high"] != 2 || cleaned["span"] != "computed" {
		t.Fatalf("unexpected cleaned data %v", cleaned)
	}
}

func TestForm_ValuePrecedence(t *testing.T) {
	def := testsupport.GroupForm(&testsupport.RecordingSaver{})
	withDefault := form.MustDefinition("Defaults", []model.Field{{Name: "name", Default: "fallback"}})

	cases := []struct {
		name string
		def  *form.Definition
		cfg  form.Config
		want any
	}{
		{name: "default", def: withDefault, want: "fallback"},
		{name: "instance", def: def, cfg: form.Config{Instance: &testsupport.Group{Name: "Staff"}}, want: "Staff"},
		{name: "initial over instance", def: def, cfg: form.Config{
			Initial:  map[string]any{"name": "Admins"},
			Instance: &testsupport.Group{Name: "Staff"},
		}, want: "Admins"},
		{name: "data over initial", def: def, cfg: form.Config{
			Initial: map[string]any{"name": "Admins"},
			Data:    testsupport.Values("groupform-name", "Editors"),
		}, want: "Editors"},
		{name: "bound without value", def: def, cfg: form.Config{
			Initial: map[string]any{"name": "Admins"},
			Data:    url.Values{},
		}, want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := mustForm(t, tc.def, tc.cfg)
			if diff := cmp.Diff(tc.want, f.Value("name")); diff != "" {
				t.Fatalf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestForm_InstanceRequiresModel(t *testing.T) {
	_, err := form.New(testsupport.EmailForm(), form.Config{Instance: &testsupport.Group{}})
	if !errors.Is(err, form.ErrNotModelBacked) {
		t.Fatalf("expected ErrNotModelBacked, got %v", err)
	}
}

func TestForm_SaveCreatesRecord(t *testing.T) {
	saver := &testsupport.RecordingSaver{}
	f := mustForm(t, testsupport.PostForm(saver), form.Config{
		Data: testsupport.Values("postform-title", "Hello", "postform-content", "World", "postform-published", "on"),
	})

	rec, err := f.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := &testsupport.Post{Title: "Hello", Content: "World", Published: true}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{want}, saver.Records()); diff != "" {
		t.Fatalf("saved records mismatch (-want +got):\n%s", diff)
	}
}

func TestForm_SaveEditsInstance(t *testing.T) {
	saver := &testsupport.RecordingSaver{}
	group := &testsupport.Group{ID: "g1", Name: "Admins"}
	f := mustForm(t, testsupport.GroupForm(saver), form.Config{
		Data:     testsupport.Values("groupform-name", "Owners"),
		Instance: group,
	})

	if _, err := f.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if group.Name != "Owners" || group.ID != "g1" {
		t.Fatalf("instance not edited in place: %+v", group)
	}
}

func TestForm_SaveErrors(t *testing.T) {
	plain := mustForm(t, testsupport.EmailForm(), form.Config{Data: url.Values{}})
	if _, err := plain.Save(context.Background()); !errors.Is(err, form.ErrNotModelBacked) {
		t.Fatalf("expected ErrNotModelBacked, got %v", err)
	}

	saver := &testsupport.RecordingSaver{}
	invalid := mustForm(t, testsupport.GroupForm(saver), form.Config{Data: url.Values{}})
	if _, err := invalid.Save(context.Background()); !errors.Is(err, form.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	boom := errors.New("disk full")
	failing := &testsupport.RecordingSaver{FailOn: &testsupport.Group{}, Err: boom}
	f := mustForm(t, testsupport.GroupForm(failing), form.Config{Data: testsupport.Values("groupform-name", "x")})
	if _, err := f.Save(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected saver error, got %v", err)
	}
}

type upload struct {
	Title string                `form:"title"`
	File  *multipart.FileHeader `form:"file"`
}

func TestForm_SaveAssignsFiles(t *testing.T) {
	saver := &testsupport.RecordingSaver{}
	def := form.MustDefinition("Upload", []model.Field{
		{Name: "title"},
		{Name: "file", Type: model.FieldTypeFile, Required: true},
	}, form.WithModel(func() any { return &upload{} }, saver))

	missing := mustForm(t, def, form.Config{Data: url.Values{}})
	if diff := cmp.Diff([]string{form.MsgRequired}, missing.Errors()["file"]); diff != "" {
		t.Fatalf("file errors mismatch (-want +got):\n%s", diff)
	}

	header := &multipart.FileHeader{Filename: "a.txt", Size: 3}
	f := mustForm(t, def, form.Config{
		Data:  testsupport.Values("upload-title", "doc"),
		Files: map[string][]*multipart.FileHeader{"upload-file": {header}},
	})
	rec, err := f.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got := rec.(*upload)
	if got.File != header || got.Title != "doc" {
		t.Fatalf("unexpected record %+v", got)
	}
	if f.Value("file") != nil {
		t.Fatalf("file values must not be echoed back")
	}
}

func TestForm_MergeErrors(t *testing.T) {
	f := mustForm(t, testsupport.GroupForm(&testsupport.RecordingSaver{}), form.Config{
		Data: testsupport.Values("groupform-name", "Admins"),
	})
	if !f.IsValid(context.Background()) {
		t.Fatalf("unexpected errors %v", f.Errors())
	}

	f.MergeErrors(map[string][]string{
		"groupform-name": {"Name already taken"},
		"$.data":         {"Backend rejected the request"},
	})
	f.AddError("", "Try again later")

	if f.IsValid(context.Background()) {
		t.Fatalf("expected merged errors to invalidate the form")
	}
	want := map[string][]string{
		"name":                 {"Name already taken"},
		form.NonFieldErrorsKey: {"Backend rejected the request", "Try again later"},
	}
	if diff := cmp.Diff(want, f.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if _, ok := f.Cleaned()["name"]; ok {
		t.Fatalf("field with merged error kept in cleaned data")
	}
}

func TestForm_ViewJSON(t *testing.T) {
	f := mustForm(t, testsupport.NumbersForm(), form.Config{
		Data: testsupport.Values("numbersform-minimum", "3", "numbersform-maximum", "x"),
	})

	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got struct {
		Key    string `json:"key"`
		Bound  bool   `json:"bound"`
		Valid  bool   `json:"valid"`
		Fields []struct {
			HTMLName string   `json:"html_name"`
			Value    any      `json:"value"`
			Errors   []string `json:"errors"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Key != "numbersform" || !got.Bound || got.Valid {
		t.Fatalf("unexpected header %s", raw)
	}
	summary := make([]string, 0, len(got.Fields))
	for _, field := range got.Fields {
		summary = append(summary, fmt.Sprintf("%s=%v %v", field.HTMLName, field.Value, field.Errors))
	}
	want := []string{
		"numbersform-minimum=3 []",
		"numbersform-maximum=x [" + form.MsgInteger + "]",
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestForm_FieldsChoices(t *testing.T) {
	def := form.MustDefinition("Pick", []model.Field{
		{Name: "size", Choices: []model.Choice{{Value: "s", Label: "Small"}, {Value: "m", Label: "Medium"}}},
		{Name: "when", Type: model.FieldTypeDate},
	})
	f := mustForm(t, def, form.Config{Initial: map[string]any{
		"size": "m",
		"when": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}})

	fields := f.Fields()
	wantChoices := []form.BoundChoice{
		{Value: "s", Label: "Small"},
		{Value: "m", Label: "Medium", Selected: true},
	}
	if diff := cmp.Diff(wantChoices, fields[0].Choices); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}
	if fields[0].Widget != "select" {
		t.Fatalf("unexpected widget %q", fields[0].Widget)
	}
	if fields[1].Value != "2024-01-02" {
		t.Fatalf("unexpected date display value %v", fields[1].Value)
	}
}
