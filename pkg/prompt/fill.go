package prompt

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/formset"
	"github.com/goliatone/go-multiform/pkg/orchestrator"
)

const (
	defaultMaxAttempts = 3
	noneOption         = "(none)"
)

// Dispatcher is the part of a view a Filler drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, req formset.Request) (*orchestrator.Result, error)
}

var _ Dispatcher = (*orchestrator.View)(nil)

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the survey driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithMaxAttempts bounds how many submissions are made before giving up.
func WithMaxAttempts(n int) Option {
	return func(f *Filler) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithMethod selects the write verb used for submissions.
func WithMethod(method string) Option {
	return func(f *Filler) {
		if formset.IsWrite(method) {
			f.method = strings.ToUpper(method)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Filler asks for every field of a view and submits the answers.
type Filler struct {
	view        Dispatcher
	driver      Driver
	maxAttempts int
	method      string
	logger      *zap.Logger
}

// New builds a Filler over view.
func New(view Dispatcher, opts ...Option) (*Filler, error) {
	if view == nil {
		return nil, fmt.Errorf("prompt: view is required")
	}
	f := &Filler{
		view:        view,
		driver:      &SurveyDriver{},
		maxAttempts: defaultMaxAttempts,
		method:      http.MethodPost,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Fill renders the view, asks for every field and submits. Invalid
// submissions re-ask the fields reported in error, or every field of a
// form carrying non-field errors. The last result is returned together
// with ErrAttemptsExhausted when no attempt redirected.
func (f *Filler) Fill(ctx context.Context) (*orchestrator.Result, error) {
	result, err := f.view.Dispatch(ctx, formset.Request{Method: http.MethodGet})
	if err != nil {
		return nil, err
	}

	data := url.Values{}
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		retry := attempt > 1
		for _, current := range result.Forms.All() {
			if err := f.askForm(ctx, current, data, retry); err != nil {
				return nil, err
			}
		}

		result, err = f.view.Dispatch(ctx, formset.Request{Method: f.method, Data: data})
		if err != nil {
			return nil, err
		}
		if result.State == orchestrator.StateRedirected {
			f.logger.Debug("forms submitted", zap.Int("attempt", attempt), zap.String("redirect", result.Redirect))
			return result, nil
		}
		f.logger.Debug("forms rejected", zap.Int("attempt", attempt), zap.Strings("invalid", result.Forms.Invalid(ctx)))
	}
	return result, fmt.Errorf("%w after %d submissions", ErrAttemptsExhausted, f.maxAttempts)
}

func (f *Filler) askForm(ctx context.Context, current *form.Form, data url.Values, retry bool) error {
	nonField := current.NonFieldErrors()
	errs := current.Errors()
	if retry && len(errs) == 0 {
		return nil
	}

	title := current.Definition().Label()
	if retry {
		title += " (please correct the errors)"
	}
	if err := f.driver.Info(ctx, title); err != nil {
		return err
	}
	for _, msg := range nonField {
		if err := f.driver.Info(ctx, "  ! "+msg); err != nil {
			return err
		}
	}

	for _, field := range current.Fields() {
		if retry && len(nonField) == 0 && len(field.Errors) == 0 {
			continue
		}
		for _, msg := range field.Errors {
			if err := f.driver.Info(ctx, fmt.Sprintf("  ! %s: %s", field.Label, msg)); err != nil {
				return err
			}
		}
		if err := f.askField(ctx, field, data); err != nil {
			return fmt.Errorf("prompt: %s: %w", field.HTMLName, err)
		}
	}
	return nil
}

func (f *Filler) askField(ctx context.Context, field form.BoundField, data url.Values) error {
	message := field.Label
	if message == "" {
		message = field.Name
	}
	current := ""
	if field.Value != nil {
		current = cast.ToString(field.Value)
	}

	switch field.Widget {
	case "file":
		return f.driver.Info(ctx, fmt.Sprintf("  %s: file uploads are not supported here", message))
	case "checkbox":
		checked, err := f.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: field.Checked, Help: field.Help})
		if err != nil {
			return err
		}
		if checked {
			data.Set(field.HTMLName, "on")
		} else {
			data.Del(field.HTMLName)
		}
		return nil
	case "select":
		options, values := choiceOptions(field)
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      options,
			DefaultIndex: indexOf(values, current),
			Help:         field.Help,
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(values) {
			return fmt.Errorf("choice %d out of range", idx)
		}
		data.Set(field.HTMLName, values[idx])
		return nil
	case "textarea":
		text, err := f.driver.TextArea(ctx, TextAreaConfig{Message: message, Default: current, Help: field.Help})
		if err != nil {
			return err
		}
		data.Set(field.HTMLName, text)
		return nil
	}

	cfg := InputConfig{Message: message, Default: current, Help: field.Help}
	if cfg.Help == "" {
		cfg.Help = field.Placeholder
	}
	if field.Required {
		cfg.Validator = func(value string) error {
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("%s", form.MsgRequired)
			}
			return nil
		}
	}
	text, err := f.driver.Input(ctx, cfg)
	if err != nil {
		return err
	}
	data.Set(field.HTMLName, text)
	return nil
}

// choiceOptions returns the labels shown and the values submitted. Optional
// selects start with an empty choice.
func choiceOptions(field form.BoundField) ([]string, []string) {
	var options, values []string
	if !field.Required {
		options = append(options, noneOption)
		values = append(values, "")
	}
	for _, choice := range field.Choices {
		label := choice.Label
		if label == "" {
			label = choice.Value
		}
		options = append(options, label)
		values = append(values, choice.Value)
	}
	return options, values
}

func indexOf(options []string, value string) int {
	for i, option := range options {
		if option == value {
			return i
		}
	}
	return -1
}
