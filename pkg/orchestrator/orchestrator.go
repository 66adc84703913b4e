package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/formset"
	"github.com/goliatone/go-multiform/pkg/notify"
	"github.com/goliatone/go-multiform/pkg/render"
	"github.com/goliatone/go-multiform/pkg/renderers/html"
	"github.com/goliatone/go-multiform/pkg/renderers/jsonapi"
	"github.com/goliatone/go-multiform/pkg/store"
)

const (
	defaultTemplate     = "forms"
	defaultRendererName = html.Name
	defaultMaxMemory    = 32 << 20

	tracerName = "github.com/goliatone/go-multiform/pkg/orchestrator"
)

// ErrImproperlyConfigured reports a missing success target. It is raised
// on every write whose forms are all valid, before any save.
var ErrImproperlyConfigured = errors.New("orchestrator: improperly configured")

// State is the terminal state of one dispatch.
type State string

const (
	StateRendered           State = "rendered"
	StateRedirected         State = "redirected"
	StateRenderedWithErrors State = "rendered_with_errors"
)

// SuccessHook runs after every model-backed form was saved and before the
// redirect.
type SuccessHook interface {
	OnSuccess(ctx context.Context, req formset.Request, forms *formset.Forms) error
}

// SuccessHookFunc adapts a function into a SuccessHook.
type SuccessHookFunc func(ctx context.Context, req formset.Request, forms *formset.Forms) error

// OnSuccess calls the underlying function.
func (fn SuccessHookFunc) OnSuccess(ctx context.Context, req formset.Request, forms *formset.Forms) error {
	return fn(ctx, req, forms)
}

var _ SuccessHook = notify.SuccessMessage{}

// Result describes the outcome of one dispatch. Context is nil when the
// dispatch redirected.
type Result struct {
	State    State
	Forms    *formset.Forms
	Redirect string
	Context  map[string]any
	// Saved holds the records returned by model-backed forms, in
	// definition order.
	Saved []any
}

// View coordinates a fixed, ordered set of form definitions.
type View struct {
	registry *formset.Registry
	template string

	successURL     string
	successURLFunc SuccessURLFunc

	initial       map[string]map[string]any
	initialFunc   InitialFunc
	instances     map[string]any
	instancesFunc InstancesFunc

	renderers       *render.Registry
	extraRenderers  []render.Renderer
	defaultRenderer string

	hooks  []SuccessHook
	tx     store.TxRunner
	logger *zap.Logger
	tracer trace.Tracer

	maxMemory   int64
	hidden      []render.HiddenField
	hiddenFunc  HiddenFieldsFunc
	contextFunc ContextFunc
	messages    notify.Store
	cookieName  string
	formOpts    []form.Option
}

// New builds a View over defs. Definitions must have unique namespace keys.
func New(defs []*form.Definition, opts ...Option) (*View, error) {
	v := &View{
		template:        defaultTemplate,
		defaultRenderer: defaultRendererName,
		maxMemory:       defaultMaxMemory,
		cookieName:      notify.DefaultCookieName,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	registry, err := formset.New(defs...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	v.registry = registry.WithFormOptions(v.formOpts...)

	if err := v.applyDefaults(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *View) applyDefaults() error {
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	if v.tracer == nil {
		v.tracer = otel.Tracer(tracerName)
	}
	if v.renderers == nil {
		htmlRenderer, err := html.New()
		if err != nil {
			return fmt.Errorf("orchestrator: default renderer: %w", err)
		}
		registry, err := render.NewRegistry(htmlRenderer, jsonapi.New())
		if err != nil {
			return fmt.Errorf("orchestrator: default renderers: %w", err)
		}
		v.renderers = registry
	}
	for _, renderer := range v.extraRenderers {
		if err := v.renderers.Register(renderer); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
	}
	if !v.renderers.Has(v.defaultRenderer) {
		return fmt.Errorf("orchestrator: default renderer %q not registered", v.defaultRenderer)
	}
	return nil
}

// Keys returns the namespace keys in declaration order.
func (v *View) Keys() []string { return v.registry.Keys() }

// Template returns the template name handed to renderers.
func (v *View) Template() string { return v.template }

// Renderers returns the renderer registry.
func (v *View) Renderers() *render.Registry { return v.renderers }

// Forms builds fresh forms for req without validating or saving them.
func (v *View) Forms(ctx context.Context, req formset.Request) (*formset.Forms, error) {
	opts, err := v.bindOptions(ctx, req)
	if err != nil {
		return nil, err
	}
	forms, err := v.registry.Bind(req, opts)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return forms, nil
}

// Dispatch runs one request through the state machine. Read requests
// render unbound forms. Write requests render with errors unless every
// form is valid, in which case the forms are saved, the hooks run and the
// result carries the redirect target.
func (v *View) Dispatch(ctx context.Context, req formset.Request) (_ *Result, err error) {
	ctx, span := v.tracer.Start(ctx, "multiform.dispatch", trace.WithAttributes(
		attribute.String("multiform.method", req.Method),
		attribute.Int("multiform.forms", len(v.registry.Keys())),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	forms, err := v.Forms(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &Result{State: StateRendered, Forms: forms}

	switch {
	case !formset.IsWrite(req.Method):
	case forms.Validate(ctx):
		if err := v.succeed(ctx, req, result); err != nil {
			return nil, err
		}
	default:
		result.State = StateRenderedWithErrors
		v.logger.Debug("forms invalid",
			zap.String("method", req.Method),
			zap.Strings("invalid", forms.Invalid(ctx)),
		)
	}

	if result.State != StateRedirected {
		result.Context, err = v.renderContext(ctx, req, forms, result.State)
		if err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("multiform.state", string(result.State)))
	v.logger.Debug("forms dispatched",
		zap.String("method", req.Method),
		zap.String("state", string(result.State)),
		zap.String("redirect", result.Redirect),
	)
	return result, nil
}

func (v *View) succeed(ctx context.Context, req formset.Request, result *Result) error {
	redirect, err := v.SuccessURL(ctx, req, result.Forms)
	if err != nil {
		return err
	}
	saved, err := v.save(ctx, result.Forms)
	if err != nil {
		return err
	}
	for _, hook := range v.hooks {
		if err := hook.OnSuccess(ctx, req, result.Forms); err != nil {
			return fmt.Errorf("orchestrator: success hook: %w", err)
		}
	}
	result.State = StateRedirected
	result.Redirect = redirect
	result.Saved = saved
	return nil
}

// SuccessURL resolves the redirect target. It returns
// ErrImproperlyConfigured when neither a URL nor a resolver is configured,
// or when the resolver yields an empty target.
func (v *View) SuccessURL(ctx context.Context, req formset.Request, forms *formset.Forms) (string, error) {
	if v.successURLFunc != nil {
		target, err := v.successURLFunc(ctx, req, forms)
		if err != nil {
			return "", fmt.Errorf("orchestrator: success url: %w", err)
		}
		if target == "" {
			return "", fmt.Errorf("%w: success url resolver returned an empty target", ErrImproperlyConfigured)
		}
		return target, nil
	}
	if v.successURL == "" {
		return "", fmt.Errorf("%w: no success url; provide WithSuccessURL or WithSuccessURLFunc", ErrImproperlyConfigured)
	}
	return v.successURL, nil
}

// save persists model-backed forms in definition order. With a TxRunner the
// first failure aborts and rolls back every save; without one every form is
// attempted and the failures are combined.
func (v *View) save(ctx context.Context, forms *formset.Forms) (saved []any, err error) {
	ctx, span := v.tracer.Start(ctx, "multiform.save")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var backed []*form.Form
	for _, f := range forms.All() {
		if f.Definition().ModelBacked() {
			backed = append(backed, f)
		}
	}
	span.SetAttributes(attribute.Int("multiform.saves", len(backed)))
	if len(backed) == 0 {
		return nil, nil
	}

	if v.tx != nil {
		err = v.tx.RunInTx(ctx, func(txCtx context.Context) error {
			saved = saved[:0]
			for _, f := range backed {
				record, err := f.Save(txCtx)
				if err != nil {
					return &store.SaveError{Key: f.Key(), Err: err}
				}
				saved = append(saved, record)
			}
			return nil
		})
		if err != nil {
			v.logger.Error("atomic save failed", zap.Error(err))
			return nil, fmt.Errorf("orchestrator: save: %w", err)
		}
		return saved, nil
	}

	var errs error
	for _, f := range backed {
		record, err := f.Save(ctx)
		if err != nil {
			v.logger.Error("save failed", zap.String("key", f.Key()), zap.Error(err))
			errs = multierr.Append(errs, &store.SaveError{Key: f.Key(), Err: err})
			continue
		}
		saved = append(saved, record)
	}
	if errs != nil {
		return nil, fmt.Errorf("orchestrator: save: %w", errs)
	}
	return saved, nil
}

func (v *View) bindOptions(ctx context.Context, req formset.Request) (formset.BindOptions, error) {
	opts := formset.BindOptions{Initial: v.initial}
	if v.initialFunc != nil {
		initial, err := v.initialFunc(ctx, req)
		if err != nil {
			return opts, fmt.Errorf("orchestrator: initial: %w", err)
		}
		opts.Initial = initial
	}
	if v.instancesFunc != nil {
		instances, err := v.instancesFunc(ctx, req)
		if err != nil {
			return opts, fmt.Errorf("orchestrator: instances: %w", err)
		}
		opts.Instances = instances
	} else {
		opts.Instances = cloneInstances(v.instances)
	}
	return opts, nil
}

func (v *View) renderContext(ctx context.Context, req formset.Request, forms *formset.Forms, state State) (map[string]any, error) {
	data := make(map[string]any)
	if v.contextFunc != nil {
		extra, err := v.contextFunc(ctx, req, forms)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: context: %w", err)
		}
		for key, value := range extra {
			data[key] = value
		}
	}
	for key, value := range forms.Context() {
		data[key] = value
	}
	data[render.KeyState] = string(state)

	hidden := v.hidden
	if v.hiddenFunc != nil {
		hidden = append(append([]render.HiddenField(nil), hidden...), v.hiddenFunc(ctx, req)...)
	}
	data[render.KeyHidden] = render.NormalizeHiddenFields(hidden...)

	var messages []notify.Message
	if v.messages != nil && req.Handle != "" {
		popped, err := v.messages.Pop(ctx, req.Handle)
		if err != nil {
			v.logger.Warn("pop messages", zap.Error(err))
		}
		messages = popped
	}
	data[render.KeyMessages] = messages
	return data, nil
}
