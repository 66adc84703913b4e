package orchestrator

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/goliatone/go-multiform/internal/record"
	"github.com/goliatone/go-multiform/pkg/form"
	"github.com/goliatone/go-multiform/pkg/formset"
	"github.com/goliatone/go-multiform/pkg/notify"
	"github.com/goliatone/go-multiform/pkg/render"
	"github.com/goliatone/go-multiform/pkg/store"
)

// Option customises a View.
type Option func(*View)

// SuccessURLFunc resolves the redirect target once every form is valid.
type SuccessURLFunc func(ctx context.Context, req formset.Request, forms *formset.Forms) (string, error)

// InitialFunc returns per-request initial values keyed by namespace key.
type InitialFunc func(ctx context.Context, req formset.Request) (map[string]map[string]any, error)

// InstancesFunc returns per-request records to edit keyed by namespace key.
type InstancesFunc func(ctx context.Context, req formset.Request) (map[string]any, error)

// ContextFunc adds entries to the rendering context. Entries never replace
// the forms or per-key entries.
type ContextFunc func(ctx context.Context, req formset.Request, forms *formset.Forms) (map[string]any, error)

// HiddenFieldsFunc returns per-request hidden inputs such as a CSRF token.
type HiddenFieldsFunc func(ctx context.Context, req formset.Request) []render.HiddenField

// WithTemplate names the template renderers use.
func WithTemplate(name string) Option {
	return func(v *View) {
		if name = strings.TrimSpace(name); name != "" {
			v.template = name
		}
	}
}

// WithSuccessURL sets a static redirect target.
func WithSuccessURL(url string) Option {
	return func(v *View) {
		v.successURL = strings.TrimSpace(url)
	}
}

// WithSuccessURLFunc resolves the redirect target per request. It takes
// precedence over WithSuccessURL.
func WithSuccessURLFunc(fn SuccessURLFunc) Option {
	return func(v *View) {
		v.successURLFunc = fn
	}
}

// WithInitial sets initial values per namespace key. The mapping is deep
// copied so later changes by the caller are not observed.
func WithInitial(initial map[string]map[string]any) Option {
	return func(v *View) {
		v.initial = copyInitial(initial)
	}
}

// WithInitialFunc computes initial values per request, replacing WithInitial.
func WithInitialFunc(fn InitialFunc) Option {
	return func(v *View) {
		v.initialFunc = fn
	}
}

// WithInstances sets records to edit per namespace key. The records are
// deep copied here and again for every request, so concurrent requests
// never share one and the caller's records are never written. Saved
// copies are returned in Result.Saved.
func WithInstances(instances map[string]any) Option {
	return func(v *View) {
		v.instances = cloneInstances(instances)
	}
}

// WithInstancesFunc loads records to edit per request, replacing
// WithInstances. It must return records no other request holds; they are
// edited in place on save.
func WithInstancesFunc(fn InstancesFunc) Option {
	return func(v *View) {
		v.instancesFunc = fn
	}
}

// WithRenderer registers an additional renderer.
func WithRenderer(renderer render.Renderer) Option {
	return func(v *View) {
		if renderer != nil {
			v.extraRenderers = append(v.extraRenderers, renderer)
		}
	}
}

// WithRegistry replaces the default renderer registry.
func WithRegistry(registry *render.Registry) Option {
	return func(v *View) {
		v.renderers = registry
	}
}

// WithDefaultRenderer names the renderer used when Accept does not select
// one. Defaults to "html".
func WithDefaultRenderer(name string) Option {
	return func(v *View) {
		if name = strings.TrimSpace(name); name != "" {
			v.defaultRenderer = name
		}
	}
}

// WithSuccessHooks appends hooks run after a successful save.
func WithSuccessHooks(hooks ...SuccessHook) Option {
	return func(v *View) {
		for _, hook := range hooks {
			if hook != nil {
				v.hooks = append(v.hooks, hook)
			}
		}
	}
}

// WithTxRunner makes the saves of one submission atomic.
func WithTxRunner(runner store.TxRunner) Option {
	return func(v *View) {
		v.tx = runner
	}
}

// WithLogger sets the zap logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(v *View) {
		if tracer != nil {
			v.tracer = tracer
		}
	}
}

// WithMaxMemory bounds in-memory multipart parsing.
func WithMaxMemory(bytes int64) Option {
	return func(v *View) {
		if bytes > 0 {
			v.maxMemory = bytes
		}
	}
}

// WithHiddenFields adds static hidden inputs to every render.
func WithHiddenFields(fields ...render.HiddenField) Option {
	return func(v *View) {
		v.hidden = append(v.hidden, fields...)
	}
}

// WithHiddenFieldsFunc adds per-request hidden inputs.
func WithHiddenFieldsFunc(fn HiddenFieldsFunc) Option {
	return func(v *View) {
		v.hiddenFunc = fn
	}
}

// WithContextFunc adds extra rendering-context entries.
func WithContextFunc(fn ContextFunc) Option {
	return func(v *View) {
		v.contextFunc = fn
	}
}

// WithMessageStore exposes pending messages under "messages" when rendering.
func WithMessageStore(messages notify.Store) Option {
	return func(v *View) {
		v.messages = messages
	}
}

// WithSessionCookie names the cookie holding the client handle used for
// messages. Defaults to notify.DefaultCookieName.
func WithSessionCookie(name string) Option {
	return func(v *View) {
		if name = strings.TrimSpace(name); name != "" {
			v.cookieName = name
		}
	}
}

// WithFormOptions passes options to every bound form, for example a custom
// validator.
func WithFormOptions(opts ...form.Option) Option {
	return func(v *View) {
		v.formOpts = append(v.formOpts, opts...)
	}
}

func copyInitial(in map[string]map[string]any) map[string]map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]map[string]any, len(in))
	for key, values := range in {
		inner := make(map[string]any, len(values))
		for name, value := range values {
			inner[name] = value
		}
		out[key] = inner
	}
	return out
}

func cloneInstances(instances map[string]any) map[string]any {
	if len(instances) == 0 {
		return nil
	}
	out := make(map[string]any, len(instances))
	for key, value := range instances {
		out[key] = record.Clone(value)
	}
	return out
}
