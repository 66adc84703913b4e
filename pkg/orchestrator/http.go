package orchestrator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/moogar0880/problems"
	"go.uber.org/zap"

	"github.com/goliatone/go-multiform/pkg/formset"
	"github.com/goliatone/go-multiform/pkg/notify"
)

const problemContentType = "application/problem+json"

var allowedMethods = strings.Join([]string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
}, ", ")

var _ http.Handler = (*View)(nil)

// ServeHTTP dispatches r and writes the outcome. Successful writes redirect
// with 303 See Other; renders pick a renderer from the Accept header.
func (v *View) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut:
	default:
		w.Header().Set("Allow", allowedMethods)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	req, err := formset.FromHTTP(r, v.maxMemory)
	if err != nil {
		v.writeProblem(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	if v.messages != nil || len(v.hooks) > 0 {
		req.Handle = notify.Handle(w, r, v.cookieName)
	}

	result, err := v.Dispatch(r.Context(), req)
	if err != nil {
		kind := "internal_error"
		if errors.Is(err, ErrImproperlyConfigured) {
			kind = "improperly_configured"
		}
		v.logger.Error("dispatch failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		v.writeProblem(w, r, http.StatusInternalServerError, kind, err)
		return
	}

	if result.State == StateRedirected {
		http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
		return
	}

	renderer, err := v.renderers.Negotiate(r.Header.Get("Accept"), v.defaultRenderer)
	if err != nil {
		v.writeProblem(w, r, http.StatusInternalServerError, "internal_error", err)
		return
	}
	body, err := renderer.Render(r.Context(), v.template, result.Context)
	if err != nil {
		v.logger.Error("render failed", zap.String("renderer", renderer.Name()), zap.Error(err))
		v.writeProblem(w, r, http.StatusInternalServerError, "internal_error", err)
		return
	}

	w.Header().Set("Content-Type", renderer.ContentType())
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		v.logger.Warn("write response", zap.Error(err))
	}
}

func (v *View) writeProblem(w http.ResponseWriter, r *http.Request, status int, kind string, err error) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(kind).
		WithDetail(err.Error())

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(problem); encodeErr != nil {
		v.logger.Warn("encode problem", zap.Error(encodeErr))
	}
}
