// Package notify queues one-shot success messages for a client and shows
// them on the next rendered page.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-multiform/pkg/formset"
)

// ErrNoHandle is returned when a message cannot be tied to a client.
var ErrNoHandle = errors.New("notify: request has no client handle")

// ErrNoStore is returned by hooks without a message store.
var ErrNoStore = errors.New("notify: message store is required")

// DefaultCookieName names the session cookie carrying the client handle.
const DefaultCookieName = "multiform_session"

// Level classifies a message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is one queued notification.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Store queues messages per client handle. Pop returns and removes every
// pending message.
type Store interface {
	Add(ctx context.Context, handle string, msg Message) error
	Pop(ctx context.Context, handle string) ([]Message, error)
}

var policy = bluemonday.StrictPolicy()

// Sanitize strips markup from message text and returns plain text.
// Entities are decoded; renderers escape the text on output.
func Sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(text)))
}

// MessageFunc computes the message from the validated forms.
type MessageFunc func(ctx context.Context, forms *formset.Forms) (string, error)

// SuccessMessage is a success hook that queues a message once every form
// was saved. Func takes precedence over Message; with neither the hook does
// nothing.
type SuccessMessage struct {
	Message string
	Func    MessageFunc
	Level   Level
	Store   Store
}

// OnSuccess queues the message for req.Handle.
func (m SuccessMessage) OnSuccess(ctx context.Context, req formset.Request, forms *formset.Forms) error {
	text := m.Message
	if m.Func != nil {
		computed, err := m.Func(ctx, forms)
		if err != nil {
			return fmt.Errorf("notify: success message: %w", err)
		}
		text = computed
	}
	text = Sanitize(text)
	if text == "" {
		return nil
	}
	if m.Store == nil {
		return ErrNoStore
	}
	if req.Handle == "" {
		return ErrNoHandle
	}

	level := m.Level
	if level == "" {
		level = LevelSuccess
	}
	if err := m.Store.Add(ctx, req.Handle, Message{Level: level, Text: text}); err != nil {
		return fmt.Errorf("notify: queue message: %w", err)
	}
	return nil
}

// Handle returns the client handle stored in the named cookie, issuing a new
// one when the cookie is missing or malformed.
func Handle(w http.ResponseWriter, r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}

	handle := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    handle,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return handle
}
