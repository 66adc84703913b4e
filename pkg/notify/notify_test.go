package notify_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-multiform/pkg/formset"
	"github.com/goliatone/go-multiform/pkg/notify"
)

func stores(t *testing.T) map[string]notify.Store {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]notify.Store{
		"memory": notify.NewMemoryStore(time.Minute),
		"redis":  notify.NewRedisStore(client, notify.WithKeyPrefix("test:")),
	}
}

func TestStores_AddPop(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := notify.Message{Level: notify.LevelSuccess, Text: "saved"}
			second := notify.Message{Level: notify.LevelInfo, Text: "again"}

			if err := store.Add(ctx, "h1", first); err != nil {
				t.Fatalf("add: %v", err)
			}
			if err := store.Add(ctx, "h1", second); err != nil {
				t.Fatalf("add: %v", err)
			}
			if err := store.Add(ctx, "", first); !errors.Is(err, notify.ErrNoHandle) {
				t.Fatalf("expected ErrNoHandle, got %v", err)
			}

			got, err := store.Pop(ctx, "h1")
			if err != nil {
				t.Fatalf("pop: %v", err)
			}
			if diff := cmp.Diff([]notify.Message{first, second}, got); diff != "" {
				t.Fatalf("messages mismatch (-want +got):\n%s", diff)
			}

			again, err := store.Pop(ctx, "h1")
			if err != nil {
				t.Fatalf("pop: %v", err)
			}
			if len(again) != 0 {
				t.Fatalf("messages not drained: %v", again)
			}
			if other, _ := store.Pop(ctx, "h2"); len(other) != 0 {
				t.Fatalf("messages leaked across handles")
			}
		})
	}
}

func TestSuccessMessage(t *testing.T) {
	ctx := context.Background()
	req := formset.Request{Method: http.MethodPost, Handle: "client"}

	cases := []struct {
		name string
		hook notify.SuccessMessage
		want []notify.Message
	}{
		{
			name: "static",
			hook: notify.SuccessMessage{Message: "this is a success message"},
			want: []notify.Message{{Level: notify.LevelSuccess, Text: "this is a success message"}},
		},
		{
			name: "func wins",
			hook: notify.SuccessMessage{
				Message: "static",
				Level:   notify.LevelInfo,
				Func: func(context.Context, *formset.Forms) (string, error) {
					return "this is a method success message", nil
				},
			},
			want: []notify.Message{{Level: notify.LevelInfo, Text: "this is a method success message"}},
		},
		{
			name: "sanitised",
			hook: notify.SuccessMessage{Message: `<script>alert(1)</script><b>Saved</b>`},
			want: []notify.Message{{Level: notify.LevelSuccess, Text: "Saved"}},
		},
		{
			name: "plain text keeps entities decoded",
			hook: notify.SuccessMessage{Message: `Tom & Jerry's <em>post</em> saved`},
			want: []notify.Message{{Level: notify.LevelSuccess, Text: "Tom & Jerry's post saved"}},
		},
		{
			name: "empty is a no-op",
			hook: notify.SuccessMessage{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := notify.NewMemoryStore(0)
			tc.hook.Store = store
			if err := tc.hook.OnSuccess(ctx, req, nil); err != nil {
				t.Fatalf("on success: %v", err)
			}
			got, _ := store.Pop(ctx, "client")
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("messages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSuccessMessage_Errors(t *testing.T) {
	ctx := context.Background()

	if err := (notify.SuccessMessage{Message: "hi"}).OnSuccess(ctx, formset.Request{Handle: "x"}, nil); !errors.Is(err, notify.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	hook := notify.SuccessMessage{Message: "hi", Store: notify.NewMemoryStore(0)}
	if err := hook.OnSuccess(ctx, formset.Request{}, nil); !errors.Is(err, notify.ErrNoHandle) {
		t.Fatalf("expected ErrNoHandle, got %v", err)
	}
	boom := errors.New("boom")
	hook = notify.SuccessMessage{Store: notify.NewMemoryStore(0), Func: func(context.Context, *formset.Forms) (string, error) {
		return "", boom
	}}
	if err := hook.OnSuccess(ctx, formset.Request{Handle: "x"}, nil); !errors.Is(err, boom) {
		t.Fatalf("expected func error, got %v", err)
	}
}

func TestHandle(t *testing.T) {
	rec := httptest.NewRecorder()
	first := notify.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), "")
	if first == "" {
		t.Fatalf("expected a handle")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != notify.DefaultCookieName || cookies[0].Value != first {
		t.Fatalf("unexpected cookies %v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	if again := notify.Handle(rec, req, ""); again != first {
		t.Fatalf("expected existing handle %q, got %q", first, again)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("cookie reissued for a known handle")
	}

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.AddCookie(&http.Cookie{Name: notify.DefaultCookieName, Value: "not-a-uuid"})
	if got := notify.Handle(httptest.NewRecorder(), bad, ""); got == "not-a-uuid" {
		t.Fatalf("malformed handle accepted")
	}
}
