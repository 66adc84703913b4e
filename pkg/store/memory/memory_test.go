package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-multiform/pkg/store"
	"github.com/goliatone/go-multiform/pkg/store/memory"
	"github.com/goliatone/go-multiform/pkg/testsupport"
)

func sequentialIDs() memory.Option {
	n := 0
	return memory.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func TestStore_SaveAssignsIDs(t *testing.T) {
	s := memory.New(sequentialIDs())
	ctx := context.Background()

	user := &testsupport.User{Username: "kj"}
	if err := s.Saver("user").Save(ctx, user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	post := &testsupport.Post{Title: "Hello"}
	if err := s.Saver("post").Save(ctx, post); err != nil {
		t.Fatalf("save post: %v", err)
	}

	if user.ID != "id-1" || post.ID != "id-2" {
		t.Fatalf("unexpected ids %q %q", user.ID, post.ID)
	}
	got, ok := s.Get("post", "id-2")
	if !ok || got != post {
		t.Fatalf("post not stored")
	}
	if diff := cmp.Diff([]any{user}, s.List("user")); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
	if err := s.Saver("user").Save(ctx, nil); !errors.Is(err, store.ErrNilRecord) {
		t.Fatalf("expected ErrNilRecord, got %v", err)
	}
}

func TestStore_RunInTxCommitsOnSuccess(t *testing.T) {
	s := memory.New(sequentialIDs())

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := s.Saver("group").Save(ctx, &testsupport.Group{Name: "Admins"}); err != nil {
			return err
		}
		if s.Len() != 0 {
			t.Fatalf("write visible before commit")
		}
		return s.Saver("user").Save(ctx, &testsupport.User{Username: "kj"})
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 committed records, got %d", s.Len())
	}
}

func TestStore_RunInTxDiscardsOnError(t *testing.T) {
	s := memory.New()
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := s.Saver("group").Save(ctx, &testsupport.Group{Name: "Admins"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("rolled back writes were committed")
	}
}
