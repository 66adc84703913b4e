// Package memory is an in-process record store for model-backed forms, built
// on patrickmn/go-cache. It is meant for demos and tests: records live in
// memory and writes inside RunInTx only become visible on success.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/goliatone/go-multiform/internal/record"
	"github.com/goliatone/go-multiform/pkg/store"
)

// Option configures a Store.
type Option func(*Store)

// WithTTL expires records after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIDGenerator overrides uuid-based record ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store keeps records keyed by "<kind>/<id>".
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
	newID func() string
	mu    sync.Mutex
}

var _ store.TxRunner = (*Store)(nil)

// New builds an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		ttl:   cache.NoExpiration,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	cleanup := time.Duration(0)
	if s.ttl > 0 {
		cleanup = s.ttl
	}
	s.cache = cache.New(s.ttl, cleanup)
	return s
}

type txKey struct{}

type pending struct {
	key    string
	record any
}

type txn struct {
	mu     sync.Mutex
	writes []pending
}

// RunInTx stages every Save made through ctx and commits them together once
// fn returns nil. On error nothing is written.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(txKey{}).(*txn); nested {
		return fn(ctx)
	}
	tx := &txn{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, write := range tx.writes {
		s.cache.Set(write.key, write.record, s.ttl)
	}
	return nil
}

// Saver returns a store.Saver writing records of the given kind.
func (s *Store) Saver(kind string) store.Saver {
	kind = strings.TrimSpace(kind)
	return store.SaverFunc(func(ctx context.Context, rec any) error {
		return s.save(ctx, kind, rec)
	})
}

func (s *Store) save(ctx context.Context, kind string, rec any) error {
	if rec == nil {
		return store.ErrNilRecord
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	id := s.ensureID(rec)
	key := kind + "/" + id

	if tx, ok := ctx.Value(txKey{}).(*txn); ok {
		tx.mu.Lock()
		tx.writes = append(tx.writes, pending{key: key, record: rec})
		tx.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, rec, s.ttl)
	return nil
}

func (s *Store) ensureID(rec any) string {
	if ident, ok := rec.(store.Identifiable); ok {
		if id := ident.RecordID(); id != "" {
			return id
		}
		id := s.newID()
		ident.SetRecordID(id)
		return id
	}
	if value, ok := record.Lookup(rec, "id"); ok {
		if id := fmt.Sprint(value); id != "" {
			return id
		}
	}
	id := s.newID()
	record.Assign(rec, "id", id)
	return id
}

// Get returns a stored record.
func (s *Store) Get(kind, id string) (any, bool) {
	return s.cache.Get(kind + "/" + id)
}

// List returns the records of kind ordered by id.
func (s *Store) List(kind string) []any {
	prefix := kind + "/"
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for key := range items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, items[key].Object)
	}
	return out
}

// Len returns the number of stored records across kinds.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
