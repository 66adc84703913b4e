package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-multiform/pkg/definition"
	"github.com/goliatone/go-multiform/pkg/notify"
	"github.com/goliatone/go-multiform/pkg/openapi"
	"github.com/goliatone/go-multiform/pkg/orchestrator"
	"github.com/goliatone/go-multiform/pkg/render"
	"github.com/goliatone/go-multiform/pkg/renderers/html"
	"github.com/goliatone/go-multiform/pkg/renderers/jsonapi"
	"github.com/goliatone/go-multiform/pkg/store"
	"github.com/goliatone/go-multiform/pkg/store/memory"
	"github.com/goliatone/go-multiform/pkg/store/sqlstore"
)

var errNoDefinitions = errors.New("no form definitions: set --definitions or --openapi")

// recordStore is satisfied by both the memory and the SQL stores.
type recordStore interface {
	store.TxRunner
	Saver(kind string) store.Saver
}

// app wires configuration into the library collaborators and owns the
// connections it opens.
type app struct {
	cfg     config
	logger  *zap.Logger
	closers []func() error
}

func newApp(cfg config, logger *zap.Logger) *app {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &app{cfg: cfg, logger: logger}
}

func (a *app) catalog(ctx context.Context) (*definition.Catalog, error) {
	var catalogs []*definition.Catalog
	if a.cfg.Definitions != "" {
		loaded, err := definition.LoadFS(os.DirFS(a.cfg.Definitions))
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, loaded)
	}
	if a.cfg.OpenAPI != "" {
		entries, err := openapi.LoadFile(ctx, a.cfg.OpenAPI, openapi.WithComponents(a.cfg.Components...))
		if err != nil {
			return nil, err
		}
		derived, err := definition.NewCatalog(entries...)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, derived)
	}
	if len(catalogs) == 0 {
		return nil, errNoDefinitions
	}

	merged, err := catalogs[0].Merge(catalogs[1:]...)
	if err != nil {
		return nil, err
	}
	if merged.Len() == 0 {
		return nil, errNoDefinitions
	}
	return merged.Subset(a.cfg.Forms...)
}

func (a *app) records(ctx context.Context) (recordStore, error) {
	if a.cfg.DatabaseURL == "" {
		return memory.New(), nil
	}
	db, err := sqlstore.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.logger.Info("records stored in postgres")
	return db, nil
}

func (a *app) messages(ctx context.Context) (notify.Store, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.MessageStore)) {
	case "", "none":
		return nil, nil
	case "memory":
		return notify.NewMemoryStore(0), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", a.cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("messages stored in redis", zap.String("addr", a.cfg.RedisAddr))
		return notify.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown message store %q", a.cfg.MessageStore)
	}
}

// view builds the orchestrator. Success messages need a client handle, so
// they are only wired for the HTTP server.
func (a *app) view(ctx context.Context, withMessages bool) (*orchestrator.View, recordStore, error) {
	catalog, err := a.catalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	records, err := a.records(ctx)
	if err != nil {
		return nil, nil, err
	}
	defs, err := catalog.Definitions(func(kind string) (store.Saver, error) {
		return records.Saver(kind), nil
	})
	if err != nil {
		return nil, nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithTxRunner(records),
		orchestrator.WithSuccessURL(a.cfg.SuccessURL),
	}
	if withMessages {
		messages, err := a.messages(ctx)
		if err != nil {
			return nil, nil, err
		}
		if messages != nil {
			opts = append(opts,
				orchestrator.WithMessageStore(messages),
				orchestrator.WithSuccessHooks(notify.SuccessMessage{Store: messages, Message: a.cfg.SuccessMessage}),
			)
		}
	}
	if a.cfg.TemplateDir != "" {
		page, err := html.New(html.WithTemplatesDir(a.cfg.TemplateDir))
		if err != nil {
			return nil, nil, err
		}
		registry, err := render.NewRegistry(page, jsonapi.New())
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, orchestrator.WithRegistry(registry))
	}

	view, err := orchestrator.New(defs, opts...)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("forms loaded", zap.Strings("keys", view.Keys()))
	return view, records, nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
