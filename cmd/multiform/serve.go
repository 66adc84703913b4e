package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-multiform/pkg/orchestrator"
)

const shutdownTimeout = 5 * time.Second

func (c *cli) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the forms over HTTP",
		RunE:  c.runServe,
	}
	cmd.Flags().String("listen", ":8080", "address the HTTP server listens on")
	cmd.Flags().String("base-path", "", "path prefix for every route")
	cmd.Flags().String("route", "/forms", "route serving the forms page")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(c.cfg, c.logger)
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("close", zap.Error(err))
		}
	}()

	view, _, err := a.view(ctx, true)
	if err != nil {
		return err
	}
	router, pattern, err := newRouter(view, c.cfg, c.logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              c.cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		c.logger.Info("starting http server", zap.String("addr", c.cfg.Listen), zap.String("route", pattern))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.logger.Info("stopping http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// routerMux adapts a gorilla router to orchestrator.Mux.
type routerMux struct {
	*mux.Router
}

func (m routerMux) Handle(pattern string, handler http.Handler) {
	m.Router.Handle(pattern, handler)
}

func newRouter(view *orchestrator.View, cfg config, logger *zap.Logger) (*mux.Router, string, error) {
	router := mux.NewRouter()
	pattern, err := orchestrator.RegisterRoutes(routerMux{router}, cfg.BasePath, cfg.Route, view)
	if err != nil {
		return nil, "", err
	}
	router.HandleFunc(orchestrator.MountPath(cfg.BasePath, "healthz"), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet, http.MethodHead)
	router.Use(loggingMiddleware(logger))
	return router, pattern, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
