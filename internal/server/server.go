package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/threadloom/threadloom/internal/config"
	"github.com/threadloom/threadloom/internal/handler"
	"github.com/threadloom/threadloom/internal/handler/graphview"
	"github.com/threadloom/threadloom/internal/handler/node"
	"github.com/threadloom/threadloom/internal/handler/project"
	"github.com/threadloom/threadloom/internal/handler/turn"
	"github.com/threadloom/threadloom/internal/logging"
	"github.com/threadloom/threadloom/internal/middleware"
	"github.com/threadloom/threadloom/internal/svc"
)

// Options holds optional server dependencies.
type Options struct {
	// SvcCtx, when set, is used instead of constructing one from config.
	// The caller keeps ownership of its lifecycle.
	SvcCtx *svc.ServiceContext
	Quiet  bool
}

// Router builds the full HTTP surface. Exposed separately so tests can mount
// it on httptest.Server.
func Router(svcCtx *svc.ServiceContext, quiet bool) chi.Router {
	r := chi.NewRouter()

	if !quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.DevIdentity(svcCtx.Config.App.DevUserID))

		r.Post("/projects", project.CreateProjectHandler(svcCtx))
		r.Get("/projects", project.ListProjectsHandler(svcCtx))

		r.Post("/projects/{projectId}/turns/stream", turn.StreamTurnHandler(svcCtx))
		r.Get("/projects/{id}/turns", turn.ListTurnsHandler(svcCtx))
		r.Get("/projects/{id}/graph", graphview.GetGraphHandler(svcCtx))

		r.Get("/turns/{id}/injected", turn.GetInjectedHandler(svcCtx))

		r.Get("/nodes/{id}", node.GetNodeHandler(svcCtx))
		r.Patch("/nodes/{id}", node.UpdateNodeHandler(svcCtx))
		r.Delete("/nodes/{id}", node.DeleteNodeHandler(svcCtx))
		r.Post("/nodes/{id}/restore", node.RestoreNodeHandler(svcCtx))
	})

	return r
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context, c config.Config, opts ...Options) error {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	svcCtx := o.SvcCtx
	if svcCtx == nil {
		var err error
		svcCtx, err = svc.NewServiceContext(c)
		if err != nil {
			return fmt.Errorf("failed to initialize service context: %w", err)
		}
		defer svcCtx.Close()
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: Router(svcCtx, o.Quiet),
		// No WriteTimeout: turn streams stay open for the model's full
		// response and are bounded by the orchestrator instead.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if !o.Quiet {
			logging.Infof("listening on http://%s", addr)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
