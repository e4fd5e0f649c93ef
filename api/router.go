// Package api exposes the pass record operations over HTTP with the request
// and response shapes of the FSTR mobile client.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Skryldev/pereval/db"
	"github.com/Skryldev/pereval/models"
)

// PassService is the record service consumed by the handlers.
type PassService interface {
	Submit(ctx context.Context, in *models.PassInput) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PassDocument, error)
	Update(ctx context.Context, id int64, in *models.PassInput) error
	ListByEmail(ctx context.Context, email string) ([]models.PassDocument, error)
}

// HealthChecker reports store reachability and pool usage. *db.DB satisfies it.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Stats() sql.DBStats
}

// Option configures the router.
type Option func(*Handlers)

// WithQueryStats adds statement counters to the health report.
func WithQueryStats(qs *db.QueryStats) Option {
	return func(h *Handlers) { h.queries = qs }
}

// NewRouter builds the HTTP handler:
//
//	POST  /submitData                  submit a pass
//	GET   /submitData/{id}             fetch one pass
//	PATCH /submitData/{id}             edit a pass while its status is "new"
//	GET   /submitData/?user__email=…   list the passes of a submitter
//	GET   /healthz                     store ping and pool statistics
func NewRouter(svc PassService, health HealthChecker, opts ...Option) http.Handler {
	h := &Handlers{svc: svc, health: health}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))

		r.Post("/submitData", h.Submit)
		r.Get("/submitData", h.ListByEmail)
		r.Get("/submitData/", h.ListByEmail)
		r.Get("/submitData/{id:[0-9]+}", h.GetByID)
		r.Patch("/submitData/{id:[0-9]+}", h.Update)
	})

	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Server
// ─────────────────────────────────────────────────────────────────────────────

// Server runs the router until its context is cancelled.
type Server struct {
	addr    string
	handler http.Handler
}

// NewServer returns a server listening on addr (e.g. ":5000").
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start serves HTTP and blocks. When ctx is cancelled it stops accepting
// connections and waits up to 30s for in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
