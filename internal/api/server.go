// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the launch controller over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/BrianApollo/Ops-dashboard/internal/api/middleware"
	"github.com/BrianApollo/Ops-dashboard/internal/health"
	"github.com/BrianApollo/Ops-dashboard/internal/history"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
)

// Launcher is the controller surface the API drives.
type Launcher interface {
	Start(ctx context.Context) (launch.Snapshot, error)
	Stop()
	State() launch.Snapshot
	RetryFailed() int
	RetryAll() (int, error)
	RunPhase(ctx context.Context, name string) (launch.Snapshot, error)
}

var _ Launcher = (*launch.Controller)(nil)

// RunStore lists recorded runs.
type RunStore interface {
	List(ctx context.Context, limit int) ([]history.Run, error)
	Get(ctx context.Context, id string) (history.Run, error)
}

// FinishFunc is called after every background run or phase.
type FinishFunc func(ctx context.Context, snap launch.Snapshot, err error)

// Deps holds the server's collaborators. Runs, Health and OnFinish are optional.
type Deps struct {
	Launcher Launcher
	Runs     RunStore
	Health   *health.Manager
	OnFinish FinishFunc

	Token          string
	RateLimit      int
	TracingService string
}

// Server routes control requests to the launcher. Runs triggered over HTTP
// execute on the server's base context, not the request's.
type Server struct {
	deps   Deps
	ctx    context.Context
	log    zerolog.Logger
	router chi.Router

	wg sync.WaitGroup
}

// New builds the server. ctx bounds every background run it starts.
func New(ctx context.Context, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	s := &Server{
		deps: deps,
		ctx:  ctx,
		log:  xglog.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Wait blocks until background runs started over HTTP have returned.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  true,
		TracingService: s.deps.TracingService,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/launch", s.handleState)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerToken(s.deps.Token))
			r.Use(middleware.ControlRateLimit(s.deps.RateLimit))

			r.Post("/launch/start", s.handleStart)
			r.Post("/launch/stop", s.handleStop)
			r.Post("/launch/retry-failed", s.handleRetryFailed)
			r.Post("/launch/retry-all", s.handleRetryAll)
			r.Post("/launch/phases/{name}", s.handleRunPhase)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path)
	})
	return r
}

// background runs fn on the base context and reports the result.
func (s *Server) background(event string, fn func(ctx context.Context) (launch.Snapshot, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		snap, err := fn(s.ctx)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str(xglog.FieldEvent, event+"_failed").
				Str(xglog.FieldRunID, snap.RunID).
				Str(xglog.FieldPhase, string(snap.Phase)).
				Msg("background launch work ended with error")
		}
		if s.deps.OnFinish != nil {
			s.deps.OnFinish(s.ctx, snap, err)
		}
	}()
}
