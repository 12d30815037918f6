// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the launch controller to its outer surfaces and owns
// the process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/BrianApollo/Ops-dashboard/internal/api"
	"github.com/BrianApollo/Ops-dashboard/internal/config"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
	"github.com/BrianApollo/Ops-dashboard/internal/report"
)

// ShutdownHook is a function that performs cleanup during shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// App runs one launch and, in serve mode, the control API around it.
type App struct {
	deps   Deps
	logger zerolog.Logger

	mu       sync.Mutex
	hooks    []namedHook
	addr     net.Addr
	ready    chan struct{}
	lastSnap launch.Snapshot
	lastErr  error
}

// NewApp creates an App.
func NewApp(deps Deps) (*App, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &App{
		deps:   deps,
		logger: deps.Logger.With().Str(xglog.FieldComponent, "daemon").Logger(),
		ready:  make(chan struct{}),
	}, nil
}

// RegisterShutdownHook registers a cleanup function run when Run returns.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
}

// Addr returns the bound API address once the listener is up (serve mode).
func (a *App) Addr() net.Addr {
	<-a.ready
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Result returns the snapshot and error of the most recent finished run.
func (a *App) Result() (launch.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSnap, a.lastErr
}

// Run starts the launch. Without serve it returns once the run has finished
// and its report and history entry are written. With serve it keeps the
// control API up until ctx is cancelled. Cancellation is not an error.
func (a *App) Run(ctx context.Context, serve bool) error {
	defer a.shutdown(context.WithoutCancel(ctx))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.deps.Publisher != nil {
		g.Go(func() error {
			return a.deps.Publisher.Run(gctx, a.deps.Feed)
		})
	}

	if serve {
		if err := a.serve(gctx, g); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		if a.deps.Reloader != nil {
			a.watchConfig(gctx, g)
		}
	} else {
		close(a.ready)
	}

	// The run's own error is returned after the group so the publisher can
	// drain the final snapshot first.
	var runErr error
	g.Go(func() error {
		snap, err := a.deps.Controller.Start(gctx)
		a.finish(context.WithoutCancel(gctx), snap, err)
		if !serve {
			runErr = err
			if a.deps.Feed != nil {
				a.deps.Feed.Close()
			}
		}
		return nil
	})

	err := g.Wait()
	if err == nil {
		err = runErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serve binds the API listener and schedules serving and shutdown on g.
func (a *App) serve(ctx context.Context, g *errgroup.Group) error {
	cfg := a.deps.Config
	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.LogService
	}

	apiServer := api.New(ctx, api.Deps{
		Launcher:       a.deps.Controller,
		Runs:           runStore(a.deps),
		Health:         a.deps.Health,
		OnFinish:       a.finish,
		Token:          cfg.API.Token,
		RateLimit:      cfg.API.RateLimit,
		TracingService: tracing,
	})

	ln, err := net.Listen("tcp", cfg.API.ListenAddr)
	if err != nil {
		close(a.ready)
		return fmt.Errorf("listen %s: %w", cfg.API.ListenAddr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()
	close(a.ready)

	srv := &http.Server{
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		a.logger.Info().
			Str(xglog.FieldEvent, "api.listening").
			Str("addr", ln.Addr().String()).
			Msg("control API listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.API.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		apiServer.Wait()
		if err != nil {
			return fmt.Errorf("control API shutdown: %w", err)
		}
		return nil
	})
	return nil
}

// watchConfig applies reloadable settings while the API is serving.
func (a *App) watchConfig(ctx context.Context, g *errgroup.Group) {
	updates := make(chan config.AppConfig, 1)
	a.deps.Reloader.Subscribe(updates)

	g.Go(func() error {
		if err := a.deps.Reloader.Watch(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watch_failed").Msg("config hot reload disabled")
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg := <-updates:
				xglog.Configure(xglog.Config{Level: cfg.LogLevel})
				a.logger.Info().
					Str(xglog.FieldEvent, "config.applied").
					Str("log_level", cfg.LogLevel).
					Msg("reloaded settings applied")
			}
		}
	})
}

// finish persists the outcome of a run or phase.
func (a *App) finish(ctx context.Context, snap launch.Snapshot, runErr error) {
	a.mu.Lock()
	a.lastSnap, a.lastErr = snap, runErr
	a.mu.Unlock()

	logger := a.logger.With().Str(xglog.FieldRunID, snap.RunID).Logger()

	if dir := a.deps.Config.Report.Dir; dir != "" {
		path, err := report.Write(ctx, dir, snap, a.deps.Now())
		if err != nil {
			logger.Error().Err(err).Str(xglog.FieldEvent, "report.write_failed").Msg("failed to write run report")
		} else {
			logger.Info().Str(xglog.FieldEvent, "report.written").Str(xglog.FieldPath, path).Msg("run report written")
		}
	}

	if a.deps.History != nil && snap.RunID != "" {
		if err := a.deps.History.Record(ctx, snap); err != nil {
			logger.Error().Err(err).Str(xglog.FieldEvent, "history.record_failed").Msg("failed to record run")
		}
	}

	ev := logger.Info()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		ev = logger.Error().Err(runErr)
	}
	ev.Str(xglog.FieldEvent, "run.persisted").
		Str(xglog.FieldPhase, string(snap.Phase)).
		Int("done", snap.Stats.Stage(launch.StageDone)).
		Int("failed", snap.Stats.Stage(launch.StageFailed)).
		Msg("run outcome persisted")
}

func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	hooks := append([]namedHook(nil), a.hooks...)
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			a.logger.Error().
				Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			continue
		}
		a.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}
}

// runStore avoids handing a typed nil to the API.
func runStore(d Deps) api.RunStore {
	if d.History == nil {
		return nil
	}
	return d.History
}
