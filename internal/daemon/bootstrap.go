// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
	"github.com/BrianApollo/Ops-dashboard/internal/config"
	"github.com/BrianApollo/Ops-dashboard/internal/health"
	"github.com/BrianApollo/Ops-dashboard/internal/history"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
	"github.com/BrianApollo/Ops-dashboard/internal/manifest"
	"github.com/BrianApollo/Ops-dashboard/internal/progress"
	"github.com/BrianApollo/Ops-dashboard/internal/telemetry"
)

const (
	feedBuffer          = 64
	progressLogInterval = 5 * time.Second
)

// BuildOption customises Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	transport http.RoundTripper
	now       func() time.Time
	reloader  *config.Holder
}

// WithTransport replaces the platform client's base round tripper.
func WithTransport(rt http.RoundTripper) BuildOption {
	return func(o *buildOptions) { o.transport = rt }
}

// WithNow replaces the clock used to stamp reports.
func WithNow(now func() time.Time) BuildOption {
	return func(o *buildOptions) { o.now = now }
}

// WithReloader enables config hot reload in serve mode.
func WithReloader(h *config.Holder) BuildOption {
	return func(o *buildOptions) { o.reloader = h }
}

// Build assembles an App from configuration and a loaded manifest. Resources
// opened here are released by shutdown hooks when Run returns; on error
// everything opened so far is closed before returning.
func Build(ctx context.Context, logger zerolog.Logger, cfg config.AppConfig, m *manifest.Manifest, opts ...BuildOption) (_ *App, err error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	var cleanups []func()
	defer func() {
		if err != nil {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		}
	}()

	provider, err := telemetry.NewProvider(ctx, cfg.TelemetryOptions())
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	cleanups = append(cleanups, func() { _ = provider.Shutdown(context.Background()) })

	clientOpts := cfg.ClientOptions()
	clientOpts.Transport = bo.transport
	client, err := adsplatform.New(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("init platform client: %w", err)
	}

	account := manifest.Account{
		AccountID: cfg.Account.AccountID,
		PageID:    cfg.Account.PageID,
		PixelID:   cfg.Account.PixelID,
	}

	feed := launch.NewChannelObserver(feedBuffer)
	observers := launch.MultiObserver{
		progress.NewLogObserver(xglog.WithComponent("progress"), progressLogInterval),
		feed,
	}
	ctrl, err := launch.New(client, m.Inputs(), m.Params(account), cfg.Launch, launch.WithObserver(observers))
	if err != nil {
		return nil, fmt.Errorf("init launch controller: %w", err)
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewBreakerChecker("platform", client.BreakerState))
	hm.RegisterChecker(health.NewLaunchChecker(ctrl.State))

	var store *history.Store
	if cfg.History.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		cleanups = append(cleanups, func() { _ = store.Close() })
		hm.RegisterChecker(health.NewPingChecker("history", store.Ping, false))
	}

	if cfg.Report.Dir != "" {
		if err := os.MkdirAll(cfg.Report.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create report dir: %w", err)
		}
	}

	var publisher Publisher
	if cfg.Redis.Enabled() {
		rp, err := progress.NewRedisPublisher(progress.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "progress.redis_unavailable").
				Msg("progress fan-out disabled")
			hm.RegisterChecker(health.NewPingChecker("redis", func(context.Context) error { return err }, true))
		} else {
			publisher = rp
			cleanups = append(cleanups, func() { _ = rp.Close() })
			hm.RegisterChecker(health.NewPingChecker("redis", rp.Ping, true))
		}
	}

	app, err := NewApp(Deps{
		Logger:     logger,
		Config:     cfg,
		Controller: ctrl,
		Feed:       feed,
		Publisher:  publisher,
		History:    store,
		Health:     hm,
		Now:        bo.now,
		Reloader:   bo.reloader,
	})
	if err != nil {
		return nil, err
	}

	app.RegisterShutdownHook("telemetry", provider.Shutdown)
	if store != nil {
		app.RegisterShutdownHook("history", func(context.Context) error { return store.Close() })
	}
	if publisher != nil {
		app.RegisterShutdownHook("redis", func(context.Context) error { return publisher.Close() })
	}

	logger.Info().
		Str(xglog.FieldEvent, "daemon.built").
		Str(xglog.FieldAccountID, m.Params(account).AccountID).
		Int("items", len(m.Media)).
		Bool("history", store != nil).
		Bool("reports", cfg.Report.Dir != "").
		Bool("redis", publisher != nil).
		Msg("launch daemon assembled")
	return app, nil
}
