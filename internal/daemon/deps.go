// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrianApollo/Ops-dashboard/internal/config"
	"github.com/BrianApollo/Ops-dashboard/internal/health"
	"github.com/BrianApollo/Ops-dashboard/internal/history"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
)

// Publisher fans snapshots out to remote observers.
type Publisher interface {
	Run(ctx context.Context, feed *launch.ChannelObserver) error
	Ping(ctx context.Context) error
	Close() error
}

// Deps contains the collaborators of an App. Publisher, History and Health
// are optional.
type Deps struct {
	Logger zerolog.Logger
	Config config.AppConfig

	Controller *launch.Controller
	Feed       *launch.ChannelObserver
	Publisher  Publisher
	History    *history.Store
	Health     *health.Manager

	// Reloader watches the config file in serve mode.
	Reloader *config.Holder

	// Now stamps reports; defaults to time.Now.
	Now func() time.Time
}

// Validate checks if the dependencies are usable.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.Controller == nil {
		return ErrMissingController
	}
	if d.Publisher != nil && d.Feed == nil {
		return ErrMissingFeed
	}
	return nil
}
