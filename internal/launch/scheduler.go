package launch

import (
	"context"
	"time"

	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
	"github.com/BrianApollo/Ops-dashboard/internal/metrics"
)

// tickLoop polls and creates ads until every item settled, the tick budget
// runs out, or the run is stopped.
func (c *Controller) tickLoop(ctx context.Context) {
	if c.halted(ctx) {
		return
	}
	logger := xglog.WithComponentFromContext(ctx, "launch")

	c.setPhase(PhasePolling)
	if !c.wait(ctx, c.opts.InitialPollDelay) {
		return
	}

	for {
		if c.halted(ctx) {
			return
		}
		c.setPhase(PhasePolling)
		c.pollStage(ctx)

		c.setPhase(PhaseCreatingAds)
		if err := c.adsStage(ctx); err != nil {
			logger.Warn().Str(xglog.FieldEvent, "ads.skipped").Err(err).Msg("ad creation skipped")
		}

		c.mu.Lock()
		retry := c.store.hasUploadRetry()
		c.mu.Unlock()
		if retry {
			c.uploadStage(ctx)
		}

		tick, settled := c.advanceTick()
		metrics.IncTick()
		logger.Debug().
			Str(xglog.FieldEvent, "tick.done").
			Int(xglog.FieldTick, tick).
			Bool("settled", settled).
			Msg("tick complete")

		if settled {
			c.setPhase(PhaseComplete)
			return
		}
		if tick >= c.opts.MaxTicks {
			logger.Warn().
				Str(xglog.FieldEvent, "tick.budget_exhausted").
				Int(xglog.FieldTick, tick).
				Msg("tick budget exhausted before all items settled")
			return
		}
		if !c.wait(ctx, c.opts.TickInterval) {
			return
		}
	}
}

func (c *Controller) advanceTick() (int, bool) {
	c.mu.Lock()
	c.tick++
	tick, settled := c.tick, c.store.settled()
	c.mu.Unlock()
	c.emit()
	return tick, settled
}

// wait sleeps for d. It returns false when the run was stopped or ctx ended
// before or during the wait.
func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	if c.halted(ctx) {
		return false
	}
	if d <= 0 {
		return true
	}
	stop := c.stopSignal()
	select {
	case <-c.clock.After(d):
		return !c.halted(ctx)
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// runBatches dispatches claims in order, batch by batch, pausing stagger
// between batches. Claims of batches that were never dispatched are released
// when the run halts.
func (c *Controller) runBatches(ctx context.Context, kind string, size int, stagger time.Duration, claims []claim, dispatch func(context.Context, int, []claim)) {
	batches := chunk(claims, size)
	for i, batch := range batches {
		proceed := !c.halted(ctx)
		if proceed && i > 0 && stagger > 0 {
			proceed = c.wait(ctx, stagger)
		}
		if !proceed {
			var rest []claim
			for _, b := range batches[i:] {
				rest = append(rest, b...)
			}
			c.mutate(func(s *mediaStore) { s.release(rest) })
			logger := xglog.WithComponentFromContext(ctx, "launch")
			logger.Info().
				Str(xglog.FieldEvent, kind+".halted").
				Int("undispatched", len(rest)).
				Msg("stopped before dispatching remaining batches")
			return
		}
		dispatch(ctx, i, batch)
	}
}

func chunk(claims []claim, size int) [][]claim {
	if size <= 0 {
		size = len(claims)
	}
	var out [][]claim
	for start := 0; start < len(claims); start += size {
		out = append(out, claims[start:min(start+size, len(claims))])
	}
	return out
}
